package slopeguard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ghalamif/SlopeGuard/internal/domain"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("slopeguard: channel sink closed")

// ScoredBatchHandler is invoked with ordered batches of scored frames.
type ScoredBatchHandler func([]ScoredFrame) error

// NewCallbackSink adapts a ScoredBatchHandler into a Sink so callers can plug
// arbitrary functions without defining structs.
func NewCallbackSink(name string, fn ScoredBatchHandler) Sink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes batches via a channel; it returns the sink, the read-only channel,
// and a close function that the caller should invoke during shutdown.
func NewChannelSink(name string, buffer int) (Sink, <-chan []ScoredFrame, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan []ScoredFrame, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, s.close
}

type callbackSink struct {
	name string
	fn   ScoredBatchHandler
}

func (s *callbackSink) WriteBatch(_ context.Context, frames []*domain.ScoredFrame) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	if len(frames) == 0 {
		return nil
	}
	return s.fn(copyBatch(frames))
}

func (s *callbackSink) Name() string { return s.name }

// channelSink holds mu for reading while sending so close never races a send.
type channelSink struct {
	name   string
	ch     chan []ScoredFrame
	closed chan struct{}
	once   sync.Once
	mu     sync.RWMutex
}

func (s *channelSink) WriteBatch(ctx context.Context, frames []*domain.ScoredFrame) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}

	if len(frames) == 0 {
		return nil
	}

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.ch <- copyBatch(frames):
		return nil
	}
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}

func copyBatch(frames []*domain.ScoredFrame) []ScoredFrame {
	out := make([]ScoredFrame, 0, len(frames))
	for _, f := range frames {
		if f == nil {
			continue
		}
		c := *f
		if f.Explanations != nil {
			c.Explanations = append([]string(nil), f.Explanations...)
		}
		out = append(out, c)
	}
	return out
}
