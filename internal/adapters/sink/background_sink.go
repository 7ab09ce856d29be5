package sink

import (
	"context"
	"sync"
	"time"

	"github.com/ghalamif/SlopeGuard/internal/domain"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

const (
	DefaultMaxPendingBatches = 256
	defaultRetryMin          = 100 * time.Millisecond
	defaultRetryMax          = 5 * time.Second
)

// BackgroundSink decouples a slow or unreliable sink from the ingest
// pipeline. WriteBatch only buffers a copy of the batch and never fails, so
// the WAL is committed once the in-memory consumers have the frames. Run
// delivers the buffered batches in order and retries the head batch with
// capped backoff. When the buffer is full the oldest batch is discarded.
type BackgroundSink struct {
	next       ports.Sink
	obs        ports.Observability
	maxPending int
	retryMin   time.Duration
	retryMax   time.Duration

	mu      sync.Mutex
	pending []pendingBatch
	nextID  uint64
	notify  chan struct{}
}

type pendingBatch struct {
	id     uint64
	frames []*domain.ScoredFrame
}

type BackgroundOption func(*BackgroundSink)

// WithMaxPending bounds the number of buffered batches.
func WithMaxPending(n int) BackgroundOption {
	return func(b *BackgroundSink) {
		if n > 0 {
			b.maxPending = n
		}
	}
}

// WithRetryBackoff sets the first and the largest delay between attempts.
func WithRetryBackoff(first, limit time.Duration) BackgroundOption {
	return func(b *BackgroundSink) {
		if first > 0 {
			b.retryMin = first
		}
		if limit >= b.retryMin {
			b.retryMax = limit
		}
	}
}

// WithSinkObservability reports failures and discarded frames.
func WithSinkObservability(obs ports.Observability) BackgroundOption {
	return func(b *BackgroundSink) {
		b.obs = obs
	}
}

func NewBackgroundSink(next ports.Sink, opts ...BackgroundOption) *BackgroundSink {
	b := &BackgroundSink{
		next:       next,
		maxPending: DefaultMaxPendingBatches,
		retryMin:   defaultRetryMin,
		retryMax:   defaultRetryMax,
		notify:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *BackgroundSink) Name() string { return b.next.Name() }

func (b *BackgroundSink) WriteBatch(_ context.Context, frames []*domain.ScoredFrame) error {
	if len(frames) == 0 {
		return nil
	}
	batch := make([]*domain.ScoredFrame, 0, len(frames))
	for _, f := range frames {
		if f != nil {
			batch = append(batch, f.Clone())
		}
	}

	var dropped int
	b.mu.Lock()
	b.nextID++
	b.pending = append(b.pending, pendingBatch{id: b.nextID, frames: batch})
	for len(b.pending) > b.maxPending {
		dropped += len(b.pending[0].frames)
		b.pending[0] = pendingBatch{}
		b.pending = b.pending[1:]
	}
	b.mu.Unlock()

	if dropped > 0 && b.obs != nil {
		b.obs.IncCounter("slopeguard_sink_dropped_total", float64(dropped))
	}
	select {
	case b.notify <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the number of buffered batches.
func (b *BackgroundSink) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Run delivers buffered batches until ctx is cancelled. Batches still
// buffered at that point are discarded; their frames are already committed.
func (b *BackgroundSink) Run(ctx context.Context) error {
	backoff := b.retryMin
	for {
		head, ok := b.head()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-b.notify:
			}
			continue
		}

		err := b.next.WriteBatch(ctx, head.frames)
		if err == nil {
			b.remove(head.id)
			backoff = b.retryMin
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		if b.obs != nil {
			b.obs.IncCounter("slopeguard_sink_failures_total", 1)
			b.obs.LogError("external_sink_write_failed", err,
				ports.Field{Key: "sink", Value: b.next.Name()},
				ports.Field{Key: "frames", Value: len(head.frames)},
				ports.Field{Key: "retry_in", Value: backoff.String()})
		}

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
		backoff *= 2
		if backoff > b.retryMax {
			backoff = b.retryMax
		}
	}
}

func (b *BackgroundSink) head() (pendingBatch, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return pendingBatch{}, false
	}
	return b.pending[0], true
}

// remove drops the head batch unless it was already discarded for space.
func (b *BackgroundSink) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) > 0 && b.pending[0].id == id {
		b.pending[0] = pendingBatch{}
		b.pending = b.pending[1:]
	}
}

var _ ports.Sink = (*BackgroundSink)(nil)
