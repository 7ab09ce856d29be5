package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/ghalamif/SlopeGuard/internal/domain"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

// FanoutSink delivers every batch to each child in order. It keeps going
// after a failure and reports all of them, so an in-memory consumer still
// sees frames while a database is down.
type FanoutSink struct {
	sinks []ports.Sink
}

func NewFanoutSink(sinks ...ports.Sink) *FanoutSink {
	out := make([]ports.Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &FanoutSink{sinks: out}
}

func (f *FanoutSink) Name() string { return "fanout" }

// Add appends a child sink.
func (f *FanoutSink) Add(s ports.Sink) {
	if s != nil {
		f.sinks = append(f.sinks, s)
	}
}

func (f *FanoutSink) Len() int { return len(f.sinks) }

func (f *FanoutSink) WriteBatch(ctx context.Context, frames []*domain.ScoredFrame) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.WriteBatch(ctx, frames); err != nil {
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

var _ ports.Sink = (*FanoutSink)(nil)
