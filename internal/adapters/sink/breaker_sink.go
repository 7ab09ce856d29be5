package sink

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/ghalamif/SlopeGuard/internal/domain"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

func (c *BreakerConfig) ApplyDefaults() {
	if c.MaxFailures == 0 {
		c.MaxFailures = 5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
}

// BreakerSink stops calling a failing downstream sink for OpenTimeout after
// MaxFailures consecutive errors. While open, WriteBatch fails fast with
// gobreaker.ErrOpenState and the BackgroundSink in front of it retries later.
type BreakerSink struct {
	next    ports.Sink
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func NewBreakerSink(next ports.Sink, cfg BreakerConfig) *BreakerSink {
	cfg.ApplyDefaults()
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
	})
	return &BreakerSink{next: next, breaker: cb}
}

func (b *BreakerSink) Name() string { return b.next.Name() }

func (b *BreakerSink) WriteBatch(ctx context.Context, frames []*domain.ScoredFrame) error {
	_, err := b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.WriteBatch(ctx, frames)
	})
	return err
}

// State reports the breaker state ("closed", "half-open" or "open").
func (b *BreakerSink) State() string { return b.breaker.State().String() }

var _ ports.Sink = (*BreakerSink)(nil)
