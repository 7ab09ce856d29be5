// Package poller turns a pull-style SensorSource and MotionDetector into a
// Collector that emits one frame per tick.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ghalamif/SlopeGuard/internal/domain"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

// DefaultInterval is the dashboard refresh cadence.
const DefaultInterval = 1500 * time.Millisecond

type Config struct {
	SourceID string
	Interval time.Duration
	// StopOn ends polling when the source fails with an error matching it,
	// e.g. simulate.ErrExhausted for one-shot fixtures.
	StopOn error
	// StartSeq is the last sequence number already used, typically the
	// newest WAL id, so frames after a restart do not reuse it.
	StartSeq uint64
	// Now stamps readings that arrive without a timestamp.
	Now func() time.Time
}

type Collector struct {
	cfg    Config
	source ports.SensorSource
	motion ports.MotionDetector
	logger *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	seq     uint64
	started bool
}

func NewCollector(cfg Config, source ports.SensorSource, motion ports.MotionDetector, logger *slog.Logger) (*Collector, error) {
	if source == nil {
		return nil, errors.New("poller: sensor source is required")
	}
	if motion == nil {
		return nil, errors.New("poller: motion detector is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.SourceID == "" {
		cfg.SourceID = "site"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		cfg:    cfg,
		source: source,
		motion: motion,
		logger: logger.With("component", "poller", "source_id", cfg.SourceID),
		seq:    cfg.StartSeq,
	}, nil
}

func (c *Collector) Start(out chan<- *domain.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("poller collector already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.started = true

	c.wg.Add(1)
	go c.run(ctx, out)
	return nil
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
	return nil
}

func (c *Collector) run(ctx context.Context, out chan<- *domain.Frame) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		f, err := c.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if c.cfg.StopOn != nil && errors.Is(err, c.cfg.StopOn) {
				c.logger.Info("sensor source exhausted, polling stopped")
				return
			}
			c.logger.Warn("sensor poll failed", "error", err)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case out <- f:
		}
	}
}

func (c *Collector) poll(ctx context.Context) (*domain.Frame, error) {
	reading, err := c.source.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("sensor source: %w", err)
	}
	motion, err := c.motion.Detect(ctx)
	if err != nil {
		return nil, fmt.Errorf("motion detector: %w", err)
	}
	if reading.Timestamp == 0 {
		reading.Timestamp = c.cfg.Now().UnixMilli()
	}
	c.seq++
	return &domain.Frame{
		SourceID:    c.cfg.SourceID,
		Seq:         c.seq,
		Reading:     reading,
		MotionScore: motion,
	}, nil
}

var _ ports.Collector = (*Collector)(nil)
