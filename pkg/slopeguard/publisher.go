package slopeguard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ghalamif/SlopeGuard/internal/adapters/observability"
	"github.com/ghalamif/SlopeGuard/internal/adapters/queue"
	"github.com/ghalamif/SlopeGuard/internal/adapters/wal"
	"github.com/ghalamif/SlopeGuard/internal/app/pipeline"
	"github.com/ghalamif/SlopeGuard/internal/app/scoring"
	"github.com/ghalamif/SlopeGuard/internal/domain"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

// ErrQueueFull indicates the in-memory queue rejected the frame according to policy.
var ErrQueueFull = pipeline.ErrQueueFull

// ErrWALFull indicates the WAL is at capacity and OnWALFull != "block".
var ErrWALFull = pipeline.ErrWALFull

// PublisherConfig configures the WAL-backed publisher used by callers that
// push readings themselves instead of running a collector.
type PublisherConfig struct {
	SourceID string
	Policy   Policy
	WAL      WALConfig
	Scoring  ScoringConfig
	Logger   *slog.Logger
	// Registry receives the publisher metrics. Nil uses a private registry.
	Registry prometheus.Registerer
}

func (c *PublisherConfig) applyDefaults() {
	if c.SourceID == "" {
		c.SourceID = "publisher"
	}
	if c.Policy.MaxWALSizeBytes == 0 {
		c.Policy.MaxWALSizeBytes = 1 << 30
	}
	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 10_000
	}
	if c.Policy.MaxBatchSize == 0 {
		c.Policy.MaxBatchSize = 500
	}
	if c.Policy.IdleSleep == 0 {
		c.Policy.IdleSleep = 5 * time.Millisecond
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "block"
	}
	if c.Policy.OnWALFull == "" {
		c.Policy.OnWALFull = "block"
	}
	if c.WAL.Dir == "" {
		c.WAL.Dir = "./data/publisher-wal"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Registry == nil {
		c.Registry = prometheus.NewRegistry()
	}
}

func (c *PublisherConfig) validate() error {
	if c.Policy.MaxQueueLen <= 0 {
		return fmt.Errorf("policy.max_queue_len must be > 0")
	}
	if c.Policy.MaxBatchSize <= 0 {
		return fmt.Errorf("policy.max_batch_size must be > 0")
	}
	return nil
}

// Publisher exposes the WAL → queue → scorer → handler pipeline to external
// producers, reusing the durability and backpressure policies.
type Publisher struct {
	sourceID string
	policy   Policy
	wal      *wal.FileWAL
	queue    ports.FrameQueue
	obs      ports.Observability
	seq      atomic.Uint64

	cancel    context.CancelFunc
	doneCh    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewPublisher opens the WAL, starts scoring in the background and re-queues
// anything left uncommitted before returning. Every scored batch is handed to handler; a
// handler error keeps the batch in the WAL and it is retried.
func NewPublisher(cfg *PublisherConfig, handler ScoredBatchHandler) (*Publisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("batch handler is required")
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	obs := observability.NewPromObs(cfg.Registry, cfg.Logger)
	sc, err := scoring.New(cfg.Scoring, obs)
	if err != nil {
		return nil, err
	}

	w, err := wal.NewFileWAL(cfg.WAL.Dir)
	if err != nil {
		return nil, err
	}
	q := queue.NewMemQueue(cfg.Policy.MaxQueueLen)

	ctx, cancel := context.WithCancel(context.Background())
	p := &Publisher{
		sourceID: cfg.SourceID,
		policy:   cfg.Policy,
		wal:      w,
		queue:    q,
		obs:      obs,
		cancel:   cancel,
		doneCh:   make(chan struct{}),
	}
	p.seq.Store(uint64(w.Stats().LatestAppended))

	out := NewCallbackSink("publisher", handler)
	go func() {
		defer close(p.doneCh)
		_ = pipeline.RunIngestPipeline(ctx, w, q, sc, out, cfg.Policy, obs)
	}()

	// the ingest loop is already draining, so a backlog larger than the
	// queue cannot stall the replay
	if _, err := pipeline.ReplayWAL(ctx, w, q, cfg.Policy, obs); err != nil {
		cancel()
		<-p.doneCh
		_ = w.Close()
		return nil, err
	}
	return p, nil
}

// Publish appends the reading to the WAL and enqueues it according to policy.
// A zero timestamp is replaced with the current time. It returns the sequence
// number assigned to the frame.
func (p *Publisher) Publish(ctx context.Context, reading SensorReading, motionScore float64) (uint64, error) {
	if !pipeline.WaitForWALCapacity(ctx, p.wal, p.policy, p.obs) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return 0, ErrWALFull
	}

	if reading.Timestamp == 0 {
		reading.Timestamp = time.Now().UnixMilli()
	}
	f := &domain.Frame{
		SourceID:    p.sourceID,
		Seq:         p.seq.Add(1),
		Reading:     reading,
		MotionScore: motionScore,
	}
	id, err := p.wal.Append(f)
	if err != nil {
		return 0, err
	}

	if !pipeline.EnqueueWithPolicy(ctx, p.queue, id, f, p.policy, p.obs) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return 0, ErrQueueFull
	}
	return f.Seq, nil
}

// Close stops the ingest loop and closes the WAL. Frames still queued stay
// uncommitted and are replayed by the next publisher on the same directory.
func (p *Publisher) Close(ctx context.Context) error {
	p.cancel()

	select {
	case <-p.doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.closeOnce.Do(func() {
		p.closeErr = p.wal.Close()
	})
	return p.closeErr
}
