package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ghalamif/SlopeGuard/internal/domain"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

var (
	ErrWALFull   = errors.New("wal size limit reached")
	ErrQueueFull = errors.New("frame queue full")
)

const defaultIdleSleep = 5 * time.Millisecond

// RunEdgePipeline starts the collector and persists every frame it emits to
// the WAL before queueing it for scoring. It blocks until ctx is done; the
// caller owns Collector.Stop.
func RunEdgePipeline(ctx context.Context, col ports.Collector, wal ports.WAL, q ports.FrameQueue, pol ports.Policy, obs ports.Observability) error {
	ch := make(chan *domain.Frame, pol.MaxQueueLen)

	if err := col.Start(ch); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case f := <-ch:
			if f == nil {
				continue
			}
			Accept(ctx, f, wal, q, pol, obs)
		}
	}
}

// Accept appends f to the WAL and enqueues it, honouring the backpressure
// policies. It reports whether the frame was queued.
func Accept(ctx context.Context, f *domain.Frame, wal ports.WAL, q ports.FrameQueue, pol ports.Policy, obs ports.Observability) bool {
	if !WaitForWALCapacity(ctx, wal, pol, obs) {
		obs.IncCounter("slopeguard_queue_dropped_total", 1)
		return false
	}

	id, err := wal.Append(f)
	if err != nil {
		obs.LogCritical("wal_append_failed", err,
			ports.Field{Key: "source_id", Value: f.SourceID},
			ports.Field{Key: "seq", Value: f.Seq})
		return false
	}

	if !EnqueueWithPolicy(ctx, q, id, f, pol, obs) {
		obs.IncCounter("slopeguard_queue_dropped_total", 1)
		return false
	}
	return true
}

// WaitForWALCapacity returns true once the WAL is below its size limit. With
// the block policy it polls until then or until ctx is done.
func WaitForWALCapacity(ctx context.Context, wal ports.WAL, pol ports.Policy, obs ports.Observability) bool {
	if pol.MaxWALSizeBytes <= 0 {
		return true
	}
	sleep := idleSleep(pol)

	for {
		stats := wal.Stats()
		if stats.SizeBytes < pol.MaxWALSizeBytes {
			return true
		}

		switch pol.OnWALFull {
		case "block":
			if !sleepCtx(ctx, sleep) {
				return false
			}
		case "drop":
			obs.LogError("wal_full_drop", fmt.Errorf("%w: size=%d limit=%d", ErrWALFull, stats.SizeBytes, pol.MaxWALSizeBytes))
			return false
		default:
			obs.LogError("wal_policy_invalid", fmt.Errorf("policy=%s", pol.OnWALFull))
			return false
		}
	}
}

// EnqueueWithPolicy offers f to the queue. With the block policy it retries
// until there is room or ctx is done; drop and reject give up at once.
func EnqueueWithPolicy(ctx context.Context, q ports.FrameQueue, id ports.WALEntryID, f *domain.Frame, pol ports.Policy, obs ports.Observability) bool {
	sleep := idleSleep(pol)

	for {
		if ok := q.Enqueue(id, f); ok {
			return true
		}

		switch pol.OnQueueFull {
		case "block":
			if !sleepCtx(ctx, sleep) {
				return false
			}
		case "drop", "reject":
			obs.LogError("queue_full_drop", fmt.Errorf("%w: capacity %d", ErrQueueFull, pol.MaxQueueLen))
			return false
		default:
			obs.LogError("queue_policy_invalid", fmt.Errorf("policy=%s", pol.OnQueueFull))
			return false
		}
	}
}

func idleSleep(pol ports.Policy) time.Duration {
	if pol.IdleSleep <= 0 {
		return defaultIdleSleep
	}
	return pol.IdleSleep
}

// sleepCtx reports false when ctx ended before d elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
