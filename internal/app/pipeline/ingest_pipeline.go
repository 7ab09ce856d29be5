package pipeline

import (
	"context"
	"time"

	"github.com/ghalamif/SlopeGuard/internal/domain"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

const maxSinkBackoff = 5 * time.Second

// RunIngestPipeline scores queued frames and delivers them to the sink until
// ctx is done. A batch is committed to the WAL only after the sink accepted
// it; on failure the same batch is retried with backoff, so the commit
// watermark never passes an undelivered frame.
func RunIngestPipeline(ctx context.Context, wal ports.WAL, q ports.FrameQueue, sc ports.Scorer, sink ports.Sink, pol ports.Policy, obs ports.Observability) error {
	sleep := idleSleep(pol)
	for {
		if ctx.Err() != nil {
			return nil
		}

		batch := q.DequeueBatch(pol.MaxBatchSize)
		if len(batch) == 0 {
			if !sleepCtx(ctx, sleep) {
				return nil
			}
			continue
		}

		out, maxID := ScoreBatch(batch, sc, obs)
		if len(out) == 0 {
			if err := wal.Commit(maxID); err != nil {
				obs.LogError("wal_commit_failed", err)
			}
			continue
		}

		if !deliver(ctx, sink, out, pol, obs) {
			return nil
		}
		for _, s := range out {
			obs.RecordAssessment(s)
		}

		if err := wal.Commit(maxID); err != nil {
			obs.LogError("wal_commit_failed", err)
		}
	}
}

// ScoreBatch scores each queued frame. Rejected frames go to the DLQ and are
// still counted towards the returned commit watermark.
func ScoreBatch(batch []ports.QueuedFrame, sc ports.Scorer, obs ports.Observability) ([]*domain.ScoredFrame, ports.WALEntryID) {
	var (
		out   = make([]*domain.ScoredFrame, 0, len(batch))
		maxID ports.WALEntryID
	)
	for _, item := range batch {
		if item.ID > maxID {
			maxID = item.ID
		}
		s, err := sc.Score(item.Frame)
		if err != nil {
			obs.RecordDLQ(item.ID, item.Frame, err)
			continue
		}
		s.ScorerVer = sc.Version()
		out = append(out, s)
	}
	return out, maxID
}

// deliver retries until the sink accepts the batch. It returns false if ctx
// ended first.
func deliver(ctx context.Context, sink ports.Sink, out []*domain.ScoredFrame, pol ports.Policy, obs ports.Observability) bool {
	backoff := idleSleep(pol)
	for {
		start := time.Now()
		err := sink.WriteBatch(ctx, out)
		if err == nil {
			obs.ObserveLatency("slopeguard_sink_latency_seconds", time.Since(start).Seconds())
			obs.IncCounter("slopeguard_frames_ingested_total", float64(len(out)))
			return true
		}

		obs.IncCounter("slopeguard_sink_failures_total", 1)
		obs.LogError("sink_write_failed", err,
			ports.Field{Key: "sink", Value: sink.Name()},
			ports.Field{Key: "frames", Value: len(out)},
			ports.Field{Key: "retry_in", Value: backoff.String()})
		if !sleepCtx(ctx, backoff) {
			return false
		}
		backoff *= 2
		if backoff > maxSinkBackoff {
			backoff = maxSinkBackoff
		}
	}
}
