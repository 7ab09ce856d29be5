package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ghalamif/SlopeGuard/internal/app/scoring"
	"github.com/ghalamif/SlopeGuard/internal/domain"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

type flakySink struct {
	mu       sync.Mutex
	failures int
	batches  [][]*domain.ScoredFrame
}

func (f *flakySink) Name() string { return "flaky" }

func (f *flakySink) WriteBatch(_ context.Context, frames []*domain.ScoredFrame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("unavailable")
	}
	f.batches = append(f.batches, frames)
	return nil
}

func (f *flakySink) delivered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func newScorer(t *testing.T) ports.Scorer {
	t.Helper()
	sc, err := scoring.New(scoring.Config{OnInvalid: scoring.OnInvalidReject}, nil)
	if err != nil {
		t.Fatalf("scorer: %v", err)
	}
	return sc
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestScoreBatchRoutesInvalidFramesToDLQ(t *testing.T) {
	obs := &mockObs{}
	batch := []ports.QueuedFrame{
		{ID: 4, Frame: &domain.Frame{Seq: 1, Reading: domain.SensorReading{CrackWidth: 5}}},
		{ID: 5, Frame: &domain.Frame{Seq: 2, Reading: domain.SensorReading{CrackWidth: -1}}},
	}

	out, maxID := ScoreBatch(batch, newScorer(t), obs)
	if len(out) != 1 || out[0].Seq != 1 {
		t.Fatalf("expected one scored frame, got %+v", out)
	}
	if out[0].ScorerVer != scoring.Version {
		t.Fatalf("expected scorer version %d, got %d", scoring.Version, out[0].ScorerVer)
	}
	if maxID != 5 {
		t.Fatalf("expected watermark 5, got %d", maxID)
	}
	if len(obs.dlq) != 1 || obs.dlq[0] != 5 {
		t.Fatalf("expected entry 5 in the dlq, got %v", obs.dlq)
	}
}

func TestRunIngestPipelineCommitsAfterDelivery(t *testing.T) {
	wal := &memWAL{}
	q := &sliceQueue{}
	for seq := uint64(1); seq <= 3; seq++ {
		f := &domain.Frame{Seq: seq, Reading: domain.SensorReading{SeismicActivity: float64(seq)}}
		id, _ := wal.Append(f)
		q.Enqueue(id, f)
	}

	sink := &flakySink{}
	obs := &mockObs{}
	pol := ports.Policy{MaxBatchSize: 10, IdleSleep: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunIngestPipeline(ctx, wal, q, newScorer(t), sink, pol, obs) }()

	waitFor(t, func() bool { return wal.committedID() == 3 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if sink.delivered() != 3 {
		t.Fatalf("expected 3 delivered frames, got %d", sink.delivered())
	}
	if got := obs.counter("slopeguard_frames_ingested_total"); got != 3 {
		t.Fatalf("expected ingested counter 3, got %f", got)
	}
	if obs.assessments != 3 {
		t.Fatalf("expected 3 recorded assessments, got %d", obs.assessments)
	}
}

func TestRunIngestPipelineRetriesWithoutCommitting(t *testing.T) {
	wal := &memWAL{}
	q := &sliceQueue{}
	f := &domain.Frame{Seq: 1}
	id, _ := wal.Append(f)
	q.Enqueue(id, f)

	sink := &flakySink{failures: 2}
	obs := &mockObs{}
	pol := ports.Policy{MaxBatchSize: 10, IdleSleep: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = RunIngestPipeline(ctx, wal, q, newScorer(t), sink, pol, obs) }()

	waitFor(t, func() bool { return sink.delivered() == 1 })
	waitFor(t, func() bool { return wal.committedID() == 1 })
	if got := obs.counter("slopeguard_sink_failures_total"); got != 2 {
		t.Fatalf("expected 2 sink failures, got %f", got)
	}
}

func TestRunIngestPipelineCommitsRejectedOnlyBatch(t *testing.T) {
	wal := &memWAL{}
	q := &sliceQueue{}
	f := &domain.Frame{MotionScore: -1}
	id, _ := wal.Append(f)
	q.Enqueue(id, f)

	sink := &flakySink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = RunIngestPipeline(ctx, wal, q, newScorer(t), sink, ports.Policy{MaxBatchSize: 4, IdleSleep: time.Millisecond}, &mockObs{})
	}()

	waitFor(t, func() bool { return wal.committedID() == 1 })
	if sink.delivered() != 0 {
		t.Fatalf("rejected frames must not reach the sink")
	}
}
