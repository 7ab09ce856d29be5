package slopeguard

import (
	"context"
	"testing"
	"time"
)

func TestNewEdgeRuntimeWithCustomAdapters(t *testing.T) {
	cfg := &Config{
		Policy: Policy{
			MaxQueueLen:  8,
			MaxBatchSize: 4,
			IdleSleep:    time.Millisecond,
		},
		HTTP: HTTPConfig{Addr: "127.0.0.1:0"},
		WAL:  WALConfig{Dir: t.TempDir()},
	}

	queueStub := &stubQueue{}
	collectorStub := &stubCollector{}
	sinkStub := &stubSink{}
	scorerStub := &stubScorer{}
	walStub := &stubWAL{}
	obsStub := &stubObservability{}

	rt, err := NewEdgeRuntime(
		cfg,
		WithCollector(collectorStub),
		WithSink(sinkStub),
		WithScorer(scorerStub),
		WithWAL(walStub),
		WithFrameQueue(queueStub),
		WithObservability(obsStub),
	)
	if err != nil {
		t.Fatalf("NewEdgeRuntime returned error: %v", err)
	}

	if rt.collector != collectorStub {
		t.Fatalf("expected custom collector to be used")
	}
	if rt.scorer != scorerStub {
		t.Fatalf("expected custom scorer to be used")
	}
	if rt.wal != walStub {
		t.Fatalf("expected custom WAL to be used")
	}
	if rt.queue != queueStub {
		t.Fatalf("expected custom queue to be used")
	}
	if rt.obs != obsStub {
		t.Fatalf("expected custom observability to be used")
	}
	// history, alerts, stream and the extra sink
	if got := rt.sink.Len(); got != 4 {
		t.Fatalf("expected 4 fanout sinks, got %d", got)
	}
	if len(rt.external) != 1 || rt.external[0].Name() != "stub" {
		t.Fatalf("expected the extra sink behind a retry buffer, got %d", len(rt.external))
	}
	if rt.db != nil {
		t.Fatalf("expected db to be nil when timescale is not configured")
	}
}

func TestNewEdgeRuntimeRejectsInvalidConfig(t *testing.T) {
	cfg := &Config{
		Source: SourceConfig{Kind: "carrier-pigeon"},
		WAL:    WALConfig{Dir: t.TempDir()},
	}
	if _, err := NewEdgeRuntime(cfg); err == nil {
		t.Fatalf("expected error for unknown source kind")
	}
}

func TestNewEdgeRuntimeRequiresConfig(t *testing.T) {
	if _, err := NewEdgeRuntime(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestEdgeRuntimeRunScoresPolledSource(t *testing.T) {
	reading := SensorReading{CrackWidth: 5, SeismicActivity: 8, MoistureLevel: 70, VibrationLevel: 110}
	cfg := &Config{
		Source: SourceConfig{Interval: 5 * time.Millisecond},
		Policy: Policy{IdleSleep: time.Millisecond},
		HTTP:   HTTPConfig{Addr: "127.0.0.1:0"},
		WAL:    WALConfig{Dir: t.TempDir()},
	}

	sink, ch, closeSink := NewChannelSink("test", 16)
	rt, err := NewEdgeRuntime(cfg,
		WithSource(&constSource{r: reading}, constMotion(20)),
		WithSink(sink),
	)
	if err != nil {
		t.Fatalf("NewEdgeRuntime returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	var batch []ScoredFrame
	select {
	case batch = <-ch:
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("timed out waiting for scored frames")
	}
	cancel()
	closeSink()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	got := batch[0]
	if got.Level != RiskHigh || !got.Emergency || !got.MotionZone {
		t.Fatalf("unexpected scored frame: %+v", got)
	}
	if len(got.Explanations) != 4 {
		t.Fatalf("expected 4 explanations, got %v", got.Explanations)
	}
	if _, ok := rt.Latest(); !ok {
		t.Fatalf("expected history to hold the latest frame")
	}
	if len(rt.Alerts()) == 0 {
		t.Fatalf("expected alerts to be raised")
	}
}

type constSource struct{ r SensorReading }

func (s *constSource) Next(ctx context.Context) (SensorReading, error) {
	if err := ctx.Err(); err != nil {
		return SensorReading{}, err
	}
	return s.r, nil
}

type constMotion float64

func (m constMotion) Detect(ctx context.Context) (float64, error) {
	return float64(m), ctx.Err()
}

type stubCollector struct{}

func (s *stubCollector) Start(out chan<- *Frame) error { return nil }
func (s *stubCollector) Stop() error                   { return nil }

type stubSink struct{}

func (s *stubSink) WriteBatch(context.Context, []*ScoredFrame) error { return nil }
func (s *stubSink) Name() string { return "stub" }

type stubScorer struct{}

func (s *stubScorer) Score(f *Frame) (*ScoredFrame, error) {
	return &ScoredFrame{SourceID: f.SourceID, Seq: f.Seq}, nil
}
func (s *stubScorer) Version() uint16 { return 42 }

type stubQueue struct{}

func (s *stubQueue) Enqueue(id WALEntryID, f *Frame) bool { return true }
func (s *stubQueue) DequeueBatch(max int) []QueuedFrame   { return nil }
func (s *stubQueue) Len() int                             { return 0 }

type stubWAL struct{}

func (s *stubWAL) Append(f *Frame) (WALEntryID, error) { return 0, nil }
func (s *stubWAL) Iterate(from WALEntryID, fn func(id WALEntryID, f *Frame) error) error {
	return nil
}
func (s *stubWAL) Commit(upto WALEntryID) error { return nil }
func (s *stubWAL) TruncateCommitted() error     { return nil }
func (s *stubWAL) Stats() WALStats              { return WALStats{} }

type stubObservability struct{}

func (s *stubObservability) LogInfo(string, ...Field)            {}
func (s *stubObservability) LogError(string, error, ...Field)    {}
func (s *stubObservability) LogCritical(string, error, ...Field) {}
func (s *stubObservability) IncCounter(string, float64)          {}
func (s *stubObservability) ObserveLatency(string, float64)      {}
func (s *stubObservability) SetGauge(string, float64)            {}
func (s *stubObservability) RecordDLQ(WALEntryID, *Frame, error) {}
func (s *stubObservability) RecordAssessment(*ScoredFrame)       {}
func (s *stubObservability) RecordAlert(*Alert)                  {}
