package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ghalamif/SlopeGuard/internal/domain"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

func TestWaitForWALCapacityBlockThenSucceed(t *testing.T) {
	wal := &mockWAL{
		sizes: []int64{150, 50},
	}
	pol := ports.Policy{
		MaxWALSizeBytes: 100,
		OnWALFull:       "block",
		IdleSleep:       time.Millisecond,
	}
	obs := &mockObs{}

	if ok := WaitForWALCapacity(context.Background(), wal, pol, obs); !ok {
		t.Fatalf("expected WaitForWALCapacity to eventually succeed")
	}
	if wal.calls < 2 {
		t.Fatalf("expected multiple stats calls, got %d", wal.calls)
	}
}

func TestWaitForWALCapacityBlockStopsOnCancel(t *testing.T) {
	wal := &mockWAL{sizes: []int64{200}}
	pol := ports.Policy{MaxWALSizeBytes: 100, OnWALFull: "block", IdleSleep: time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if ok := WaitForWALCapacity(ctx, wal, pol, &mockObs{}); ok {
		t.Fatalf("expected cancellation to abort the wait")
	}
}

func TestWaitForWALCapacityDrop(t *testing.T) {
	wal := &mockWAL{
		sizes: []int64{200, 200},
	}
	pol := ports.Policy{
		MaxWALSizeBytes: 100,
		OnWALFull:       "drop",
	}
	obs := &mockObs{}

	if ok := WaitForWALCapacity(context.Background(), wal, pol, obs); ok {
		t.Fatalf("expected WaitForWALCapacity to drop and return false")
	}
	if len(obs.errors) == 0 || !errors.Is(obs.errors[0], ErrWALFull) {
		t.Fatalf("expected ErrWALFull to be logged, got %v", obs.errors)
	}
}

func TestEnqueueWithPolicyBlock(t *testing.T) {
	queue := &mockQueue{}
	queue.failures = 1

	pol := ports.Policy{
		OnQueueFull: "block",
		IdleSleep:   time.Millisecond,
	}
	obs := &mockObs{}

	if ok := EnqueueWithPolicy(context.Background(), queue, 1, &domain.Frame{}, pol, obs); !ok {
		t.Fatalf("expected enqueue to eventually succeed")
	}
	if queue.calls != 2 {
		t.Fatalf("expected two enqueue attempts, got %d", queue.calls)
	}
}

func TestEnqueueWithPolicyDrop(t *testing.T) {
	queue := &mockQueue{failAlways: true}
	pol := ports.Policy{
		OnQueueFull: "reject",
	}
	obs := &mockObs{}

	if ok := EnqueueWithPolicy(context.Background(), queue, 1, &domain.Frame{}, pol, obs); ok {
		t.Fatalf("expected EnqueueWithPolicy to fail")
	}
	if len(obs.errors) == 0 || !errors.Is(obs.errors[0], ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull to be logged, got %v", obs.errors)
	}
}

func TestAcceptCountsDrops(t *testing.T) {
	wal := &memWAL{}
	obs := &mockObs{}
	pol := ports.Policy{OnQueueFull: "drop"}

	if !Accept(context.Background(), &domain.Frame{Seq: 1}, wal, &mockQueue{}, pol, obs) {
		t.Fatalf("expected frame to be accepted")
	}
	if Accept(context.Background(), &domain.Frame{Seq: 2}, wal, &mockQueue{failAlways: true}, pol, obs) {
		t.Fatalf("expected frame to be dropped")
	}
	if got := obs.counter("slopeguard_queue_dropped_total"); got != 1 {
		t.Fatalf("expected 1 drop, got %f", got)
	}
	if len(wal.frames) != 2 {
		t.Fatalf("expected both frames in the wal, got %d", len(wal.frames))
	}
}

func TestRunEdgePipelineMovesFramesIntoQueue(t *testing.T) {
	col := &chanCollector{frames: []*domain.Frame{{Seq: 1}, {Seq: 2}, {Seq: 3}}}
	wal := &memWAL{}
	q := &sliceQueue{}
	pol := ports.Policy{MaxQueueLen: 8, OnQueueFull: "block", IdleSleep: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunEdgePipeline(ctx, col, wal, q, pol, &mockObs{}) }()

	deadline := time.Now().Add(time.Second)
	for q.Len() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("edge pipeline: %v", err)
	}

	batch := q.DequeueBatch(10)
	if len(batch) != 3 {
		t.Fatalf("expected 3 queued frames, got %d", len(batch))
	}
	for i, item := range batch {
		if item.ID != ports.WALEntryID(i+1) || item.Frame.Seq != uint64(i+1) {
			t.Fatalf("unexpected queued item %d: %+v", i, item)
		}
	}
}

func TestRunEdgePipelineCollectorStartError(t *testing.T) {
	col := &chanCollector{startErr: errors.New("no endpoint")}
	err := RunEdgePipeline(context.Background(), col, &memWAL{}, &sliceQueue{}, ports.Policy{}, &mockObs{})
	if err == nil {
		t.Fatalf("expected start error")
	}
}

type mockWAL struct {
	ports.WAL
	sizes []int64
	calls int
}

func (m *mockWAL) Stats() ports.WALStats {
	idx := m.calls
	if idx >= len(m.sizes) {
		idx = len(m.sizes) - 1
	}
	m.calls++
	return ports.WALStats{
		SizeBytes: m.sizes[idx],
	}
}

type memWAL struct {
	mu        sync.Mutex
	frames    []*domain.Frame
	committed ports.WALEntryID
	commits   int
}

func (m *memWAL) Append(f *domain.Frame) (ports.WALEntryID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, f)
	return ports.WALEntryID(len(m.frames)), nil
}

func (m *memWAL) Iterate(from ports.WALEntryID, fn func(ports.WALEntryID, *domain.Frame) error) error {
	m.mu.Lock()
	frames := append([]*domain.Frame(nil), m.frames...)
	m.mu.Unlock()
	for i, f := range frames {
		id := ports.WALEntryID(i + 1)
		if id < from {
			continue
		}
		if err := fn(id, f); err != nil {
			return err
		}
	}
	return nil
}

func (m *memWAL) Commit(upto ports.WALEntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits++
	if upto > m.committed {
		m.committed = upto
	}
	return nil
}

func (m *memWAL) TruncateCommitted() error { return nil }

func (m *memWAL) Stats() ports.WALStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ports.WALStats{
		OldestUncommitted: m.committed + 1,
		LatestAppended:    ports.WALEntryID(len(m.frames)),
	}
}

func (m *memWAL) committedID() ports.WALEntryID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.committed
}

type mockQueue struct {
	failures   int32
	failAlways bool
	calls      int
}

func (m *mockQueue) Enqueue(id ports.WALEntryID, f *domain.Frame) bool {
	m.calls++
	if m.failAlways {
		return false
	}
	if atomic.LoadInt32(&m.failures) > 0 {
		atomic.AddInt32(&m.failures, -1)
		return false
	}
	return true
}

func (m *mockQueue) DequeueBatch(int) []ports.QueuedFrame { return nil }
func (m *mockQueue) Len() int                             { return 0 }

type sliceQueue struct {
	mu    sync.Mutex
	items []ports.QueuedFrame
}

func (s *sliceQueue) Enqueue(id ports.WALEntryID, f *domain.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, ports.QueuedFrame{ID: id, Frame: f})
	return true
}

func (s *sliceQueue) DequeueBatch(max int) []ports.QueuedFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if max > len(s.items) {
		max = len(s.items)
	}
	out := s.items[:max]
	s.items = append([]ports.QueuedFrame(nil), s.items[max:]...)
	return out
}

func (s *sliceQueue) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

type chanCollector struct {
	frames   []*domain.Frame
	startErr error
}

func (c *chanCollector) Start(out chan<- *domain.Frame) error {
	if c.startErr != nil {
		return c.startErr
	}
	go func() {
		for _, f := range c.frames {
			out <- f
		}
	}()
	return nil
}

func (c *chanCollector) Stop() error { return nil }

type mockObs struct {
	mu          sync.Mutex
	errors      []error
	dlq         []ports.WALEntryID
	counters    map[string]float64
	assessments int
}

func (m *mockObs) LogInfo(string, ...ports.Field) {}
func (m *mockObs) LogError(_ string, err error, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, err)
}
func (m *mockObs) LogCritical(string, error, ...ports.Field) {}
func (m *mockObs) IncCounter(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = map[string]float64{}
	}
	m.counters[name] += v
}
func (m *mockObs) ObserveLatency(string, float64) {}
func (m *mockObs) SetGauge(string, float64)       {}
func (m *mockObs) RecordDLQ(id ports.WALEntryID, _ *domain.Frame, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dlq = append(m.dlq, id)
}
func (m *mockObs) RecordAssessment(*domain.ScoredFrame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assessments++
}
func (m *mockObs) RecordAlert(*domain.Alert) {}

func (m *mockObs) counter(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}
