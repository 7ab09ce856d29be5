package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/ghalamif/SlopeGuard/internal/domain"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

func TestReplayWALSkipsCommitted(t *testing.T) {
	wal := &memWAL{}
	for seq := uint64(1); seq <= 5; seq++ {
		_, _ = wal.Append(&domain.Frame{Seq: seq})
	}
	_ = wal.Commit(2)

	q := &sliceQueue{}
	n, err := ReplayWAL(context.Background(), wal, q, ports.Policy{}, &mockObs{})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if n != 3 || q.Len() != 3 {
		t.Fatalf("expected 3 replayed frames, got n=%d len=%d", n, q.Len())
	}
	if first := q.DequeueBatch(1)[0]; first.ID != 3 || first.Frame.Seq != 3 {
		t.Fatalf("expected replay to start at entry 3, got %+v", first)
	}
}

func TestReplayWALNothingToDo(t *testing.T) {
	wal := &memWAL{}
	n, err := ReplayWAL(context.Background(), wal, &sliceQueue{}, ports.Policy{}, &mockObs{})
	if err != nil || n != 0 {
		t.Fatalf("expected empty replay, got n=%d err=%v", n, err)
	}

	_, _ = wal.Append(&domain.Frame{})
	_ = wal.Commit(1)
	n, err = ReplayWAL(context.Background(), wal, &sliceQueue{}, ports.Policy{}, &mockObs{})
	if err != nil || n != 0 {
		t.Fatalf("expected fully committed wal to replay nothing, got n=%d err=%v", n, err)
	}
}

func TestReplayWALQueueFull(t *testing.T) {
	wal := &memWAL{}
	_, _ = wal.Append(&domain.Frame{})

	_, err := ReplayWAL(context.Background(), wal, &mockQueue{failAlways: true}, ports.Policy{OnQueueFull: "reject"}, &mockObs{})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestReplayWALSpansChunks(t *testing.T) {
	wal := &memWAL{}
	total := 2*replayChunk + 17
	for seq := 1; seq <= total; seq++ {
		_, _ = wal.Append(&domain.Frame{Seq: uint64(seq)})
	}

	q := &sliceQueue{}
	n, err := ReplayWAL(context.Background(), wal, q, ports.Policy{}, &mockObs{})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if n != total || q.Len() != total {
		t.Fatalf("expected %d replayed frames, got n=%d len=%d", total, n, q.Len())
	}
	for i, item := range q.DequeueBatch(total) {
		if item.ID != ports.WALEntryID(i+1) || item.Frame.Seq != uint64(i+1) {
			t.Fatalf("entry %d out of order: %+v", i, item)
		}
	}
}
