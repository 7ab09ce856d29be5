package queue

import (
	"testing"

	"github.com/ghalamif/SlopeGuard/internal/domain"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

func TestMemQueueEnqueueDequeueOrder(t *testing.T) {
	q := NewMemQueue(4)

	f1 := &domain.Frame{SourceID: "s1"}
	f2 := &domain.Frame{SourceID: "s2"}

	if !q.Enqueue(1, f1) || !q.Enqueue(2, f2) {
		t.Fatalf("expected successful enqueue")
	}

	batch := q.DequeueBatch(1)
	if len(batch) != 1 || batch[0].ID != 1 || batch[0].Frame.SourceID != "s1" {
		t.Fatalf("unexpected first batch: %+v", batch)
	}

	remaining := q.DequeueBatch(10)
	if len(remaining) != 1 || remaining[0].ID != 2 {
		t.Fatalf("unexpected second batch: %+v", remaining)
	}

	if q.Len() != 0 {
		t.Fatalf("queue should be empty, got %d", q.Len())
	}
	if q.DequeueBatch(5) != nil {
		t.Fatalf("expected nil batch from empty queue")
	}
}

func TestMemQueueCapacity(t *testing.T) {
	q := NewMemQueue(2)

	f := &domain.Frame{SourceID: "cap"}

	if !q.Enqueue(1, f) || !q.Enqueue(2, f) {
		t.Fatalf("expected enqueue within capacity")
	}
	if q.Enqueue(3, f) {
		t.Fatalf("enqueue should fail when capacity exceeded")
	}

	q.DequeueBatch(1)
	if !q.Enqueue(4, f) {
		t.Fatalf("expected enqueue to succeed after dequeue")
	}
}

func TestMemQueueWrapsAround(t *testing.T) {
	q := NewMemQueue(3)
	var next uint64 = 1
	for round := 0; round < 5; round++ {
		for i := 0; i < 2; i++ {
			if !q.Enqueue(portsID(next), &domain.Frame{Seq: next}) {
				t.Fatalf("enqueue %d failed", next)
			}
			next++
		}
		batch := q.DequeueBatch(0)
		if len(batch) != 2 {
			t.Fatalf("round %d: expected 2 items, got %d", round, len(batch))
		}
		if batch[0].Frame.Seq+1 != batch[1].Frame.Seq {
			t.Fatalf("round %d: out of order %+v", round, batch)
		}
	}
}

func portsID(v uint64) ports.WALEntryID { return ports.WALEntryID(v) }
