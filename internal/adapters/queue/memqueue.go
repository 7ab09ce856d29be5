package queue

import (
	"sync"

	"github.com/ghalamif/SlopeGuard/internal/domain"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

// MemQueue is a bounded in-memory FIFO of WAL-backed frames, stored in a
// fixed ring so steady-state enqueue/dequeue does not allocate.
type MemQueue struct {
	mu   sync.Mutex
	ring []ports.QueuedFrame
	head int
	size int
}

func NewMemQueue(capacity int) *MemQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemQueue{ring: make([]ports.QueuedFrame, capacity)}
}

func (q *MemQueue) Enqueue(id ports.WALEntryID, f *domain.Frame) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == len(q.ring) {
		return false
	}
	q.ring[(q.head+q.size)%len(q.ring)] = ports.QueuedFrame{ID: id, Frame: f}
	q.size++
	return true
}

func (q *MemQueue) DequeueBatch(max int) []ports.QueuedFrame {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return nil
	}
	if max <= 0 || max > q.size {
		max = q.size
	}
	out := make([]ports.QueuedFrame, max)
	for i := range out {
		idx := (q.head + i) % len(q.ring)
		out[i] = q.ring[idx]
		q.ring[idx] = ports.QueuedFrame{}
	}
	q.head = (q.head + max) % len(q.ring)
	q.size -= max
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

func (q *MemQueue) Cap() int { return len(q.ring) }

var _ ports.FrameQueue = (*MemQueue)(nil)
