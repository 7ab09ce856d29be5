package history

import (
	"context"
	"sync"

	"github.com/ghalamif/SlopeGuard/internal/domain"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

// DefaultCapacity matches the dashboard trend chart.
const DefaultCapacity = 50

// Window keeps the most recent scored frames, oldest first. A frame whose
// key (source, sequence and reading timestamp) is already retained is
// ignored, so redelivered batches do not duplicate points.
type Window struct {
	mu    sync.RWMutex
	buf   []*domain.ScoredFrame
	head  int
	count int
}

func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{buf: make([]*domain.ScoredFrame, capacity)}
}

func (w *Window) Name() string { return "history" }

func (w *Window) WriteBatch(_ context.Context, frames []*domain.ScoredFrame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, f := range frames {
		if f == nil || w.containsLocked(f.Key()) {
			continue
		}
		w.push(f.Clone())
	}
	return nil
}

func (w *Window) containsLocked(k domain.FrameKey) bool {
	for i := 0; i < w.count; i++ {
		if w.buf[(w.head+i)%len(w.buf)].Key() == k {
			return true
		}
	}
	return false
}

func (w *Window) push(f *domain.ScoredFrame) {
	capacity := len(w.buf)
	idx := (w.head + w.count) % capacity
	w.buf[idx] = f
	if w.count < capacity {
		w.count++
		return
	}
	w.head = (w.head + 1) % capacity
}

// Snapshot returns copies of the retained frames, oldest first.
func (w *Window) Snapshot() []*domain.ScoredFrame {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*domain.ScoredFrame, 0, w.count)
	for i := 0; i < w.count; i++ {
		out = append(out, w.buf[(w.head+i)%len(w.buf)].Clone())
	}
	return out
}

// Latest returns the newest frame, or false before the first write.
func (w *Window) Latest() (*domain.ScoredFrame, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.count == 0 {
		return nil, false
	}
	return w.buf[(w.head+w.count-1)%len(w.buf)].Clone(), true
}

func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.count
}

func (w *Window) Cap() int { return len(w.buf) }

var _ ports.Sink = (*Window)(nil)
