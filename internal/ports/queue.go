package ports

import "github.com/ghalamif/SlopeGuard/internal/domain"

type QueuedFrame struct {
	ID    WALEntryID
	Frame *domain.Frame
}

type FrameQueue interface {
	Enqueue(id WALEntryID, f *domain.Frame) bool
	DequeueBatch(max int) []QueuedFrame
	Len() int
}
