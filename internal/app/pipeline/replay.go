package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/ghalamif/SlopeGuard/internal/domain"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

// replayChunk bounds how many entries are read per WAL scan. Enqueueing
// happens outside Iterate: FileWAL holds its lock for the whole scan and the
// ingest loop must still be able to commit while replay waits for room.
const replayChunk = 1024

var errChunkFull = errors.New("replay chunk full")

// ReplayWAL re-enqueues every uncommitted WAL entry. It must run before the
// collector starts so replayed frames keep their original order.
func ReplayWAL(ctx context.Context, wal ports.WAL, q ports.FrameQueue, pol ports.Policy, obs ports.Observability) (int, error) {
	stats := wal.Stats()
	if stats.LatestAppended == 0 {
		return 0, nil
	}
	start := stats.OldestUncommitted
	if start == 0 || start > stats.LatestAppended {
		return 0, nil
	}

	sleep := idleSleep(pol)
	var (
		replayed int
		from     = start
		chunk    = make([]ports.QueuedFrame, 0, replayChunk)
	)
	for {
		chunk = chunk[:0]
		err := wal.Iterate(from, func(id ports.WALEntryID, f *domain.Frame) error {
			chunk = append(chunk, ports.QueuedFrame{ID: id, Frame: f})
			if len(chunk) == replayChunk {
				return errChunkFull
			}
			return nil
		})
		if err != nil && !errors.Is(err, errChunkFull) {
			return replayed, err
		}

		for _, item := range chunk {
			for !q.Enqueue(item.ID, item.Frame) {
				switch pol.OnQueueFull {
				case "drop", "reject":
					return replayed, fmt.Errorf("%w during WAL replay at entry %d", ErrQueueFull, item.ID)
				default:
					if !sleepCtx(ctx, sleep) {
						return replayed, ctx.Err()
					}
				}
			}
			replayed++
		}

		if len(chunk) < replayChunk {
			break
		}
		from = chunk[len(chunk)-1].ID + 1
	}

	if replayed > 0 {
		obs.LogInfo("wal_replay_complete",
			ports.Field{Key: "frames", Value: replayed},
			ports.Field{Key: "from_id", Value: uint64(start)})
	}
	return replayed, nil
}
