package poller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/SlopeGuard/internal/adapters/simulate"
	"github.com/ghalamif/SlopeGuard/internal/domain"
)

func TestCollectorEmitsFramesInOrder(t *testing.T) {
	src := simulate.NewFixtureSource(false,
		domain.SensorReading{CrackWidth: 1},
		domain.SensorReading{CrackWidth: 2},
		domain.SensorReading{CrackWidth: 3},
	)
	motion := simulate.NewFixtureMotion(true, 5, 10)

	col, err := NewCollector(Config{
		SourceID: "bench-7",
		Interval: time.Millisecond,
		StopOn:   simulate.ErrExhausted,
	}, src, motion, nil)
	require.NoError(t, err)

	out := make(chan *domain.Frame, 8)
	require.NoError(t, col.Start(out))
	require.Error(t, col.Start(out), "second start must fail")

	var frames []*domain.Frame
	for len(frames) < 3 {
		select {
		case f := <-out:
			frames = append(frames, f)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d frames", len(frames))
		}
	}
	require.NoError(t, col.Stop())
	require.NoError(t, col.Stop(), "stop is idempotent")

	for i, f := range frames {
		assert.Equal(t, "bench-7", f.SourceID)
		assert.Equal(t, uint64(i+1), f.Seq)
		assert.Equal(t, float64(i+1), f.Reading.CrackWidth)
	}
	assert.Equal(t, []float64{5, 10, 5}, []float64{frames[0].MotionScore, frames[1].MotionScore, frames[2].MotionScore})
}

func TestNewCollectorRequiresDependencies(t *testing.T) {
	_, err := NewCollector(Config{}, nil, simulate.NewFixtureMotion(true, 1), nil)
	assert.Error(t, err)
	_, err = NewCollector(Config{}, simulate.NewFixtureSource(true), nil, nil)
	assert.Error(t, err)

	col, err := NewCollector(Config{}, simulate.NewFixtureSource(true), simulate.NewFixtureMotion(true, 1), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, col.cfg.Interval)
}

func TestCollectorContinuesSequenceAndStampsTime(t *testing.T) {
	src := simulate.NewFixtureSource(false,
		domain.SensorReading{CrackWidth: 1},
		domain.SensorReading{Timestamp: 1700000000000, CrackWidth: 2},
	)
	now := time.UnixMilli(1800000000000)

	col, err := NewCollector(Config{
		SourceID: "bench-7",
		Interval: time.Millisecond,
		StopOn:   simulate.ErrExhausted,
		StartSeq: 41,
		Now:      func() time.Time { return now },
	}, src, simulate.NewFixtureMotion(true, 0), nil)
	require.NoError(t, err)

	out := make(chan *domain.Frame, 4)
	require.NoError(t, col.Start(out))
	defer col.Stop()

	var frames []*domain.Frame
	for len(frames) < 2 {
		select {
		case f := <-out:
			frames = append(frames, f)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d frames", len(frames))
		}
	}

	assert.Equal(t, uint64(42), frames[0].Seq)
	assert.Equal(t, uint64(43), frames[1].Seq)
	assert.Equal(t, now.UnixMilli(), frames[0].Reading.Timestamp)
	assert.Equal(t, int64(1700000000000), frames[1].Reading.Timestamp)
}
