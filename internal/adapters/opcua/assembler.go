package opcua

import (
	"sync"
	"time"

	"github.com/ghalamif/SlopeGuard/internal/domain"
)

// frameAssembler keeps the latest value of every mapped field. OPC UA
// reports node changes independently, so a frame is only complete once each
// configured field has been seen.
type frameAssembler struct {
	mu       sync.Mutex
	sourceID string
	expected map[string]bool
	seen     map[string]bool
	reading  domain.SensorReading
	motion   float64
	latest   time.Time
	seq      uint64
}

func newFrameAssembler(sourceID string, startSeq uint64, fields []string) *frameAssembler {
	expected := make(map[string]bool, len(fields))
	for _, f := range fields {
		expected[f] = true
	}
	return &frameAssembler{
		sourceID: sourceID,
		expected: expected,
		seen:     make(map[string]bool, len(fields)),
		seq:      startSeq,
	}
}

func (a *frameAssembler) update(field string, v float64, ts time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch field {
	case FieldTemperature:
		a.reading.Temperature = v
	case FieldVibrationLevel:
		a.reading.VibrationLevel = v
	case FieldCrackWidth:
		a.reading.CrackWidth = v
	case FieldTiltAngle:
		a.reading.TiltAngle = v
	case FieldSeismicActivity:
		a.reading.SeismicActivity = v
	case FieldMoistureLevel:
		a.reading.MoistureLevel = v
	case FieldMotionScore:
		a.motion = v
	default:
		return
	}
	a.seen[field] = true
	if ts.After(a.latest) {
		a.latest = ts
	}
}

func (a *frameAssembler) build() (*domain.Frame, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for f := range a.expected {
		if !a.seen[f] {
			return nil, false
		}
	}
	a.seq++
	r := a.reading
	r.Timestamp = a.latest.UnixMilli()
	return &domain.Frame{
		SourceID:    a.sourceID,
		Seq:         a.seq,
		Reading:     r,
		MotionScore: a.motion,
	}, true
}
