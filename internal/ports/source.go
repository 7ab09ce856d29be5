package ports

import (
	"context"

	"github.com/ghalamif/SlopeGuard/internal/domain"
)

// SensorSource yields one reading per call. Implementations range from the
// seeded simulator to fixed fixture sequences used in tests.
type SensorSource interface {
	Next(ctx context.Context) (domain.SensorReading, error)
}

// MotionDetector yields the motion score for the current tick.
type MotionDetector interface {
	Detect(ctx context.Context) (float64, error)
}
