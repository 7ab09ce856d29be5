package domain

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput marks readings or motion scores the aggregator refuses to
// score in strict mode.
var ErrInvalidInput = errors.New("invalid input")

// InputError names the offending field.
type InputError struct {
	Field string
	Value float64
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%v: %s=%v", ErrInvalidInput, e.Field, e.Value)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// ValidateReading rejects negative or non-finite inputs. Values above the
// nominal sensor range are accepted; the aggregator saturates them.
// Temperature only has to be finite.
func ValidateReading(r SensorReading, motionScore float64) error {
	var errs []error
	if r.Timestamp < 0 {
		errs = append(errs, &InputError{Field: "timestamp", Value: float64(r.Timestamp)})
	}
	if math.IsNaN(r.Temperature) || math.IsInf(r.Temperature, 0) {
		errs = append(errs, &InputError{Field: "temperature", Value: r.Temperature})
	}

	checks := []struct {
		field string
		value float64
	}{
		{"vibration_level", r.VibrationLevel},
		{"crack_width", r.CrackWidth},
		{"tilt_angle", r.TiltAngle},
		{"seismic_activity", r.SeismicActivity},
		{"moisture_level", r.MoistureLevel},
		{"motion_score", motionScore},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) || c.value < 0 {
			errs = append(errs, &InputError{Field: c.field, Value: c.value})
		}
	}
	return errors.Join(errs...)
}
