package domain

import "math"

// Weights of the composite risk. They sum to 1.
const (
	WeightSlope     = 0.30
	WeightSeismic   = 0.25
	WeightWeather   = 0.20
	WeightVibration = 0.15
	WeightMotion    = 0.10
)

const maxPercent = 100.0

// RiskFactors are the unweighted per-signal percentages.
type RiskFactors struct {
	SlopeMovement  float64 `json:"slope_movement"`
	SeismicEvent   float64 `json:"seismic_event"`
	WeatherImpact  float64 `json:"weather_impact"`
	VibrationLevel float64 `json:"vibration_level"`
}

// RiskAssessment pairs the weighted composite with the unweighted factors it
// was blended from.
type RiskAssessment struct {
	TotalRisk float64     `json:"total_risk"`
	Factors   RiskFactors `json:"factors"`
}

// ComputeRisk blends a reading and a motion score into a composite risk.
//
// Each factor is scaled linearly and saturates at 100; crack width saturates
// at 5mm, seismic activity at magnitude 10. The motion term (motionScore*2)
// is only bounded through the final clamp of the weighted sum. Every output
// lies in [0,100], including for negative or non-finite inputs. Callers that
// must reject such inputs use ValidateReading or AssessReading.
func ComputeRisk(r SensorReading, motionScore float64) RiskAssessment {
	factors := RiskFactors{
		SlopeMovement:  percent(r.CrackWidth / 5 * 100),
		SeismicEvent:   percent(r.SeismicActivity * 10),
		WeatherImpact:  percent(r.MoistureLevel * 1.2),
		VibrationLevel: percent(r.VibrationLevel * 0.8),
	}
	motionImpact := nonNegative(motionScore * 2)

	total := factors.SlopeMovement*WeightSlope +
		factors.SeismicEvent*WeightSeismic +
		factors.WeatherImpact*WeightWeather +
		factors.VibrationLevel*WeightVibration +
		motionImpact*WeightMotion

	return RiskAssessment{
		TotalRisk: percent(total),
		Factors:   factors,
	}
}

// AssessReading validates its inputs before computing the risk.
func AssessReading(r SensorReading, motionScore float64) (RiskAssessment, error) {
	if err := ValidateReading(r, motionScore); err != nil {
		return RiskAssessment{}, err
	}
	return ComputeRisk(r, motionScore), nil
}

func percent(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(v, 0), maxPercent)
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}
