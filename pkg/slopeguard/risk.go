package slopeguard

import "github.com/ghalamif/SlopeGuard/internal/domain"

// Risk levels.
const (
	RiskLow    = domain.RiskLow
	RiskMedium = domain.RiskMedium
	RiskHigh   = domain.RiskHigh
)

// Alert severities.
const (
	SeverityCritical = domain.SeverityCritical
	SeverityHigh     = domain.SeverityHigh
	SeverityMedium   = domain.SeverityMedium
	SeverityLow      = domain.SeverityLow
)

// ErrInvalidInput is wrapped by every validation failure.
var ErrInvalidInput = domain.ErrInvalidInput

// ComputeRisk blends a reading and a motion score into a composite risk in
// [0,100]. It never fails; out-of-domain inputs saturate.
func ComputeRisk(r SensorReading, motionScore float64) RiskAssessment {
	return domain.ComputeRisk(r, motionScore)
}

// AssessReading is ComputeRisk preceded by ValidateReading.
func AssessReading(r SensorReading, motionScore float64) (RiskAssessment, error) {
	return domain.AssessReading(r, motionScore)
}

// ValidateReading reports every negative or non-finite field.
func ValidateReading(r SensorReading, motionScore float64) error {
	return domain.ValidateReading(r, motionScore)
}

// ExplainRiskFactors lists the factors that stand out in a, in slope,
// seismic, weather, vibration order.
func ExplainRiskFactors(a RiskAssessment) []string {
	return domain.ExplainRiskFactors(a)
}

// Classify maps a composite risk onto a RiskLevel.
func Classify(totalRisk float64) RiskLevel {
	return domain.Classify(totalRisk)
}

// EmergencyProtocol reports whether totalRisk requires evacuation.
func EmergencyProtocol(totalRisk float64) bool {
	return domain.EmergencyProtocol(totalRisk)
}
