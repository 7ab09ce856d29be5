package domain

// RiskLevel buckets the composite risk for display and alerting.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

const (
	MediumRiskThreshold = 40.0
	HighRiskThreshold   = 70.0
	// Strictly above these values.
	EmergencyThreshold  = 70.0
	HeatZoneThreshold   = 50.0
	MotionZoneThreshold = 15.0
)

// Classify maps a composite risk onto low (<40), medium (<70) or high.
func Classify(totalRisk float64) RiskLevel {
	switch {
	case totalRisk >= HighRiskThreshold:
		return RiskHigh
	case totalRisk >= MediumRiskThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// EmergencyProtocol reports whether evacuation procedures should be shown.
func EmergencyProtocol(totalRisk float64) bool { return totalRisk > EmergencyThreshold }

// HeatZoneActive reports whether the composite is high enough to mark a heat zone.
func HeatZoneActive(totalRisk float64) bool { return totalRisk > HeatZoneThreshold }

// MotionZoneActive reports whether the motion detector sees activity worth flagging.
func MotionZoneActive(motionScore float64) bool { return motionScore > MotionZoneThreshold }
