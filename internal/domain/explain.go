package domain

// Factor thresholds above which ExplainRiskFactors reports a factor.
const (
	SlopeExplainThreshold     = 70.0
	SeismicExplainThreshold   = 50.0
	WeatherExplainThreshold   = 60.0
	VibrationExplainThreshold = 80.0
)

// ExplainRiskFactors lists one sentence per factor above its threshold, in
// slope, seismic, weather, vibration order. It returns nil when nothing
// stands out.
func ExplainRiskFactors(a RiskAssessment) []string {
	var out []string
	if a.Factors.SlopeMovement > SlopeExplainThreshold {
		out = append(out, "Significant slope movement detected through crack width analysis")
	}
	if a.Factors.SeismicEvent > SeismicExplainThreshold {
		out = append(out, "Elevated seismic activity may destabilize rock formations")
	}
	if a.Factors.WeatherImpact > WeatherExplainThreshold {
		out = append(out, "High moisture levels increase slope instability risk")
	}
	if a.Factors.VibrationLevel > VibrationExplainThreshold {
		out = append(out, "Excessive vibrations from equipment operation detected")
	}
	return out
}
