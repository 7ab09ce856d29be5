package domain

// Score builds the full scored record for a frame without validating it.
func Score(f *Frame, version uint16) *ScoredFrame {
	a := ComputeRisk(f.Reading, f.MotionScore)
	return &ScoredFrame{
		SourceID:     f.SourceID,
		Seq:          f.Seq,
		Timestamp:    f.Reading.Time(),
		Reading:      f.Reading,
		MotionScore:  f.MotionScore,
		Assessment:   a,
		Level:        Classify(a.TotalRisk),
		Explanations: ExplainRiskFactors(a),
		Emergency:    EmergencyProtocol(a.TotalRisk),
		MotionZone:   MotionZoneActive(f.MotionScore),
		HeatZone:     HeatZoneActive(a.TotalRisk),
		ScorerVer:    version,
	}
}
