package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

func saturatedReading() SensorReading {
	return SensorReading{
		Timestamp:       0,
		Temperature:     25,
		VibrationLevel:  100,
		CrackWidth:      5,
		TiltAngle:       0.2,
		SeismicActivity: 10,
		MoistureLevel:   70,
	}
}

func TestComputeRiskConcreteScenario(t *testing.T) {
	got := ComputeRisk(saturatedReading(), 0)

	assert.InDelta(t, 100, got.Factors.SlopeMovement, eps)
	assert.InDelta(t, 100, got.Factors.SeismicEvent, eps)
	assert.InDelta(t, 84, got.Factors.WeatherImpact, eps)
	assert.InDelta(t, 80, got.Factors.VibrationLevel, eps)
	assert.InDelta(t, 83.8, got.TotalRisk, eps)
}

func TestComputeRiskAllZero(t *testing.T) {
	got := ComputeRisk(SensorReading{}, 0)

	assert.Equal(t, RiskAssessment{}, got)
}

func TestComputeRiskWeightSumIdentity(t *testing.T) {
	r := SensorReading{CrackWidth: 5, SeismicActivity: 10, MoistureLevel: 100, VibrationLevel: 125}

	got := ComputeRisk(r, 0)
	require.InDelta(t, 100, got.Factors.WeatherImpact, eps)
	require.InDelta(t, 100, got.Factors.VibrationLevel, eps)
	assert.InDelta(t, 90, got.TotalRisk, eps)

	got = ComputeRisk(r, 50)
	assert.InDelta(t, 100, got.TotalRisk, eps)
	assert.LessOrEqual(t, got.TotalRisk, 100.0)
}

func TestComputeRiskSaturation(t *testing.T) {
	for _, crack := range []float64{5, 5.1, 12, 1e6} {
		got := ComputeRisk(SensorReading{CrackWidth: crack}, 0)
		assert.Equal(t, 100.0, got.Factors.SlopeMovement, "crack=%v", crack)
	}
	for _, seismic := range []float64{10, 11, 1e9} {
		got := ComputeRisk(SensorReading{SeismicActivity: seismic}, 0)
		assert.Equal(t, 100.0, got.Factors.SeismicEvent, "seismic=%v", seismic)
	}
	for _, moisture := range []float64{100.0 / 1.2, 83.34, 95} {
		got := ComputeRisk(SensorReading{MoistureLevel: moisture}, 0)
		assert.InDelta(t, 100, got.Factors.WeatherImpact, eps, "moisture=%v", moisture)
	}
	got := ComputeRisk(SensorReading{}, 1e6)
	assert.Equal(t, 100.0, got.TotalRisk)
}

func TestComputeRiskStaysInRangeForDomainInputs(t *testing.T) {
	for crack := 0.1; crack < 5.1; crack += 0.7 {
		for seismic := 0.0; seismic < 10; seismic += 1.3 {
			for moisture := 30.0; moisture < 70; moisture += 9 {
				for vib := 0.0; vib < 100; vib += 17 {
					for motion := 0.0; motion <= 30; motion += 7.5 {
						r := SensorReading{CrackWidth: crack, SeismicActivity: seismic, MoistureLevel: moisture, VibrationLevel: vib}
						assertInRange(t, ComputeRisk(r, motion))
					}
				}
			}
		}
	}
}

func TestComputeRiskClampsOutOfDomainInputs(t *testing.T) {
	cases := []struct {
		name   string
		r      SensorReading
		motion float64
	}{
		{"negative", SensorReading{CrackWidth: -3, SeismicActivity: -1, MoistureLevel: -50, VibrationLevel: -10}, -20},
		{"nan", SensorReading{CrackWidth: math.NaN(), SeismicActivity: math.NaN(), MoistureLevel: math.NaN(), VibrationLevel: math.NaN()}, math.NaN()},
		{"pos inf", SensorReading{CrackWidth: math.Inf(1), SeismicActivity: math.Inf(1), MoistureLevel: math.Inf(1), VibrationLevel: math.Inf(1)}, math.Inf(1)},
		{"neg inf", SensorReading{CrackWidth: math.Inf(-1)}, math.Inf(-1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assertInRange(t, ComputeRisk(tc.r, tc.motion))
		})
	}

	got := ComputeRisk(SensorReading{CrackWidth: -3}, 0)
	assert.Equal(t, 0.0, got.Factors.SlopeMovement)
	assert.Equal(t, 0.0, got.TotalRisk)
}

func TestComputeRiskMonotonic(t *testing.T) {
	base := SensorReading{CrackWidth: 1, SeismicActivity: 2, MoistureLevel: 40, VibrationLevel: 30}

	type input struct {
		name   string
		apply  func(r *SensorReading, motion *float64, v float64)
		factor func(a RiskAssessment) float64
	}
	inputs := []input{
		{"crack", func(r *SensorReading, _ *float64, v float64) { r.CrackWidth = v }, func(a RiskAssessment) float64 { return a.Factors.SlopeMovement }},
		{"seismic", func(r *SensorReading, _ *float64, v float64) { r.SeismicActivity = v }, func(a RiskAssessment) float64 { return a.Factors.SeismicEvent }},
		{"moisture", func(r *SensorReading, _ *float64, v float64) { r.MoistureLevel = v }, func(a RiskAssessment) float64 { return a.Factors.WeatherImpact }},
		{"vibration", func(r *SensorReading, _ *float64, v float64) { r.VibrationLevel = v }, func(a RiskAssessment) float64 { return a.Factors.VibrationLevel }},
		{"motion", func(_ *SensorReading, m *float64, v float64) { *m = v }, func(a RiskAssessment) float64 { return a.TotalRisk }},
	}

	for _, p := range inputs {
		t.Run(p.name, func(t *testing.T) {
			prev := RiskAssessment{TotalRisk: -1, Factors: RiskFactors{SlopeMovement: -1, SeismicEvent: -1, WeatherImpact: -1, VibrationLevel: -1}}
			for v := 0.0; v <= 200; v += 0.5 {
				r, motion := base, 3.0
				p.apply(&r, &motion, v)
				got := ComputeRisk(r, motion)
				require.GreaterOrEqual(t, p.factor(got), p.factor(prev), "v=%v", v)
				require.GreaterOrEqual(t, got.TotalRisk, prev.TotalRisk, "v=%v", v)
				prev = got
			}
		})
	}
}

func TestComputeRiskDeterministic(t *testing.T) {
	r := SensorReading{Timestamp: 1700000000000, Temperature: 31.2, VibrationLevel: 47.3, CrackWidth: 2.71, TiltAngle: 0.11, SeismicActivity: 3.3, MoistureLevel: 55.5}

	first := ComputeRisk(r, 12.25)
	for i := 0; i < 100; i++ {
		got := ComputeRisk(r, 12.25)
		require.Equal(t, math.Float64bits(first.TotalRisk), math.Float64bits(got.TotalRisk))
		require.Equal(t, first, got)
	}
}

func TestComputeRiskIgnoresInformationalFields(t *testing.T) {
	r := saturatedReading()
	want := ComputeRisk(r, 4)

	r.Temperature = -40
	r.TiltAngle = 0.49
	r.Timestamp = 123
	assert.Equal(t, want, ComputeRisk(r, 4))
}

func TestAssessReadingRejectsInvalidInput(t *testing.T) {
	_, err := AssessReading(SensorReading{CrackWidth: -1}, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	var inputErr *InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, "crack_width", inputErr.Field)

	got, err := AssessReading(saturatedReading(), 0)
	require.NoError(t, err)
	assert.InDelta(t, 83.8, got.TotalRisk, eps)
}

func assertInRange(t *testing.T, a RiskAssessment) {
	t.Helper()
	for name, v := range map[string]float64{
		"total":     a.TotalRisk,
		"slope":     a.Factors.SlopeMovement,
		"seismic":   a.Factors.SeismicEvent,
		"weather":   a.Factors.WeatherImpact,
		"vibration": a.Factors.VibrationLevel,
	} {
		require.False(t, math.IsNaN(v), "%s is NaN", name)
		require.GreaterOrEqual(t, v, 0.0, name)
		require.LessOrEqual(t, v, 100.0, name)
	}
}
