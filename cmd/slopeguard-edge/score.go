package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ghalamif/SlopeGuard/pkg/slopeguard"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).Width(12)
	levelStyle = map[slopeguard.RiskLevel]lipgloss.Style{
		slopeguard.RiskLow:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#22C55E")),
		slopeguard.RiskMedium: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EAB308")),
		slopeguard.RiskHigh:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444")),
	}
	emergencyStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#B91C1C")).Padding(0, 1)
)

type scoreResult struct {
	Assessment   slopeguard.RiskAssessment `json:"assessment"`
	Level        slopeguard.RiskLevel      `json:"level"`
	Emergency    bool                      `json:"emergency"`
	Explanations []string                  `json:"explanations"`
}

func newScoreCmd() *cobra.Command {
	var (
		r        slopeguard.SensorReading
		motion   float64
		asJSON   bool
		validate bool
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute the risk of a single reading",
		Example: `  slopeguard-edge score --crack 4.5 --seismic 6 --moisture 65 --vibration 85 --motion 18
  slopeguard-edge score --crack 1 --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if validate {
				if err := slopeguard.ValidateReading(r, motion); err != nil {
					return err
				}
			}
			a := slopeguard.ComputeRisk(r, motion)
			res := scoreResult{
				Assessment:   a,
				Level:        slopeguard.Classify(a.TotalRisk),
				Emergency:    slopeguard.EmergencyProtocol(a.TotalRisk),
				Explanations: slopeguard.ExplainRiskFactors(a),
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			renderScore(cmd.OutOrStdout(), res)
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64Var(&r.CrackWidth, "crack", 0, "Crack width in mm")
	f.Float64Var(&r.SeismicActivity, "seismic", 0, "Seismic activity magnitude")
	f.Float64Var(&r.MoistureLevel, "moisture", 0, "Moisture level in percent")
	f.Float64Var(&r.VibrationLevel, "vibration", 0, "Vibration level")
	f.Float64Var(&r.Temperature, "temperature", 0, "Temperature in °C")
	f.Float64Var(&r.TiltAngle, "tilt", 0, "Tilt angle in degrees")
	f.Float64Var(&motion, "motion", 0, "Motion score")
	f.BoolVar(&asJSON, "json", false, "Print the result as JSON")
	f.BoolVar(&validate, "strict", false, "Reject negative or non-finite inputs instead of clamping")
	return cmd
}

func renderScore(w io.Writer, res scoreResult) {
	style, ok := levelStyle[res.Level]
	if !ok {
		style = titleStyle
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s  %s\n",
		titleStyle.Render("Total risk"),
		style.Render(fmt.Sprintf("%.1f%%", res.Assessment.TotalRisk)),
		style.Render(strings.ToUpper(string(res.Level))))

	fx := res.Assessment.Factors
	for _, row := range []struct {
		name  string
		value float64
	}{
		{"slope", fx.SlopeMovement},
		{"seismic", fx.SeismicEvent},
		{"weather", fx.WeatherImpact},
		{"vibration", fx.VibrationLevel},
	} {
		fmt.Fprintf(&b, "%s%6.1f%%\n", labelStyle.Render(row.name), row.value)
	}

	if res.Emergency {
		fmt.Fprintf(&b, "\n%s\n", emergencyStyle.Render("EMERGENCY PROTOCOL"))
	}
	for _, why := range res.Explanations {
		fmt.Fprintf(&b, " • %s\n", why)
	}
	fmt.Fprint(w, b.String())
}
