package alerting

import (
	"time"

	"github.com/ghalamif/SlopeGuard/internal/domain"
)

const (
	DefaultCapacity = 5
	DefaultCooldown = 8 * time.Second
)

// Rule raises an alert whenever Condition evaluates to true for a scored
// frame. Condition is a CEL expression over total_risk, slope_movement,
// seismic_event, weather_impact, vibration_level, motion_score and level.
type Rule struct {
	Name        string          `yaml:"name" validate:"required"`
	Severity    domain.Severity `yaml:"severity" validate:"oneof=critical high medium low"`
	Condition   string          `yaml:"condition" validate:"required"`
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
}

type Config struct {
	Capacity int           `yaml:"capacity" validate:"gte=0"`
	Cooldown time.Duration `yaml:"cooldown" validate:"gte=0"`
	Rules    []Rule        `yaml:"rules" validate:"dive"`
}

func (c *Config) ApplyDefaults() {
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultCooldown
	}
	if len(c.Rules) == 0 {
		c.Rules = DefaultRules()
	}
	for i := range c.Rules {
		if c.Rules[i].Title == "" {
			c.Rules[i].Title = c.Rules[i].Name
		}
	}
}

// DefaultRules mirror the dashboard thresholds.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:        "emergency-protocol",
			Severity:    domain.SeverityCritical,
			Condition:   "total_risk > 70.0",
			Title:       "Emergency protocol activated",
			Description: "Composite risk above 70%. Evacuate personnel from the affected benches.",
		},
		{
			Name:        "elevated-risk",
			Severity:    domain.SeverityHigh,
			Condition:   "total_risk > 60.0",
			Title:       "Elevated slope failure risk",
			Description: "Composite risk above 60%. Increase monitoring frequency.",
		},
		{
			Name:        "motion-detected",
			Severity:    domain.SeverityMedium,
			Condition:   "motion_score > 15.0",
			Title:       "Movement detected in monitored zone",
			Description: "Camera motion score above 15.",
		},
	}
}
