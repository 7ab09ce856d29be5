package domain

import "time"

// Severity of a raised alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Alert is raised when an alert rule matches a scored frame.
type Alert struct {
	ID          string    `json:"id"`
	Rule        string    `json:"rule"`
	Severity    Severity  `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	SourceID    string    `json:"source_id"`
	Seq         uint64    `json:"seq"`
	TotalRisk   float64   `json:"total_risk"`
	Level       RiskLevel `json:"level"`
	RaisedAt    time.Time `json:"raised_at"`
}
