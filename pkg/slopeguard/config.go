package slopeguard

import (
	"github.com/ghalamif/SlopeGuard/internal/adapters/alerting"
	"github.com/ghalamif/SlopeGuard/internal/adapters/opcua"
	"github.com/ghalamif/SlopeGuard/internal/adapters/sink"
	"github.com/ghalamif/SlopeGuard/internal/app/config"
	"github.com/ghalamif/SlopeGuard/internal/app/scoring"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// Policy controls WAL/queue thresholds.
	Policy = ports.Policy
	// SiteConfig names the monitored site.
	SiteConfig = config.SiteConfig
	// SourceConfig selects the reading source.
	SourceConfig = config.SourceConfig
	// OPCUAConfig holds connection + node details.
	OPCUAConfig = opcua.Config
	// OPCUANodeConfig maps a monitored tag onto a reading field.
	OPCUANodeConfig = opcua.NodeConfig
	// ScoringConfig selects the invalid-input policy.
	ScoringConfig = scoring.Config
	// HistoryConfig sizes the recent-assessment window.
	HistoryConfig = config.HistoryConfig
	// AlertsConfig holds alert rules and cooldown.
	AlertsConfig = alerting.Config
	// AlertRule is one CEL alert condition.
	AlertRule = alerting.Rule
	// TimescaleConfig configures the Timescale sink.
	TimescaleConfig = config.TimescaleConfig
	// InfluxConfig configures the InfluxDB sink.
	InfluxConfig = config.InfluxConfig
	// BreakerConfig guards external sinks.
	BreakerConfig = sink.BreakerConfig
	// HTTPConfig configures the dashboard API server.
	HTTPConfig = config.HTTPConfig
	// WALConfig configures on-disk durability.
	WALConfig = config.WALConfig
	// LogConfig configures the process logger.
	LogConfig = config.LogConfig
)

// Source kinds.
const (
	SourceSimulated = config.SourceSimulated
	SourceFixture   = config.SourceFixture
	SourceOPCUA     = config.SourceOPCUA
)

// LoadConfig loads YAML from disk using the internal config reader. An empty
// path yields defaults plus environment overrides.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return config.Default()
}

// DefaultAlertRules returns the built-in alert rules.
func DefaultAlertRules() []AlertRule {
	return alerting.DefaultRules()
}
