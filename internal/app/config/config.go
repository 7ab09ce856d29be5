package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/ghalamif/SlopeGuard/internal/adapters/alerting"
	"github.com/ghalamif/SlopeGuard/internal/adapters/history"
	"github.com/ghalamif/SlopeGuard/internal/adapters/opcua"
	"github.com/ghalamif/SlopeGuard/internal/adapters/poller"
	"github.com/ghalamif/SlopeGuard/internal/adapters/sink"
	"github.com/ghalamif/SlopeGuard/internal/app/scoring"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

// EnvPrefix namespaces environment overrides, e.g. SLOPEGUARD_HTTP_ADDR.
const EnvPrefix = "SLOPEGUARD"

// Source kinds.
const (
	SourceSimulated = "simulated"
	SourceFixture   = "fixture"
	SourceOPCUA     = "opcua"
)

type Config struct {
	Site      SiteConfig         `yaml:"site"`
	Source    SourceConfig       `yaml:"source"`
	Policy    ports.Policy       `yaml:"policy"`
	OPCUA     opcua.Config       `yaml:"opcua"`
	Scoring   scoring.Config     `yaml:"scoring"`
	History   HistoryConfig      `yaml:"history"`
	Alerts    alerting.Config    `yaml:"alerts"`
	Timescale TimescaleConfig    `yaml:"timescale"`
	Influx    InfluxConfig       `yaml:"influx"`
	Breaker   sink.BreakerConfig `yaml:"breaker"`
	HTTP      HTTPConfig         `yaml:"http"`
	WAL       WALConfig          `yaml:"wal"`
	Log       LogConfig          `yaml:"log"`
}

type SiteConfig struct {
	Name string `yaml:"name"`
}

type SourceConfig struct {
	Kind        string        `yaml:"kind" validate:"oneof=simulated fixture opcua"`
	ID          string        `yaml:"id"`
	Interval    time.Duration `yaml:"interval" validate:"gt=0"`
	Seed        uint64        `yaml:"seed"`
	Smoothing   float64       `yaml:"smoothing" validate:"gte=0,lt=1"`
	FixturePath string        `yaml:"fixture_path" validate:"required_if=Kind fixture"`
}

type HistoryConfig struct {
	Capacity int `yaml:"capacity" validate:"gt=0"`
}

// TimescaleConfig enables the Timescale sink when ConnString is set.
type TimescaleConfig struct {
	ConnString   string `yaml:"conn_string"`
	Table        string `yaml:"table" validate:"required"`
	EnsureSchema bool   `yaml:"ensure_schema"`
}

func (t TimescaleConfig) Enabled() bool { return t.ConnString != "" }

// InfluxConfig enables the InfluxDB sink when URL is set.
type InfluxConfig struct {
	URL    string `yaml:"url" validate:"omitempty,url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org" validate:"required_with=URL"`
	Bucket string `yaml:"bucket" validate:"required_with=URL"`
}

func (i InfluxConfig) Enabled() bool { return i.URL != "" }

type HTTPConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

type WALConfig struct {
	Dir string `yaml:"dir" validate:"required"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// envOverrides are read from SLOPEGUARD_* variables after the file is parsed.
// Empty values leave the file value untouched.
type envOverrides struct {
	SiteName      string        `envconfig:"SITE_NAME"`
	SourceKind    string        `envconfig:"SOURCE_KIND"`
	FixturePath   string        `envconfig:"FIXTURE_PATH"`
	OPCUAEndpoint string        `envconfig:"OPCUA_ENDPOINT"`
	OPCUAUsername string        `envconfig:"OPCUA_USERNAME"`
	OPCUAPassword string        `envconfig:"OPCUA_PASSWORD"`
	TimescaleConn string        `envconfig:"TIMESCALE_CONN_STRING"`
	InfluxURL     string        `envconfig:"INFLUX_URL"`
	InfluxToken   string        `envconfig:"INFLUX_TOKEN"`
	HTTPAddr      string        `envconfig:"HTTP_ADDR"`
	WALDir        string        `envconfig:"WAL_DIR"`
	LogLevel      string        `envconfig:"LOG_LEVEL"`
	LogFormat     string        `envconfig:"LOG_FORMAT"`
	AlertCooldown time.Duration `envconfig:"ALERT_COOLDOWN"`
}

// Load reads path (optional), a sibling .env file and SLOPEGUARD_*
// environment overrides, then applies defaults and validates.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
		loadDotEnv(filepath.Join(filepath.Dir(path), ".env"))
	}
	loadDotEnv(".env")

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// loadDotEnv never overrides variables already present in the environment.
func loadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Site.Name, env.SiteName)
	set(&c.Source.Kind, env.SourceKind)
	set(&c.Source.FixturePath, env.FixturePath)
	set(&c.OPCUA.Endpoint, env.OPCUAEndpoint)
	set(&c.OPCUA.Username, env.OPCUAUsername)
	set(&c.OPCUA.Password, env.OPCUAPassword)
	set(&c.Timescale.ConnString, env.TimescaleConn)
	set(&c.Influx.URL, env.InfluxURL)
	set(&c.Influx.Token, env.InfluxToken)
	set(&c.HTTP.Addr, env.HTTPAddr)
	set(&c.WAL.Dir, env.WALDir)
	set(&c.Log.Level, env.LogLevel)
	set(&c.Log.Format, env.LogFormat)
	if env.AlertCooldown > 0 {
		c.Alerts.Cooldown = env.AlertCooldown
	}
	return nil
}

// ApplyDefaults fills every unset field. It is idempotent.
func (c *Config) ApplyDefaults() {
	if c.Site.Name == "" {
		c.Site.Name = "default"
	}
	if c.Source.Kind == "" {
		c.Source.Kind = SourceSimulated
	}
	if c.Source.ID == "" {
		c.Source.ID = c.Source.Kind
	}
	if c.Source.Interval == 0 {
		c.Source.Interval = poller.DefaultInterval
	}

	if c.Policy.MaxWALSizeBytes == 0 {
		c.Policy.MaxWALSizeBytes = 1 << 30
	}
	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 10_000
	}
	if c.Policy.MaxBatchSize == 0 {
		c.Policy.MaxBatchSize = 500
	}
	if c.Policy.IdleSleep == 0 {
		c.Policy.IdleSleep = 5 * time.Millisecond
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "block"
	}
	if c.Policy.OnWALFull == "" {
		c.Policy.OnWALFull = "block"
	}

	if c.Scoring.OnInvalid == "" {
		c.Scoring.OnInvalid = scoring.OnInvalidReject
	}
	if c.History.Capacity == 0 {
		c.History.Capacity = history.DefaultCapacity
	}
	c.Alerts.ApplyDefaults()

	if c.Timescale.Table == "" {
		c.Timescale.Table = "risk_assessments"
	}
	c.Breaker.ApplyDefaults()
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":9100"
	}
	if c.WAL.Dir == "" {
		c.WAL.Dir = "./data/wal"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.Source.Kind == SourceOPCUA {
		c.OPCUA.ApplyDefaults()
	}
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return err
	}
	if c.Source.Kind == SourceOPCUA {
		if err := c.OPCUA.Validate(); err != nil {
			return fmt.Errorf("opcua config: %w", err)
		}
	}
	return nil
}
