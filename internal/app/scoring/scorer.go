package scoring

import (
	"fmt"
	"time"

	"github.com/ghalamif/SlopeGuard/internal/domain"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

// Invalid-input policies.
const (
	OnInvalidReject = "reject"
	OnInvalidClamp  = "clamp"
)

// Version of the risk model. Bumped whenever weights or normalisation change.
const Version uint16 = 1

type Config struct {
	OnInvalid string `yaml:"on_invalid" validate:"omitempty,oneof=reject clamp"`
}

// Scorer turns frames into scored frames. With the reject policy, invalid
// readings are returned as errors and end up in the dead-letter counter;
// with clamp they are scored with out-of-domain values saturated.
type Scorer struct {
	onInvalid string
	obs       ports.Observability
	now       func() time.Time
}

func New(cfg Config, obs ports.Observability) (*Scorer, error) {
	switch cfg.OnInvalid {
	case "":
		cfg.OnInvalid = OnInvalidReject
	case OnInvalidReject, OnInvalidClamp:
	default:
		return nil, fmt.Errorf("scoring: unknown on_invalid policy %q", cfg.OnInvalid)
	}
	return &Scorer{onInvalid: cfg.OnInvalid, obs: obs, now: time.Now}, nil
}

func (s *Scorer) Score(f *domain.Frame) (*domain.ScoredFrame, error) {
	if f == nil {
		return nil, fmt.Errorf("scoring: nil frame")
	}
	start := s.now()
	if s.onInvalid == OnInvalidReject {
		if err := domain.ValidateReading(f.Reading, f.MotionScore); err != nil {
			return nil, fmt.Errorf("source %s seq %d: %w", f.SourceID, f.Seq, err)
		}
	}
	scored := domain.Score(f, Version)
	if s.obs != nil {
		s.obs.ObserveLatency("slopeguard_scoring_latency_seconds", s.now().Sub(start).Seconds())
	}
	return scored, nil
}

func (s *Scorer) Version() uint16 { return Version }

var _ ports.Scorer = (*Scorer)(nil)
