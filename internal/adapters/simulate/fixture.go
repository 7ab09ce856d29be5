package simulate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ghalamif/SlopeGuard/internal/domain"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

// ErrExhausted is returned by non-looping fixtures after the last entry.
var ErrExhausted = errors.New("simulate: fixture exhausted")

// Fixture is one scripted tick.
type Fixture struct {
	Reading     domain.SensorReading `yaml:"reading"`
	MotionScore float64              `yaml:"motion_score"`
}

type fixtureFile struct {
	Loop   bool      `yaml:"loop"`
	Frames []Fixture `yaml:"frames"`
}

// FixtureSource replays a fixed reading sequence.
type FixtureSource struct {
	mu       sync.Mutex
	readings []domain.SensorReading
	loop     bool
	pos      int
}

func NewFixtureSource(loop bool, readings ...domain.SensorReading) *FixtureSource {
	return &FixtureSource{readings: readings, loop: loop}
}

func (f *FixtureSource) Next(ctx context.Context) (domain.SensorReading, error) {
	if err := ctx.Err(); err != nil {
		return domain.SensorReading{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	idx, err := advance(&f.pos, len(f.readings), f.loop)
	if err != nil {
		return domain.SensorReading{}, err
	}
	return f.readings[idx], nil
}

// FixtureMotion replays a fixed motion score sequence.
type FixtureMotion struct {
	mu     sync.Mutex
	scores []float64
	loop   bool
	pos    int
}

func NewFixtureMotion(loop bool, scores ...float64) *FixtureMotion {
	return &FixtureMotion{scores: scores, loop: loop}
}

func (f *FixtureMotion) Detect(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	idx, err := advance(&f.pos, len(f.scores), f.loop)
	if err != nil {
		return 0, err
	}
	return f.scores[idx], nil
}

func advance(pos *int, n int, loop bool) (int, error) {
	if n == 0 {
		return 0, ErrExhausted
	}
	if *pos >= n {
		if !loop {
			return 0, ErrExhausted
		}
		*pos = 0
	}
	idx := *pos
	*pos++
	return idx, nil
}

// LoadFixtures reads a YAML fixture file:
//
//	loop: true
//	frames:
//	  - reading: {crack_width: 4.2, seismic_activity: 6, moisture_level: 55, vibration_level: 40}
//	    motion_score: 12
func LoadFixtures(path string) (*FixtureSource, *FixtureMotion, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var ff fixtureFile
	if err := yaml.Unmarshal(raw, &ff); err != nil {
		return nil, nil, fmt.Errorf("parse fixtures %s: %w", path, err)
	}
	if len(ff.Frames) == 0 {
		return nil, nil, fmt.Errorf("fixtures %s: no frames", path)
	}

	readings := make([]domain.SensorReading, len(ff.Frames))
	scores := make([]float64, len(ff.Frames))
	for i, fx := range ff.Frames {
		readings[i] = fx.Reading
		scores[i] = fx.MotionScore
	}
	return NewFixtureSource(ff.Loop, readings...), NewFixtureMotion(ff.Loop, scores...), nil
}

var (
	_ ports.SensorSource   = (*FixtureSource)(nil)
	_ ports.MotionDetector = (*FixtureMotion)(nil)
)
