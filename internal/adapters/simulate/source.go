// Package simulate provides sensor sources for running SlopeGuard without
// field hardware: a seeded random generator and fixed fixture sequences.
package simulate

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ghalamif/SlopeGuard/internal/domain"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

// Nominal ranges of the simulated instruments, [min, max).
var (
	temperatureRange = [2]float64{20, 35}
	vibrationRange   = [2]float64{0, 100}
	crackRange       = [2]float64{0.1, 5.1}
	tiltRange        = [2]float64{0, 0.5}
	seismicRange     = [2]float64{0, 10}
	moistureRange    = [2]float64{30, 70}
)

// Options tune the random generators.
type Options struct {
	Seed uint64
	// Smoothing in [0,1) blends each draw with the previous value:
	// next = prev*Smoothing + draw*(1-Smoothing). Zero disables it.
	Smoothing float64
	Now       func() time.Time
}

func (o Options) normalized() Options {
	if o.Smoothing < 0 || o.Smoothing >= 1 || math.IsNaN(o.Smoothing) {
		o.Smoothing = 0
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Source draws readings uniformly from the nominal instrument ranges.
type Source struct {
	mu   sync.Mutex
	opts Options
	rng  *rand.Rand
	prev *domain.SensorReading
}

func NewSource(opts Options) *Source {
	opts = opts.normalized()
	return &Source{
		opts: opts,
		rng:  rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x5bd1e995)),
	}
}

func (s *Source) Next(ctx context.Context) (domain.SensorReading, error) {
	if err := ctx.Err(); err != nil {
		return domain.SensorReading{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r := domain.SensorReading{
		Timestamp:       s.opts.Now().UnixMilli(),
		Temperature:     s.uniform(temperatureRange),
		VibrationLevel:  s.uniform(vibrationRange),
		CrackWidth:      s.uniform(crackRange),
		TiltAngle:       s.uniform(tiltRange),
		SeismicActivity: s.uniform(seismicRange),
		MoistureLevel:   s.uniform(moistureRange),
	}
	if s.prev != nil && s.opts.Smoothing > 0 {
		a := s.opts.Smoothing
		r.Temperature = blend(s.prev.Temperature, r.Temperature, a)
		r.VibrationLevel = blend(s.prev.VibrationLevel, r.VibrationLevel, a)
		r.CrackWidth = blend(s.prev.CrackWidth, r.CrackWidth, a)
		r.TiltAngle = blend(s.prev.TiltAngle, r.TiltAngle, a)
		r.SeismicActivity = blend(s.prev.SeismicActivity, r.SeismicActivity, a)
		r.MoistureLevel = blend(s.prev.MoistureLevel, r.MoistureLevel, a)
	}
	prev := r
	s.prev = &prev
	return r, nil
}

func (s *Source) uniform(bounds [2]float64) float64 {
	return bounds[0] + s.rng.Float64()*(bounds[1]-bounds[0])
}

func blend(prev, next, a float64) float64 {
	return prev*a + next*(1-a)
}

const (
	maxMotionScore  = 30.0
	motionBaseRange = 8.0
	motionSpikeProb = 0.15
	motionSpikeMax  = 25.0
	motionSwing     = 5.0
	motionPeriod    = 10 * time.Second
)

// Motion stands in for a camera-based motion detector: a noisy baseline,
// occasional spikes and a slow sinusoidal swing, clamped to [0,30].
type Motion struct {
	mu   sync.Mutex
	opts Options
	rng  *rand.Rand
	prev float64
	seen bool
}

func NewMotion(opts Options) *Motion {
	opts = opts.normalized()
	return &Motion{
		opts: opts,
		rng:  rand.New(rand.NewPCG(opts.Seed^0x27d4eb2f, opts.Seed)),
	}
}

func (m *Motion) Detect(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	base := m.rng.Float64() * motionBaseRange
	var spike float64
	if m.rng.Float64() < motionSpikeProb {
		spike = m.rng.Float64() * motionSpikeMax
	}
	phase := float64(m.opts.Now().UnixMilli()) / float64(motionPeriod/time.Millisecond)
	score := clampMotion(base + spike + math.Sin(phase)*motionSwing)

	if m.seen && m.opts.Smoothing > 0 {
		score = blend(m.prev, score, m.opts.Smoothing)
	}
	m.prev, m.seen = score, true
	return score, nil
}

func clampMotion(v float64) float64 {
	return math.Min(math.Max(v, 0), maxMotionScore)
}

var (
	_ ports.SensorSource   = (*Source)(nil)
	_ ports.MotionDetector = (*Motion)(nil)
)
