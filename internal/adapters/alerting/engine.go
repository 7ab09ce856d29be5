package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ghalamif/SlopeGuard/internal/domain"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

type compiledRule struct {
	rule    Rule
	prg     cel.Program
	limiter *rate.Limiter
}

// recentFrames bounds the keys remembered to skip redelivered frames.
const recentFrames = 4096

// Engine evaluates alert rules against scored frames and keeps the newest
// alerts in a bounded list. Frames written twice, e.g. replayed from the WAL,
// are evaluated once.
type Engine struct {
	rules    []compiledRule
	capacity int
	obs      ports.Observability
	now      func() time.Time
	newID    func() string

	mu        sync.Mutex
	alerts    []domain.Alert
	listeners map[int]func(domain.Alert)
	nextSub   int

	seenMu sync.Mutex
	seen   *domain.RecentKeys
}

type Option func(*Engine)

// WithClock replaces time.Now, which drives cooldowns.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithObservability(obs ports.Observability) Option {
	return func(e *Engine) { e.obs = obs }
}

func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	cfg.ApplyDefaults()

	env, err := cel.NewEnv(
		cel.Variable("total_risk", cel.DoubleType),
		cel.Variable("slope_movement", cel.DoubleType),
		cel.Variable("seismic_event", cel.DoubleType),
		cel.Variable("weather_impact", cel.DoubleType),
		cel.Variable("vibration_level", cel.DoubleType),
		cel.Variable("motion_score", cel.DoubleType),
		cel.Variable("level", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("alerting: create CEL env: %w", err)
	}

	every := rate.Inf
	if cfg.Cooldown > 0 {
		every = rate.Every(cfg.Cooldown)
	}

	e := &Engine{
		capacity:  cfg.Capacity,
		now:       time.Now,
		newID:     uuid.NewString,
		listeners: make(map[int]func(domain.Alert)),
		seen:      domain.NewRecentKeys(recentFrames),
	}
	seen := make(map[string]struct{}, len(cfg.Rules))
	for _, r := range cfg.Rules {
		if _, dup := seen[r.Name]; dup {
			return nil, fmt.Errorf("alerting: duplicate rule %q", r.Name)
		}
		seen[r.Name] = struct{}{}

		ast, issues := env.Compile(r.Condition)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rule %s compilation error: %w", r.Name, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("rule %s: condition must be boolean, got %s", r.Name, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rule %s program creation error: %w", r.Name, err)
		}
		e.rules = append(e.rules, compiledRule{
			rule:    r,
			prg:     prg,
			limiter: rate.NewLimiter(every, 1),
		})
	}

	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Name() string { return "alerts" }

func (e *Engine) WriteBatch(_ context.Context, frames []*domain.ScoredFrame) error {
	for _, f := range frames {
		if f == nil || e.delivered(f) {
			continue
		}
		if _, err := e.Evaluate(f); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) delivered(f *domain.ScoredFrame) bool {
	e.seenMu.Lock()
	defer e.seenMu.Unlock()
	return e.seen.Seen(f.Key())
}

// Evaluate runs every rule against s in declaration order and returns the
// alerts raised. A matching rule still inside its cooldown raises nothing.
func (e *Engine) Evaluate(s *domain.ScoredFrame) ([]domain.Alert, error) {
	vars := map[string]any{
		"total_risk":      s.Assessment.TotalRisk,
		"slope_movement":  s.Assessment.Factors.SlopeMovement,
		"seismic_event":   s.Assessment.Factors.SeismicEvent,
		"weather_impact":  s.Assessment.Factors.WeatherImpact,
		"vibration_level": s.Assessment.Factors.VibrationLevel,
		"motion_score":    s.MotionScore,
		"level":           string(s.Level),
	}

	now := e.now()
	var raised []domain.Alert
	for _, cr := range e.rules {
		out, _, err := cr.prg.Eval(vars)
		if err != nil {
			return raised, fmt.Errorf("rule %s evaluation: %w", cr.rule.Name, err)
		}
		if match, ok := out.Value().(bool); !ok || !match {
			continue
		}
		if !cr.limiter.AllowN(now, 1) {
			continue
		}
		raised = append(raised, domain.Alert{
			ID:          e.newID(),
			Rule:        cr.rule.Name,
			Severity:    cr.rule.Severity,
			Title:       cr.rule.Title,
			Description: cr.rule.Description,
			SourceID:    s.SourceID,
			Seq:         s.Seq,
			TotalRisk:   s.Assessment.TotalRisk,
			Level:       s.Level,
			RaisedAt:    now,
		})
	}

	for i := range raised {
		e.publish(raised[i])
	}
	return raised, nil
}

func (e *Engine) publish(a domain.Alert) {
	e.mu.Lock()
	e.alerts = append([]domain.Alert{a}, e.alerts...)
	if len(e.alerts) > e.capacity {
		e.alerts = e.alerts[:e.capacity]
	}
	listeners := make([]func(domain.Alert), 0, len(e.listeners))
	for _, fn := range e.listeners {
		listeners = append(listeners, fn)
	}
	e.mu.Unlock()

	if e.obs != nil {
		e.obs.RecordAlert(&a)
	}
	for _, fn := range listeners {
		fn(a)
	}
}

// Alerts returns the retained alerts, newest first.
func (e *Engine) Alerts() []domain.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Alert(nil), e.alerts...)
}

// Subscribe registers fn for every alert raised from now on. The returned
// function removes it.
func (e *Engine) Subscribe(fn func(domain.Alert)) func() {
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.listeners[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

var _ ports.Sink = (*Engine)(nil)
