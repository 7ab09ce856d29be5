package slopeguard

import (
	"context"
	"fmt"
)

// Flow assembles a slope monitoring runtime in three steps: load the site
// configuration (Conf), choose where readings come from (StreamIN), then
// choose how they are scored and where the scored frames go (StreamOUT).
type Flow struct {
	cfg  *Config
	opts []EdgeRuntimeOption
}

// FlowOption adjusts a Flow right after its configuration is loaded.
type FlowOption func(*Flow)

// StreamInOption picks the reading source or the buffering in front of the scorer.
type StreamInOption func(*Flow)

// StreamOutOption picks the scorer or adds destinations for scored frames.
type StreamOutOption func(*Flow)

// Conf reads the site configuration at path. An empty path uses the
// built-in defaults and environment overrides.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig starts a Flow from a Config built in code.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// Config exposes the site configuration; edits apply to the runtime built by StreamOUT.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options passes EdgeRuntimeOption values straight to the runtime.
func (f *Flow) Options(opts ...EdgeRuntimeOption) *Flow {
	if f == nil {
		return nil
	}
	f.appendOptions(opts...)
	return f
}

// StreamIN applies reading-source options.
func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f == nil {
		return nil
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// StreamOUT applies scoring and delivery options and builds the runtime.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*EdgeRuntime, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return NewEdgeRuntime(f.cfg, f.opts...)
}

// Run builds the runtime and monitors the site until ctx is cancelled.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	rt, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// WithFlowOptions passes runtime options through Conf.
func WithFlowOptions(opts ...EdgeRuntimeOption) FlowOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(opts...)
		}
	}
}

// StreamInCollector reads frames from col instead of the configured source.
func StreamInCollector(col Collector) StreamInOption {
	return func(f *Flow) {
		if f != nil && col != nil {
			f.appendOptions(WithCollector(col))
		}
	}
}

// StreamInSource polls src and motion at the configured source interval.
func StreamInSource(src SensorSource, motion MotionDetector) StreamInOption {
	return func(f *Flow) {
		if f != nil && src != nil && motion != nil {
			f.appendOptions(WithSource(src, motion))
		}
	}
}

// StreamInQueue buffers frames between the WAL and the scorer in q.
func StreamInQueue(q FrameQueue) StreamInOption {
	return func(f *Flow) {
		if f != nil && q != nil {
			f.appendOptions(WithFrameQueue(q))
		}
	}
}

// StreamInWAL persists readings in w before they are scored.
func StreamInWAL(w WAL) StreamInOption {
	return func(f *Flow) {
		if f != nil && w != nil {
			f.appendOptions(WithWAL(w))
		}
	}
}

// StreamInObservability reports ingest metrics to obs.
func StreamInObservability(obs Observability) StreamInOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// StreamOutSink also delivers scored frames to s, through its own retry buffer.
func StreamOutSink(s Sink) StreamOutOption {
	return func(f *Flow) {
		if f != nil && s != nil {
			f.appendOptions(WithSink(s))
		}
	}
}

// StreamOutScorer replaces the weighted risk model.
func StreamOutScorer(sc Scorer) StreamOutOption {
	return func(f *Flow) {
		if f != nil && sc != nil {
			f.appendOptions(WithScorer(sc))
		}
	}
}

// StreamOutObservability reports scoring and alert metrics to obs.
func StreamOutObservability(obs Observability) StreamOutOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// StreamOutCallback hands every scored batch to fn.
func StreamOutCallback(name string, fn ScoredBatchHandler) StreamOutOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(WithSink(NewCallbackSink(name, fn)))
		}
	}
}

func (f *Flow) appendOptions(opts ...EdgeRuntimeOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
