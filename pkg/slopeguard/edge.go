package slopeguard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/ghalamif/SlopeGuard/internal/adapters/alerting"
	"github.com/ghalamif/SlopeGuard/internal/adapters/history"
	"github.com/ghalamif/SlopeGuard/internal/adapters/httpapi"
	"github.com/ghalamif/SlopeGuard/internal/adapters/observability"
	"github.com/ghalamif/SlopeGuard/internal/adapters/opcua"
	"github.com/ghalamif/SlopeGuard/internal/adapters/poller"
	"github.com/ghalamif/SlopeGuard/internal/adapters/queue"
	"github.com/ghalamif/SlopeGuard/internal/adapters/simulate"
	"github.com/ghalamif/SlopeGuard/internal/adapters/sink"
	"github.com/ghalamif/SlopeGuard/internal/adapters/wal"
	"github.com/ghalamif/SlopeGuard/internal/app/config"
	"github.com/ghalamif/SlopeGuard/internal/app/pipeline"
	"github.com/ghalamif/SlopeGuard/internal/app/scoring"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

// EdgeRuntimeOption customizes the dependencies used by EdgeRuntime.
type EdgeRuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	collector     Collector
	source        SensorSource
	motion        MotionDetector
	sinks         []Sink
	scorer        Scorer
	wal           WAL
	queue         FrameQueue
	observability Observability
	logger        *slog.Logger
	registry      *prometheus.Registry
}

// WithCollector injects a custom collector implementation.
func WithCollector(col Collector) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.collector = col
	}
}

// WithSource polls a custom reading source and motion detector at the
// configured interval. A custom collector takes precedence.
func WithSource(src SensorSource, motion MotionDetector) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.source = src
		o.motion = motion
	}
}

// WithSink adds a sink next to the built-in history, alert and stream sinks.
// It is fed from its own retry buffer, so a failing sink never stalls the
// pipeline. It may be given several times.
func WithSink(s Sink) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		if s != nil {
			o.sinks = append(o.sinks, s)
		}
	}
}

// WithScorer overrides the default risk scorer.
func WithScorer(s Scorer) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.scorer = s
	}
}

// WithWAL lets callers bring their own WAL implementation or reuse an existing instance.
func WithWAL(w WAL) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.wal = w
	}
}

// WithFrameQueue injects a custom queue implementation.
func WithFrameQueue(q FrameQueue) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.queue = q
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithLogger replaces the logger built from Config.Log.
func WithLogger(l *slog.Logger) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.logger = l
	}
}

// WithRegistry registers metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.registry = reg
	}
}

// EdgeRuntime wires up the collector → WAL → queue → scorer → sinks pipeline
// and the dashboard API.
type EdgeRuntime struct {
	cfg       *Config
	policy    ports.Policy
	logger    *slog.Logger
	registry  *prometheus.Registry
	obs       ports.Observability
	wal       ports.WAL
	queue     ports.FrameQueue
	collector ports.Collector
	scorer    ports.Scorer
	sink      *sink.FanoutSink
	external  []*sink.BackgroundSink
	history   *history.Window
	alerts    *alerting.Engine
	hub       *httpapi.Hub
	api       *httpapi.Server
	db        *sql.DB
	timescale *sink.TimescaleSink
	closers   []func() error
}

// NewEdgeRuntime bootstraps the default adapters: the collector selected by
// Config.Source, the file WAL, the in-memory queue, the risk scorer, the
// history window, the alert engine, the stream hub and, when configured, the
// Timescale and InfluxDB sinks behind circuit breakers.
func NewEdgeRuntime(cfg *Config, opts ...EdgeRuntimeOption) (*EdgeRuntime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	e := &EdgeRuntime{cfg: cfg, policy: cfg.Policy}
	if err := e.build(&overrides); err != nil {
		_ = e.close()
		return nil, err
	}
	return e, nil
}

func (e *EdgeRuntime) build(o *runtimeOverrides) error {
	cfg := e.cfg

	e.logger = o.logger
	if e.logger == nil {
		l, err := observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		e.logger = l
	}

	e.registry = o.registry
	if e.registry == nil {
		e.registry = prometheus.NewRegistry()
		e.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	e.obs = o.observability
	if e.obs == nil {
		e.obs = observability.NewPromObs(e.registry, e.logger)
	}

	e.wal = o.wal
	if e.wal == nil {
		w, err := wal.NewFileWAL(cfg.WAL.Dir)
		if err != nil {
			return err
		}
		e.wal = w
		e.closers = append(e.closers, w.Close)
	}

	e.queue = o.queue
	if e.queue == nil {
		e.queue = queue.NewMemQueue(cfg.Policy.MaxQueueLen)
	}

	col, err := e.buildCollector(o)
	if err != nil {
		return err
	}
	e.collector = col

	e.scorer = o.scorer
	if e.scorer == nil {
		sc, err := scoring.New(cfg.Scoring, e.obs)
		if err != nil {
			return err
		}
		e.scorer = sc
	}

	e.history = history.NewWindow(cfg.History.Capacity)
	e.alerts, err = alerting.NewEngine(cfg.Alerts, alerting.WithObservability(e.obs))
	if err != nil {
		return err
	}
	e.hub = httpapi.NewHub(e.logger)
	e.alerts.Subscribe(e.hub.PublishAlert)

	e.sink = sink.NewFanoutSink(e.history, e.alerts, e.hub)
	if err := e.buildExternalSinks(); err != nil {
		return err
	}
	for _, s := range o.sinks {
		e.addExternal(s)
	}

	e.api = httpapi.NewServer(e.history, e.alerts, e.hub,
		httpapi.WithGatherer(e.registry),
		httpapi.WithLogger(e.logger))
	return nil
}

func (e *EdgeRuntime) buildCollector(o *runtimeOverrides) (ports.Collector, error) {
	if o.collector != nil {
		return o.collector, nil
	}

	cfg := e.cfg
	// sequence numbers continue past everything already in the WAL
	startSeq := uint64(e.wal.Stats().LatestAppended)
	pollCfg := poller.Config{SourceID: cfg.Source.ID, Interval: cfg.Source.Interval, StartSeq: startSeq}
	if o.source != nil || o.motion != nil {
		return poller.NewCollector(pollCfg, o.source, o.motion, e.logger)
	}

	switch cfg.Source.Kind {
	case config.SourceOPCUA:
		uaCfg := cfg.OPCUA
		uaCfg.StartSeq = startSeq
		return opcua.NewCollector(uaCfg, e.logger)
	case config.SourceFixture:
		src, motion, err := simulate.LoadFixtures(cfg.Source.FixturePath)
		if err != nil {
			return nil, err
		}
		pollCfg.StopOn = simulate.ErrExhausted
		return poller.NewCollector(pollCfg, src, motion, e.logger)
	default:
		simOpts := simulate.Options{Seed: cfg.Source.Seed, Smoothing: cfg.Source.Smoothing}
		return poller.NewCollector(pollCfg, simulate.NewSource(simOpts), simulate.NewMotion(simOpts), e.logger)
	}
}

func (e *EdgeRuntime) buildExternalSinks() error {
	cfg := e.cfg
	if cfg.Timescale.Enabled() {
		db, err := sql.Open("postgres", cfg.Timescale.ConnString)
		if err != nil {
			return err
		}
		e.db = db
		e.closers = append(e.closers, db.Close)
		e.timescale = sink.NewTimescaleSink(db, cfg.Timescale.Table)
		e.addExternal(sink.NewBreakerSink(e.timescale, cfg.Breaker))
	}
	if cfg.Influx.Enabled() {
		client := influxdb2.NewClient(cfg.Influx.URL, cfg.Influx.Token)
		e.closers = append(e.closers, func() error {
			client.Close()
			return nil
		})
		influx := sink.NewInfluxSink(client.WriteAPIBlocking(cfg.Influx.Org, cfg.Influx.Bucket), cfg.Site.Name)
		e.addExternal(sink.NewBreakerSink(influx, cfg.Breaker))
	}
	return nil
}

// addExternal puts s behind a retry buffer drained by Run. The in-memory
// sinks alone decide when a batch is committed.
func (e *EdgeRuntime) addExternal(s ports.Sink) {
	bg := sink.NewBackgroundSink(s, sink.WithSinkObservability(e.obs))
	e.external = append(e.external, bg)
	e.sink.Add(bg)
}

// Run replays uncommitted WAL entries, starts every pipeline and the
// dashboard API, and blocks until ctx is cancelled or one of them fails. It
// then stops the collector, shuts the API down and releases the WAL and
// database handles.
func (e *EdgeRuntime) Run(ctx context.Context) error {
	if e == nil {
		return fmt.Errorf("edge runtime is nil")
	}
	if e.timescale != nil && e.cfg.Timescale.EnsureSchema {
		if err := e.timescale.EnsureSchema(ctx); err != nil {
			return errors.Join(fmt.Errorf("timescale schema: %w", err), e.close())
		}
	}

	srv := &http.Server{
		Addr:              e.cfg.HTTP.Addr,
		Handler:           e.api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pipeline.RunIngestPipeline(gctx, e.wal, e.queue, e.scorer, e.sink, e.policy, e.obs)
	})
	g.Go(func() error {
		// uncommitted frames go ahead of anything the collector produces
		if _, err := pipeline.ReplayWAL(gctx, e.wal, e.queue, e.policy, e.obs); err != nil {
			if gctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wal replay: %w", err)
		}
		return pipeline.RunEdgePipeline(gctx, e.collector, e.wal, e.queue, e.policy, e.obs)
	})
	for _, bg := range e.external {
		g.Go(func() error { return bg.Run(gctx) })
	}
	g.Go(func() error {
		e.recordResourceGauges(gctx, time.Second)
		return nil
	})
	g.Go(func() error {
		e.logger.Info("dashboard api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("dashboard api: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Join(srv.Shutdown(shutdownCtx), e.collector.Stop())
	})

	err := g.Wait()
	return errors.Join(err, e.close())
}

// Handler returns the dashboard API router for embedding in another server.
func (e *EdgeRuntime) Handler() http.Handler { return e.api.Routes() }

// Registry returns the metrics registry.
func (e *EdgeRuntime) Registry() *prometheus.Registry { return e.registry }

// Latest returns the most recent scored frame.
func (e *EdgeRuntime) Latest() (*ScoredFrame, bool) { return e.history.Latest() }

// History returns the recent scored frames, oldest first.
func (e *EdgeRuntime) History() []*ScoredFrame { return e.history.Snapshot() }

// Alerts returns the retained alerts, newest first.
func (e *EdgeRuntime) Alerts() []Alert { return e.alerts.Alerts() }

// SubscribeAlerts registers fn for every alert raised from now on.
func (e *EdgeRuntime) SubscribeAlerts(fn func(Alert)) func() { return e.alerts.Subscribe(fn) }

func (e *EdgeRuntime) close() error {
	var errs []error
	if e.hub != nil {
		e.hub.Close()
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	if c, ok := e.obs.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// recordResourceGauges samples WAL and queue sizes, and compacts the WAL
// once it passes half of its size limit.
func (e *EdgeRuntime) recordResourceGauges(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := e.wal.Stats()
			e.obs.SetGauge("slopeguard_wal_size_bytes", float64(stats.SizeBytes))
			e.obs.SetGauge("slopeguard_queue_length", float64(e.queue.Len()))

			if e.policy.MaxWALSizeBytes > 0 && stats.SizeBytes > e.policy.MaxWALSizeBytes/2 {
				if err := e.wal.TruncateCommitted(); err != nil {
					e.obs.LogError("wal_truncate_failed", err)
				}
			}
		}
	}
}
