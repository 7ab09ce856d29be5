package observability

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ghalamif/SlopeGuard/internal/domain"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

// Metric names shared by the pipelines, the runtime and the stats command.
const (
	MetricFramesIngested = "slopeguard_frames_ingested_total"
	MetricDLQ            = "slopeguard_dlq_total"
	MetricQueueDropped   = "slopeguard_queue_dropped_total"
	MetricSinkFailures   = "slopeguard_sink_failures_total"
	MetricSinkDropped    = "slopeguard_sink_dropped_total"
	MetricAlerts         = "slopeguard_alerts_total"
	MetricWALSize        = "slopeguard_wal_size_bytes"
	MetricQueueLength    = "slopeguard_queue_length"
	MetricTotalRisk      = "slopeguard_total_risk"
	MetricMotionScore    = "slopeguard_motion_score"
	MetricEmergency      = "slopeguard_emergency_active"
	MetricRiskFactor     = "slopeguard_risk_factor"
	MetricSinkLatency    = "slopeguard_sink_latency_seconds"
	MetricScoringLatency = "slopeguard_scoring_latency_seconds"
)

type PromObs struct {
	logger   *slog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
	factors  *prometheus.GaugeVec
	alerts   *prometheus.CounterVec
}

// NewPromObs registers the SlopeGuard collectors on reg. A nil reg falls back
// to the default registerer; a nil logger to slog.Default().
func NewPromObs(reg prometheus.Registerer, logger *slog.Logger) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = slog.Default()
	}

	ingested := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricFramesIngested,
		Help: "Scored frames successfully delivered to the sinks.",
	})
	dlq := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricDLQ,
		Help: "Frames rejected by the scorer.",
	})
	queueDrops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricQueueDropped,
		Help: "Frames lost due to queue or WAL backpressure policies.",
	})
	sinkFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricSinkFailures,
		Help: "Batches that failed to reach every sink.",
	})
	sinkDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricSinkDropped,
		Help: "Scored frames discarded while an external sink stayed unreachable.",
	})
	walGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: MetricWALSize,
		Help: "Size of the frame WAL on disk.",
	})
	queueGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: MetricQueueLength,
		Help: "Frames buffered in the in-memory queue.",
	})
	totalRisk := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: MetricTotalRisk,
		Help: "Latest composite risk percentage.",
	})
	motion := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: MetricMotionScore,
		Help: "Latest motion detector score.",
	})
	emergency := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: MetricEmergency,
		Help: "1 while the latest composite risk requires the emergency protocol.",
	})
	factors := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: MetricRiskFactor,
		Help: "Latest unweighted risk factor percentages.",
	}, []string{"factor"})
	alerts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricAlerts,
		Help: "Alerts raised by severity.",
	}, []string{"severity"})
	sinkLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    MetricSinkLatency,
		Help:    "Time to deliver a scored batch to every sink.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
	scoringLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    MetricScoringLatency,
		Help:    "Edge scoring latency per frame.",
		Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10),
	})

	reg.MustRegister(ingested, dlq, queueDrops, sinkFailures, sinkDropped, walGauge, queueGauge,
		totalRisk, motion, emergency, factors, alerts, sinkLatency, scoringLatency)

	return &PromObs{
		logger: logger,
		counters: map[string]prometheus.Counter{
			MetricFramesIngested: ingested,
			MetricDLQ:            dlq,
			MetricQueueDropped:   queueDrops,
			MetricSinkFailures:   sinkFailures,
			MetricSinkDropped:    sinkDropped,
		},
		gauges: map[string]prometheus.Gauge{
			MetricWALSize:     walGauge,
			MetricQueueLength: queueGauge,
			MetricTotalRisk:   totalRisk,
			MetricMotionScore: motion,
			MetricEmergency:   emergency,
		},
		histos: map[string]prometheus.Observer{
			MetricSinkLatency:    sinkLatency,
			MetricScoringLatency: scoringLatency,
		},
		factors: factors,
		alerts:  alerts,
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.Info(msg, attrs(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.logger.Error(msg, append(attrs(fields), "error", err)...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.logger.Error(msg, append(attrs(fields), "error", err, "critical", true)...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) RecordDLQ(id ports.WALEntryID, f *domain.Frame, err error) {
	p.IncCounter(MetricDLQ, 1)
	if err == nil {
		return
	}
	if f == nil {
		p.logger.Warn("frame rejected", "wal_id", uint64(id), "error", err)
		return
	}
	p.logger.Warn("frame rejected", "wal_id", uint64(id), "source_id", f.SourceID, "seq", f.Seq, "error", err)
}

func (p *PromObs) RecordAssessment(s *domain.ScoredFrame) {
	if s == nil {
		return
	}
	a := s.Assessment
	p.SetGauge(MetricTotalRisk, a.TotalRisk)
	p.SetGauge(MetricMotionScore, s.MotionScore)
	if s.Emergency {
		p.SetGauge(MetricEmergency, 1)
	} else {
		p.SetGauge(MetricEmergency, 0)
	}
	p.factors.WithLabelValues("slope_movement").Set(a.Factors.SlopeMovement)
	p.factors.WithLabelValues("seismic_event").Set(a.Factors.SeismicEvent)
	p.factors.WithLabelValues("weather_impact").Set(a.Factors.WeatherImpact)
	p.factors.WithLabelValues("vibration_level").Set(a.Factors.VibrationLevel)
}

func (p *PromObs) RecordAlert(a *domain.Alert) {
	if a == nil {
		return
	}
	p.alerts.WithLabelValues(string(a.Severity)).Inc()
	p.logger.Warn("alert raised",
		"rule", a.Rule,
		"severity", string(a.Severity),
		"title", a.Title,
		"source_id", a.SourceID,
		"total_risk", a.TotalRisk)
}

func attrs(fields []ports.Field) []any {
	out := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f.Key, f.Value)
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
