package slopeguard

import (
	base "github.com/ghalamif/SlopeGuard/pkg/slopeguard"
)

// Re-exported errors for convenience.
var (
	ErrQueueFull         = base.ErrQueueFull
	ErrWALFull           = base.ErrWALFull
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
	ErrInvalidInput      = base.ErrInvalidInput
)

// Risk levels and alert severities.
const (
	RiskLow    = base.RiskLow
	RiskMedium = base.RiskMedium
	RiskHigh   = base.RiskHigh

	SeverityCritical = base.SeverityCritical
	SeverityHigh     = base.SeverityHigh
	SeverityMedium   = base.SeverityMedium
	SeverityLow      = base.SeverityLow
)

// Type aliases so consumers can import github.com/ghalamif/SlopeGuard directly.
type (
	Config             = base.Config
	Policy             = base.Policy
	SourceConfig       = base.SourceConfig
	OPCUAConfig        = base.OPCUAConfig
	OPCUANodeConfig    = base.OPCUANodeConfig
	TimescaleConfig    = base.TimescaleConfig
	InfluxConfig       = base.InfluxConfig
	HTTPConfig         = base.HTTPConfig
	WALConfig          = base.WALConfig
	Flow               = base.Flow
	FlowOption         = base.FlowOption
	StreamInOption     = base.StreamInOption
	StreamOutOption    = base.StreamOutOption
	EdgeRuntime        = base.EdgeRuntime
	EdgeRuntimeOption  = base.EdgeRuntimeOption
	SensorReading      = base.SensorReading
	RiskAssessment     = base.RiskAssessment
	RiskFactors        = base.RiskFactors
	RiskLevel          = base.RiskLevel
	Frame              = base.Frame
	ScoredFrame        = base.ScoredFrame
	Alert              = base.Alert
	ScoredBatchHandler = base.ScoredBatchHandler
	Collector          = base.Collector
	SensorSource       = base.SensorSource
	MotionDetector     = base.MotionDetector
	Sink               = base.Sink
	Scorer             = base.Scorer
	FrameQueue         = base.FrameQueue
	WAL                = base.WAL
	Observability      = base.Observability
	QueuedFrame        = base.QueuedFrame
	WALEntryID         = base.WALEntryID
	WALStats           = base.WALStats
	Publisher          = base.Publisher
	PublisherConfig    = base.PublisherConfig
)

// Risk model.
func ComputeRisk(r SensorReading, motionScore float64) RiskAssessment {
	return base.ComputeRisk(r, motionScore)
}

func ExplainRiskFactors(a RiskAssessment) []string {
	return base.ExplainRiskFactors(a)
}

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...EdgeRuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInCollector(col Collector) StreamInOption {
	return base.StreamInCollector(col)
}

func StreamInSource(src SensorSource, motion MotionDetector) StreamInOption {
	return base.StreamInSource(src, motion)
}

func StreamInQueue(q FrameQueue) StreamInOption {
	return base.StreamInQueue(q)
}

func StreamInWAL(w WAL) StreamInOption {
	return base.StreamInWAL(w)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutSink(s Sink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutScorer(sc Scorer) StreamOutOption {
	return base.StreamOutScorer(sc)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn ScoredBatchHandler) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Edge runtime and options.
func NewEdgeRuntime(cfg *Config, opts ...EdgeRuntimeOption) (*EdgeRuntime, error) {
	return base.NewEdgeRuntime(cfg, opts...)
}

func WithCollector(col Collector) EdgeRuntimeOption {
	return base.WithCollector(col)
}

func WithSource(src SensorSource, motion MotionDetector) EdgeRuntimeOption {
	return base.WithSource(src, motion)
}

func WithSink(s Sink) EdgeRuntimeOption {
	return base.WithSink(s)
}

func WithScorer(sc Scorer) EdgeRuntimeOption {
	return base.WithScorer(sc)
}

func WithWAL(w WAL) EdgeRuntimeOption {
	return base.WithWAL(w)
}

func WithFrameQueue(q FrameQueue) EdgeRuntimeOption {
	return base.WithFrameQueue(q)
}

func WithObservability(obs Observability) EdgeRuntimeOption {
	return base.WithObservability(obs)
}

// Sink adapters.
func NewCallbackSink(name string, fn ScoredBatchHandler) Sink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (Sink, <-chan []ScoredFrame, func()) {
	return base.NewChannelSink(name, buffer)
}

// Publisher.
func NewPublisher(cfg *PublisherConfig, handler ScoredBatchHandler) (*Publisher, error) {
	return base.NewPublisher(cfg, handler)
}
