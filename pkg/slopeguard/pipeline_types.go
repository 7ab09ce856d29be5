package slopeguard

import (
	"github.com/ghalamif/SlopeGuard/internal/domain"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

// SensorReading is one instrument snapshot of a monitored slope.
type SensorReading = domain.SensorReading

// Frame is a reading plus the motion score captured on the same tick. It is
// what the WAL persists and the queue buffers.
type Frame = domain.Frame

// ScoredFrame is a frame after risk scoring, as delivered to sinks.
type ScoredFrame = domain.ScoredFrame

// RiskAssessment is the composite risk and its per-factor breakdown.
type RiskAssessment = domain.RiskAssessment

// RiskFactors are the unweighted factor percentages.
type RiskFactors = domain.RiskFactors

// RiskLevel is the low/medium/high classification of a composite risk.
type RiskLevel = domain.RiskLevel

// Alert is raised by an alert rule.
type Alert = domain.Alert

// Severity of an alert.
type Severity = domain.Severity

// QueuedFrame represents an item buffered inside the bounded queue.
type QueuedFrame = ports.QueuedFrame

// Collector streams frames from any data source (OPC UA, simulators, etc.) into the pipeline.
type Collector = ports.Collector

// SensorSource yields one reading per poll.
type SensorSource = ports.SensorSource

// MotionDetector yields one motion score per poll.
type MotionDetector = ports.MotionDetector

// FrameQueue is the bounded, in-memory queue that decouples the collector and the scorer.
type FrameQueue = ports.FrameQueue

// Scorer turns frames into scored frames.
type Scorer = ports.Scorer

// Sink consumes batches of scored frames.
type Sink = ports.Sink

// Observability emits metrics/logs about throughput, latency, and DLQ conditions.
type Observability = ports.Observability

// Field is a structured log/metric field used by Observability implementations.
type Field = ports.Field

// WAL abstracts the write-ahead log used for durability and crash recovery.
type WAL = ports.WAL

// WALStats exposes WAL metadata for observability.
type WALStats = ports.WALStats

// WALEntryID uniquely identifies a WAL entry.
type WALEntryID = ports.WALEntryID
