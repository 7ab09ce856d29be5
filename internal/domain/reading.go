package domain

import "time"

// SensorReading is one tick of slope instrumentation. Timestamp is epoch
// milliseconds; Temperature and TiltAngle are carried for display only.
type SensorReading struct {
	Timestamp       int64   `json:"timestamp" yaml:"timestamp"`
	Temperature     float64 `json:"temperature" yaml:"temperature"`
	VibrationLevel  float64 `json:"vibration_level" yaml:"vibration_level"`
	CrackWidth      float64 `json:"crack_width" yaml:"crack_width"`
	TiltAngle       float64 `json:"tilt_angle" yaml:"tilt_angle"`
	SeismicActivity float64 `json:"seismic_activity" yaml:"seismic_activity"`
	MoistureLevel   float64 `json:"moisture_level" yaml:"moisture_level"`
}

// Time converts the epoch-millisecond timestamp.
func (r SensorReading) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Frame is the unit persisted in the WAL and buffered in the queue: one
// reading and the motion score captured on the same tick.
type Frame struct {
	SourceID    string        `json:"source_id"`
	Seq         uint64        `json:"seq"`
	Reading     SensorReading `json:"reading"`
	MotionScore float64       `json:"motion_score"`
}

// ScoredFrame is a Frame after it went through the risk scorer.
type ScoredFrame struct {
	SourceID     string         `json:"source_id"`
	Seq          uint64         `json:"seq"`
	Timestamp    time.Time      `json:"ts"`
	Reading      SensorReading  `json:"reading"`
	MotionScore  float64        `json:"motion_score"`
	Assessment   RiskAssessment `json:"assessment"`
	Level        RiskLevel      `json:"level"`
	Explanations []string       `json:"explanations,omitempty"`
	Emergency    bool           `json:"emergency"`
	MotionZone   bool           `json:"motion_zone"`
	HeatZone     bool           `json:"heat_zone"`
	ScorerVer    uint16         `json:"scorer_ver"`
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *ScoredFrame) Clone() *ScoredFrame {
	if s == nil {
		return nil
	}
	out := *s
	if len(s.Explanations) > 0 {
		out.Explanations = append([]string(nil), s.Explanations...)
	}
	return &out
}

// FrameKey identifies a reading across process restarts. Seq alone is not
// enough: sources number frames per run and a replayed WAL frame may share
// its seq with a fresh one.
type FrameKey struct {
	SourceID  string
	Seq       uint64
	Timestamp int64
}

func (s *ScoredFrame) Key() FrameKey {
	return FrameKey{SourceID: s.SourceID, Seq: s.Seq, Timestamp: s.Reading.Timestamp}
}

// RecentKeys is a bounded set of the last frame keys seen. It is not safe
// for concurrent use.
type RecentKeys struct {
	keys []FrameKey
	set  map[FrameKey]struct{}
	next int
}

func NewRecentKeys(capacity int) *RecentKeys {
	if capacity <= 0 {
		capacity = 1024
	}
	return &RecentKeys{keys: make([]FrameKey, 0, capacity), set: make(map[FrameKey]struct{}, capacity)}
}

// Seen records k and reports whether it was already present.
func (r *RecentKeys) Seen(k FrameKey) bool {
	if _, ok := r.set[k]; ok {
		return true
	}
	if len(r.keys) < cap(r.keys) {
		r.keys = append(r.keys, k)
	} else {
		delete(r.set, r.keys[r.next])
		r.keys[r.next] = k
		r.next = (r.next + 1) % len(r.keys)
	}
	r.set[k] = struct{}{}
	return false
}
