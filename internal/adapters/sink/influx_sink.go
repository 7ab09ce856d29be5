package sink

import (
	"context"
	"math"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/ghalamif/SlopeGuard/internal/domain"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

const influxMeasurement = "risk_assessment"

// PointWriter is the subset of api.WriteAPIBlocking used by InfluxSink.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

type InfluxSink struct {
	writer PointWriter
	site   string
}

// NewInfluxSink writes risk_assessment points through w, tagging each with
// site when it is non-empty.
func NewInfluxSink(w PointWriter, site string) *InfluxSink {
	return &InfluxSink{writer: w, site: site}
}

func (s *InfluxSink) Name() string { return "influxdb" }

func (s *InfluxSink) WriteBatch(ctx context.Context, frames []*domain.ScoredFrame) error {
	if len(frames) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(frames))
	for _, f := range frames {
		points = append(points, s.point(f))
	}
	return s.writer.WritePoint(ctx, points...)
}

func (s *InfluxSink) point(f *domain.ScoredFrame) *write.Point {
	a := f.Assessment
	p := influxdb2.NewPointWithMeasurement(influxMeasurement).
		AddTag("source_id", f.SourceID).
		AddTag("level", string(f.Level)).
		AddField("seq", int64(f.Seq)).
		AddField("total_risk", a.TotalRisk).
		AddField("slope_movement", a.Factors.SlopeMovement).
		AddField("seismic_event", a.Factors.SeismicEvent).
		AddField("weather_impact", a.Factors.WeatherImpact).
		AddField("vibration_level", a.Factors.VibrationLevel).
		AddField("emergency", f.Emergency).
		AddField("scorer_ver", int64(f.ScorerVer)).
		SetTime(f.Timestamp)
	// line protocol has no NaN or infinity
	if !math.IsNaN(f.MotionScore) && !math.IsInf(f.MotionScore, 0) {
		p.AddField("motion_score", f.MotionScore)
	}
	if s.site != "" {
		p.AddTag("site", s.site)
	}
	return p
}

var _ ports.Sink = (*InfluxSink)(nil)
