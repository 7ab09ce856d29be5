package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/ghalamif/SlopeGuard/internal/domain"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

const timescaleColumns = 13

// TimescaleSchema creates the hypertable used by TimescaleSink. %[1]s is the
// table name.
const TimescaleSchema = `CREATE TABLE IF NOT EXISTS %[1]s (
	source_id       TEXT             NOT NULL,
	ts              TIMESTAMPTZ      NOT NULL,
	seq             BIGINT           NOT NULL,
	total_risk      DOUBLE PRECISION NOT NULL,
	slope_movement  DOUBLE PRECISION NOT NULL,
	seismic_event   DOUBLE PRECISION NOT NULL,
	weather_impact  DOUBLE PRECISION NOT NULL,
	vibration_level DOUBLE PRECISION NOT NULL,
	motion_score    DOUBLE PRECISION,
	level           TEXT             NOT NULL,
	explanations    JSONB            NOT NULL DEFAULT '[]',
	emergency       BOOLEAN          NOT NULL,
	scorer_ver      SMALLINT         NOT NULL,
	UNIQUE (source_id, ts, seq)
);
SELECT create_hypertable('%[1]s', 'ts', if_not_exists => TRUE);`

type TimescaleSink struct {
	db        *sql.DB
	tableName string
}

func NewTimescaleSink(db *sql.DB, table string) *TimescaleSink {
	return &TimescaleSink{db: db, tableName: table}
}

func (t *TimescaleSink) Name() string { return "timescaledb" }

// EnsureSchema creates the assessment table if it does not exist.
func (t *TimescaleSink) EnsureSchema(ctx context.Context) error {
	_, err := t.db.ExecContext(ctx, fmt.Sprintf(TimescaleSchema, t.tableName))
	return err
}

func (t *TimescaleSink) WriteBatch(ctx context.Context, frames []*domain.ScoredFrame) error {
	if len(frames) == 0 {
		return nil
	}

	// idempotent via the (source_id, ts, seq) key, so WAL replays are harmless
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.tableName)
	b.WriteString(" (source_id, ts, seq, total_risk, slope_movement, seismic_event, weather_impact, vibration_level, motion_score, level, explanations, emergency, scorer_ver) VALUES ")

	args := make([]any, 0, len(frames)*timescaleColumns)
	for i, f := range frames {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(")
		for c := 1; c <= timescaleColumns; c++ {
			if c > 1 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "$%d", len(args)+c)
		}
		b.WriteString(")")

		explanations := f.Explanations
		if explanations == nil {
			explanations = []string{}
		}
		ex, err := json.Marshal(explanations)
		if err != nil {
			return fmt.Errorf("marshal explanations: %w", err)
		}

		// lib/pq cannot send infinities; store unknown motion as NULL
		var motion any = f.MotionScore
		if math.IsNaN(f.MotionScore) || math.IsInf(f.MotionScore, 0) {
			motion = nil
		}

		a := f.Assessment
		args = append(args,
			f.SourceID,
			f.Timestamp,
			f.Seq,
			a.TotalRisk,
			a.Factors.SlopeMovement,
			a.Factors.SeismicEvent,
			a.Factors.WeatherImpact,
			a.Factors.VibrationLevel,
			motion,
			string(f.Level),
			ex,
			f.Emergency,
			f.ScorerVer,
		)
	}

	b.WriteString(" ON CONFLICT (source_id, ts, seq) DO NOTHING")

	_, err := t.db.ExecContext(ctx, b.String(), args...)
	return err
}

var _ ports.Sink = (*TimescaleSink)(nil)
