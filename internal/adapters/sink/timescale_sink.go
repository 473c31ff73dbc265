package sink

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ghalamif/accelsentry/internal/domain"
	"github.com/ghalamif/accelsentry/internal/ports"
)

// Schema is the table layout TimescaleSink writes to.
const Schema = `CREATE TABLE IF NOT EXISTS %s (
	burst_id    TEXT PRIMARY KEY,
	ts          TIMESTAMPTZ NOT NULL,
	distance    DOUBLE PRECISION NOT NULL,
	threshold   DOUBLE PRECISION NOT NULL,
	anomaly     BOOLEAN NOT NULL,
	features    JSONB NOT NULL
)`

type TimescaleSink struct {
	db        *sql.DB
	tableName string
}

func NewTimescaleSink(db *sql.DB, table string) *TimescaleSink {
	return &TimescaleSink{db: db, tableName: table}
}

func (t *TimescaleSink) Name() string { return "timescaledb" }

// EnsureSchema creates the detections table when it does not exist.
func (t *TimescaleSink) EnsureSchema() error {
	_, err := t.db.Exec(fmt.Sprintf(Schema, t.tableName))
	return err
}

func (t *TimescaleSink) WriteBatch(dets []domain.Detection) error {
	if len(dets) == 0 {
		return nil
	}

	// INSERT ... ON CONFLICT DO NOTHING keeps replays idempotent per burst.
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.tableName)
	b.WriteString(" (burst_id, ts, distance, threshold, anomaly, features) VALUES ")

	args := make([]any, 0, len(dets)*6)
	for i, d := range dets {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d)",
			len(args)+1, len(args)+2, len(args)+3, len(args)+4, len(args)+5, len(args)+6))
		feats, err := json.Marshal(d.Features)
		if err != nil {
			return fmt.Errorf("marshal features: %w", err)
		}

		args = append(args,
			d.BurstID,
			d.ReceivedAt,
			d.Distance,
			d.Threshold,
			d.Anomaly,
			feats,
		)
	}

	b.WriteString(" ON CONFLICT (burst_id) DO NOTHING")

	_, err := t.db.Exec(b.String(), args...)
	return err
}

var _ ports.ResultSink = (*TimescaleSink)(nil)
