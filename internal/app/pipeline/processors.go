package pipeline

import (
	"context"
	"time"

	"github.com/ghalamif/accelsentry/internal/adapters/observability"
	"github.com/ghalamif/accelsentry/internal/domain"
	"github.com/ghalamif/accelsentry/internal/features"
	"github.com/ghalamif/accelsentry/internal/ports"
	"github.com/ghalamif/accelsentry/internal/scoring"
)

const (
	ModeCollect = "collect"
	ModeDetect  = "detect"
)

// CollectProcessor archives every burst for offline training.
type CollectProcessor struct {
	arch    ports.Archiver
	obs     ports.Observability
	timeout time.Duration
}

func NewCollectProcessor(arch ports.Archiver, obs ports.Observability, timeout time.Duration) *CollectProcessor {
	return &CollectProcessor{arch: arch, obs: obs, timeout: timeout}
}

func (c *CollectProcessor) Mode() string { return ModeCollect }

func (c *CollectProcessor) Process(ctx context.Context, b *domain.Burst) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	slot, err := c.arch.Archive(ctx, b)
	if err != nil {
		return err
	}

	c.obs.IncCounter(observability.BurstsArchived, 1)
	c.obs.SetGauge(observability.ArchiveCursor, float64(c.arch.Cursor()))
	c.obs.LogInfo("burst_archived",
		ports.Field{Key: "burst_id", Value: b.ID},
		ports.Field{Key: "slot", Value: slot},
		ports.Field{Key: "ticks", Value: b.Len()})
	return nil
}

// DetectProcessor turns a burst into a feature vector, scores it and hands
// the detection to every configured sink.
type DetectProcessor struct {
	scorer *scoring.Scorer
	opts   features.Options
	sinks  []ports.ResultSink
	obs    ports.Observability
}

func NewDetectProcessor(scorer *scoring.Scorer, opts features.Options, obs ports.Observability, sinks ...ports.ResultSink) *DetectProcessor {
	return &DetectProcessor{scorer: scorer, opts: opts, sinks: sinks, obs: obs}
}

func (d *DetectProcessor) Mode() string { return ModeDetect }

func (d *DetectProcessor) Process(_ context.Context, b *domain.Burst) error {
	vec, err := features.Extract(b, d.opts)
	if err != nil {
		return err
	}
	res, err := d.scorer.Score(vec)
	if err != nil {
		return err
	}

	det := domain.Detection{
		BurstID:    b.ID,
		ReceivedAt: b.ReceivedAt,
		Features:   vec,
		Distance:   res.Distance,
		Threshold:  d.scorer.Threshold(),
		Anomaly:    res.Anomaly,
	}

	d.obs.IncCounter(observability.BurstsScored, 1)
	d.obs.Observe(observability.Distance, det.Distance)
	if det.Anomaly {
		d.obs.IncCounter(observability.Anomalies, 1)
	}
	d.obs.LogInfo("burst_classified",
		ports.Field{Key: "burst_id", Value: det.BurstID},
		ports.Field{Key: "distance", Value: det.Distance},
		ports.Field{Key: "threshold", Value: det.Threshold},
		ports.Field{Key: "anomaly", Value: det.Anomaly})

	batch := []domain.Detection{det}
	for _, s := range d.sinks {
		if err := s.WriteBatch(batch); err != nil {
			d.obs.LogError("sink_write_failed", err,
				ports.Field{Key: "sink", Value: s.Name()},
				ports.Field{Key: "burst_id", Value: det.BurstID})
		}
	}
	return nil
}

var (
	_ ports.Processor = (*CollectProcessor)(nil)
	_ ports.Processor = (*DetectProcessor)(nil)
)
