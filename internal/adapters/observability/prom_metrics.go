package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ghalamif/accelsentry/internal/domain"
	"github.com/ghalamif/accelsentry/internal/ports"
)

const (
	BurstsReceived = "accel_bursts_received_total"
	BurstsArchived = "accel_bursts_archived_total"
	BurstsScored   = "accel_bursts_scored_total"
	Anomalies      = "accel_anomalies_total"
	QueueDropped   = "accel_queue_dropped_total"
	BurstsDropped  = "accel_bursts_dropped_total"
	QueueLength    = "accel_queue_length"
	Ready          = "accel_ready"
	ArchiveCursor  = "accel_archive_cursor"
	Distance       = "accel_mahalanobis_distance"
	ProcessLatency = "accel_process_latency_seconds"
)

type PromObs struct {
	log      *zap.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
	drops    *prometheus.CounterVec
}

// NewPromObs registers the service metrics on reg (prometheus.DefaultRegisterer
// when nil) and logs through logger (a no-op logger when nil).
func NewPromObs(logger *zap.Logger, reg prometheus.Registerer) *PromObs {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	received := prometheus.NewCounter(prometheus.CounterOpts{
		Name: BurstsReceived,
		Help: "Bursts decoded from the wire and handed to the pipeline.",
	})
	archived := prometheus.NewCounter(prometheus.CounterOpts{
		Name: BurstsArchived,
		Help: "Bursts written to the sample archive.",
	})
	scored := prometheus.NewCounter(prometheus.CounterOpts{
		Name: BurstsScored,
		Help: "Bursts scored against the Gaussian model.",
	})
	anomalies := prometheus.NewCounter(prometheus.CounterOpts{
		Name: Anomalies,
		Help: "Scored bursts whose distance exceeded the threshold.",
	})
	queueDrops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: QueueDropped,
		Help: "Bursts lost due to queue backpressure policies.",
	})
	drops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: BurstsDropped,
		Help: "Bursts dropped after a decode, feature, model or archive failure.",
	}, []string{"reason"})
	queueGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: QueueLength,
		Help: "Current number of bursts buffered in the in-memory queue.",
	})
	readyGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: Ready,
		Help: "1 while the ingestion endpoint reports ready.",
	})
	cursorGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ArchiveCursor,
		Help: "Last archive slot written.",
	})
	distance := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    Distance,
		Help:    "Mahalanobis distance of scored bursts.",
		Buckets: []float64{0.5, 1, 2, 3, 4, 6, 9, 12, 18, 27, 50, 100},
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ProcessLatency,
		Help:    "Time from dequeue to archive/score completion.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	reg.MustRegister(received, archived, scored, anomalies, queueDrops, drops,
		queueGauge, readyGauge, cursorGauge, distance, latency)

	return &PromObs{
		log: logger,
		counters: map[string]prometheus.Counter{
			BurstsReceived: received,
			BurstsArchived: archived,
			BurstsScored:   scored,
			Anomalies:      anomalies,
			QueueDropped:   queueDrops,
		},
		gauges: map[string]prometheus.Gauge{
			QueueLength:   queueGauge,
			Ready:         readyGauge,
			ArchiveCursor: cursorGauge,
		},
		histos: map[string]prometheus.Observer{
			Distance:       distance,
			ProcessLatency: latency,
		},
		drops: drops,
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.Info(msg, zapFields(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.log.DPanic(msg, append(zapFields(fields), zap.Error(err))...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) Observe(name string, v float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(v)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) RecordDrop(b *domain.Burst, err error) {
	reason := domain.DropReason(err)
	p.drops.WithLabelValues(reason).Inc()

	fields := []zap.Field{zap.String("reason", reason), zap.Error(err)}
	if b != nil {
		fields = append(fields, zap.String("burst_id", b.ID), zap.Int("ticks", len(b.X)))
	}
	p.log.Warn("burst dropped", fields...)
}

// Logger exposes the underlying zap logger for HTTP access logs.
func (p *PromObs) Logger() *zap.Logger { return p.log }

func zapFields(fields []ports.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+1)
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
