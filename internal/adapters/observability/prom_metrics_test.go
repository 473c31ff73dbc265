package observability

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ghalamif/accelsentry/internal/domain"
	"github.com/ghalamif/accelsentry/internal/ports"
)

func TestPromObsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := NewPromObs(nil, reg)

	obs.IncCounter(BurstsReceived, 5)
	if got := testutil.ToFloat64(obs.counters[BurstsReceived]); got != 5 {
		t.Fatalf("expected received counter 5, got %f", got)
	}

	obs.IncCounter(QueueDropped, 2)
	if got := testutil.ToFloat64(obs.counters[QueueDropped]); got != 2 {
		t.Fatalf("expected queue drop counter 2, got %f", got)
	}

	obs.SetGauge(ArchiveCursor, 42)
	if got := testutil.ToFloat64(obs.gauges[ArchiveCursor]); got != 42 {
		t.Fatalf("expected cursor gauge 42, got %f", got)
	}

	obs.Observe(Distance, 3.5)
	hCollector := obs.histos[Distance].(prometheus.Collector)
	if samples := testutil.CollectAndCount(hCollector); samples != 1 {
		t.Fatalf("expected distance histogram to be collected once, got %d", samples)
	}

	obs.IncCounter("unknown_metric", 1)
	obs.SetGauge("unknown_gauge", 1)
	obs.Observe("unknown_histogram", 1)
}

func TestPromObsRecordDropByReason(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	obs := NewPromObs(zap.New(core), prometheus.NewRegistry())

	obs.RecordDrop(&domain.Burst{ID: "b-1"}, fmt.Errorf("%w: bad json", domain.ErrDecode))
	obs.RecordDrop(nil, fmt.Errorf("%w: dir full", domain.ErrNamespaceExhausted))
	obs.RecordDrop(nil, fmt.Errorf("%w: dir full", domain.ErrNamespaceExhausted))

	if got := testutil.ToFloat64(obs.drops.WithLabelValues("decode")); got != 1 {
		t.Fatalf("expected 1 decode drop, got %f", got)
	}
	if got := testutil.ToFloat64(obs.drops.WithLabelValues("namespace_exhausted")); got != 2 {
		t.Fatalf("expected 2 namespace drops, got %f", got)
	}
	if logs.Len() != 3 {
		t.Fatalf("expected 3 warnings, got %d", logs.Len())
	}
	if id := logs.All()[0].ContextMap()["burst_id"]; id != "b-1" {
		t.Fatalf("expected burst id in log context, got %v", id)
	}
}

func TestPromObsLogsFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	obs := NewPromObs(zap.New(core), prometheus.NewRegistry())

	obs.LogInfo("burst_classified", ports.Field{Key: "distance", Value: 2.5})
	obs.LogError("sink_write_failed", errors.New("boom"), ports.Field{Key: "sink", Value: "timescaledb"})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ContextMap()["distance"] != 2.5 {
		t.Fatalf("unexpected info context: %v", entries[0].ContextMap())
	}
	if entries[1].ContextMap()["error"] != "boom" {
		t.Fatalf("unexpected error context: %v", entries[1].ContextMap())
	}
}

func TestNewLoggerWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "accel-sentry.log")
	logger, err := NewLogger(LogConfig{Level: "debug", Format: "console", File: path})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("hello")
	_ = logger.Sync()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected log file at %s: %v", path, err)
	}

	if _, err := NewLogger(LogConfig{Level: "loud"}); err == nil {
		t.Fatalf("expected invalid level error")
	}
}
