package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
mode: collect
archive:
  dir: /tmp/samples
policy:
  max_queue_len: 10
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Mode != ModeCollect {
		t.Fatalf("expected collect mode, got %s", cfg.Mode)
	}
	if cfg.Policy.MaxQueueLen != 10 {
		t.Fatalf("expected MaxQueueLen 10, got %d", cfg.Policy.MaxQueueLen)
	}
	if cfg.Policy.IdleSleep != 5*time.Millisecond {
		t.Fatalf("expected IdleSleep default 5ms, got %s", cfg.Policy.IdleSleep)
	}
	if cfg.Server.Port != 1337 {
		t.Fatalf("expected default port 1337, got %d", cfg.Server.Port)
	}
	if cfg.Archive.Digits != 4 || cfg.Archive.Extension != ".csv" {
		t.Fatalf("unexpected archive defaults: %+v", cfg.Archive)
	}
	if cfg.Model.Threshold != 9.0 {
		t.Fatalf("expected default threshold 9.0, got %v", cfg.Model.Threshold)
	}
	if cfg.Features.Truncation() != 128 {
		t.Fatalf("expected default truncation 128, got %d", cfg.Features.Truncation())
	}
	if cfg.Metrics.Addr != ":9100" {
		t.Fatalf("expected default metrics addr :9100, got %s", cfg.Metrics.Addr)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Mode != ModeDetect {
		t.Fatalf("expected detect mode by default, got %s", cfg.Mode)
	}
	if cfg.Server.Addr() != ":1337" {
		t.Fatalf("expected addr :1337, got %s", cfg.Server.Addr())
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ACCEL_SENTRY_SERVER_PORT", "8080")
	t.Setenv("ACCEL_SENTRY_MODEL_THRESHOLD", "4.5")
	t.Setenv("ACCEL_SENTRY_SERVER_DURATION", "30s")

	cfg, err := Load(writeConfig(t, "server:\n  port: 2000\n"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected env port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Model.Threshold != 4.5 {
		t.Fatalf("expected env threshold 4.5, got %v", cfg.Model.Threshold)
	}
	if cfg.Server.Duration != 30*time.Second {
		t.Fatalf("expected env duration 30s, got %s", cfg.Server.Duration)
	}
}

func TestTruncationFromRateAndTime(t *testing.T) {
	f := FeaturesConfig{SampleRateHz: 200, SampleTime: 640 * time.Millisecond}
	if got := f.Truncation(); got != 128 {
		t.Fatalf("expected 128, got %d", got)
	}
	f.MaxMeasurements = 50
	if got := f.Truncation(); got != 50 {
		t.Fatalf("explicit max_measurements should win, got %d", got)
	}
	if got := (FeaturesConfig{}).Truncation(); got != 0 {
		t.Fatalf("expected no truncation, got %d", got)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeConfig(t, `
mode: replay
server:
  port: 70000
archive:
  digits: 12
policy:
  on_queue_full: spill
model:
  threshold: -1
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"mode", "server.port", "archive.digits", "on_queue_full", "model.threshold"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to mention %s, got %v", want, err)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDumpRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 4242
	out, err := Dump(cfg)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if !strings.Contains(string(out), "port: 4242") {
		t.Fatalf("dump missing port:\n%s", out)
	}

	path := writeConfig(t, string(out))
	back, err := Load(path)
	if err != nil {
		t.Fatalf("reload dumped config: %v", err)
	}
	if back.Server.Port != 4242 || back.Archive.Timeout != 2*time.Second {
		t.Fatalf("round trip mismatch: %+v", back.Server)
	}
}
