package accelsentry

import (
	"github.com/ghalamif/accelsentry/internal/adapters/observability"
	"github.com/ghalamif/accelsentry/internal/app/config"
	"github.com/ghalamif/accelsentry/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// ServerConfig configures the ingestion listener.
	ServerConfig = config.ServerConfig
	// ArchiveConfig configures the collect-mode sample directory.
	ArchiveConfig = config.ArchiveConfig
	// FeaturesConfig controls truncation and scaling before MAD extraction.
	FeaturesConfig = config.FeaturesConfig
	// ModelConfig points at the fitted model and sets the anomaly threshold.
	ModelConfig = config.ModelConfig
	// Policy controls queue thresholds and worker count.
	Policy = ports.Policy
	// MetricsConfig configures the ops HTTP server.
	MetricsConfig = config.MetricsConfig
	// TimescaleConfig configures the detections table.
	TimescaleConfig = config.TimescaleConfig
	// LogConfig configures the zap logger.
	LogConfig = observability.LogConfig
)

const (
	ModeCollect = config.ModeCollect
	ModeDetect  = config.ModeDetect
)

// LoadConfig loads YAML from disk (plus ACCEL_SENTRY_* overrides).
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return config.Default()
}

// DumpConfig renders cfg as YAML.
func DumpConfig(cfg *Config) ([]byte, error) {
	return config.Dump(cfg)
}
