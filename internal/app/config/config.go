package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ghalamif/accelsentry/internal/adapters/observability"
	"github.com/ghalamif/accelsentry/internal/ports"
)

const (
	ModeCollect = "collect"
	ModeDetect  = "detect"

	// EnvPrefix namespaces environment overrides, e.g. ACCEL_SENTRY_SERVER_PORT.
	EnvPrefix = "ACCEL_SENTRY"
)

type Config struct {
	Mode      string                  `mapstructure:"mode" yaml:"mode"`
	Server    ServerConfig            `mapstructure:"server" yaml:"server"`
	Archive   ArchiveConfig           `mapstructure:"archive" yaml:"archive"`
	Features  FeaturesConfig          `mapstructure:"features" yaml:"features"`
	Model     ModelConfig             `mapstructure:"model" yaml:"model"`
	Policy    ports.Policy            `mapstructure:"policy" yaml:"policy"`
	Metrics   MetricsConfig           `mapstructure:"metrics" yaml:"metrics"`
	Timescale TimescaleConfig         `mapstructure:"timescale" yaml:"timescale"`
	Logging   observability.LogConfig `mapstructure:"logging" yaml:"logging"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	Duration        time.Duration `mapstructure:"duration" yaml:"duration"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Addr is the listen address of the ingestion server.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type ArchiveConfig struct {
	Dir       string        `mapstructure:"dir" yaml:"dir"`
	Digits    int           `mapstructure:"digits" yaml:"digits"`
	Extension string        `mapstructure:"extension" yaml:"extension"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type FeaturesConfig struct {
	MaxMeasurements int           `mapstructure:"max_measurements" yaml:"max_measurements"`
	SampleRateHz    float64       `mapstructure:"sample_rate_hz" yaml:"sample_rate_hz"`
	SampleTime      time.Duration `mapstructure:"sample_time" yaml:"sample_time"`
	Scale           float64       `mapstructure:"scale" yaml:"scale"`
	MADNormalScale  float64       `mapstructure:"mad_normal_scale" yaml:"mad_normal_scale"`
}

// Truncation returns the number of ticks kept per burst. An explicit
// max_measurements wins; otherwise rate*time is used when both are set.
// Zero means no truncation.
func (f FeaturesConfig) Truncation() int {
	if f.MaxMeasurements > 0 {
		return f.MaxMeasurements
	}
	if f.SampleRateHz > 0 && f.SampleTime > 0 {
		return int(math.Floor(f.SampleRateHz * f.SampleTime.Seconds()))
	}
	return 0
}

type ModelConfig struct {
	Path      string  `mapstructure:"path" yaml:"path"`
	Threshold float64 `mapstructure:"threshold" yaml:"threshold"`
}

type MetricsConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	LiveFeed bool   `mapstructure:"live_feed" yaml:"live_feed"`
}

type TimescaleConfig struct {
	ConnString string `mapstructure:"conn_string" yaml:"conn_string"`
	Table      string `mapstructure:"table" yaml:"table"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	v := newViper()
	var cfg Config
	// Defaults are static and always decode.
	_ = v.Unmarshal(&cfg)
	cfg.applyDefaults()
	return &cfg
}

// Load reads a YAML file (optional: empty path means defaults only) and
// applies ACCEL_SENTRY_* environment overrides.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", ModeDetect)

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 1337)
	v.SetDefault("server.duration", time.Duration(0))
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("archive.dir", "./data/samples")
	v.SetDefault("archive.digits", 4)
	v.SetDefault("archive.extension", ".csv")
	v.SetDefault("archive.timeout", 2*time.Second)

	v.SetDefault("features.max_measurements", 128)
	v.SetDefault("features.sample_rate_hz", 0.0)
	v.SetDefault("features.sample_time", time.Duration(0))
	v.SetDefault("features.scale", 1.0)
	v.SetDefault("features.mad_normal_scale", 1.0)

	v.SetDefault("model.path", "./models/md_model.npz")
	v.SetDefault("model.threshold", 9.0)

	v.SetDefault("policy.max_queue_len", 1024)
	v.SetDefault("policy.on_queue_full", "drop")
	v.SetDefault("policy.idle_sleep", 5*time.Millisecond)
	v.SetDefault("policy.workers", 1)

	v.SetDefault("metrics.addr", ":9100")
	v.SetDefault("metrics.live_feed", true)

	v.SetDefault("timescale.conn_string", "")
	v.SetDefault("timescale.table", "detections")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)
	return v
}

// applyDefaults fills values that were explicitly zeroed in the file but have
// no meaningful zero.
func (c *Config) applyDefaults() {
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	if c.Mode == "" {
		c.Mode = ModeDetect
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = 1 << 20
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
	if c.Archive.Extension == "" {
		c.Archive.Extension = ".csv"
	}
	if c.Archive.Timeout <= 0 {
		c.Archive.Timeout = 2 * time.Second
	}
	if c.Model.Threshold == 0 {
		c.Model.Threshold = 9.0
	}
	if c.Policy.MaxQueueLen <= 0 {
		c.Policy.MaxQueueLen = 1024
	}
	if c.Policy.IdleSleep <= 0 {
		c.Policy.IdleSleep = 5 * time.Millisecond
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "drop"
	}
	if c.Policy.Workers == 0 {
		c.Policy.Workers = 1
	}
	if c.Timescale.Table == "" {
		c.Timescale.Table = "detections"
	}
	c.Logging.ApplyDefaults()
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Mode {
	case ModeCollect:
		if c.Archive.Dir == "" {
			errs = append(errs, errors.New("archive.dir is required in collect mode"))
		}
	case ModeDetect:
	default:
		errs = append(errs, fmt.Errorf("mode must be %q or %q, got %q", ModeCollect, ModeDetect, c.Mode))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range 1..65535", c.Server.Port))
	}
	if c.Server.Duration < 0 {
		errs = append(errs, errors.New("server.duration must not be negative"))
	}
	if c.Archive.Digits < 1 || c.Archive.Digits > 9 {
		errs = append(errs, fmt.Errorf("archive.digits %d out of range 1..9", c.Archive.Digits))
	}
	if c.Features.MaxMeasurements < 0 {
		errs = append(errs, errors.New("features.max_measurements must not be negative"))
	}
	if c.Features.SampleRateHz < 0 || c.Features.SampleTime < 0 {
		errs = append(errs, errors.New("features.sample_rate_hz and features.sample_time must not be negative"))
	}
	if c.Features.Scale < 0 || c.Features.MADNormalScale < 0 {
		errs = append(errs, errors.New("features.scale and features.mad_normal_scale must not be negative"))
	}
	if c.Model.Threshold <= 0 || math.IsNaN(c.Model.Threshold) || math.IsInf(c.Model.Threshold, 0) {
		errs = append(errs, fmt.Errorf("model.threshold must be a positive number, got %v", c.Model.Threshold))
	}
	switch c.Policy.OnQueueFull {
	case "drop", "block":
	default:
		errs = append(errs, fmt.Errorf("policy.on_queue_full must be drop or block, got %q", c.Policy.OnQueueFull))
	}
	if c.Policy.Workers < 1 {
		errs = append(errs, fmt.Errorf("policy.workers must be >= 1, got %d", c.Policy.Workers))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	return errors.Join(errs...)
}

// Dump renders the effective configuration as YAML.
func Dump(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
