package accelsentry

import (
	"net"

	"go.uber.org/zap"

	base "github.com/ghalamif/accelsentry/pkg/accelsentry"
)

// Re-exported errors for convenience.
var (
	ErrQueueFull          = base.ErrQueueFull
	ErrNotReady           = base.ErrNotReady
	ErrChannelSinkClosed  = base.ErrChannelSinkClosed
	ErrDecode             = base.ErrDecode
	ErrFeatureExtraction  = base.ErrFeatureExtraction
	ErrModel              = base.ErrModel
	ErrModelLoad          = base.ErrModelLoad
	ErrArchive            = base.ErrArchive
	ErrNamespaceExhausted = base.ErrNamespaceExhausted
)

const (
	ModeCollect = base.ModeCollect
	ModeDetect  = base.ModeDetect
)

// Type aliases so consumers can import github.com/ghalamif/accelsentry directly.
type (
	Config             = base.Config
	ServerConfig       = base.ServerConfig
	ArchiveConfig      = base.ArchiveConfig
	FeaturesConfig     = base.FeaturesConfig
	ModelConfig        = base.ModelConfig
	Policy             = base.Policy
	MetricsConfig      = base.MetricsConfig
	TimescaleConfig    = base.TimescaleConfig
	LogConfig          = base.LogConfig
	Flow               = base.Flow
	FlowOption         = base.FlowOption
	StreamInOption     = base.StreamInOption
	StreamOutOption    = base.StreamOutOption
	Runtime            = base.Runtime
	RuntimeOption      = base.RuntimeOption
	Burst              = base.Burst
	Detection          = base.Detection
	FeatureVector      = base.FeatureVector
	GaussianModel      = base.GaussianModel
	DetectionBatchSink = base.DetectionBatchSink
	BurstQueue         = base.BurstQueue
	Archiver           = base.Archiver
	ResultSink         = base.ResultSink
	Observability      = base.Observability
	Field              = base.Field
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

func DumpConfig(cfg *Config) ([]byte, error) {
	return base.DumpConfig(cfg)
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInCollect(dir string) StreamInOption {
	return base.StreamInCollect(dir)
}

func StreamInQueue(q BurstQueue) StreamInOption {
	return base.StreamInQueue(q)
}

func StreamInArchiver(a Archiver) StreamInOption {
	return base.StreamInArchiver(a)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutDetect(path string, threshold float64) StreamOutOption {
	return base.StreamOutDetect(path, threshold)
}

func StreamOutModel(m *GaussianModel) StreamOutOption {
	return base.StreamOutModel(m)
}

func StreamOutSink(s ResultSink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn DetectionBatchSink) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithArchiver(a Archiver) RuntimeOption {
	return base.WithArchiver(a)
}

func WithResultSink(s ResultSink) RuntimeOption {
	return base.WithResultSink(s)
}

func WithModel(m *GaussianModel) RuntimeOption {
	return base.WithModel(m)
}

func WithBurstQueue(q BurstQueue) RuntimeOption {
	return base.WithBurstQueue(q)
}

func WithLogger(l *zap.Logger) RuntimeOption {
	return base.WithLogger(l)
}

func WithListener(ln net.Listener) RuntimeOption {
	return base.WithListener(ln)
}

func WithOpsListener(ln net.Listener) RuntimeOption {
	return base.WithOpsListener(ln)
}

// Sink adapters.
func NewCallbackSink(name string, fn DetectionBatchSink) ResultSink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (ResultSink, <-chan []Detection, func()) {
	return base.NewChannelSink(name, buffer)
}
