package accelsentry

import (
	"context"
	"fmt"
)

// Flow assembles a Runtime in the order a deployment thinks about it: load the
// config, describe how bursts arrive and are archived (StreamIN), then describe
// how they are scored and where detections go (StreamOUT).
type Flow struct {
	cfg  *Config
	opts []RuntimeOption
}

// FlowOption adjusts a Flow right after its config is loaded.
type FlowOption func(*Flow)

// StreamInOption shapes the receiving half: the burst queue, the collect-mode
// archiver and the observability backend handlers report to.
type StreamInOption func(*Flow)

// StreamOutOption shapes the scoring half: the Gaussian model, the detection
// sinks and the observability backend workers report to.
type StreamOutOption func(*Flow)

// Conf reads the YAML config at path (environment overrides included) and
// starts a Flow from it.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig starts a Flow from a config the caller already holds, such as
// one patched by CLI flags.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: cfg}
	apply(f, opts)
	return f, nil
}

// Config exposes the config the runtime will be built from. Changes made
// before StreamOUT take effect.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options adds RuntimeOption values that have no stream-specific helper,
// e.g. WithListener in tests.
func (f *Flow) Options(opts ...RuntimeOption) *Flow {
	if f == nil {
		return nil
	}
	f.push(opts...)
	return f
}

// StreamIN applies receive-side options.
func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f == nil {
		return nil
	}
	apply(f, opts)
	return f
}

// StreamOUT applies scoring-side options, re-validates the config they may
// have changed and builds the Runtime. A detect-mode runtime has its model
// loaded and checked by the time this returns.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Runtime, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	apply(f, opts)
	if err := f.cfg.Validate(); err != nil {
		return nil, err
	}
	return NewRuntime(f.cfg, f.opts...)
}

// Run builds the Runtime and serves until ctx ends or server.duration passes.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	rt, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// WithFlowOptions carries RuntimeOption values through Conf.
func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return func(f *Flow) { f.push(opts...) }
}

// StreamInCollect switches the flow to collect mode, archiving into dir.
func StreamInCollect(dir string) StreamInOption {
	return func(f *Flow) {
		f.cfg.Mode = ModeCollect
		if dir != "" {
			f.cfg.Archive.Dir = dir
		}
	}
}

// StreamInQueue replaces the bounded in-memory burst queue.
func StreamInQueue(q BurstQueue) StreamInOption {
	return func(f *Flow) {
		if q != nil {
			f.push(WithBurstQueue(q))
		}
	}
}

// StreamInArchiver replaces the CSV archiver. Only collect mode uses it.
func StreamInArchiver(a Archiver) StreamInOption {
	return func(f *Flow) {
		if a != nil {
			f.push(WithArchiver(a))
		}
	}
}

// StreamInObservability routes handler-side logs and metrics to obs.
func StreamInObservability(obs Observability) StreamInOption {
	return func(f *Flow) {
		if obs != nil {
			f.push(WithObservability(obs))
		}
	}
}

// StreamOutDetect switches the flow to detect mode with the .npz model at
// path. A threshold of zero keeps the configured one.
func StreamOutDetect(path string, threshold float64) StreamOutOption {
	return func(f *Flow) {
		f.cfg.Mode = ModeDetect
		if path != "" {
			f.cfg.Model.Path = path
		}
		if threshold != 0 {
			f.cfg.Model.Threshold = threshold
		}
	}
}

// StreamOutModel scores against m instead of loading model.path.
func StreamOutModel(m *GaussianModel) StreamOutOption {
	return func(f *Flow) {
		if m != nil {
			f.push(WithModel(m))
		}
	}
}

// StreamOutSink adds a destination for detections.
func StreamOutSink(s ResultSink) StreamOutOption {
	return func(f *Flow) {
		if s != nil {
			f.push(WithResultSink(s))
		}
	}
}

// StreamOutObservability routes worker-side logs and metrics to obs.
func StreamOutObservability(obs Observability) StreamOutOption {
	return func(f *Flow) {
		if obs != nil {
			f.push(WithObservability(obs))
		}
	}
}

// StreamOutCallback hands every detection batch to fn.
func StreamOutCallback(name string, fn DetectionBatchSink) StreamOutOption {
	return func(f *Flow) { f.push(WithResultSink(NewCallbackSink(name, fn))) }
}

func apply[O ~func(*Flow)](f *Flow, opts []O) {
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
}

func (f *Flow) push(opts ...RuntimeOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
