package accelsentry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ghalamif/accelsentry/internal/adapters/archive"
	"github.com/ghalamif/accelsentry/internal/adapters/httpingest"
	"github.com/ghalamif/accelsentry/internal/adapters/live"
	"github.com/ghalamif/accelsentry/internal/adapters/modelstore"
	"github.com/ghalamif/accelsentry/internal/adapters/observability"
	"github.com/ghalamif/accelsentry/internal/adapters/queue"
	"github.com/ghalamif/accelsentry/internal/adapters/sink"
	"github.com/ghalamif/accelsentry/internal/app/pipeline"
	"github.com/ghalamif/accelsentry/internal/domain"
	"github.com/ghalamif/accelsentry/internal/features"
	"github.com/ghalamif/accelsentry/internal/ports"
	"github.com/ghalamif/accelsentry/internal/scoring"
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	observability Observability
	logger        *zap.Logger
	archiver      Archiver
	sinks         []ResultSink
	model         *GaussianModel
	queue         BurstQueue
	listener      net.Listener
	opsListener   net.Listener
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithLogger reuses an existing zap logger instead of building one from config.
func WithLogger(l *zap.Logger) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.logger = l
	}
}

// WithArchiver replaces the CSV archiver used in collect mode.
func WithArchiver(a Archiver) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.archiver = a
	}
}

// WithResultSink adds a sink that receives every detection. May be repeated.
func WithResultSink(s ResultSink) RuntimeOption {
	return func(o *runtimeOverrides) {
		if s != nil {
			o.sinks = append(o.sinks, s)
		}
	}
}

// WithModel supplies a fitted model directly, skipping model.path.
func WithModel(m *GaussianModel) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.model = m
	}
}

// WithBurstQueue injects a custom queue implementation.
func WithBurstQueue(q BurstQueue) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.queue = q
	}
}

// WithListener serves ingestion on an already bound listener instead of
// server.host:server.port.
func WithListener(ln net.Listener) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.listener = ln
	}
}

// WithOpsListener serves /metrics, /healthz, /readyz and /ws on ln instead of
// metrics.addr.
func WithOpsListener(ln net.Listener) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.opsListener = ln
	}
}

// Runtime wires HTTP ingestion → bounded queue → collect or detect processor
// and exposes lifecycle hooks for embedding inside any Go service.
type Runtime struct {
	cfg       *Config
	log       *zap.Logger
	ownLogger bool
	obs       ports.Observability
	reg       *prometheus.Registry

	queue    ports.BurstQueue
	pipe     *pipeline.Pipeline
	workers  int
	archiver ports.Archiver
	hub      *live.Hub
	tsSink   *sink.TimescaleSink
	db       *sql.DB

	ready httpingest.Readiness

	ln          net.Listener
	opsLn       net.Listener
	srv         *http.Server
	opsSrv      *http.Server
	serveErr    chan error
	hubCancel   context.CancelFunc
	gaugeStopCh chan struct{}

	startOnce    sync.Once
	shutdownOnce sync.Once
	shutdownErr  error
	stopped      chan struct{}
}

// NewRuntime bootstraps the default adapters for cfg.Mode. In detect mode the
// model is loaded and factorised here, so a missing or singular model fails
// before any listener is opened.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	r := &Runtime{
		cfg:      cfg,
		reg:      prometheus.NewRegistry(),
		serveErr: make(chan error, 1),
		stopped:  make(chan struct{}),
		ln:       overrides.listener,
		opsLn:    overrides.opsListener,
	}

	r.log = overrides.logger
	if r.log == nil {
		l, err := observability.NewLogger(cfg.Logging)
		if err != nil {
			return nil, err
		}
		r.log, r.ownLogger = l, true
	}

	r.obs = overrides.observability
	if r.obs == nil {
		r.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		r.obs = observability.NewPromObs(r.log, r.reg)
	}

	r.queue = overrides.queue
	if r.queue == nil {
		r.queue = queue.NewMemQueue(cfg.Policy.MaxQueueLen)
	}

	var (
		proc ports.Processor
		err  error
	)
	switch cfg.Mode {
	case ModeCollect:
		proc, err = r.buildCollect(overrides)
		// The archive cursor has exactly one writer.
		r.workers = 1
	case ModeDetect, "":
		proc, err = r.buildDetect(overrides)
		r.workers = cfg.Policy.Workers
	default:
		err = fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	if err != nil {
		r.closeResources()
		return nil, err
	}

	r.pipe = pipeline.New(r.queue, proc, cfg.Policy, r.obs)
	return r, nil
}

func (r *Runtime) buildCollect(o runtimeOverrides) (ports.Processor, error) {
	r.archiver = o.archiver
	if r.archiver == nil {
		a, err := archive.NewCSVArchiver(archive.Namespace{
			Dir:    r.cfg.Archive.Dir,
			Digits: r.cfg.Archive.Digits,
			Ext:    r.cfg.Archive.Extension,
		})
		if err != nil {
			return nil, err
		}
		r.archiver = a
	}
	return pipeline.NewCollectProcessor(r.archiver, r.obs, r.cfg.Archive.Timeout), nil
}

func (r *Runtime) buildDetect(o runtimeOverrides) (ports.Processor, error) {
	model := o.model
	if model == nil {
		if r.cfg.Model.Path == "" {
			return nil, fmt.Errorf("%w: model.path is empty", domain.ErrModelLoad)
		}
		m, err := modelstore.Load(r.cfg.Model.Path)
		if err != nil {
			return nil, err
		}
		model = m
	}

	threshold := r.cfg.Model.Threshold
	if threshold == 0 {
		threshold = scoring.DefaultThreshold
	}
	scorer, err := scoring.NewScorer(model, threshold)
	if err != nil {
		return nil, err
	}
	if scorer.Dim() != features.Dim {
		return nil, fmt.Errorf("%w: model has %d features, extractor produces %d", domain.ErrModel, scorer.Dim(), features.Dim)
	}

	sinks := append([]ports.ResultSink(nil), o.sinks...)
	if r.cfg.Timescale.ConnString != "" {
		db, err := sql.Open("postgres", r.cfg.Timescale.ConnString)
		if err != nil {
			return nil, err
		}
		r.db = db
		r.tsSink = sink.NewTimescaleSink(db, r.cfg.Timescale.Table)
		sinks = append(sinks, r.tsSink)
	}
	if r.cfg.Metrics.LiveFeed {
		r.hub = live.NewHub(r.obs)
		sinks = append(sinks, r.hub)
	}

	opts := features.Options{
		MaxMeasurements: r.cfg.Features.Truncation(),
		Scale:           r.cfg.Features.Scale,
		NormalScale:     r.cfg.Features.MADNormalScale,
	}
	return pipeline.NewDetectProcessor(scorer, opts, r.obs, sinks...), nil
}

// Start binds the listeners, launches workers and the ops server, marks the
// service ready and begins serving. It returns immediately; call Run to block
// on a context instead.
func (r *Runtime) Start() error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}
	err := fmt.Errorf("runtime already started")
	r.startOnce.Do(func() { err = r.start() })
	return err
}

func (r *Runtime) start() error {
	if r.tsSink != nil {
		if err := r.tsSink.EnsureSchema(); err != nil {
			return fmt.Errorf("timescale schema: %w", err)
		}
	}

	if r.ln == nil {
		ln, err := net.Listen("tcp", r.cfg.Server.Addr())
		if err != nil {
			return fmt.Errorf("listen %s: %w", r.cfg.Server.Addr(), err)
		}
		r.ln = ln
	}

	// Bind the ops listener before any goroutine starts so a busy metrics
	// address leaves nothing running behind.
	if err := r.listenOps(); err != nil {
		_ = r.ln.Close()
		_ = r.pipe.Stop(context.Background())
		return err
	}

	if r.hub != nil {
		ctx, cancel := context.WithCancel(context.Background())
		r.hubCancel = cancel
		go r.hub.Run(ctx)
	}

	r.pipe.Start(r.workers)
	r.startOps()

	handler := httpingest.NewHandler(&r.ready, r.pipe, r.obs, r.cfg.Server.MaxBodyBytes).WithAccessLog(r.log)
	r.srv = &http.Server{
		Handler:           handler.Router(),
		ReadTimeout:       r.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: r.cfg.Server.ReadTimeout,
	}

	r.ready.MarkReady()
	r.obs.SetGauge(observability.Ready, 1)
	r.obs.LogInfo("runtime_started",
		ports.Field{Key: "mode", Value: r.mode()},
		ports.Field{Key: "addr", Value: r.ln.Addr().String()},
		ports.Field{Key: "workers", Value: r.workers})

	go func() {
		defer close(r.serveErr)
		if err := r.srv.Serve(r.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.serveErr <- err
		}
	}()
	return nil
}

func (r *Runtime) listenOps() error {
	if r.opsLn != nil || r.cfg.Metrics.Addr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", r.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", r.cfg.Metrics.Addr, err)
	}
	r.opsLn = ln
	return nil
}

func (r *Runtime) startOps() {
	if r.opsLn == nil {
		return
	}

	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}))
	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !r.ready.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("draining"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	if r.hub != nil {
		mux.Handle("/ws", r.hub)
	}

	r.opsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := r.opsSrv.Serve(r.opsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.obs.LogError("ops_server_exited", err)
		}
	}()

	r.gaugeStopCh = make(chan struct{})
	go r.recordGauges(r.gaugeStopCh, time.Second)
}

// Run starts the runtime and blocks until ctx is cancelled, server.duration
// elapses or the ingestion server fails. It then shuts down gracefully.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(); err != nil {
		return err
	}
	if d := r.cfg.Server.Duration; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case err, ok := <-r.serveErr:
			if ok && err != nil {
				return fmt.Errorf("ingest server: %w", err)
			}
		case <-gctx.Done():
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-r.stopped:
			return nil
		}
		timeout := r.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return r.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Shutdown clears readiness, stops accepting requests, drains queued bursts
// and releases the ops server, database and logger. It is safe to call more
// than once; later calls return the first result.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.shutdownOnce.Do(func() {
		r.shutdownErr = r.shutdown(ctx)
		close(r.stopped)
	})
	return r.shutdownErr
}

func (r *Runtime) shutdown(ctx context.Context) error {
	var errs []error

	r.ready.MarkDraining()
	r.obs.SetGauge(observability.Ready, 0)
	r.obs.LogInfo("runtime_draining", ports.Field{Key: "queued", Value: r.queue.Len()})

	if r.srv != nil {
		if err := r.srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	} else if r.ln != nil {
		_ = r.ln.Close()
	}

	if r.pipe != nil {
		if err := r.pipe.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if r.gaugeStopCh != nil {
		close(r.gaugeStopCh)
	}
	if r.hubCancel != nil {
		r.hubCancel()
	}

	if r.opsSrv != nil {
		if err := r.opsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	if err := r.closeResources(); err != nil {
		errs = append(errs, err)
	}

	r.obs.LogInfo("runtime_stopped")
	if r.ownLogger {
		// Sync on a terminal stderr returns EINVAL; nothing to report.
		_ = r.log.Sync()
	}
	return errors.Join(errs...)
}

func (r *Runtime) closeResources() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// Addr returns the bound ingestion address, or "" before Start.
func (r *Runtime) Addr() string {
	if r == nil || r.ln == nil {
		return ""
	}
	return r.ln.Addr().String()
}

// OpsAddr returns the bound ops server address, or "" when disabled.
func (r *Runtime) OpsAddr() string {
	if r == nil || r.opsLn == nil {
		return ""
	}
	return r.opsLn.Addr().String()
}

// Ready reports what GET / currently answers.
func (r *Runtime) Ready() bool { return r.ready.Ready() }

// Cursor reports the next archive slot to try in collect mode, or -1.
func (r *Runtime) Cursor() int {
	if r.archiver == nil {
		return -1
	}
	return r.archiver.Cursor()
}

// Registry exposes the Prometheus registry served on /metrics.
func (r *Runtime) Registry() *prometheus.Registry { return r.reg }

func (r *Runtime) mode() string {
	if r.cfg.Mode == "" {
		return ModeDetect
	}
	return r.cfg.Mode
}

func (r *Runtime) recordGauges(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.obs.SetGauge(observability.QueueLength, float64(r.queue.Len()))
			if r.archiver != nil {
				r.obs.SetGauge(observability.ArchiveCursor, float64(r.archiver.Cursor()))
			}
		}
	}
}
