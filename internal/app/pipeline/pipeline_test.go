package pipeline

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ghalamif/accelsentry/internal/adapters/queue"
	"github.com/ghalamif/accelsentry/internal/domain"
	"github.com/ghalamif/accelsentry/internal/ports"
)

func TestEnqueueWithPolicyBlock(t *testing.T) {
	q := &mockQueue{}
	q.failures = 1

	pol := ports.Policy{
		OnQueueFull: "block",
		IdleSleep:   time.Millisecond,
	}
	obs := &mockObs{}

	if ok := enqueueWithPolicy(q, &domain.Burst{}, pol, obs, nil); !ok {
		t.Fatalf("expected enqueue to eventually succeed")
	}
	if q.calls != 2 {
		t.Fatalf("expected two enqueue attempts, got %d", q.calls)
	}
}

func TestEnqueueWithPolicyDrop(t *testing.T) {
	q := &mockQueue{failAlways: true}
	pol := ports.Policy{
		OnQueueFull: "drop",
	}
	obs := &mockObs{}

	if ok := enqueueWithPolicy(q, &domain.Burst{}, pol, obs, nil); ok {
		t.Fatalf("expected enqueueWithPolicy to fail")
	}
	if len(obs.errorsSnapshot()) == 0 {
		t.Fatalf("expected drop to log an error")
	}
}

func TestEnqueueWithPolicyBlockGivesUpOnStop(t *testing.T) {
	q := &mockQueue{failAlways: true}
	pol := ports.Policy{OnQueueFull: "block", IdleSleep: time.Millisecond}
	stop := make(chan struct{})
	close(stop)

	if ok := enqueueWithPolicy(q, &domain.Burst{}, pol, &mockObs{}, stop); ok {
		t.Fatalf("expected blocked enqueue to give up once stopping")
	}
}

func TestPipelineProcessesInArrivalOrder(t *testing.T) {
	proc := &recordingProcessor{}
	obs := &mockObs{}
	p := New(queue.NewMemQueue(100), proc, ports.Policy{MaxQueueLen: 100, IdleSleep: time.Millisecond}, obs)
	p.Start(1)

	for i := 0; i < 50; i++ {
		if !p.Submit(&domain.Burst{ID: strconv.Itoa(i)}) {
			t.Fatalf("submit %d rejected", i)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	ids := proc.ids()
	if len(ids) != 50 {
		t.Fatalf("expected 50 processed bursts, got %d", len(ids))
	}
	for i, id := range ids {
		if id != strconv.Itoa(i) {
			t.Fatalf("burst %d processed out of order: %s", i, id)
		}
	}
}

func TestPipelineRecordsProcessorErrorsAsDrops(t *testing.T) {
	proc := &recordingProcessor{err: domain.ErrFeatureExtraction}
	obs := &mockObs{}
	p := New(queue.NewMemQueue(4), proc, ports.Policy{IdleSleep: time.Millisecond}, obs)
	p.Start(1)
	p.Submit(&domain.Burst{ID: "bad"})

	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	drops := obs.dropsSnapshot()
	if len(drops) != 1 || !errors.Is(drops[0], domain.ErrFeatureExtraction) {
		t.Fatalf("expected one feature extraction drop, got %v", drops)
	}
}

func TestPipelineRejectsAfterStop(t *testing.T) {
	obs := &mockObs{}
	p := New(queue.NewMemQueue(4), &recordingProcessor{}, ports.Policy{}, obs)
	p.Start(1)
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if p.Submit(&domain.Burst{}) {
		t.Fatalf("expected submit after stop to be rejected")
	}
	if obs.counter("accel_queue_dropped_total") != 1 {
		t.Fatalf("expected queue drop to be counted")
	}
}

func TestPipelineStopDeadlineCancelsProcessing(t *testing.T) {
	release := make(chan struct{})
	proc := &recordingProcessor{block: release}
	p := New(queue.NewMemQueue(4), proc, ports.Policy{IdleSleep: time.Millisecond}, &mockObs{})
	p.Start(1)
	p.Submit(&domain.Burst{ID: "slow"})

	for proc.started.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Stop(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	close(release)
}

func TestPipelineStopSweepsLateSubmit(t *testing.T) {
	q := &gatedQueue{BurstQueue: queue.NewMemQueue(4), entered: make(chan struct{}), release: make(chan struct{})}
	proc := &recordingProcessor{}
	p := New(q, proc, ports.Policy{IdleSleep: time.Millisecond}, &mockObs{})
	p.Start(1)

	submitted := make(chan bool)
	go func() { submitted <- p.Submit(&domain.Burst{ID: "late"}) }()
	<-q.entered

	stopped := make(chan error)
	go func() { stopped <- p.Stop(context.Background()) }()

	// Let the worker observe the stop with an empty queue before the
	// enqueue lands.
	time.Sleep(20 * time.Millisecond)
	close(q.release)

	if !<-submitted {
		t.Fatalf("expected submit to succeed")
	}
	if err := <-stopped; err != nil {
		t.Fatalf("stop: %v", err)
	}
	if ids := proc.ids(); len(ids) != 1 || ids[0] != "late" {
		t.Fatalf("expected late burst to be processed, got %v", ids)
	}
}

// gatedQueue holds Enqueue until release is closed.
type gatedQueue struct {
	ports.BurstQueue
	entered chan struct{}
	release chan struct{}
}

func (g *gatedQueue) Enqueue(b *domain.Burst) bool {
	close(g.entered)
	<-g.release
	return g.BurstQueue.Enqueue(b)
}

type recordingProcessor struct {
	mu      sync.Mutex
	seen    []string
	err     error
	block   chan struct{}
	started atomic.Int32
}

func (r *recordingProcessor) Mode() string { return "test" }

func (r *recordingProcessor) Process(ctx context.Context, b *domain.Burst) error {
	r.started.Add(1)
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	r.seen = append(r.seen, b.ID)
	r.mu.Unlock()
	return r.err
}

func (r *recordingProcessor) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

type mockQueue struct {
	failures   int32
	failAlways bool
	calls      int
}

func (m *mockQueue) Enqueue(*domain.Burst) bool {
	m.calls++
	if m.failAlways {
		return false
	}
	if atomic.LoadInt32(&m.failures) > 0 {
		atomic.AddInt32(&m.failures, -1)
		return false
	}
	return true
}

func (m *mockQueue) DequeueBatch(int) []*domain.Burst { return nil }
func (m *mockQueue) Len() int                         { return 0 }

type mockObs struct {
	mu       sync.Mutex
	errors   []error
	drops    []error
	infos    []string
	counters map[string]float64
	gauges   map[string]float64
}

func (m *mockObs) LogInfo(msg string, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockObs) LogError(_ string, err error, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, err)
}

func (m *mockObs) LogCritical(string, error, ...ports.Field) {}
func (m *mockObs) Observe(string, float64)                   {}

func (m *mockObs) IncCounter(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = map[string]float64{}
	}
	m.counters[name] += v
}

func (m *mockObs) SetGauge(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gauges == nil {
		m.gauges = map[string]float64{}
	}
	m.gauges[name] = v
}

func (m *mockObs) RecordDrop(_ *domain.Burst, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drops = append(m.drops, err)
}

func (m *mockObs) counter(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func (m *mockObs) gauge(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gauges[name]
}

func (m *mockObs) errorsSnapshot() []error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]error(nil), m.errors...)
}

func (m *mockObs) dropsSnapshot() []error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]error(nil), m.drops...)
}
