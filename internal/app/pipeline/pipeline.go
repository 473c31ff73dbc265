package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ghalamif/accelsentry/internal/adapters/observability"
	"github.com/ghalamif/accelsentry/internal/domain"
	"github.com/ghalamif/accelsentry/internal/ports"
)

const defaultBatchSize = 64

// Pipeline moves accepted bursts from the bounded queue to the active
// processor. Submit is called from HTTP handlers; workers drain the queue.
type Pipeline struct {
	q    ports.BurstQueue
	proc ports.Processor
	pol  ports.Policy
	obs  ports.Observability

	// gate spans the stopped check and the enqueue in Submit so Stop can
	// wait out submitters before it sweeps the queue.
	gate    sync.RWMutex
	stop    chan struct{}
	stopped atomic.Bool
	once    sync.Once
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

func New(q ports.BurstQueue, proc ports.Processor, pol ports.Policy, obs ports.Observability) *Pipeline {
	if pol.IdleSleep <= 0 {
		pol.IdleSleep = 5 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		q:      q,
		proc:   proc,
		pol:    pol,
		obs:    obs,
		stop:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit enqueues b according to the full-queue policy. It reports false when
// the burst was dropped or the pipeline is stopping.
func (p *Pipeline) Submit(b *domain.Burst) bool {
	p.gate.RLock()
	ok := !p.stopped.Load() && enqueueWithPolicy(p.q, b, p.pol, p.obs, p.stop)
	p.gate.RUnlock()
	if !ok {
		p.obs.IncCounter(observability.QueueDropped, 1)
		return false
	}
	p.obs.SetGauge(observability.QueueLength, float64(p.q.Len()))
	return true
}

// Start launches n workers. Values below one start a single worker.
func (p *Pipeline) Start(n int) {
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	p.obs.LogInfo("pipeline_started",
		ports.Field{Key: "mode", Value: p.proc.Mode()},
		ports.Field{Key: "workers", Value: n})
}

// Stop refuses new bursts, lets workers drain what is queued and waits for
// them. If ctx expires first, in-flight processing is cancelled.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.once.Do(func() {
		p.stopped.Store(true)
		close(p.stop)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.sweep(nil)
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		abandoned := p.sweep(ctx.Err())
		return fmt.Errorf("pipeline drain: %w (%d bursts abandoned)", ctx.Err(), abandoned)
	}
}

// sweep waits for in-flight submitters, then empties whatever they enqueued
// after the workers exited. With a nil cause the bursts are processed,
// otherwise they are recorded as drops. It returns the number dropped.
func (p *Pipeline) sweep(cause error) int {
	p.gate.Lock()
	defer p.gate.Unlock()

	dropped := 0
	for {
		batch := p.q.DequeueBatch(defaultBatchSize)
		if len(batch) == 0 {
			break
		}
		for _, b := range batch {
			if cause != nil {
				p.obs.RecordDrop(b, cause)
				dropped++
				continue
			}
			p.handle(b)
		}
	}
	p.obs.SetGauge(observability.QueueLength, 0)
	return dropped
}

func (p *Pipeline) worker() {
	defer p.wg.Done()
	for {
		batch := p.q.DequeueBatch(defaultBatchSize)
		if len(batch) == 0 {
			select {
			case <-p.stop:
				if p.q.Len() == 0 {
					return
				}
			case <-time.After(p.pol.IdleSleep):
			}
			continue
		}

		p.obs.SetGauge(observability.QueueLength, float64(p.q.Len()))
		for i, b := range batch {
			if p.ctx.Err() != nil {
				for _, rest := range batch[i:] {
					p.obs.RecordDrop(rest, p.ctx.Err())
				}
				break
			}
			p.handle(b)
		}
	}
}

func (p *Pipeline) handle(b *domain.Burst) {
	start := time.Now()
	err := p.proc.Process(p.ctx, b)
	p.obs.Observe(observability.ProcessLatency, time.Since(start).Seconds())
	if err != nil {
		p.obs.RecordDrop(b, err)
	}
}

func enqueueWithPolicy(q ports.BurstQueue, b *domain.Burst, pol ports.Policy, obs ports.Observability, stop <-chan struct{}) bool {
	sleep := pol.IdleSleep
	if sleep <= 0 {
		sleep = 5 * time.Millisecond
	}

	for {
		if ok := q.Enqueue(b); ok {
			return true
		}

		switch pol.OnQueueFull {
		case "block":
			select {
			case <-stop:
				obs.LogError("queue_full_drop", fmt.Errorf("pipeline stopping with full queue"))
				return false
			case <-time.After(sleep):
			}
		case "drop", "":
			obs.LogError("queue_full_drop", fmt.Errorf("queue length exceeded capacity %d", pol.MaxQueueLen),
				ports.Field{Key: "burst_id", Value: b.ID})
			return false
		default:
			obs.LogError("queue_policy_invalid", fmt.Errorf("policy=%s", pol.OnQueueFull))
			return false
		}
	}
}
