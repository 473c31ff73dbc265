package accelsentry

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("accelsentry: channel sink closed")

// DetectionBatchSink is invoked with the detections produced by a worker.
type DetectionBatchSink func([]Detection) error

// NewCallbackSink adapts a DetectionBatchSink into a ResultSink so callers
// can plug arbitrary functions without defining structs.
func NewCallbackSink(name string, fn DetectionBatchSink) ResultSink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes detections via a channel; it returns the sink, the read-only channel,
// and a close function that the caller should invoke during shutdown.
func NewChannelSink(name string, buffer int) (ResultSink, <-chan []Detection, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan []Detection, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

type callbackSink struct {
	name string
	fn   DetectionBatchSink
}

func (s *callbackSink) WriteBatch(dets []Detection) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	if len(dets) == 0 {
		return nil
	}
	return s.fn(copyBatch(dets))
}

func (s *callbackSink) Name() string { return s.name }

type channelSink struct {
	name   string
	ch     chan []Detection
	closed chan struct{}
	mu     sync.RWMutex
	once   sync.Once
}

func (s *channelSink) WriteBatch(dets []Detection) error {
	if len(dets) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case s.ch <- copyBatch(dets):
		return nil
	}
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		// Wait for in-flight writers before closing the data channel.
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}

func copyBatch(dets []Detection) []Detection {
	out := make([]Detection, len(dets))
	for i, d := range dets {
		d.Features = slices.Clone(d.Features)
		out[i] = d
	}
	return out
}
