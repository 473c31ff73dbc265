package accelsentry

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ghalamif/accelsentry/internal/adapters/observability"
)

// ErrQueueFull indicates the queue rejected the burst according to policy.
var ErrQueueFull = errors.New("accelsentry: queue full")

// ErrNotReady is returned by Publish before Start or after Shutdown began.
var ErrNotReady = errors.New("accelsentry: runtime not ready")

// Publish feeds a burst into the pipeline without going through HTTP, for
// producers embedded in the same process (bridges, replays, simulators).
// Missing ID and ReceivedAt are filled in. Unlike the HTTP endpoint, Publish
// reports rejection to the caller.
func (r *Runtime) Publish(b Burst) error {
	if !r.ready.Ready() {
		return ErrNotReady
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}

	burst := &Burst{
		ID:         b.ID,
		ReceivedAt: b.ReceivedAt,
		X:          append([]float64(nil), b.X...),
		Y:          append([]float64(nil), b.Y...),
		Z:          append([]float64(nil), b.Z...),
	}
	if burst.ID == "" {
		burst.ID = uuid.NewString()
	}
	if burst.ReceivedAt.IsZero() {
		burst.ReceivedAt = time.Now()
	}

	r.obs.IncCounter(observability.BurstsReceived, 1)
	if !r.pipe.Submit(burst) {
		return ErrQueueFull
	}
	return nil
}
