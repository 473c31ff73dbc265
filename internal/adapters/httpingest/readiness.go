package httpingest

import "sync/atomic"

// Readiness tells the sensor node whether bursts will be accepted. It starts
// false, is raised once the listener is bound and lowered when shutdown begins.
type Readiness struct {
	ready atomic.Bool
}

func (r *Readiness) MarkReady()    { r.ready.Store(true) }
func (r *Readiness) MarkDraining() { r.ready.Store(false) }
func (r *Readiness) Ready() bool   { return r.ready.Load() }

// Body returns the wire form of the flag: "1" or "0".
func (r *Readiness) Body() []byte {
	if r.Ready() {
		return []byte("1")
	}
	return []byte("0")
}
