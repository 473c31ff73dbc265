package domain

import (
	"fmt"
	"time"
)

// Burst is one window of 3-axis accelerometer ticks pushed by a sensor node.
type Burst struct {
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"received_at"`
	X          []float64 `json:"x"`
	Y          []float64 `json:"y"`
	Z          []float64 `json:"z"`
}

// Len returns the number of ticks. Callers should Validate first.
func (b *Burst) Len() int {
	if b == nil {
		return 0
	}
	return len(b.X)
}

// Validate checks that all three axes carry the same number of ticks.
func (b *Burst) Validate() error {
	if b == nil {
		return fmt.Errorf("burst is nil")
	}
	if len(b.X) != len(b.Y) || len(b.X) != len(b.Z) {
		return fmt.Errorf("axis length mismatch: x=%d y=%d z=%d", len(b.X), len(b.Y), len(b.Z))
	}
	return nil
}

// FeatureVector is the per-axis summary of a burst, axis order x, y, z.
type FeatureVector []float64

// Detection is the outcome of scoring a single burst.
type Detection struct {
	BurstID    string        `json:"burst_id"`
	ReceivedAt time.Time     `json:"received_at"`
	Features   FeatureVector `json:"features"`
	Distance   float64       `json:"distance"`
	Threshold  float64       `json:"threshold"`
	Anomaly    bool          `json:"anomaly"`
}
