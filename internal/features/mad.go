// Package features reduces a raw accelerometer burst to a fixed-size feature
// vector: the median absolute deviation of each axis.
package features

import (
	"fmt"
	"math"
	"slices"

	"github.com/ghalamif/accelsentry/internal/domain"
)

// Dim is the length of the vectors produced by Extract.
const Dim = 3

// Options tune extraction. The zero value uses the whole burst, no scaling and
// the plain (unscaled) MAD.
type Options struct {
	// MaxMeasurements truncates the burst to its first N ticks. 0 keeps all.
	MaxMeasurements int
	// Scale multiplies every sample before the MAD is computed, e.g. for unit
	// conversion. 0 is treated as 1.
	Scale float64
	// NormalScale multiplies the resulting MAD. 1.4826 makes the MAD a
	// consistent estimator of the standard deviation for normal data. 0 is
	// treated as 1.
	NormalScale float64
}

// Extract returns the per-axis MAD of b after truncation and scaling.
func Extract(b *domain.Burst, opts Options) (domain.FeatureVector, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: nil burst", domain.ErrFeatureExtraction)
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFeatureExtraction, err)
	}
	if opts.MaxMeasurements < 0 {
		return nil, fmt.Errorf("%w: negative max measurements %d", domain.ErrFeatureExtraction, opts.MaxMeasurements)
	}

	n := b.Len()
	if opts.MaxMeasurements > 0 && opts.MaxMeasurements < n {
		n = opts.MaxMeasurements
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: empty burst", domain.ErrFeatureExtraction)
	}

	scale := opts.Scale
	if scale == 0 {
		scale = 1
	}
	normal := opts.NormalScale
	if normal == 0 {
		normal = 1
	}

	out := make(domain.FeatureVector, 0, Dim)
	buf := make([]float64, n)
	for _, axis := range [Dim][]float64{b.X, b.Y, b.Z} {
		for i, v := range axis[:n] {
			buf[i] = v * scale
		}
		mad := normal * madInPlace(buf)
		if math.IsNaN(mad) || math.IsInf(mad, 0) {
			return nil, fmt.Errorf("%w: non-finite feature value", domain.ErrFeatureExtraction)
		}
		out = append(out, mad)
	}
	return out, nil
}

// Median returns the median of vals without modifying it. Even-length input
// yields the mean of the two middle values. Empty input yields NaN.
func Median(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	return medianInPlace(slices.Clone(vals))
}

// MedianAbsDeviation returns median(|v - median(vals)|) without modifying vals.
func MedianAbsDeviation(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	return madInPlace(slices.Clone(vals))
}

// headroom keeps v - med finite. Dividing by a power of two is exact.
const headroom = 4

// madInPlace reorders and overwrites vals.
func madInPlace(vals []float64) float64 {
	factor := 1.0
	if maxAbs(vals) > math.MaxFloat64/headroom {
		factor = headroom
		for i := range vals {
			vals[i] /= headroom
		}
	}
	med := medianInPlace(vals)
	for i, v := range vals {
		vals[i] = math.Abs(v - med)
	}
	return medianInPlace(vals) * factor
}

func maxAbs(vals []float64) float64 {
	m := 0.0
	for _, v := range vals {
		m = max(m, math.Abs(v))
	}
	return m
}

// medianInPlace sorts vals.
func medianInPlace(vals []float64) float64 {
	slices.Sort(vals)
	n := len(vals)
	if n%2 == 0 {
		return vals[n/2-1]/2 + vals[n/2]/2
	}
	return vals[n/2]
}
