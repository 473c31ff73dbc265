package features

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/accelsentry/internal/domain"
)

func burst(x, y, z []float64) *domain.Burst {
	return &domain.Burst{X: x, Y: y, Z: z}
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))
	assert.True(t, math.IsNaN(Median(nil)))

	in := []float64{3, 1, 2}
	Median(in)
	assert.Equal(t, []float64{3, 1, 2}, in, "input must not be reordered")
}

func TestMedianAbsDeviation(t *testing.T) {
	// median 2, deviations 1 1 0 0 2 4 7 -> median 1
	assert.Equal(t, 1.0, MedianAbsDeviation([]float64{1, 1, 2, 2, 4, 6, 9}))
	assert.Equal(t, 0.0, MedianAbsDeviation([]float64{5, 5, 5, 5}))
}

func TestExtractNearMaxFloat(t *testing.T) {
	big := math.MaxFloat64 / 1.5
	b := burst(
		[]float64{big, big},
		[]float64{-math.MaxFloat64, math.MaxFloat64},
		[]float64{math.MaxFloat64, -math.MaxFloat64},
	)

	fv, err := Extract(b, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, fv[0])
	assert.Equal(t, math.MaxFloat64, fv[1])
	assert.Equal(t, math.MaxFloat64, fv[2])

	assert.Equal(t, big, Median([]float64{big, big}))
	assert.Equal(t, math.MaxFloat64, MedianAbsDeviation([]float64{-math.MaxFloat64, math.MaxFloat64, -math.MaxFloat64, math.MaxFloat64}))
}

func TestExtractReturnsOneValuePerAxis(t *testing.T) {
	b := burst(
		[]float64{1, 1, 2, 2, 4, 6, 9},
		[]float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5},
		[]float64{-1, 0, 1, 2, 3, 4, 5},
	)

	fv, err := Extract(b, Options{})
	require.NoError(t, err)
	require.Len(t, fv, Dim)
	assert.Equal(t, 1.0, fv[0])
	assert.Equal(t, 0.0, fv[1], "constant axis has zero MAD")
	assert.Equal(t, 2.0, fv[2])
}

func TestExtractTruncates(t *testing.T) {
	vals := []float64{1, 2, 3, 100, 200}
	b := burst(vals, vals, vals)

	fv, err := Extract(b, Options{MaxMeasurements: 3})
	require.NoError(t, err)
	assert.Equal(t, domain.FeatureVector{1, 1, 1}, fv)

	// A burst shorter than the limit is used as-is.
	fv, err = Extract(b, Options{MaxMeasurements: 128})
	require.NoError(t, err)
	assert.Equal(t, domain.FeatureVector{2, 2, 2}, fv)
}

func TestExtractRejectsEmptyBurst(t *testing.T) {
	_, err := Extract(burst(nil, nil, nil), Options{})
	require.ErrorIs(t, err, domain.ErrFeatureExtraction)

	_, err = Extract(nil, Options{})
	require.ErrorIs(t, err, domain.ErrFeatureExtraction)
}

func TestExtractRejectsMismatchedAxes(t *testing.T) {
	_, err := Extract(burst([]float64{1, 2}, []float64{1}, []float64{1, 2}), Options{})
	require.ErrorIs(t, err, domain.ErrFeatureExtraction)
}

func TestExtractScaleEquivariance(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	x := make([]float64, 128)
	y := make([]float64, 128)
	z := make([]float64, 128)
	for i := range x {
		x[i] = rng.NormFloat64()
		y[i] = rng.NormFloat64() * 0.1
		z[i] = 1 + rng.NormFloat64()*0.01
	}
	b := burst(x, y, z)

	base, err := Extract(b, Options{})
	require.NoError(t, err)

	for _, k := range []float64{0.5, 2, 9.81, 1000} {
		scaled, err := Extract(b, Options{Scale: k})
		require.NoError(t, err)
		for i := range base {
			assert.InDelta(t, k*base[i], scaled[i], 1e-9*math.Max(1, k*base[i]), "axis %d, k=%v", i, k)
		}
	}
}

func TestExtractNormalScale(t *testing.T) {
	vals := []float64{1, 1, 2, 2, 4, 6, 9}
	fv, err := Extract(burst(vals, vals, vals), Options{NormalScale: 1.4826})
	require.NoError(t, err)
	assert.InDelta(t, 1.4826, fv[0], 1e-12)
}

func TestExtractDoesNotMutateBurst(t *testing.T) {
	x := []float64{3, 1, 2}
	b := burst(x, []float64{1, 2, 3}, []float64{1, 2, 3})
	_, err := Extract(b, Options{Scale: 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 2}, b.X)
}
