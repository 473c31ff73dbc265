package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/accelsentry/internal/domain"
	"github.com/ghalamif/accelsentry/internal/features"
)

func TestScoreBoundaryIsNotAnomalous(t *testing.T) {
	m := &domain.GaussianModel{Mean: []float64{1}, Covariance: [][]float64{{4}}}
	s, err := NewScorer(m, 3.0)
	require.NoError(t, err)

	r, err := s.Score(domain.FeatureVector{7})
	require.NoError(t, err)
	assert.Equal(t, 3.0, r.Distance)
	assert.False(t, r.Anomaly, "distance equal to threshold is normal")

	r, err = s.Score(domain.FeatureVector{7.5})
	require.NoError(t, err)
	assert.True(t, r.Anomaly)
}

func TestScoreMatchesExplicitInverse(t *testing.T) {
	m := &domain.GaussianModel{
		Mean: []float64{0.012, 0.007, 0.005},
		Covariance: [][]float64{
			{6.0e-7, 9.0e-8, 4.0e-8},
			{9.0e-8, 5.0e-7, 1.0e-8},
			{4.0e-8, 1.0e-8, 3.2e-7},
		},
	}
	s, err := NewScorer(m, DefaultThreshold)
	require.NoError(t, err)

	f := domain.FeatureVector{0.0135, 0.0062, 0.0061}
	r, err := s.Score(f)
	require.NoError(t, err)

	want := math.Sqrt(quadForm(t, f, m))
	assert.InDelta(t, want, r.Distance, 1e-9*want)
}

func TestExtractThenScoreAgainstOwnMeanIsZero(t *testing.T) {
	b := &domain.Burst{
		X: []float64{0.1, 0.3, -0.2, 0.05, 0.4},
		Y: []float64{1.0, 1.1, 0.9, 1.05, 0.95},
		Z: []float64{9.8, 9.7, 9.9, 9.81, 9.79},
	}
	fv, err := features.Extract(b, features.Options{})
	require.NoError(t, err)

	m := &domain.GaussianModel{
		Mean:       append([]float64(nil), fv...),
		Covariance: [][]float64{{1, 0, 0}, {0, 2, 0}, {0, 0, 3}},
	}
	s, err := NewScorer(m, DefaultThreshold)
	require.NoError(t, err)

	r, err := s.Score(fv)
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.Distance)
	assert.False(t, r.Anomaly)
}

func TestNewScorerRejectsSingularCovariance(t *testing.T) {
	m := &domain.GaussianModel{
		Mean:       []float64{0, 0},
		Covariance: [][]float64{{1, 2}, {2, 4}},
	}
	_, err := NewScorer(m, DefaultThreshold)
	require.ErrorIs(t, err, domain.ErrModel)
}

func TestNewScorerRejectsAsymmetricCovariance(t *testing.T) {
	m := &domain.GaussianModel{
		Mean:       []float64{0, 0},
		Covariance: [][]float64{{1, 0.5}, {0, 1}},
	}
	_, err := NewScorer(m, DefaultThreshold)
	require.ErrorIs(t, err, domain.ErrModel)
}

func TestNewScorerRejectsShapeMismatch(t *testing.T) {
	m := &domain.GaussianModel{
		Mean:       []float64{0, 0, 0},
		Covariance: [][]float64{{1, 0}, {0, 1}},
	}
	_, err := NewScorer(m, DefaultThreshold)
	require.ErrorIs(t, err, domain.ErrModel)
}

func TestScoreRejectsDimensionMismatch(t *testing.T) {
	m := &domain.GaussianModel{Mean: []float64{0}, Covariance: [][]float64{{1}}}
	s, err := NewScorer(m, DefaultThreshold)
	require.NoError(t, err)

	_, err = s.Score(domain.FeatureVector{1, 2, 3})
	require.ErrorIs(t, err, domain.ErrModel)
}

func TestMahalanobisHelper(t *testing.T) {
	m := &domain.GaussianModel{Mean: []float64{1, 1}, Covariance: [][]float64{{1, 0}, {0, 1}}}
	d, err := Mahalanobis(domain.FeatureVector{4, 5}, m)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, d, 1e-12)
}

// quadForm computes dᵀ Σ⁻¹ d for a 3x3 covariance via the adjugate.
func quadForm(t *testing.T, f domain.FeatureVector, m *domain.GaussianModel) float64 {
	t.Helper()
	c := m.Covariance
	det := c[0][0]*(c[1][1]*c[2][2]-c[1][2]*c[2][1]) -
		c[0][1]*(c[1][0]*c[2][2]-c[1][2]*c[2][0]) +
		c[0][2]*(c[1][0]*c[2][1]-c[1][1]*c[2][0])
	require.NotZero(t, det)

	inv := [3][3]float64{
		{c[1][1]*c[2][2] - c[1][2]*c[2][1], c[0][2]*c[2][1] - c[0][1]*c[2][2], c[0][1]*c[1][2] - c[0][2]*c[1][1]},
		{c[1][2]*c[2][0] - c[1][0]*c[2][2], c[0][0]*c[2][2] - c[0][2]*c[2][0], c[0][2]*c[1][0] - c[0][0]*c[1][2]},
		{c[1][0]*c[2][1] - c[1][1]*c[2][0], c[0][1]*c[2][0] - c[0][0]*c[2][1], c[0][0]*c[1][1] - c[0][1]*c[1][0]},
	}
	var d [3]float64
	for i := range d {
		d[i] = f[i] - m.Mean[i]
	}
	var sum float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			sum += d[i] * inv[i][j] / det * d[j]
		}
	}
	return sum
}
