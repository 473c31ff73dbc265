// Package scoring classifies feature vectors by their Mahalanobis distance
// from a fitted Gaussian model.
package scoring

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ghalamif/accelsentry/internal/domain"
)

// DefaultThreshold is the distance above which a burst is anomalous.
const DefaultThreshold = 9.0

// symmetryTol is the relative tolerance for cov[i][j] == cov[j][i].
const symmetryTol = 1e-9

// Result is the distance of one feature vector and its classification.
type Result struct {
	Distance float64
	Anomaly  bool
}

// Scorer holds a factorised covariance matrix so each Score call is a pair of
// triangular solves. It is safe for concurrent use.
type Scorer struct {
	mean      *mat.VecDense
	chol      mat.Cholesky
	dim       int
	threshold float64
}

// NewScorer validates m and factorises its covariance. A covariance that is
// asymmetric, singular or not positive definite is rejected with ErrModel.
func NewScorer(m *domain.GaussianModel, threshold float64) (*Scorer, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if threshold <= 0 || math.IsNaN(threshold) {
		return nil, fmt.Errorf("%w: threshold must be > 0, got %v", domain.ErrModel, threshold)
	}

	n := m.Dim()
	data := make([]float64, 0, n*n)
	for i, row := range m.Covariance {
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: covariance[%d][%d] is not finite", domain.ErrModel, i, j)
			}
			w := m.Covariance[j][i]
			if math.Abs(v-w) > symmetryTol*math.Max(1, math.Max(math.Abs(v), math.Abs(w))) {
				return nil, fmt.Errorf("%w: covariance is not symmetric at (%d,%d)", domain.ErrModel, i, j)
			}
			data = append(data, v)
		}
	}

	s := &Scorer{
		mean:      mat.NewVecDense(n, append([]float64(nil), m.Mean...)),
		dim:       n,
		threshold: threshold,
	}
	if ok := s.chol.Factorize(mat.NewSymDense(n, data)); !ok {
		return nil, fmt.Errorf("%w: covariance is singular or not positive definite", domain.ErrModel)
	}
	if c := s.chol.Cond(); c > mat.ConditionTolerance || math.IsInf(c, 0) {
		return nil, fmt.Errorf("%w: covariance is ill-conditioned (cond=%g)", domain.ErrModel, c)
	}
	return s, nil
}

// Dim returns the feature dimensionality the scorer expects.
func (s *Scorer) Dim() int { return s.dim }

// Threshold returns the configured anomaly threshold.
func (s *Scorer) Threshold() float64 { return s.threshold }

// Score computes sqrt((f-mean)ᵀ Σ⁻¹ (f-mean)) and compares it to the
// threshold with a strict greater-than.
func (s *Scorer) Score(f domain.FeatureVector) (Result, error) {
	if len(f) != s.dim {
		return Result{}, fmt.Errorf("%w: feature vector has %d entries, model expects %d", domain.ErrModel, len(f), s.dim)
	}

	d := mat.NewVecDense(s.dim, nil)
	d.SubVec(mat.NewVecDense(s.dim, append([]float64(nil), f...)), s.mean)

	var x mat.VecDense
	if err := s.chol.SolveVecTo(&x, d); err != nil {
		return Result{}, fmt.Errorf("%w: %v", domain.ErrModel, err)
	}

	// d·Σ⁻¹·d is non-negative in exact arithmetic; clamp rounding noise.
	dist := math.Sqrt(math.Max(mat.Dot(d, &x), 0))
	if math.IsNaN(dist) || math.IsInf(dist, 0) {
		return Result{}, fmt.Errorf("%w: non-finite distance", domain.ErrModel)
	}
	return Result{Distance: dist, Anomaly: dist > s.threshold}, nil
}

// Mahalanobis is a one-shot helper that factorises the model on every call.
func Mahalanobis(f domain.FeatureVector, m *domain.GaussianModel) (float64, error) {
	s, err := NewScorer(m, DefaultThreshold)
	if err != nil {
		return 0, err
	}
	r, err := s.Score(f)
	if err != nil {
		return 0, err
	}
	return r.Distance, nil
}
