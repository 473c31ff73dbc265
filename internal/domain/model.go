package domain

import "fmt"

// GaussianModel describes "normal" behaviour as a mean feature vector and its
// covariance. It is fitted offline and never mutated by the service.
type GaussianModel struct {
	Mean       []float64
	Covariance [][]float64
}

// Dim returns the feature dimensionality of the model.
func (m *GaussianModel) Dim() int {
	if m == nil {
		return 0
	}
	return len(m.Mean)
}

// Validate checks that the covariance is square and matches the mean.
func (m *GaussianModel) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: model is nil", ErrModel)
	}
	n := len(m.Mean)
	if n == 0 {
		return fmt.Errorf("%w: empty mean vector", ErrModel)
	}
	if len(m.Covariance) != n {
		return fmt.Errorf("%w: covariance has %d rows, mean has %d entries", ErrModel, len(m.Covariance), n)
	}
	for i, row := range m.Covariance {
		if len(row) != n {
			return fmt.Errorf("%w: covariance row %d has %d columns, want %d", ErrModel, i, len(row), n)
		}
	}
	return nil
}
