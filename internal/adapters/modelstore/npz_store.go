// Package modelstore reads and writes the Gaussian model archive produced by
// the offline trainer: a NumPy .npz file holding model_mu and model_cov.
package modelstore

import (
	"fmt"
	"os"
	"strings"

	"github.com/sbinet/npyio/npy"
	"github.com/sbinet/npyio/npz"
	"gonum.org/v1/gonum/mat"

	"github.com/ghalamif/accelsentry/internal/domain"
)

const (
	MeanKey       = "model_mu"
	CovarianceKey = "model_cov"
)

// Load reads a model archive. Every failure wraps domain.ErrModelLoad.
func Load(path string) (*domain.GaussianModel, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelLoad, err)
	}

	r, err := npz.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrModelLoad, path, err)
	}
	defer r.Close()

	mu, muShape, err := readArray(r, MeanKey)
	if err != nil {
		return nil, err
	}
	cov, covShape, err := readArray(r, CovarianceKey)
	if err != nil {
		return nil, err
	}

	model, err := assemble(mu, muShape, cov, covShape)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrModelLoad, path, err)
	}
	return model, nil
}

// Save writes m in the layout Load expects.
func Save(path string, m *domain.GaussianModel) error {
	if err := m.Validate(); err != nil {
		return err
	}
	n := m.Dim()
	cov := mat.NewDense(n, n, nil)
	for i, row := range m.Covariance {
		cov.SetRow(i, row)
	}

	w, err := npz.Create(path)
	if err != nil {
		return err
	}
	if err := w.Write(MeanKey, append([]float64(nil), m.Mean...)); err != nil {
		_ = w.Close()
		return fmt.Errorf("write %s: %w", MeanKey, err)
	}
	if err := w.Write(CovarianceKey, cov); err != nil {
		_ = w.Close()
		return fmt.Errorf("write %s: %w", CovarianceKey, err)
	}
	return w.Close()
}

func readArray(r *npz.Reader, name string) ([]float64, []int, error) {
	key, hdr := lookup(r, name)
	if hdr == nil {
		return nil, nil, fmt.Errorf("%w: array %q not found", domain.ErrModelLoad, name)
	}

	var flat []float64
	switch typ := strings.TrimLeft(hdr.Descr.Type, "<>|="); typ {
	case "f8":
		if err := r.Read(key, &flat); err != nil {
			return nil, nil, fmt.Errorf("%w: read %s: %v", domain.ErrModelLoad, name, err)
		}
	case "f4":
		var f32 []float32
		if err := r.Read(key, &f32); err != nil {
			return nil, nil, fmt.Errorf("%w: read %s: %v", domain.ErrModelLoad, name, err)
		}
		flat = make([]float64, len(f32))
		for i, v := range f32 {
			flat[i] = float64(v)
		}
	default:
		return nil, nil, fmt.Errorf("%w: array %q has unsupported dtype %q", domain.ErrModelLoad, name, hdr.Descr.Type)
	}

	shape := append([]int(nil), hdr.Descr.Shape...)
	if hdr.Descr.Fortran && len(shape) == 2 {
		flat = transpose(flat, shape[0], shape[1])
	}
	return flat, shape, nil
}

// lookup resolves name with or without the .npy member suffix.
func lookup(r *npz.Reader, name string) (string, *npy.Header) {
	for _, key := range []string{name, name + ".npy"} {
		if hdr := r.Header(key); hdr != nil {
			return key, hdr
		}
	}
	return "", nil
}

// assemble checks shapes and builds the model. A one-feature model may store
// both arrays as 0-d scalars, which is what numpy.cov returns for 1-D input.
func assemble(mu []float64, muShape []int, cov []float64, covShape []int) (*domain.GaussianModel, error) {
	var n int
	switch len(muShape) {
	case 0:
		n = 1
	case 1:
		n = muShape[0]
	default:
		return nil, fmt.Errorf("%s must be 1-D, got shape %v", MeanKey, muShape)
	}
	if n == 0 || len(mu) != n {
		return nil, fmt.Errorf("%s has %d values for shape %v", MeanKey, len(mu), muShape)
	}

	switch len(covShape) {
	case 0:
		if n != 1 {
			return nil, fmt.Errorf("%s is a scalar but %s has %d entries", CovarianceKey, MeanKey, n)
		}
	case 2:
		if covShape[0] != n || covShape[1] != n {
			return nil, fmt.Errorf("%s shape %v does not match %s length %d", CovarianceKey, covShape, MeanKey, n)
		}
	default:
		return nil, fmt.Errorf("%s must be 2-D, got shape %v", CovarianceKey, covShape)
	}
	if len(cov) != n*n {
		return nil, fmt.Errorf("%s has %d values, want %d", CovarianceKey, len(cov), n*n)
	}

	m := &domain.GaussianModel{
		Mean:       mu,
		Covariance: make([][]float64, n),
	}
	for i := range m.Covariance {
		m.Covariance[i] = cov[i*n : (i+1)*n : (i+1)*n]
	}
	return m, m.Validate()
}

func transpose(flat []float64, rows, cols int) []float64 {
	out := make([]float64, len(flat))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out[i*cols+j] = flat[j*rows+i]
		}
	}
	return out
}
