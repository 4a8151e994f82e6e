// Package noise implements the named diagonal Gaussian noise models used
// by factors in the pose graph (spec.md #4.2).
package noise

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Model is a diagonal Gaussian noise model: a strictly-positive sigma
// per dimension. The optimizer uses it to whiten factor residuals;
// Covariance exposes the matching diagonal covariance matrix.
type Model struct {
	name  string
	sigma []float64
}

// New builds a Model, validating that every sigma is strictly positive
// (spec.md #4.2 invariant).
func New(name string, sigma []float64) (Model, error) {
	if len(sigma) == 0 {
		return Model{}, errors.Errorf("noise model %q: sigma must have at least one dimension", name)
	}
	for i, s := range sigma {
		if s <= 0 {
			return Model{}, errors.Errorf("noise model %q: sigma[%d]=%v is not strictly positive", name, i, s)
		}
	}
	cp := make([]float64, len(sigma))
	copy(cp, sigma)
	return Model{name: name, sigma: cp}, nil
}

// Name returns the model's registry name.
func (m Model) Name() string { return m.name }

// Dim returns the noise model's dimensionality.
func (m Model) Dim() int { return len(m.sigma) }

// Sigma returns a copy of the per-dimension standard deviations.
func (m Model) Sigma() []float64 {
	cp := make([]float64, len(m.sigma))
	copy(cp, m.sigma)
	return cp
}

// Whiten divides a residual vector element-wise by sigma, converting a
// raw (unwhitened) residual into a whitened one used inside the
// optimizer's cost function. The residual gate in the graph updater
// (spec.md #4.6) deliberately reads the unwhitened residual instead;
// callers should not call Whiten before that check.
func (m Model) Whiten(residual []float64) ([]float64, error) {
	if len(residual) != len(m.sigma) {
		return nil, errors.Errorf("noise model %q: residual has dim %d, want %d", m.name, len(residual), len(m.sigma))
	}
	out := make([]float64, len(residual))
	for i, r := range residual {
		out[i] = r / m.sigma[i]
	}
	return out, nil
}

// Covariance returns the diagonal covariance matrix (sigma^2 on the
// diagonal) backing this noise model, in the same *mat.Dense shape used
// throughout the optimizer (grounded on control/kalman_filter.go's
// covariance-as-*mat.Dense idiom).
func (m Model) Covariance() *mat.Dense {
	n := len(m.sigma)
	cov := mat.NewDense(n, n, nil)
	for i, s := range m.sigma {
		cov.Set(i, i, s*s)
	}
	return cov
}

// Registry holds the five named noise models from spec.md #4.2, all
// configured from tsconfig.Config.
type Registry struct {
	Odometry      Model
	Prior         Model
	BearingRange  Model
	Point         Model
	LoopClosure   Model
}

// NewRegistry builds a Registry from raw sigma triples/pairs, as decoded
// from configuration (spec.md #6 noise_models.*).
func NewRegistry(odometry, prior, bearingRange, point, loopClosure []float64) (*Registry, error) {
	var reg Registry
	var err error
	if reg.Odometry, err = New("odometryNoise", odometry); err != nil {
		return nil, err
	}
	if reg.Prior, err = New("priorNoise", prior); err != nil {
		return nil, err
	}
	if reg.BearingRange, err = New("bearingRangeNoise", bearingRange); err != nil {
		return nil, err
	}
	if reg.Point, err = New("pointNoise", point); err != nil {
		return nil, err
	}
	if reg.LoopClosure, err = New("loopClosureNoise", loopClosure); err != nil {
		return nil, err
	}
	return &reg, nil
}
