package surrogate

import (
	"gonum.org/v1/gonum/mat"

	"github.com/MechCoder/BlackBox/internal/optimization"
)

// Estimator is the minimal contract for a user-supplied regression
// component.
type Estimator interface {
	Fit(X *mat.Dense, y *mat.VecDense) error
	Predict(X *mat.Dense) (*mat.VecDense, error)
}

// UncertaintyEstimator is an Estimator that can also report a
// per-point standard deviation.
type UncertaintyEstimator interface {
	Estimator
	PredictWithStd(X *mat.Dense) (mean, std *mat.VecDense, err error)
}

// Custom adapts an arbitrary user estimator to the Surrogate
// contract. When the estimator cannot report uncertainty, Predict
// returns a zero std and ProvidesUncertainty is false, which makes
// uncertainty-hungry acquisition functions fail at configuration
// time rather than at evaluation time.
type Custom struct {
	est Estimator
}

// NewCustom wraps a user estimator.
func NewCustom(est Estimator) (*Custom, error) {
	if est == nil {
		return nil, optimization.E(optimization.KindConfiguration, "estimator must not be nil").WithComponent("custom")
	}
	return &Custom{est: est}, nil
}

// Fit delegates to the wrapped estimator.
func (c *Custom) Fit(X *mat.Dense, y *mat.VecDense) error {
	if _, _, err := checkTrainingData(X, y); err != nil {
		return err
	}
	return c.est.Fit(X, y)
}

// Predict delegates to the wrapped estimator, substituting a zero std
// when it cannot report one.
func (c *Custom) Predict(X *mat.Dense) (*mat.VecDense, *mat.VecDense, error) {
	if ue, ok := c.est.(UncertaintyEstimator); ok {
		return ue.PredictWithStd(X)
	}
	mean, err := c.est.Predict(X)
	if err != nil {
		return nil, nil, err
	}
	return mean, mat.NewVecDense(mean.Len(), nil), nil
}

// SupportsGradient is false: nothing is known about the estimator's
// smoothness.
func (c *Custom) SupportsGradient() bool { return false }

// ProvidesUncertainty reports whether the wrapped estimator can
// produce a std.
func (c *Custom) ProvidesUncertainty() bool {
	_, ok := c.est.(UncertaintyEstimator)
	return ok
}
