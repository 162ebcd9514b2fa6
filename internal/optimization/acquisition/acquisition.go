// Package acquisition provides the scoring functions that trade off
// exploitation (low predicted mean) against exploration (high
// predictive uncertainty).
//
// Sign convention: Score is always a "higher is better" quantity and
// the proposer maximizes it. Components that prefer minimization
// negate the score internally.
package acquisition

import (
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/MechCoder/BlackBox/internal/optimization"
)

// Function scores a candidate point from the surrogate's prediction.
type Function interface {
	// Score rates a candidate given the predicted mean, the predicted
	// standard deviation and the best (lowest) observed value. Higher
	// is more promising. Must be deterministic and finite, including
	// at std == 0.
	Score(mean, std, best float64) float64

	// NeedsUncertainty reports whether the function is meaningless
	// without a predictive standard deviation. Checked against the
	// surrogate at configuration time.
	NeedsUncertainty() bool

	// Name returns the canonical short name.
	Name() string
}

// ExpectedImprovement is the closed-form EI under the surrogate's
// Gaussian assumption. Xi is a minimum-improvement margin that
// discourages negligible expected gains.
type ExpectedImprovement struct {
	Xi float64
}

// Score returns improvement*Φ(z) + std*φ(z) with
// z = improvement/std, and exactly 0 when std == 0.
func (f ExpectedImprovement) Score(mean, std, best float64) float64 {
	if std <= 0 {
		return 0
	}
	improvement := best - mean - f.Xi
	z := improvement / std
	norm := distuv.UnitNormal
	return improvement*norm.CDF(z) + std*norm.Prob(z)
}

// NeedsUncertainty is true: EI is undefined without a std.
func (f ExpectedImprovement) NeedsUncertainty() bool { return true }

// Name returns "ei".
func (f ExpectedImprovement) Name() string { return "ei" }

// ProbabilityOfImprovement scores the probability of beating the best
// observed value by at least Xi.
type ProbabilityOfImprovement struct {
	Xi float64
}

// Score returns Φ((best - mean - xi)/std), and exactly 0 when
// std == 0.
func (f ProbabilityOfImprovement) Score(mean, std, best float64) float64 {
	if std <= 0 {
		return 0
	}
	return distuv.UnitNormal.CDF((best - mean - f.Xi) / std)
}

// NeedsUncertainty is true: PI is undefined without a std.
func (f ProbabilityOfImprovement) NeedsUncertainty() bool { return true }

// Name returns "pi".
func (f ProbabilityOfImprovement) Name() string { return "pi" }

// LowerConfidenceBound scores -(mean - kappa*std), the lower
// confidence bound recast as a maximization score. Kappa controls
// exploration; kappa == 0 is pure exploitation.
type LowerConfidenceBound struct {
	Kappa float64
}

// Score returns -(mean - kappa*std); at std == 0 this is -mean.
func (f LowerConfidenceBound) Score(mean, std, _ float64) float64 {
	return -(mean - f.Kappa*std)
}

// NeedsUncertainty is false only for pure exploitation (kappa == 0).
func (f LowerConfidenceBound) NeedsUncertainty() bool { return f.Kappa != 0 }

// Name returns "lcb".
func (f LowerConfidenceBound) Name() string { return "lcb" }

// New builds an acquisition function by name ("ei", "pi" or "lcb").
// Xi applies to EI/PI, kappa to LCB.
func New(name string, xi, kappa float64) (Function, error) {
	switch name {
	case "ei":
		return ExpectedImprovement{Xi: xi}, nil
	case "pi":
		return ProbabilityOfImprovement{Xi: xi}, nil
	case "lcb":
		return LowerConfidenceBound{Kappa: kappa}, nil
	default:
		return nil, optimization.Ef(optimization.KindConfiguration, "unknown acquisition function %q", name).WithComponent("acquisition")
	}
}
