// Package kernels provides covariance functions for Gaussian Process
// surrogates. Both kernels support automatic relevance determination:
// one length scale per encoded coordinate, or a single shared scale.
package kernels

import (
	"fmt"
	"math"
)

// Kernel represents a positive-definite covariance function over
// encoded points.
type Kernel interface {
	// Eval computes the kernel value between two points x1 and x2.
	Eval(x1, x2 []float64) float64

	// Hyperparameters returns the current hyperparameters, signal
	// variance first, then the length scales.
	Hyperparameters() []float64

	// SetHyperparameters replaces the kernel's hyperparameters.
	SetHyperparameters(params []float64) error
}

func checkScales(signalVar float64, lengthScales []float64) error {
	if signalVar <= 0 {
		return fmt.Errorf("signal variance must be positive, got %v", signalVar)
	}
	if len(lengthScales) == 0 {
		return fmt.Errorf("at least one length scale is required")
	}
	for i, s := range lengthScales {
		if s <= 0 {
			return fmt.Errorf("length scale %d must be positive, got %v", i, s)
		}
	}
	return nil
}

// scaledSqDist computes sum_i ((x1_i - x2_i) / l_i)^2. A single length
// scale is applied to every coordinate.
func scaledSqDist(x1, x2, scales []float64) float64 {
	sum := 0.0
	for i := range x1 {
		s := scales[0]
		if len(scales) > 1 && i < len(scales) {
			s = scales[i]
		}
		diff := (x1[i] - x2[i]) / s
		sum += diff * diff
	}
	return sum
}

// RBF is the squared exponential kernel.
type RBF struct {
	signalVar    float64
	lengthScales []float64
}

// NewRBF creates an RBF kernel. Pass one length scale for an
// isotropic kernel or one per encoded coordinate for ARD.
func NewRBF(signalVar float64, lengthScales ...float64) (*RBF, error) {
	if err := checkScales(signalVar, lengthScales); err != nil {
		return nil, err
	}
	return &RBF{
		signalVar:    signalVar,
		lengthScales: append([]float64(nil), lengthScales...),
	}, nil
}

// Eval computes the RBF kernel value between x1 and x2.
func (k *RBF) Eval(x1, x2 []float64) float64 {
	return k.signalVar * math.Exp(-0.5*scaledSqDist(x1, x2, k.lengthScales))
}

// Hyperparameters returns the signal variance followed by the length
// scales.
func (k *RBF) Hyperparameters() []float64 {
	return append([]float64{k.signalVar}, k.lengthScales...)
}

// SetHyperparameters replaces the kernel's hyperparameters.
func (k *RBF) SetHyperparameters(params []float64) error {
	if len(params) < 2 {
		return fmt.Errorf("expected signal variance plus length scales, got %d values", len(params))
	}
	if err := checkScales(params[0], params[1:]); err != nil {
		return err
	}
	k.signalVar = params[0]
	k.lengthScales = append([]float64(nil), params[1:]...)
	return nil
}

// Matern52 is the Matérn kernel with smoothness 5/2, the default
// surrogate covariance: twice differentiable without the RBF's
// over-smooth extrapolation.
type Matern52 struct {
	signalVar    float64
	lengthScales []float64
}

// NewMatern52 creates a Matérn 5/2 kernel. Pass one length scale for
// an isotropic kernel or one per encoded coordinate for ARD.
func NewMatern52(signalVar float64, lengthScales ...float64) (*Matern52, error) {
	if err := checkScales(signalVar, lengthScales); err != nil {
		return nil, err
	}
	return &Matern52{
		signalVar:    signalVar,
		lengthScales: append([]float64(nil), lengthScales...),
	}, nil
}

// Eval computes the Matérn 5/2 kernel value between x1 and x2.
func (k *Matern52) Eval(x1, x2 []float64) float64 {
	r := math.Sqrt(scaledSqDist(x1, x2, k.lengthScales))
	sqrt5r := math.Sqrt(5) * r
	poly := 1.0 + sqrt5r + (5.0/3.0)*r*r
	return k.signalVar * poly * math.Exp(-sqrt5r)
}

// Hyperparameters returns the signal variance followed by the length
// scales.
func (k *Matern52) Hyperparameters() []float64 {
	return append([]float64{k.signalVar}, k.lengthScales...)
}

// SetHyperparameters replaces the kernel's hyperparameters.
func (k *Matern52) SetHyperparameters(params []float64) error {
	if len(params) < 2 {
		return fmt.Errorf("expected signal variance plus length scales, got %d values", len(params))
	}
	if err := checkScales(params[0], params[1:]); err != nil {
		return err
	}
	k.signalVar = params[0]
	k.lengthScales = append([]float64(nil), params[1:]...)
	return nil
}
