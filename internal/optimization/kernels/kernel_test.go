package kernels

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKernels(t *testing.T) map[string]Kernel {
	t.Helper()
	rbf, err := NewRBF(2.0, 1.5)
	require.NoError(t, err)
	matern, err := NewMatern52(2.0, 1.5)
	require.NoError(t, err)
	return map[string]Kernel{"rbf": rbf, "matern52": matern}
}

func TestKernelProperties(t *testing.T) {
	x := []float64{0.3, -1.2, 2.0}
	y := []float64{1.1, 0.0, -0.5}
	z := []float64{5.0, 5.0, 5.0}

	for name, k := range testKernels(t) {
		t.Run(name, func(t *testing.T) {
			// k(x, x) equals the signal variance.
			assert.InDelta(t, 2.0, k.Eval(x, x), 1e-12)

			// Symmetry.
			assert.InDelta(t, k.Eval(x, y), k.Eval(y, x), 1e-12)

			// Covariance decays with distance and stays positive.
			near := k.Eval(x, y)
			far := k.Eval(x, z)
			assert.Greater(t, near, far)
			assert.Greater(t, far, 0.0)
		})
	}
}

func TestRBFKnownValue(t *testing.T) {
	k, err := NewRBF(1.0, 1.0)
	require.NoError(t, err)

	// Unit distance: exp(-1/2).
	got := k.Eval([]float64{0}, []float64{1})
	assert.InDelta(t, math.Exp(-0.5), got, 1e-12)
}

func TestMatern52KnownValue(t *testing.T) {
	k, err := NewMatern52(1.0, 1.0)
	require.NoError(t, err)

	// r = 1: (1 + sqrt5 + 5/3) * exp(-sqrt5).
	sqrt5 := math.Sqrt(5)
	want := (1 + sqrt5 + 5.0/3.0) * math.Exp(-sqrt5)
	assert.InDelta(t, want, k.Eval([]float64{0}, []float64{1}), 1e-12)
}

func TestARDLengthScales(t *testing.T) {
	// A huge scale on the second coordinate makes it nearly
	// irrelevant.
	k, err := NewRBF(1.0, 1.0, 1e6)
	require.NoError(t, err)

	base := k.Eval([]float64{0, 0}, []float64{0, 0})
	moved := k.Eval([]float64{0, 0}, []float64{0, 100})
	assert.InDelta(t, base, moved, 1e-6)

	// Moving along the relevant coordinate still decays.
	assert.Less(t, k.Eval([]float64{0, 0}, []float64{3, 0}), base/2)
}

func TestSharedScaleBroadcast(t *testing.T) {
	iso, err := NewMatern52(1.0, 2.0)
	require.NoError(t, err)
	ard, err := NewMatern52(1.0, 2.0, 2.0, 2.0)
	require.NoError(t, err)

	x := []float64{0.1, 0.2, 0.3}
	y := []float64{-1.0, 0.5, 2.2}
	assert.InDelta(t, iso.Eval(x, y), ard.Eval(x, y), 1e-12)
}

func TestConstructorValidation(t *testing.T) {
	_, err := NewRBF(0, 1.0)
	assert.Error(t, err)
	_, err = NewRBF(1.0)
	assert.Error(t, err)
	_, err = NewMatern52(1.0, -0.5)
	assert.Error(t, err)
}

func TestSetHyperparameters(t *testing.T) {
	for name, k := range testKernels(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, k.SetHyperparameters([]float64{3.0, 0.5}))
			assert.Equal(t, []float64{3.0, 0.5}, k.Hyperparameters())
			assert.InDelta(t, 3.0, k.Eval([]float64{1}, []float64{1}), 1e-12)

			assert.Error(t, k.SetHyperparameters([]float64{3.0}))
			assert.Error(t, k.SetHyperparameters([]float64{-1, 0.5}))
			// A rejected update leaves the kernel untouched.
			assert.Equal(t, []float64{3.0, 0.5}, k.Hyperparameters())
		})
	}
}
