package surrogate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/MechCoder/BlackBox/internal/optimization"
	"github.com/MechCoder/BlackBox/internal/optimization/kernels"
)

func newTestGP(t *testing.T, noiseVar float64) *GP {
	t.Helper()
	kernel, err := kernels.NewMatern52(1.0, 1.0)
	require.NoError(t, err)
	gp, err := NewGP(kernel, noiseVar, nil)
	require.NoError(t, err)
	return gp
}

// quadratic training set over [-2, 2].
func quadraticData() (*mat.Dense, *mat.VecDense) {
	xs := []float64{-2, -1.5, -1, -0.5, 0, 0.5, 1, 1.5, 2}
	X := mat.NewDense(len(xs), 1, nil)
	y := mat.NewVecDense(len(xs), nil)
	for i, x := range xs {
		X.Set(i, 0, x)
		y.SetVec(i, x*x)
	}
	return X, y
}

func TestNewGPValidation(t *testing.T) {
	_, err := NewGP(nil, 0, nil)
	assert.True(t, optimization.IsKind(err, optimization.KindConfiguration))

	kernel, err := kernels.NewRBF(1.0, 1.0)
	require.NoError(t, err)
	_, err = NewGP(kernel, -1, nil)
	assert.True(t, optimization.IsKind(err, optimization.KindConfiguration))
}

func TestGPInterpolatesTrainingPoints(t *testing.T) {
	gp := newTestGP(t, 1e-8)
	X, y := quadraticData()
	require.NoError(t, gp.Fit(X, y))

	mean, std, err := gp.Predict(X)
	require.NoError(t, err)

	for i := 0; i < y.Len(); i++ {
		assert.InDelta(t, y.AtVec(i), mean.AtVec(i), 1e-3, "mean at training point %d", i)
		assert.Less(t, std.AtVec(i), 1e-2, "std at training point %d", i)
	}
}

// The predicted variance must equal kss - k*^T K^-1 k*, checked
// against an independent solve. A wrong reduction here (for instance
// squaring the full solve, which yields k*^T K^-2 k*) collapses the
// variance to ~0 near the data and starves EI/PI of exploitation.
func TestGPPosteriorVarianceMatchesDirectSolve(t *testing.T) {
	const noiseVar = 1e-6
	kernel, err := kernels.NewMatern52(1.0, 1.0)
	require.NoError(t, err)
	gp, err := NewGP(kernel, noiseVar, nil)
	require.NoError(t, err)

	xs := []float64{-2, -1, 0, 1, 2}
	n := len(xs)
	X := mat.NewDense(n, 1, nil)
	y := mat.NewVecDense(n, nil)
	for i, x := range xs {
		X.Set(i, 0, x)
		y.SetVec(i, math.Sin(x))
	}
	require.NoError(t, gp.Fit(X, y))

	query := []float64{0.5}
	_, std, err := gp.Predict(mat.NewDense(1, 1, query))
	require.NoError(t, err)

	K := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := kernel.Eval([]float64{xs[i]}, []float64{xs[j]})
			if i == j {
				v += noiseVar
			}
			K.SetSym(i, j, v)
		}
	}
	kstar := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		kstar.SetVec(i, kernel.Eval(query, []float64{xs[i]}))
	}
	var chol mat.Cholesky
	require.True(t, chol.Factorize(K))
	sol := mat.NewVecDense(n, nil)
	require.NoError(t, chol.SolveVecTo(sol, kstar))
	want := kernel.Eval(query, query) + noiseVar - mat.Dot(kstar, sol)

	variance := std.AtVec(0) * std.AtVec(0)
	assert.InDelta(t, want, variance, 1e-9)
	assert.Greater(t, variance, 1e-3,
		"between unit-spaced observations a unit-scale kernel keeps real uncertainty")
}

func TestGPUncertaintyGrowsAwayFromData(t *testing.T) {
	gp := newTestGP(t, 1e-8)
	X, y := quadraticData()
	require.NoError(t, gp.Fit(X, y))

	query := mat.NewDense(2, 1, []float64{0.25, 10})
	_, std, err := gp.Predict(query)
	require.NoError(t, err)

	assert.Greater(t, std.AtVec(1), std.AtVec(0),
		"a point far from the data must be more uncertain than one inside it")
}

func TestGPPredictSensibleBetweenPoints(t *testing.T) {
	gp := newTestGP(t, 1e-8)
	X, y := quadraticData()
	require.NoError(t, gp.Fit(X, y))

	query := mat.NewDense(1, 1, []float64{0.25})
	mean, _, err := gp.Predict(query)
	require.NoError(t, err)
	assert.InDelta(t, 0.0625, mean.AtVec(0), 0.05)
}

func TestGPRepeatedInputsWithNoise(t *testing.T) {
	// Duplicate rows make the noiseless kernel matrix singular; the
	// noise term must keep the fit stable.
	gp := newTestGP(t, 1e-4)
	X := mat.NewDense(4, 1, []float64{1, 1, 2, 2})
	y := mat.NewVecDense(4, []float64{0.9, 1.1, 3.9, 4.1})
	require.NoError(t, gp.Fit(X, y))

	mean, std, err := gp.Predict(mat.NewDense(1, 1, []float64{1}))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, mean.AtVec(0), 0.2)
	assert.False(t, math.IsNaN(std.AtVec(0)))
}

func TestGPErrors(t *testing.T) {
	gp := newTestGP(t, 1e-6)

	_, _, err := gp.Predict(mat.NewDense(1, 1, []float64{0}))
	assert.True(t, optimization.IsKind(err, optimization.KindConfiguration), "predict before fit")

	assert.Error(t, gp.Fit(nil, nil))

	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewVecDense(2, []float64{1, 2})
	assert.Error(t, gp.Fit(X, y), "mismatched sample counts")

	X, yOK := quadraticData()
	require.NoError(t, gp.Fit(X, yOK))
	_, _, err = gp.Predict(nil)
	assert.Error(t, err)
}

func TestGPCapabilities(t *testing.T) {
	gp := newTestGP(t, 1e-6)
	assert.True(t, gp.SupportsGradient())
	assert.True(t, gp.ProvidesUncertainty())
}
