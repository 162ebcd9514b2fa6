// Package surrogate wraps heterogeneous regression estimators behind
// one prediction contract: fit on encoded points, predict a mean and
// a standard deviation per point. Gaussian Processes report their
// posterior std; tree ensembles report the spread across members.
package surrogate

import (
	"gonum.org/v1/gonum/mat"

	"github.com/MechCoder/BlackBox/internal/optimization"
)

// Surrogate is the uniform capability interface over regression
// models used by the optimizer.
type Surrogate interface {
	// Fit trains the model on the encoded points X (one row per
	// observation) and objective values y.
	Fit(X *mat.Dense, y *mat.VecDense) error

	// Predict returns the predicted mean and standard deviation for
	// each row of X.
	Predict(X *mat.Dense) (mean, std *mat.VecDense, err error)

	// SupportsGradient reports whether the prediction surface is
	// smooth enough for gradient-based acquisition optimization.
	SupportsGradient() bool

	// ProvidesUncertainty reports whether Predict returns a meaningful
	// standard deviation. Acquisition functions that need one are
	// rejected at configuration time otherwise.
	ProvidesUncertainty() bool
}

var (
	errNilInput   = optimization.E(optimization.KindConfiguration, "input matrices must not be nil").WithComponent("surrogate")
	errEmptyInput = optimization.E(optimization.KindConfiguration, "input matrix X must not be empty").WithComponent("surrogate")
)

func dimensionMismatch(nX, nY int) error {
	return optimization.Ef(optimization.KindConfiguration, "dimension mismatch: X has %d samples but y has length %d", nX, nY).WithComponent("surrogate")
}

func checkTrainingData(X *mat.Dense, y *mat.VecDense) (n, d int, err error) {
	if X == nil || y == nil {
		return 0, 0, errNilInput
	}
	n, d = X.Dims()
	if n == 0 || d == 0 {
		return 0, 0, errEmptyInput
	}
	if y.Len() != n {
		return 0, 0, dimensionMismatch(n, y.Len())
	}
	return n, d, nil
}

// matrixRows converts a gonum matrix into per-row slices for the tree
// learners, which index columns heavily during split scans.
func matrixRows(X *mat.Dense) [][]float64 {
	n, _ := X.Dims()
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		rows[i] = append([]float64(nil), X.RawRowView(i)...)
	}
	return rows
}

func vectorValues(y *mat.VecDense) []float64 {
	out := make([]float64, y.Len())
	for i := range out {
		out[i] = y.AtVec(i)
	}
	return out
}

func meanOf(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
