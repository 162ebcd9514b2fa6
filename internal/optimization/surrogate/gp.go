package surrogate

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/MechCoder/BlackBox/internal/optimization"
	"github.com/MechCoder/BlackBox/internal/optimization/kernels"
)

// GP is a Gaussian Process regression surrogate. Its predicted std is
// the model's posterior standard deviation, so it is the only
// surrogate family with a calibrated uncertainty, and the only one
// whose prediction surface supports gradient-based acquisition
// optimization.
type GP struct {
	kernel   kernels.Kernel
	noiseVar float64
	logger   *zap.Logger
	pool     *matrixPool

	// Training state.
	x     *mat.Dense
	yMean float64
	alpha *mat.VecDense
	chol  *mat.Cholesky
}

// NewGP creates a Gaussian Process surrogate. noiseVar is the
// observation-noise variance added to the kernel diagonal; a non-zero
// value keeps the posterior variance positive at repeated identical
// inputs, which matters for noisy objectives.
func NewGP(kernel kernels.Kernel, noiseVar float64, logger *zap.Logger) (*GP, error) {
	if kernel == nil {
		return nil, optimization.E(optimization.KindConfiguration, "kernel must not be nil").WithComponent("gaussian_process")
	}
	if noiseVar < 0 {
		return nil, optimization.Ef(optimization.KindConfiguration, "noise variance must be non-negative, got %g", noiseVar).WithComponent("gaussian_process")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GP{
		kernel:   kernel,
		noiseVar: noiseVar,
		logger:   logger.Named("gaussian_process"),
		pool:     newMatrixPool(),
	}, nil
}

// Fit trains the GP on the encoded points X and values y.
func (gp *GP) Fit(X *mat.Dense, y *mat.VecDense) error {
	const op = "GP.Fit"

	nSamples, nFeatures, err := checkTrainingData(X, y)
	if err != nil {
		return optimization.WrapError(err, optimization.KindConfiguration, op)
	}

	gp.logger.Debug("fitting GP",
		zap.Int("samples", nSamples),
		zap.Int("features", nFeatures),
		zap.Float64("noise_var", gp.noiseVar),
	)

	gp.x = mat.DenseCopyOf(X)

	// Center the targets; the GP models zero-mean residuals and the
	// mean is added back on predict.
	gp.yMean = 0
	for i := 0; i < nSamples; i++ {
		gp.yMean += y.AtVec(i)
	}
	gp.yMean /= float64(nSamples)
	yc := mat.NewVecDense(nSamples, nil)
	for i := 0; i < nSamples; i++ {
		yc.SetVec(i, y.AtVec(i)-gp.yMean)
	}

	K := gp.kernelMatrix(gp.x, nSamples)

	chol, err := gp.factorize(K, nSamples)
	if err != nil {
		return optimization.WrapError(err, optimization.KindConfiguration, op).WithComponent("gaussian_process")
	}

	alpha := mat.NewVecDense(nSamples, nil)
	if err := chol.SolveVecTo(alpha, yc); err != nil {
		return optimization.WrapError(err, optimization.KindConfiguration, op).WithComponent("gaussian_process")
	}

	gp.alpha = alpha
	gp.chol = chol
	gp.pool.putSym(K)
	return nil
}

// kernelMatrix computes K(X, X) with the noise variance on the
// diagonal.
func (gp *GP) kernelMatrix(X *mat.Dense, nSamples int) *mat.SymDense {
	K := gp.pool.getSym(nSamples)
	for i := 0; i < nSamples; i++ {
		xi := X.RawRowView(i)
		K.SetSym(i, i, gp.kernel.Eval(xi, xi)+gp.noiseVar)
		for j := i + 1; j < nSamples; j++ {
			K.SetSym(i, j, gp.kernel.Eval(xi, X.RawRowView(j)))
		}
	}
	return K
}

// factorize runs a Cholesky decomposition, escalating a diagonal
// jitter when the kernel matrix is numerically indefinite.
func (gp *GP) factorize(K *mat.SymDense, n int) (*mat.Cholesky, error) {
	jitter := 1e-10
	const maxAttempts = 8

	var chol mat.Cholesky
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ok := chol.Factorize(K); ok {
			if attempt > 0 {
				gp.logger.Debug("factorized after jitter escalation",
					zap.Int("attempts", attempt+1),
					zap.Float64("jitter", jitter/10),
				)
			}
			return &chol, nil
		}
		for i := 0; i < n; i++ {
			K.SetSym(i, i, K.At(i, i)+jitter)
		}
		jitter *= 10
	}
	return nil, optimization.E(optimization.KindConfiguration, "Cholesky decomposition failed: kernel matrix is not positive definite")
}

// Predict returns the posterior mean and standard deviation at each
// row of X.
func (gp *GP) Predict(X *mat.Dense) (*mat.VecDense, *mat.VecDense, error) {
	const op = "GP.Predict"

	if X == nil {
		return nil, nil, optimization.E(optimization.KindConfiguration, "input matrix X is nil").WithOperation(op).WithComponent("gaussian_process")
	}
	if gp.x == nil || gp.alpha == nil || gp.chol == nil {
		return nil, nil, optimization.E(optimization.KindConfiguration, "model has not been fitted").WithOperation(op).WithComponent("gaussian_process")
	}

	nTest, _ := X.Dims()
	nTrain, _ := gp.x.Dims()

	kss := make([]float64, nTest)
	kstar := mat.NewDense(nTest, nTrain, nil)
	for i := 0; i < nTest; i++ {
		xs := X.RawRowView(i)
		kss[i] = gp.kernel.Eval(xs, xs) + gp.noiseVar
		for j := 0; j < nTrain; j++ {
			kstar.Set(i, j, gp.kernel.Eval(xs, gp.x.RawRowView(j)))
		}
	}

	mean := mat.NewVecDense(nTest, nil)
	mean.MulVec(kstar, gp.alpha)
	for i := 0; i < nTest; i++ {
		mean.SetVec(i, mean.AtVec(i)+gp.yMean)
	}

	// Posterior variance: kss - k*^T K^-1 k*, with v = K^-1 K*^T.
	v := mat.NewDense(nTrain, nTest, nil)
	if err := gp.chol.SolveTo(v, kstar.T()); err != nil {
		return nil, nil, optimization.WrapError(err, optimization.KindConfiguration, "solving for posterior variance").WithOperation(op).WithComponent("gaussian_process")
	}

	std := mat.NewVecDense(nTest, nil)
	for i := 0; i < nTest; i++ {
		var sum float64
		for j := 0; j < nTrain; j++ {
			sum += kstar.At(i, j) * v.At(j, i)
		}
		variance := kss[i] - sum
		if variance < 0 {
			// Numerical round-off only; clamp quietly unless large.
			if variance < -1e-8 {
				gp.logger.Warn("negative posterior variance clamped",
					zap.Float64("variance", variance),
					zap.Int("test_point", i),
				)
			}
			variance = 0
		}
		std.SetVec(i, math.Sqrt(variance))
	}

	return mean, std, nil
}

// SupportsGradient is true: the GP posterior is smooth.
func (gp *GP) SupportsGradient() bool { return true }

// ProvidesUncertainty is true: the posterior std is native.
func (gp *GP) ProvidesUncertainty() bool { return true }
