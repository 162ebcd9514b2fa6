package surrogate

import (
	"math"
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/MechCoder/BlackBox/internal/optimization"
)

// ForestConfig holds the random forest hyperparameters. Zero values
// select the defaults.
type ForestConfig struct {
	// Trees is the ensemble size (default 100).
	Trees int
	// MaxDepth limits tree depth (default 16).
	MaxDepth int
	// MinLeaf is the minimum samples per leaf (default 2).
	MinLeaf int
	// MaxFeatures is the number of features considered per split
	// (default one third of the encoded width, at least 1).
	MaxFeatures int
	// Seed drives the bootstrap and feature subsampling.
	Seed int64
}

func (c ForestConfig) withDefaults() ForestConfig {
	if c.Trees == 0 {
		c.Trees = 100
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = 16
	}
	if c.MinLeaf == 0 {
		c.MinLeaf = 2
	}
	return c
}

func (c ForestConfig) validate() error {
	if c.Trees < 1 {
		return optimization.Ef(optimization.KindConfiguration, "forest needs at least one tree, got %d", c.Trees).WithComponent("forest")
	}
	if c.MaxDepth < 1 {
		return optimization.Ef(optimization.KindConfiguration, "forest max depth must be positive, got %d", c.MaxDepth).WithComponent("forest")
	}
	if c.MinLeaf < 1 {
		return optimization.Ef(optimization.KindConfiguration, "forest min leaf must be positive, got %d", c.MinLeaf).WithComponent("forest")
	}
	return nil
}

// Forest is a bagged ensemble of regression trees. The predicted mean
// is the across-tree average; the predicted std is the across-tree
// standard deviation, an empirical stand-in for predictive
// uncertainty rather than a formal posterior.
type Forest struct {
	cfg    ForestConfig
	logger *zap.Logger
	trees  []*regTree
}

// NewForest creates a random forest surrogate.
func NewForest(cfg ForestConfig, logger *zap.Logger) (*Forest, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Forest{cfg: cfg, logger: logger.Named("forest")}, nil
}

// Fit grows the ensemble on bootstrap resamples of the training data.
func (f *Forest) Fit(X *mat.Dense, y *mat.VecDense) error {
	nSamples, nFeatures, err := checkTrainingData(X, y)
	if err != nil {
		return err
	}

	rows := matrixRows(X)
	targets := vectorValues(y)

	maxFeatures := f.cfg.MaxFeatures
	if maxFeatures == 0 {
		maxFeatures = (nFeatures + 2) / 3
	}

	f.trees = make([]*regTree, f.cfg.Trees)
	for t := range f.trees {
		// Per-tree RNG keeps the ensemble deterministic for a seed.
		rng := rand.New(rand.NewSource(f.cfg.Seed + int64(t)))
		idx := make([]int, nSamples)
		for i := range idx {
			idx[i] = rng.Intn(nSamples)
		}
		f.trees[t] = growTree(rows, targets, idx, 0, treeParams{
			maxDepth:    f.cfg.MaxDepth,
			minLeaf:     f.cfg.MinLeaf,
			maxFeatures: maxFeatures,
			rng:         rng,
		})
	}

	f.logger.Debug("fitted forest",
		zap.Int("trees", len(f.trees)),
		zap.Int("samples", nSamples),
		zap.Int("features", nFeatures),
	)
	return nil
}

// Predict returns the ensemble mean and across-tree std per row of X.
func (f *Forest) Predict(X *mat.Dense) (*mat.VecDense, *mat.VecDense, error) {
	if f.trees == nil {
		return nil, nil, optimization.E(optimization.KindConfiguration, "model has not been fitted").WithComponent("forest")
	}
	if X == nil {
		return nil, nil, optimization.E(optimization.KindConfiguration, "input matrix X is nil").WithComponent("forest")
	}

	nTest, _ := X.Dims()
	mean := mat.NewVecDense(nTest, nil)
	std := mat.NewVecDense(nTest, nil)

	for i := 0; i < nTest; i++ {
		x := X.RawRowView(i)
		m, s := ensembleMoments(x, func(x []float64, t int) float64 {
			return f.trees[t].predict(x)
		}, len(f.trees))
		mean.SetVec(i, m)
		std.SetVec(i, s)
	}
	return mean, std, nil
}

// SupportsGradient is false: a tree ensemble is piecewise constant.
func (f *Forest) SupportsGradient() bool { return false }

// ProvidesUncertainty is true via the across-tree spread.
func (f *Forest) ProvidesUncertainty() bool { return true }

// ensembleMoments computes the mean and population std of member
// predictions at a point.
func ensembleMoments(x []float64, predict func([]float64, int) float64, members int) (mean, std float64) {
	sum := 0.0
	sumSq := 0.0
	for t := 0; t < members; t++ {
		v := predict(x, t)
		sum += v
		sumSq += v * v
	}
	n := float64(members)
	mean = sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}
