package surrogate

import (
	"math/rand"
	"sync"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/MechCoder/BlackBox/internal/optimization"
)

// GBRTConfig holds the gradient-boosted trees hyperparameters. Zero
// values select the defaults.
type GBRTConfig struct {
	// Members is the number of independently boosted models; a single
	// boosted model has no per-point variance, so the std comes from
	// the spread across members trained with different subsampling
	// seeds (default 8).
	Members int
	// Stages is the boosting round count per member (default 100).
	Stages int
	// LearningRate shrinks each stage's contribution (default 0.1).
	LearningRate float64
	// MaxDepth limits the stage trees (default 3).
	MaxDepth int
	// MinLeaf is the minimum samples per leaf (default 2).
	MinLeaf int
	// Subsample is the row fraction drawn per stage (default 0.8).
	Subsample float64
	// Seed derives each member's subsampling stream.
	Seed int64
}

func (c GBRTConfig) withDefaults() GBRTConfig {
	if c.Members == 0 {
		c.Members = 8
	}
	if c.Stages == 0 {
		c.Stages = 100
	}
	if c.LearningRate == 0 {
		c.LearningRate = 0.1
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = 3
	}
	if c.MinLeaf == 0 {
		c.MinLeaf = 2
	}
	if c.Subsample == 0 {
		c.Subsample = 0.8
	}
	return c
}

func (c GBRTConfig) validate() error {
	if c.Members < 2 {
		return optimization.Ef(optimization.KindConfiguration, "gbrt needs at least two ensemble members for a spread, got %d", c.Members).WithComponent("gbrt")
	}
	if c.Stages < 1 {
		return optimization.Ef(optimization.KindConfiguration, "gbrt stage count must be positive, got %d", c.Stages).WithComponent("gbrt")
	}
	if c.LearningRate <= 0 || c.LearningRate > 1 {
		return optimization.Ef(optimization.KindConfiguration, "gbrt learning rate must be in (0, 1], got %g", c.LearningRate).WithComponent("gbrt")
	}
	if c.Subsample <= 0 || c.Subsample > 1 {
		return optimization.Ef(optimization.KindConfiguration, "gbrt subsample must be in (0, 1], got %g", c.Subsample).WithComponent("gbrt")
	}
	return nil
}

// boostedModel is one member: a mean baseline plus shrunken stage
// trees fit to residuals.
type boostedModel struct {
	base  float64
	rate  float64
	trees []*regTree
}

func (m *boostedModel) predict(x []float64) float64 {
	out := m.base
	for _, t := range m.trees {
		out += m.rate * t.predict(x)
	}
	return out
}

// GBRT is an ensemble of gradient-boosted regression tree models with
// the same mean/std contract as Forest.
type GBRT struct {
	cfg     GBRTConfig
	logger  *zap.Logger
	members []*boostedModel
}

// NewGBRT creates a gradient-boosted trees surrogate.
func NewGBRT(cfg GBRTConfig, logger *zap.Logger) (*GBRT, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GBRT{cfg: cfg, logger: logger.Named("gbrt")}, nil
}

// Fit trains the members concurrently; each fit is independent with
// no shared mutable state, only the read-only training data.
func (g *GBRT) Fit(X *mat.Dense, y *mat.VecDense) error {
	nSamples, nFeatures, err := checkTrainingData(X, y)
	if err != nil {
		return err
	}

	rows := matrixRows(X)
	targets := vectorValues(y)

	members := make([]*boostedModel, g.cfg.Members)
	var wg sync.WaitGroup
	for m := 0; m < g.cfg.Members; m++ {
		wg.Add(1)
		go func(m int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(g.cfg.Seed + int64(m)*7919))
			members[m] = g.fitMember(rows, targets, rng)
		}(m)
	}
	wg.Wait()

	g.members = members
	g.logger.Debug("fitted gbrt",
		zap.Int("members", len(members)),
		zap.Int("stages", g.cfg.Stages),
		zap.Int("samples", nSamples),
		zap.Int("features", nFeatures),
	)
	return nil
}

func (g *GBRT) fitMember(rows [][]float64, targets []float64, rng *rand.Rand) *boostedModel {
	n := len(rows)
	model := &boostedModel{base: meanOf(targets), rate: g.cfg.LearningRate}

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = model.base
	}
	residual := make([]float64, n)

	subset := int(g.cfg.Subsample * float64(n))
	if subset < 1 {
		subset = 1
	}

	for stage := 0; stage < g.cfg.Stages; stage++ {
		for i := range residual {
			residual[i] = targets[i] - pred[i]
		}

		idx := rng.Perm(n)[:subset]
		tree := growTree(rows, residual, idx, 0, treeParams{
			maxDepth: g.cfg.MaxDepth,
			minLeaf:  g.cfg.MinLeaf,
			rng:      rng,
		})
		model.trees = append(model.trees, tree)

		for i := range pred {
			pred[i] += g.cfg.LearningRate * tree.predict(rows[i])
		}
	}
	return model
}

// Predict returns the across-member mean and std per row of X.
func (g *GBRT) Predict(X *mat.Dense) (*mat.VecDense, *mat.VecDense, error) {
	if g.members == nil {
		return nil, nil, optimization.E(optimization.KindConfiguration, "model has not been fitted").WithComponent("gbrt")
	}
	if X == nil {
		return nil, nil, optimization.E(optimization.KindConfiguration, "input matrix X is nil").WithComponent("gbrt")
	}

	nTest, _ := X.Dims()
	mean := mat.NewVecDense(nTest, nil)
	std := mat.NewVecDense(nTest, nil)

	for i := 0; i < nTest; i++ {
		x := X.RawRowView(i)
		m, s := ensembleMoments(x, func(x []float64, t int) float64 {
			return g.members[t].predict(x)
		}, len(g.members))
		mean.SetVec(i, m)
		std.SetVec(i, s)
	}
	return mean, std, nil
}

// SupportsGradient is false: boosted trees are piecewise constant.
func (g *GBRT) SupportsGradient() bool { return false }

// ProvidesUncertainty is true via the across-member spread.
func (g *GBRT) ProvidesUncertainty() bool { return true }
