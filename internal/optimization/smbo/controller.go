// Package smbo implements the sequential model-based optimization
// loop as an incremental ask/tell controller with a one-shot Minimize
// wrapper on top.
//
// A controller instance owns its observation history and RNG state
// exclusively; two goroutines must not call Ask/Tell on the same
// controller without external serialization.
package smbo

import (
	"math/rand"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/MechCoder/BlackBox/internal/optimization"
	"github.com/MechCoder/BlackBox/internal/optimization/acqopt"
	"github.com/MechCoder/BlackBox/internal/optimization/acquisition"
	"github.com/MechCoder/BlackBox/internal/optimization/kernels"
	"github.com/MechCoder/BlackBox/internal/optimization/surrogate"
)

// State is the controller lifecycle phase.
type State int

const (
	// Uninitialized: configuration fixed, no observations yet.
	Uninitialized State = iota
	// Warmup: serving pre-sampled random points until the initial
	// batch is observed.
	Warmup
	// Modeled: surrogate refit on every ask, acquisition-driven
	// proposals. The controller never terminates on its own; budget
	// policy belongs to the caller.
	Modeled
)

// String returns a stable label for the state.
func (s State) String() string {
	switch s {
	case Warmup:
		return "warmup"
	case Modeled:
		return "modeled"
	default:
		return "uninitialized"
	}
}

// SurrogateConfig selects the surrogate family and its
// hyperparameters.
type SurrogateConfig struct {
	// Family is "gp" (default), "forest", "gbrt" or "custom".
	Family string
	// NoiseVar is the GP observation-noise variance (default 1e-6).
	NoiseVar float64
	// Kernel overrides the GP covariance (default Matérn 5/2, unit
	// scales).
	Kernel kernels.Kernel
	// Forest configures the "forest" family.
	Forest surrogate.ForestConfig
	// GBRT configures the "gbrt" family.
	GBRT surrogate.GBRTConfig
	// Custom is the user estimator for the "custom" family.
	Custom surrogate.Estimator
}

// AcquisitionConfig selects the acquisition function. Xi and Kappa are
// pointers so an explicit zero is distinguishable from unset, the same
// convention as the nil Kernel in SurrogateConfig.
type AcquisitionConfig struct {
	// Name is "ei" (default), "pi" or "lcb".
	Name string
	// Xi is the minimum-improvement margin for EI/PI; nil selects 0.01.
	Xi *float64
	// Kappa is the LCB exploration weight; nil selects 1.96. An
	// explicit zero reduces LCB to pure exploitation of the predicted
	// mean.
	Kappa *float64
}

// withDefaults fills unset fields, so the resolved values end up in
// Result and survive a resume.
func (a AcquisitionConfig) withDefaults() AcquisitionConfig {
	if a.Name == "" {
		a.Name = "ei"
	}
	if a.Xi == nil {
		xi := 0.01
		a.Xi = &xi
	}
	if a.Kappa == nil {
		kappa := 1.96
		a.Kappa = &kappa
	}
	return a
}

// BatchFailurePolicy decides what happens when one evaluation of a
// parallel batch fails.
type BatchFailurePolicy string

const (
	// DropFailed records the failure and keeps the rest of the batch.
	DropFailed BatchFailurePolicy = "drop"
	// AbortBatch records the successes, then stops the run.
	AbortBatch BatchFailurePolicy = "abort"
)

// Config fixes a controller's space, surrogate, acquisition and loop
// policy for the lifetime of a run.
type Config struct {
	Space       *optimization.Space
	Surrogate   SurrogateConfig
	Acquisition AcquisitionConfig

	// WarmupPoints is the size of the initial random batch collected
	// before the surrogate is trusted (default 10).
	WarmupPoints int
	// Candidates is the sampling-path pool size for gradient-free
	// surrogates (default 1000).
	Candidates int
	// Restarts is the gradient-path multi-start count (default
	// width-dependent).
	Restarts int
	// Seed makes the run reproducible; 0 draws one from the clock.
	Seed int64

	// Strict stops Minimize on the first failed evaluation instead of
	// skipping the iteration.
	Strict bool
	// EvalTimeout bounds each objective call in Minimize; a timeout
	// is a reported failure for that evaluation, not a crash.
	EvalTimeout time.Duration
	// BatchFailure selects the mid-batch failure policy for
	// MinimizeBatch (default DropFailed).
	BatchFailure BatchFailurePolicy
	// Workers caps concurrent objective evaluations in MinimizeBatch
	// (default: batch size).
	Workers int

	// Callback is invoked with a result snapshot after every Tell.
	Callback optimization.Callback
	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

// Controller is the ask/tell state machine.
type Controller struct {
	cfg    Config
	space  *optimization.Space
	sur    surrogate.Surrogate
	acq    acquisition.Function
	rng    *rand.Rand
	logger *zap.Logger

	state      State
	warmup     []optimization.Point
	warmupNext int

	observations []optimization.Observation
	best         *optimization.Observation
	failures     []optimization.EvaluationFailure
}

// New validates the configuration and builds a controller. Every
// configuration problem, including an acquisition/surrogate pairing
// that cannot work, is reported here and never deferred to Ask or
// Tell.
func New(cfg Config) (*Controller, error) {
	if cfg.Space == nil {
		return nil, optimization.E(optimization.KindConfiguration, "a search space is required").WithComponent("smbo")
	}
	if cfg.WarmupPoints == 0 {
		cfg.WarmupPoints = 10
	}
	if cfg.WarmupPoints < 0 {
		return nil, optimization.Ef(optimization.KindConfiguration, "warmup point count must be positive, got %d", cfg.WarmupPoints).WithComponent("smbo")
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.BatchFailure == "" {
		cfg.BatchFailure = DropFailed
	}
	if cfg.BatchFailure != DropFailed && cfg.BatchFailure != AbortBatch {
		return nil, optimization.Ef(optimization.KindConfiguration, "unknown batch failure policy %q", cfg.BatchFailure).WithComponent("smbo")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg.Acquisition = cfg.Acquisition.withDefaults()
	acq, err := acquisition.New(cfg.Acquisition.Name, *cfg.Acquisition.Xi, *cfg.Acquisition.Kappa)
	if err != nil {
		return nil, err
	}
	sur, err := buildSurrogate(cfg.Surrogate, cfg.Space, cfg.Seed, logger)
	if err != nil {
		return nil, err
	}

	// Compatibility table: an acquisition that needs an uncertainty
	// cannot run on a surrogate that has none.
	if acq.NeedsUncertainty() && !sur.ProvidesUncertainty() {
		return nil, optimization.Ef(optimization.KindUnsupportedAcquisition,
			"acquisition %q requires a predictive uncertainty the %q surrogate cannot supply",
			acq.Name(), familyOf(cfg.Surrogate)).WithComponent("smbo")
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	c := &Controller{
		cfg:    cfg,
		space:  cfg.Space,
		sur:    sur,
		acq:    acq,
		rng:    rng,
		logger: logger.Named("smbo"),
		state:  Uninitialized,
		// Latin hypercube stratification keeps the warmup batch
		// spread across the space; the points are pre-sampled so
		// repeated asks in warmup return distinct points.
		warmup: cfg.Space.SampleLHS(cfg.WarmupPoints, rng),
	}
	return c, nil
}

func familyOf(cfg SurrogateConfig) string {
	if cfg.Family == "" {
		return "gp"
	}
	return cfg.Family
}

func buildSurrogate(cfg SurrogateConfig, space *optimization.Space, seed int64, logger *zap.Logger) (surrogate.Surrogate, error) {
	switch familyOf(cfg) {
	case "gp":
		noise := cfg.NoiseVar
		if noise == 0 {
			noise = 1e-6
		}
		kernel := cfg.Kernel
		if kernel == nil {
			scales := make([]float64, space.Width())
			for i := range scales {
				scales[i] = 1
			}
			k, err := kernels.NewMatern52(1.0, scales...)
			if err != nil {
				return nil, optimization.WrapError(err, optimization.KindConfiguration, "building default kernel").WithComponent("smbo")
			}
			kernel = k
		}
		return surrogate.NewGP(kernel, noise, logger)
	case "forest":
		fc := cfg.Forest
		if fc.Seed == 0 {
			fc.Seed = seed
		}
		return surrogate.NewForest(fc, logger)
	case "gbrt":
		gc := cfg.GBRT
		if gc.Seed == 0 {
			gc.Seed = seed
		}
		return surrogate.NewGBRT(gc, logger)
	case "custom":
		return surrogate.NewCustom(cfg.Custom)
	default:
		return nil, optimization.Ef(optimization.KindConfiguration, "unknown surrogate family %q", cfg.Family).WithComponent("smbo")
	}
}

// State returns the current lifecycle phase.
func (c *Controller) State() State { return c.state }

// Ask returns the next point to evaluate. During warmup it serves the
// pre-sampled random batch; once modeled it refits the surrogate on
// all observations and maximizes the acquisition. Ask never mutates
// the observation history.
func (c *Controller) Ask() (optimization.Point, error) {
	if len(c.observations) < c.cfg.WarmupPoints {
		if c.state == Uninitialized {
			c.state = Warmup
		}
		if c.warmupNext < len(c.warmup) {
			p := c.warmup[c.warmupNext].Clone()
			c.warmupNext++
			return p, nil
		}
		// The pre-sampled batch ran out before enough tells arrived;
		// keep serving fresh random points.
		return c.space.Sample(1, c.rng)[0], nil
	}

	c.state = Modeled
	if err := c.refit(c.observations); err != nil {
		return nil, err
	}
	x, err := c.propose(c.bestValue())
	if err != nil {
		return nil, err
	}
	return c.space.Decode(x)
}

// AskBatch proposes k points before any new observation is told,
// diversifying successive proposals by imputing the surrogate's
// predicted mean as a placeholder observation ("constant liar"). Only
// gradient-free surrogate families support this; a best-effort
// heuristic, isolated here so single-point Ask is unaffected.
func (c *Controller) AskBatch(k int) ([]optimization.Point, error) {
	if k <= 0 {
		return nil, optimization.Ef(optimization.KindConfiguration, "batch size must be positive, got %d", k).WithComponent("smbo")
	}
	if c.sur.SupportsGradient() {
		return nil, optimization.E(optimization.KindConfiguration,
			"batch proposals require a gradient-free surrogate family; GP batching needs a different acquisition formulation").WithComponent("smbo")
	}

	if len(c.observations) < c.cfg.WarmupPoints {
		if c.state == Uninitialized {
			c.state = Warmup
		}
		points := make([]optimization.Point, 0, k)
		for len(points) < k {
			if c.warmupNext < len(c.warmup) {
				points = append(points, c.warmup[c.warmupNext].Clone())
				c.warmupNext++
				continue
			}
			points = append(points, c.space.Sample(1, c.rng)[0])
		}
		return points, nil
	}

	c.state = Modeled
	augmented := append([]optimization.Observation(nil), c.observations...)
	best := c.bestValue()
	points := make([]optimization.Point, 0, k)

	for len(points) < k {
		if err := c.refit(augmented); err != nil {
			return nil, err
		}
		x, err := c.propose(best)
		if err != nil {
			return nil, err
		}
		p, err := c.space.Decode(x)
		if err != nil {
			return nil, err
		}
		points = append(points, p)

		// Lie with the predicted mean so the next proposal avoids the
		// same region.
		lie, _, err := c.predictEncoded(x)
		if err != nil {
			return nil, err
		}
		augmented = append(augmented, optimization.Observation{Point: p, Value: lie})
	}
	return points, nil
}

// Tell records an observation. The point is validated against the
// space first; on failure the history is left untouched. Repeated
// points are legal and appended, never deduplicated.
func (c *Controller) Tell(p optimization.Point, value float64) error {
	return c.TellObservation(optimization.Observation{Point: p, Value: value})
}

// TellObservation is Tell with an optional evaluation-noise estimate.
func (c *Controller) TellObservation(obs optimization.Observation) error {
	if err := c.space.Check(obs.Point); err != nil {
		return err
	}
	obs.Point = obs.Point.Clone()
	c.observations = append(c.observations, obs)

	if c.best == nil || obs.Value < c.best.Value {
		copied := obs
		copied.Point = obs.Point.Clone()
		c.best = &copied
	}

	if len(c.observations) >= c.cfg.WarmupPoints {
		c.state = Modeled
	} else {
		c.state = Warmup
	}

	if c.cfg.Callback != nil {
		c.cfg.Callback(c.Result())
	}
	return nil
}

// Result returns a snapshot of the run: a copy of the history, the
// best observation and the run metadata needed to resume.
func (c *Controller) Result() *optimization.Result {
	res := &optimization.Result{
		Space:        c.space,
		Observations: append([]optimization.Observation(nil), c.observations...),
		Failures:     append([]optimization.EvaluationFailure(nil), c.failures...),
		Iterations:   len(c.observations),
		Seed:         c.cfg.Seed,
		Surrogate: optimization.SurrogateInfo{
			Family:   familyOf(c.cfg.Surrogate),
			NoiseVar: c.cfg.Surrogate.NoiseVar,
		},
		Acquisition: optimization.AcquisitionInfo{
			Name:  c.acq.Name(),
			Xi:    *c.cfg.Acquisition.Xi,
			Kappa: *c.cfg.Acquisition.Kappa,
		},
	}
	if c.best != nil {
		best := *c.best
		best.Point = c.best.Point.Clone()
		res.Best = &best
	}
	return res
}

func (c *Controller) bestValue() float64 {
	if c.best == nil {
		return 0
	}
	return c.best.Value
}

func (c *Controller) refit(obs []optimization.Observation) error {
	X, y, err := c.trainingData(obs)
	if err != nil {
		return err
	}
	return c.sur.Fit(X, y)
}

func (c *Controller) trainingData(obs []optimization.Observation) (*mat.Dense, *mat.VecDense, error) {
	X := mat.NewDense(len(obs), c.space.Width(), nil)
	y := mat.NewVecDense(len(obs), nil)
	for i, o := range obs {
		x, err := c.space.Encode(o.Point)
		if err != nil {
			return nil, nil, err
		}
		X.SetRow(i, x)
		y.SetVec(i, o.Value)
	}
	return X, y, nil
}

func (c *Controller) propose(best float64) ([]float64, error) {
	var seeds [][]float64
	if c.best != nil {
		if x, err := c.space.Encode(c.best.Point); err == nil {
			seeds = append(seeds, x)
		}
	}
	proposer := acqopt.Proposer{
		Restarts:   c.cfg.Restarts,
		Candidates: c.cfg.Candidates,
	}
	return proposer.Propose(c.sur, c.acq, c.space, best, seeds, c.rng)
}

func (c *Controller) predictEncoded(x []float64) (mean, std float64, err error) {
	X := mat.NewDense(1, len(x), append([]float64(nil), x...))
	m, s, err := c.sur.Predict(X)
	if err != nil {
		return 0, 0, err
	}
	return m.AtVec(0), s.AtVec(0), nil
}

// Resume rebuilds a controller from a persisted result. The
// configuration's space, if set, must match the persisted one
// exactly; a mismatch is a hard error, never a silent coercion.
func Resume(cfg Config, res *optimization.Result) (*Controller, error) {
	if res == nil || res.Space == nil {
		return nil, optimization.E(optimization.KindPersistence, "cannot resume from an empty result").WithComponent("smbo")
	}
	if cfg.Space != nil && !cfg.Space.Equal(res.Space) {
		return nil, optimization.E(optimization.KindConfiguration, "configured space is incompatible with the persisted space").WithComponent("smbo")
	}
	cfg.Space = res.Space
	if cfg.Seed == 0 {
		cfg.Seed = res.Seed
	}
	if cfg.Surrogate.Family == "" {
		cfg.Surrogate.Family = res.Surrogate.Family
		cfg.Surrogate.NoiseVar = res.Surrogate.NoiseVar
	}
	if cfg.Acquisition.Name == "" {
		xi := res.Acquisition.Xi
		kappa := res.Acquisition.Kappa
		cfg.Acquisition = AcquisitionConfig{
			Name:  res.Acquisition.Name,
			Xi:    &xi,
			Kappa: &kappa,
		}
	}

	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	for _, obs := range res.Observations {
		if err := c.TellObservation(obs); err != nil {
			return nil, optimization.WrapError(err, optimization.KindPersistence, "replaying persisted history").WithComponent("smbo")
		}
	}
	c.failures = append(c.failures, res.Failures...)
	return c, nil
}
