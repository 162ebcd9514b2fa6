// Package acqopt solves the inner optimization problem of each
// iteration: maximize the acquisition score over the encoded search
// space. Smooth surrogates get a multi-start quasi-Newton ascent with
// finite-difference gradients; tree ensembles get candidate ranking,
// since their prediction surface is piecewise constant.
package acqopt

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/MechCoder/BlackBox/internal/optimization"
	"github.com/MechCoder/BlackBox/internal/optimization/acquisition"
	"github.com/MechCoder/BlackBox/internal/optimization/surrogate"
)

// scoreTol is the floating tolerance under which two candidate scores
// count as tied; ties go to the candidate with the larger predicted
// uncertainty.
const scoreTol = 1e-9

// Proposer picks the next encoded point to evaluate. The zero value
// uses the defaults.
type Proposer struct {
	// Restarts is the multi-start count on the gradient path;
	// 0 selects a width-dependent default.
	Restarts int
	// Candidates is the sampling-path pool size (default 1000). It
	// trades compute for proposal quality.
	Candidates int
}

// Propose returns the most promising encoded point. best is the
// lowest observed objective value; seeds are extra encoded starting
// points (typically the incumbent best). The result always lies
// within the space's encoded bounds. Deterministic for a given RNG
// state.
func (p Proposer) Propose(
	sur surrogate.Surrogate,
	acq acquisition.Function,
	space *optimization.Space,
	best float64,
	seeds [][]float64,
	rng *rand.Rand,
) ([]float64, error) {
	if sur.SupportsGradient() {
		if x, err := p.gradientAscent(sur, acq, space, best, seeds, rng); err == nil {
			return x, nil
		}
		// Fall through to candidate ranking when every start failed.
	}
	return p.rankCandidates(sur, acq, space, best, seeds, rng)
}

// rankCandidates draws a random pool from the space, scores it in one
// batch and returns the arg-max.
func (p Proposer) rankCandidates(
	sur surrogate.Surrogate,
	acq acquisition.Function,
	space *optimization.Space,
	best float64,
	seeds [][]float64,
	rng *rand.Rand,
) ([]float64, error) {
	n := p.Candidates
	if n <= 0 {
		n = 1000
	}

	width := space.Width()
	candidates := make([][]float64, 0, n+len(seeds))
	for _, point := range space.Sample(n, rng) {
		x, err := space.Encode(point)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, x)
	}
	for _, s := range seeds {
		candidates = append(candidates, append([]float64(nil), s...))
	}

	X := mat.NewDense(len(candidates), width, nil)
	for i, x := range candidates {
		X.SetRow(i, x)
	}
	mean, std, err := sur.Predict(X)
	if err != nil {
		return nil, optimization.WrapError(err, optimization.KindEvaluation, "scoring candidate pool").WithComponent("acqopt")
	}

	bestIdx := -1
	bestScore := math.Inf(-1)
	bestStd := math.Inf(-1)
	for i := range candidates {
		score := acq.Score(mean.AtVec(i), std.AtVec(i), best)
		if betterCandidate(score, std.AtVec(i), bestScore, bestStd) {
			bestIdx, bestScore, bestStd = i, score, std.AtVec(i)
		}
	}
	return candidates[bestIdx], nil
}

// gradientAscent runs a multi-start quasi-Newton maximization of the
// acquisition score. Starts are the seeds plus random samples; each
// local optimum is re-scored and the winner returned.
func (p Proposer) gradientAscent(
	sur surrogate.Surrogate,
	acq acquisition.Function,
	space *optimization.Space,
	best float64,
	seeds [][]float64,
	rng *rand.Rand,
) ([]float64, error) {
	bounds := space.Bounds()
	width := space.Width()

	restarts := p.Restarts
	if restarts <= 0 {
		restarts = 5 + int(5*math.Sqrt(float64(width)))
	}

	starts := make([][]float64, 0, restarts)
	for _, s := range seeds {
		starts = append(starts, append([]float64(nil), s...))
	}
	for len(starts) < restarts {
		point := space.Sample(1, rng)[0]
		x, err := space.Encode(point)
		if err != nil {
			return nil, err
		}
		starts = append(starts, x)
	}

	// Minimize the negated score; candidates are clamped into bounds
	// before prediction so the surface is flat outside the box.
	objective := func(x []float64) float64 {
		clamped := clampToBounds(x, bounds)
		m, s, err := predictOne(sur, clamped)
		if err != nil {
			return math.Inf(1)
		}
		return -acq.Score(m, s, best)
	}

	problem := optimize.Problem{
		Func: objective,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, objective, x, nil)
		},
	}
	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-8,
			Relative:   1e-6,
			Iterations: 50,
		},
	}

	var bestX []float64
	bestScore := math.Inf(-1)
	bestStd := math.Inf(-1)

	for _, start := range starts {
		result, err := optimize.Minimize(problem, start, settings, &optimize.BFGS{})
		if err != nil || result == nil {
			continue
		}
		x := clampToBounds(result.X, bounds)
		m, s, err := predictOne(sur, x)
		if err != nil {
			continue
		}
		score := acq.Score(m, s, best)
		if betterCandidate(score, s, bestScore, bestStd) {
			bestX, bestScore, bestStd = x, score, s
		}
	}

	if bestX == nil {
		return nil, optimization.E(optimization.KindEvaluation, "no gradient start converged").WithComponent("acqopt")
	}
	return bestX, nil
}

// betterCandidate implements the arg-max with the exploration
// tie-break: equal scores within tolerance prefer the larger std.
func betterCandidate(score, std, bestScore, bestStd float64) bool {
	if math.Abs(score-bestScore) <= scoreTol {
		return std > bestStd
	}
	return score > bestScore
}

func clampToBounds(x []float64, bounds [][2]float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = math.Max(bounds[i][0], math.Min(x[i], bounds[i][1]))
	}
	return out
}

func predictOne(sur surrogate.Surrogate, x []float64) (mean, std float64, err error) {
	X := mat.NewDense(1, len(x), append([]float64(nil), x...))
	m, s, err := sur.Predict(X)
	if err != nil {
		return 0, 0, err
	}
	return m.AtVec(0), s.AtVec(0), nil
}
