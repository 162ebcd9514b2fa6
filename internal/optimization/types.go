// Package optimization holds the core data model for sequential
// model-based optimization: search spaces, points, observations and
// run results, plus the error taxonomy and result persistence.
package optimization

// Point is one location in the search space, one value per Dimension
// in declaration order. Values are float64 for Real dimensions, int
// for Integer dimensions and string for Categorical dimensions.
type Point []interface{}

// Clone returns an independent copy of the point.
func (p Point) Clone() Point {
	if p == nil {
		return nil
	}
	return append(Point(nil), p...)
}

// Observation pairs an evaluated point with the scalar objective value
// (lower is better). Observations are append-only: once recorded they
// are never mutated or removed.
type Observation struct {
	Point Point   `json:"point"`
	Value float64 `json:"value"`
	// Noise is an optional evaluation-noise estimate, 0 when unknown.
	Noise float64 `json:"noise,omitempty"`
}

// EvaluationFailure reports one failed objective evaluation during a
// one-shot run. Failed evaluations never enter the observation history.
type EvaluationFailure struct {
	Iteration int    `json:"iteration"`
	Point     Point  `json:"point"`
	Reason    string `json:"reason"`
}

// SurrogateInfo records the surrogate family and its hyperparameters
// so a persisted run can be resumed with the same model.
type SurrogateInfo struct {
	Family   string  `json:"family"`
	NoiseVar float64 `json:"noise_var,omitempty"`
}

// AcquisitionInfo records the acquisition function choice and its
// parameters.
type AcquisitionInfo struct {
	Name  string  `json:"name"`
	Xi    float64 `json:"xi,omitempty"`
	Kappa float64 `json:"kappa,omitempty"`
}

// Result is a snapshot of an optimization run: the full ordered
// observation history, the best observation so far and enough run
// metadata to resume ask/tell cycling reproducibly.
type Result struct {
	Space        *Space
	Observations []Observation
	// Best is the minimum-value observation, earliest on ties. Nil
	// until the first successful Tell.
	Best        *Observation
	Failures    []EvaluationFailure
	Iterations  int
	Seed        int64
	Surrogate   SurrogateInfo
	Acquisition AcquisitionInfo
}

// Objective is the user-supplied function being minimized. An error
// marks the evaluation as failed; it is reported, not recorded as an
// observation.
type Objective func(Point) (float64, error)

// Callback is invoked once per completed Tell with the current result
// snapshot. Callbacks must return quickly or they delay the next Ask.
type Callback func(*Result)
