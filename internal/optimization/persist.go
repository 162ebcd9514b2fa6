package optimization

import (
	"encoding/json"
	"io"
	"math"
)

// persistVersion guards the serialized layout. Load rejects versions
// it does not understand instead of guessing.
const persistVersion = 1

type dimensionJSON struct {
	Type   string   `json:"type"`
	Low    float64  `json:"low,omitempty"`
	High   float64  `json:"high,omitempty"`
	Prior  string   `json:"prior,omitempty"`
	Values []string `json:"values,omitempty"`
	Name   string   `json:"name,omitempty"`
}

type resultJSON struct {
	Version      int                 `json:"version"`
	Seed         int64               `json:"seed"`
	Iterations   int                 `json:"iterations"`
	Space        []dimensionJSON     `json:"space"`
	Observations []Observation       `json:"observations"`
	Best         *Observation        `json:"best,omitempty"`
	Failures     []EvaluationFailure `json:"failures,omitempty"`
	Surrogate    SurrogateInfo       `json:"surrogate"`
	Acquisition  AcquisitionInfo     `json:"acquisition"`
}

// Dump serializes a result to w. The encoding round-trips through
// Load: space definition, ordered history, best observation, seed and
// surrogate/acquisition settings are all preserved.
func Dump(res *Result, w io.Writer) error {
	if res == nil || res.Space == nil {
		return E(KindPersistence, "cannot dump a result without a space").WithComponent("persist")
	}

	out := resultJSON{
		Version:      persistVersion,
		Seed:         res.Seed,
		Iterations:   res.Iterations,
		Observations: res.Observations,
		Best:         res.Best,
		Failures:     res.Failures,
		Surrogate:    res.Surrogate,
		Acquisition:  res.Acquisition,
	}
	for _, d := range res.Space.Dimensions() {
		out.Space = append(out.Space, encodeDimension(d))
	}

	enc := json.NewEncoder(w)
	if err := enc.Encode(&out); err != nil {
		return WrapError(err, KindPersistence, "encoding result").WithComponent("persist")
	}
	return nil
}

// Load deserializes a result previously written by Dump. It fails
// closed: any structural problem returns an error and no partial
// result.
func Load(r io.Reader) (*Result, error) {
	var in resultJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&in); err != nil {
		return nil, WrapError(err, KindPersistence, "decoding result").WithComponent("persist")
	}
	if in.Version != persistVersion {
		return nil, Ef(KindPersistence, "unsupported result version %d", in.Version).WithComponent("persist")
	}

	dims := make([]Dimension, 0, len(in.Space))
	for _, dj := range in.Space {
		d, err := decodeDimension(dj)
		if err != nil {
			return nil, err
		}
		dims = append(dims, d)
	}
	space, err := NewSpace(dims...)
	if err != nil {
		return nil, WrapError(err, KindPersistence, "invalid persisted space").WithComponent("persist")
	}

	res := &Result{
		Space:       space,
		Seed:        in.Seed,
		Iterations:  in.Iterations,
		Surrogate:   in.Surrogate,
		Acquisition: in.Acquisition,
	}

	// JSON turns every number into a float64; restore the canonical
	// per-dimension value types and re-validate bounds.
	for _, obs := range in.Observations {
		p, err := space.CoercePoint(obs.Point)
		if err != nil {
			return nil, WrapError(err, KindPersistence, "invalid persisted observation").WithComponent("persist")
		}
		res.Observations = append(res.Observations, Observation{Point: p, Value: obs.Value, Noise: obs.Noise})
	}
	for _, f := range in.Failures {
		p, err := space.CoercePoint(f.Point)
		if err != nil {
			return nil, WrapError(err, KindPersistence, "invalid persisted failure").WithComponent("persist")
		}
		res.Failures = append(res.Failures, EvaluationFailure{Iteration: f.Iteration, Point: p, Reason: f.Reason})
	}

	if len(res.Observations) > 0 {
		want := bestObservation(res.Observations)
		if in.Best == nil {
			return nil, E(KindPersistence, "result has observations but no best entry").WithComponent("persist")
		}
		if math.Abs(in.Best.Value-want.Value) > 0 {
			return nil, Ef(KindPersistence, "best value %g does not match history minimum %g", in.Best.Value, want.Value).WithComponent("persist")
		}
		res.Best = &want
	}

	return res, nil
}

// bestObservation returns the minimum-value observation, earliest on
// ties.
func bestObservation(obs []Observation) Observation {
	best := obs[0]
	for _, o := range obs[1:] {
		if o.Value < best.Value {
			best = o
		}
	}
	return Observation{Point: best.Point.Clone(), Value: best.Value, Noise: best.Noise}
}

func encodeDimension(d Dimension) dimensionJSON {
	switch dim := d.(type) {
	case Real:
		return dimensionJSON{Type: "real", Low: dim.Low, High: dim.High, Prior: string(dim.prior()), Name: dim.Label}
	case Integer:
		return dimensionJSON{Type: "integer", Low: float64(dim.Low), High: float64(dim.High), Name: dim.Label}
	case Categorical:
		return dimensionJSON{Type: "categorical", Values: dim.Values, Name: dim.Label}
	default:
		return dimensionJSON{Type: "unknown"}
	}
}

func decodeDimension(dj dimensionJSON) (Dimension, error) {
	switch dj.Type {
	case "real":
		return Real{Low: dj.Low, High: dj.High, Prior: Prior(dj.Prior), Label: dj.Name}, nil
	case "integer":
		return Integer{Low: int(dj.Low), High: int(dj.High), Label: dj.Name}, nil
	case "categorical":
		return Categorical{Values: dj.Values, Label: dj.Name}, nil
	default:
		return nil, Ef(KindPersistence, "unknown dimension type %q", dj.Type).WithComponent("persist")
	}
}
