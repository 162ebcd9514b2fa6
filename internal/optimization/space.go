package optimization

import (
	"fmt"
	"math"
	"math/rand"
)

// Prior selects the sampling distribution of a Real dimension.
type Prior string

const (
	// Uniform samples uniformly between the bounds.
	Uniform Prior = "uniform"
	// LogUniform samples uniformly between ln(low) and ln(high); the
	// dimension is encoded in log space so the surrogate sees it on a
	// multiplicative scale.
	LogUniform Prior = "log-uniform"
)

// Dimension is one axis of a search Space. The concrete kinds are
// Real, Integer and Categorical; all live in this package so the
// encoder can keep the numeric representation private.
type Dimension interface {
	// Name returns the user label, or a generated one.
	Name() string
	// Width is the number of encoded coordinates the dimension
	// occupies (category count for one-hot categoricals, 1 otherwise).
	Width() int

	validate() *Error
	encode(v interface{}, dst []float64) error
	decode(src []float64) interface{}
	sample(rng *rand.Rand) interface{}
	bounds() [][2]float64
	equal(other Dimension) bool
}

// Real is a continuous dimension over [Low, High).
type Real struct {
	Low, High float64
	// Prior defaults to Uniform.
	Prior Prior
	Label string
}

// Name returns the user label, or a generated one.
func (d Real) Name() string {
	if d.Label != "" {
		return d.Label
	}
	return fmt.Sprintf("real(%g,%g)", d.Low, d.High)
}

// Width is 1: a Real dimension maps to a single coordinate.
func (d Real) Width() int { return 1 }

func (d Real) prior() Prior {
	if d.Prior == "" {
		return Uniform
	}
	return d.Prior
}

func (d Real) validate() *Error {
	if !(d.Low < d.High) {
		return Ef(KindConfiguration, "dimension %q: low %g must be less than high %g", d.Name(), d.Low, d.High)
	}
	switch d.prior() {
	case Uniform:
	case LogUniform:
		if d.Low <= 0 {
			return Ef(KindConfiguration, "dimension %q: log-uniform prior requires positive bounds, got low %g", d.Name(), d.Low)
		}
	default:
		return Ef(KindConfiguration, "dimension %q: unknown prior %q", d.Name(), d.Prior)
	}
	return nil
}

func (d Real) encode(v interface{}, dst []float64) error {
	f, ok := asFloat(v)
	if !ok {
		return Ef(KindOutOfBounds, "dimension %q: expected a real value, got %T", d.Name(), v)
	}
	if f < d.Low || f > d.High {
		return Ef(KindOutOfBounds, "dimension %q: value %g outside [%g, %g]", d.Name(), f, d.Low, d.High)
	}
	if d.prior() == LogUniform {
		dst[0] = math.Log(f)
	} else {
		dst[0] = f
	}
	return nil
}

func (d Real) decode(src []float64) interface{} {
	x := src[0]
	if d.prior() == LogUniform {
		x = math.Exp(x)
	}
	return clamp(x, d.Low, d.High)
}

func (d Real) sample(rng *rand.Rand) interface{} {
	if d.prior() == LogUniform {
		lo, hi := math.Log(d.Low), math.Log(d.High)
		return math.Exp(lo + rng.Float64()*(hi-lo))
	}
	return d.Low + rng.Float64()*(d.High-d.Low)
}

func (d Real) bounds() [][2]float64 {
	if d.prior() == LogUniform {
		return [][2]float64{{math.Log(d.Low), math.Log(d.High)}}
	}
	return [][2]float64{{d.Low, d.High}}
}

func (d Real) equal(other Dimension) bool {
	o, ok := other.(Real)
	return ok && o.Low == d.Low && o.High == d.High && o.prior() == d.prior()
}

// Integer is a discrete dimension over the inclusive range [Low, High].
// It is treated as continuous by the surrogates and rounded to the
// nearest valid value on decode.
type Integer struct {
	Low, High int
	Label     string
}

// Name returns the user label, or a generated one.
func (d Integer) Name() string {
	if d.Label != "" {
		return d.Label
	}
	return fmt.Sprintf("integer(%d,%d)", d.Low, d.High)
}

// Width is 1: an Integer dimension maps to a single coordinate.
func (d Integer) Width() int { return 1 }

func (d Integer) validate() *Error {
	if d.Low >= d.High {
		return Ef(KindConfiguration, "dimension %q: low %d must be less than high %d", d.Name(), d.Low, d.High)
	}
	return nil
}

func (d Integer) encode(v interface{}, dst []float64) error {
	i, ok := asInt(v)
	if !ok {
		return Ef(KindOutOfBounds, "dimension %q: expected an integer value, got %T", d.Name(), v)
	}
	if i < d.Low || i > d.High {
		return Ef(KindOutOfBounds, "dimension %q: value %d outside [%d, %d]", d.Name(), i, d.Low, d.High)
	}
	dst[0] = float64(i)
	return nil
}

func (d Integer) decode(src []float64) interface{} {
	// Round to nearest and clamp; rounding never wraps past a bound.
	i := int(math.Round(src[0]))
	if i < d.Low {
		i = d.Low
	}
	if i > d.High {
		i = d.High
	}
	return i
}

func (d Integer) sample(rng *rand.Rand) interface{} {
	return d.Low + rng.Intn(d.High-d.Low+1)
}

func (d Integer) bounds() [][2]float64 {
	return [][2]float64{{float64(d.Low), float64(d.High)}}
}

func (d Integer) equal(other Dimension) bool {
	o, ok := other.(Integer)
	return ok && o.Low == d.Low && o.High == d.High
}

// Categorical is a dimension over a finite ordered set of values,
// one-hot encoded so generic regressors need no categorical semantics.
type Categorical struct {
	Values []string
	Label  string
}

// Name returns the user label, or a generated one.
func (d Categorical) Name() string {
	if d.Label != "" {
		return d.Label
	}
	return fmt.Sprintf("categorical(%d)", len(d.Values))
}

// Width is the category count, one coordinate per one-hot slot.
func (d Categorical) Width() int { return len(d.Values) }

func (d Categorical) validate() *Error {
	if len(d.Values) == 0 {
		return Ef(KindConfiguration, "dimension %q: categorical value set is empty", d.Name())
	}
	seen := make(map[string]struct{}, len(d.Values))
	for _, v := range d.Values {
		if _, dup := seen[v]; dup {
			return Ef(KindConfiguration, "dimension %q: duplicate category %q", d.Name(), v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

func (d Categorical) encode(v interface{}, dst []float64) error {
	s, ok := v.(string)
	if !ok {
		return Ef(KindOutOfBounds, "dimension %q: expected a category string, got %T", d.Name(), v)
	}
	for i := range dst {
		dst[i] = 0
	}
	for i, c := range d.Values {
		if c == s {
			dst[i] = 1
			return nil
		}
	}
	return Ef(KindOutOfBounds, "dimension %q: unknown category %q", d.Name(), s)
}

func (d Categorical) decode(src []float64) interface{} {
	// Argmax over the one-hot block; first slot wins ties.
	best := 0
	for i := 1; i < len(src); i++ {
		if src[i] > src[best] {
			best = i
		}
	}
	return d.Values[best]
}

func (d Categorical) sample(rng *rand.Rand) interface{} {
	return d.Values[rng.Intn(len(d.Values))]
}

func (d Categorical) bounds() [][2]float64 {
	b := make([][2]float64, len(d.Values))
	for i := range b {
		b[i] = [2]float64{0, 1}
	}
	return b
}

func (d Categorical) equal(other Dimension) bool {
	o, ok := other.(Categorical)
	if !ok || len(o.Values) != len(d.Values) {
		return false
	}
	for i := range d.Values {
		if o.Values[i] != d.Values[i] {
			return false
		}
	}
	return true
}

// Space is an ordered sequence of dimensions. The order is fixed for
// the lifetime of a run and defines the coordinate order of every
// Point.
type Space struct {
	dims  []Dimension
	width int
}

// NewSpace validates the dimensions and builds a Space. All
// configuration problems are reported here, never deferred to
// encoding time.
func NewSpace(dims ...Dimension) (*Space, error) {
	if len(dims) == 0 {
		return nil, E(KindConfiguration, "space must declare at least one dimension").WithComponent("space")
	}
	width := 0
	for _, d := range dims {
		if err := d.validate(); err != nil {
			return nil, err.WithComponent("space")
		}
		width += d.Width()
	}
	return &Space{dims: append([]Dimension(nil), dims...), width: width}, nil
}

// Dimensions returns the declared dimensions in order.
func (s *Space) Dimensions() []Dimension {
	return append([]Dimension(nil), s.dims...)
}

// Len is the number of user-facing dimensions.
func (s *Space) Len() int { return len(s.dims) }

// Width is the encoded dimensionality (one-hot blocks expanded).
func (s *Space) Width() int { return s.width }

// Encode maps a user-facing point to its numeric vector, validating
// it against the declared bounds.
func (s *Space) Encode(p Point) ([]float64, error) {
	if len(p) != len(s.dims) {
		return nil, Ef(KindOutOfBounds, "point has %d values, space has %d dimensions", len(p), len(s.dims)).WithComponent("space")
	}
	x := make([]float64, s.width)
	off := 0
	for i, d := range s.dims {
		if err := d.encode(p[i], x[off:off+d.Width()]); err != nil {
			return nil, err
		}
		off += d.Width()
	}
	return x, nil
}

// Decode maps a numeric vector back to a user-facing point. Values
// are clamped into bounds, integers rounded to the nearest valid
// value and one-hot blocks resolved by argmax.
func (s *Space) Decode(x []float64) (Point, error) {
	if len(x) != s.width {
		return nil, Ef(KindOutOfBounds, "encoded point has %d coordinates, space has width %d", len(x), s.width).WithComponent("space")
	}
	p := make(Point, len(s.dims))
	off := 0
	for i, d := range s.dims {
		p[i] = d.decode(x[off : off+d.Width()])
		off += d.Width()
	}
	return p, nil
}

// Check validates that a point lies within the declared bounds.
func (s *Space) Check(p Point) error {
	_, err := s.Encode(p)
	return err
}

// Sample draws n points from the space using the supplied RNG. Real
// dimensions respect their prior; there is no hidden global
// randomness.
func (s *Space) Sample(n int, rng *rand.Rand) []Point {
	points := make([]Point, n)
	for i := range points {
		p := make(Point, len(s.dims))
		for j, d := range s.dims {
			p[j] = d.sample(rng)
		}
		points[i] = p
	}
	return points
}

// SampleLHS draws n points with Latin hypercube stratification over
// the encoded coordinates, then decodes them. Stratifying in encoded
// space keeps log-uniform dimensions stratified on the log scale.
func (s *Space) SampleLHS(n int, rng *rand.Rand) []Point {
	if n <= 0 {
		return nil
	}
	cols := make([][]float64, s.width)
	for j, b := range s.Bounds() {
		col := make([]float64, n)
		for i := 0; i < n; i++ {
			col[i] = (float64(i) + rng.Float64()) / float64(n)
		}
		rng.Shuffle(n, func(k, l int) {
			col[k], col[l] = col[l], col[k]
		})
		for i := 0; i < n; i++ {
			col[i] = b[0] + col[i]*(b[1]-b[0])
		}
		cols[j] = col
	}

	points := make([]Point, n)
	for i := 0; i < n; i++ {
		x := make([]float64, s.width)
		for j := 0; j < s.width; j++ {
			x[j] = cols[j][i]
		}
		p, err := s.Decode(x)
		if err != nil {
			// Decode cannot fail on a vector of the right width.
			panic(err)
		}
		points[i] = p
	}
	return points
}

// Bounds returns the numeric bounds of every encoded coordinate.
// Proposals are clamped against these, so no optimizer can step
// outside the declared space.
func (s *Space) Bounds() [][2]float64 {
	b := make([][2]float64, 0, s.width)
	for _, d := range s.dims {
		b = append(b, d.bounds()...)
	}
	return b
}

// Equal reports whether two spaces declare the same dimensions in the
// same order.
func (s *Space) Equal(other *Space) bool {
	if other == nil || len(s.dims) != len(other.dims) {
		return false
	}
	for i, d := range s.dims {
		if !d.equal(other.dims[i]) {
			return false
		}
	}
	return true
}

// CoercePoint converts loosely typed values (for example numbers
// decoded from JSON, which arrive as float64) into the canonical
// value types of each dimension, validating bounds along the way.
func (s *Space) CoercePoint(raw []interface{}) (Point, error) {
	if len(raw) != len(s.dims) {
		return nil, Ef(KindOutOfBounds, "point has %d values, space has %d dimensions", len(raw), len(s.dims)).WithComponent("space")
	}
	p := make(Point, len(raw))
	for i, d := range s.dims {
		switch d.(type) {
		case Real:
			f, ok := asFloat(raw[i])
			if !ok {
				return nil, Ef(KindOutOfBounds, "dimension %q: expected a real value, got %T", d.Name(), raw[i])
			}
			p[i] = f
		case Integer:
			n, ok := asInt(raw[i])
			if !ok {
				return nil, Ef(KindOutOfBounds, "dimension %q: expected an integer value, got %T", d.Name(), raw[i])
			}
			p[i] = n
		default:
			p[i] = raw[i]
		}
	}
	if err := s.Check(p); err != nil {
		return nil, err
	}
	return p, nil
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(x, hi))
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}
