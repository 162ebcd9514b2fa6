package optimization

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpace(t *testing.T) *Space {
	t.Helper()
	space, err := NewSpace(
		Real{Low: -5, High: 5, Label: "x"},
		Real{Low: 1e-4, High: 1e-1, Prior: LogUniform, Label: "lr"},
		Integer{Low: 1, High: 100, Label: "depth"},
		Categorical{Values: []string{"rbf", "matern", "linear"}, Label: "kernel"},
	)
	require.NoError(t, err)
	return space
}

func TestNewSpaceValidation(t *testing.T) {
	tests := []struct {
		name string
		dims []Dimension
	}{
		{"empty space", nil},
		{"inverted real bounds", []Dimension{Real{Low: 5, High: -5}}},
		{"equal real bounds", []Dimension{Real{Low: 1, High: 1}}},
		{"log-uniform with zero low", []Dimension{Real{Low: 0, High: 1, Prior: LogUniform}}},
		{"log-uniform with negative low", []Dimension{Real{Low: -1, High: 1, Prior: LogUniform}}},
		{"unknown prior", []Dimension{Real{Low: 0, High: 1, Prior: "gaussian"}}},
		{"inverted integer bounds", []Dimension{Integer{Low: 10, High: 1}}},
		{"empty categorical", []Dimension{Categorical{}}},
		{"duplicate categories", []Dimension{Categorical{Values: []string{"a", "b", "a"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSpace(tt.dims...)
			require.Error(t, err)
			assert.True(t, IsKind(err, KindConfiguration), "want a configuration error, got %v", err)
		})
	}
}

func TestSpaceWidth(t *testing.T) {
	space := testSpace(t)
	assert.Equal(t, 4, space.Len())
	// 1 + 1 + 1 + 3 one-hot slots.
	assert.Equal(t, 6, space.Width())
	assert.Len(t, space.Bounds(), 6)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	space := testSpace(t)
	p := Point{1.5, 0.01, 42, "matern"}

	x, err := space.Encode(p)
	require.NoError(t, err)
	require.Len(t, x, space.Width())

	got, err := space.Decode(x)
	require.NoError(t, err)

	assert.InDelta(t, 1.5, got[0].(float64), 1e-12)
	assert.InDelta(t, 0.01, got[1].(float64), 1e-12)
	assert.Equal(t, 42, got[2])
	assert.Equal(t, "matern", got[3])
}

func TestLogUniformEncoding(t *testing.T) {
	space, err := NewSpace(Real{Low: 1e-4, High: 1e-1, Prior: LogUniform})
	require.NoError(t, err)

	x, err := space.Encode(Point{1e-2})
	require.NoError(t, err)
	assert.InDelta(t, math.Log(1e-2), x[0], 1e-12)

	b := space.Bounds()
	assert.InDelta(t, math.Log(1e-4), b[0][0], 1e-12)
	assert.InDelta(t, math.Log(1e-1), b[0][1], 1e-12)
}

func TestLogUniformSamplingDistribution(t *testing.T) {
	space, err := NewSpace(Real{Low: 1e-4, High: 1, Prior: LogUniform})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	points := space.Sample(10000, rng)

	// Uniform in log space: each decade gets about a quarter of the
	// draws.
	counts := make([]int, 4)
	for _, p := range points {
		v := p[0].(float64)
		bin := int(math.Floor(math.Log10(v))) + 4
		if bin < 0 {
			bin = 0
		}
		if bin > 3 {
			bin = 3
		}
		counts[bin]++
	}
	for i, c := range counts {
		assert.InDelta(t, 2500, c, 300, "decade %d draw count", i)
	}
}

func TestIntegerDecodeRoundsAndClamps(t *testing.T) {
	space, err := NewSpace(Integer{Low: 1, High: 10})
	require.NoError(t, err)

	tests := []struct {
		in   float64
		want int
	}{
		{3.4, 3},
		{3.6, 4},
		{0.2, 1},
		{12.7, 10},
		{-3, 1},
	}
	for _, tt := range tests {
		p, err := space.Decode([]float64{tt.in})
		require.NoError(t, err)
		assert.Equal(t, tt.want, p[0], "decode %g", tt.in)
	}
}

func TestRealDecodeClamps(t *testing.T) {
	space, err := NewSpace(Real{Low: -1, High: 1})
	require.NoError(t, err)

	p, err := space.Decode([]float64{3.5})
	require.NoError(t, err)
	assert.Equal(t, 1.0, p[0])

	p, err = space.Decode([]float64{-3.5})
	require.NoError(t, err)
	assert.Equal(t, -1.0, p[0])
}

func TestCategoricalArgmaxDecode(t *testing.T) {
	space, err := NewSpace(Categorical{Values: []string{"a", "b", "c"}})
	require.NoError(t, err)

	p, err := space.Decode([]float64{0.1, 0.7, 0.2})
	require.NoError(t, err)
	assert.Equal(t, "b", p[0])

	// First slot wins ties.
	p, err = space.Decode([]float64{0.5, 0.5, 0.1})
	require.NoError(t, err)
	assert.Equal(t, "a", p[0])
}

func TestEncodeRejectsOutOfBounds(t *testing.T) {
	space := testSpace(t)

	tests := []struct {
		name  string
		point Point
	}{
		{"real above high", Point{6.0, 0.01, 42, "matern"}},
		{"integer below low", Point{0.0, 0.01, 0, "matern"}},
		{"unknown category", Point{0.0, 0.01, 42, "poly"}},
		{"wrong value type", Point{"zero", 0.01, 42, "matern"}},
		{"wrong arity", Point{0.0, 0.01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := space.Encode(tt.point)
			require.Error(t, err)
			assert.True(t, IsKind(err, KindOutOfBounds), "want out-of-bounds, got %v", err)
		})
	}
}

func TestSampleReproducible(t *testing.T) {
	space := testSpace(t)

	a := space.Sample(25, rand.New(rand.NewSource(42)))
	b := space.Sample(25, rand.New(rand.NewSource(42)))
	assert.Equal(t, a, b)

	c := space.Sample(25, rand.New(rand.NewSource(43)))
	assert.NotEqual(t, a, c)
}

func TestSampleInBounds(t *testing.T) {
	space := testSpace(t)
	rng := rand.New(rand.NewSource(1))
	for _, p := range space.Sample(200, rng) {
		assert.NoError(t, space.Check(p))
	}
}

func TestSampleLHSStratified(t *testing.T) {
	space, err := NewSpace(Real{Low: 0, High: 10})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	points := space.SampleLHS(10, rng)
	require.Len(t, points, 10)

	// One point per stratum of width 1.
	seen := make(map[int]bool)
	for _, p := range points {
		bin := int(p[0].(float64))
		if bin == 10 {
			bin = 9
		}
		assert.False(t, seen[bin], "stratum %d hit twice", bin)
		seen[bin] = true
	}
}

func TestSpaceEqual(t *testing.T) {
	a := testSpace(t)
	b := testSpace(t)
	assert.True(t, a.Equal(b))

	c, err := NewSpace(Real{Low: -5, High: 5})
	require.NoError(t, err)
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}

func TestCoercePoint(t *testing.T) {
	space := testSpace(t)

	// JSON numbers arrive as float64, including the integer slot.
	p, err := space.CoercePoint([]interface{}{1.5, 0.01, float64(42), "matern"})
	require.NoError(t, err)
	assert.Equal(t, 42, p[2])

	_, err = space.CoercePoint([]interface{}{1.5, 0.01, 42.5, "matern"})
	require.Error(t, err)

	_, err = space.CoercePoint([]interface{}{1.5, 0.01, float64(42), "poly"})
	assert.True(t, IsKind(err, KindOutOfBounds))
}
