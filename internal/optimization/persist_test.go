package optimization

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResult(t *testing.T) *Result {
	t.Helper()
	space := testSpace(t)
	res := &Result{
		Space: space,
		Observations: []Observation{
			{Point: Point{1.5, 0.01, 42, "matern"}, Value: 3.2},
			{Point: Point{-2.0, 0.001, 7, "rbf"}, Value: 1.1, Noise: 0.05},
			{Point: Point{0.5, 0.05, 99, "linear"}, Value: 2.4},
			{Point: Point{4.0, 0.002, 13, "rbf"}, Value: 1.1},
			{Point: Point{-4.5, 0.09, 60, "matern"}, Value: 5.0},
		},
		Failures: []EvaluationFailure{
			{Iteration: 2, Point: Point{3.0, 0.01, 5, "rbf"}, Reason: "boom"},
		},
		Iterations: 5,
		Seed:       42,
		Surrogate:  SurrogateInfo{Family: "gp", NoiseVar: 1e-6},
		Acquisition: AcquisitionInfo{
			Name: "ei",
			Xi:   0.01,
		},
	}
	best := res.Observations[1]
	res.Best = &best
	return res
}

func TestDumpLoadRoundTrip(t *testing.T) {
	res := testResult(t)

	var buf bytes.Buffer
	require.NoError(t, Dump(res, &buf))

	got, err := Load(&buf)
	require.NoError(t, err)

	assert.True(t, res.Space.Equal(got.Space))
	assert.Equal(t, res.Seed, got.Seed)
	assert.Equal(t, res.Iterations, got.Iterations)
	assert.Equal(t, res.Surrogate, got.Surrogate)
	assert.Equal(t, res.Acquisition, got.Acquisition)

	require.Len(t, got.Observations, 5)
	for i, obs := range got.Observations {
		assert.Equal(t, res.Observations[i].Value, obs.Value, "observation %d value", i)
		assert.Equal(t, res.Observations[i].Point, obs.Point, "observation %d point", i)
	}
	// JSON floats come back as the canonical int type.
	assert.IsType(t, 0, got.Observations[0].Point[2])

	require.NotNil(t, got.Best)
	assert.Equal(t, 1.1, got.Best.Value)
	// Earliest minimum wins the tie.
	assert.Equal(t, res.Observations[1].Point, got.Best.Point)

	require.Len(t, got.Failures, 1)
	assert.Equal(t, "boom", got.Failures[0].Reason)
}

func TestDumpRequiresSpace(t *testing.T) {
	var buf bytes.Buffer
	err := Dump(nil, &buf)
	assert.True(t, IsKind(err, KindPersistence))

	err = Dump(&Result{}, &buf)
	assert.True(t, IsKind(err, KindPersistence))
}

func TestLoadFailsClosed(t *testing.T) {
	valid := func(t *testing.T) string {
		var buf bytes.Buffer
		require.NoError(t, Dump(testResult(t), &buf))
		return buf.String()
	}(t)

	tests := []struct {
		name  string
		input string
	}{
		{"corrupt json", valid[:len(valid)/2]},
		{"not json at all", "definitely not json"},
		{"future version", strings.Replace(valid, `"version":1`, `"version":99`, 1)},
		{"observation out of bounds", strings.Replace(valid, `[1.5,0.01,42,"matern"]`, `[999,0.01,42,"matern"]`, 1)},
		{"best disagrees with history", strings.Replace(valid, `"value":1.1,"noise":0.05`, `"value":-9`, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Load(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Nil(t, res, "a failed load must not return a partial result")
			assert.True(t, IsKind(err, KindPersistence), "want a persistence error, got %v", err)
		})
	}
}

func TestLoadEmptyHistory(t *testing.T) {
	res := &Result{Space: testSpace(t), Seed: 7}

	var buf bytes.Buffer
	require.NoError(t, Dump(res, &buf))

	got, err := Load(&buf)
	require.NoError(t, err)
	assert.Nil(t, got.Best)
	assert.Empty(t, got.Observations)
}
