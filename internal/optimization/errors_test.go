package optimization

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := E(KindConfiguration, "bad kernel").WithComponent("gp").WithOperation("Fit")
	assert.Equal(t, "gp: Fit: bad kernel", err.Error())

	err = Ef(KindOutOfBounds, "value %g outside bounds", 7.5)
	assert.Equal(t, "value 7.5 outside bounds", err.Error())
}

func TestWrapError(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapError(cause, KindPersistence, "writing result")

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "writing result")

	assert.Nil(t, WrapError(nil, KindPersistence, "nothing"))
}

func TestIsKind(t *testing.T) {
	err := E(KindUnsupportedAcquisition, "ei on a point estimator")
	assert.True(t, IsKind(err, KindUnsupportedAcquisition))
	assert.False(t, IsKind(err, KindConfiguration))

	// The kind survives wrapping with fmt.
	wrapped := fmt.Errorf("request failed: %w", err)
	assert.True(t, IsKind(wrapped, KindUnsupportedAcquisition))

	assert.False(t, IsKind(errors.New("plain"), KindEvaluation))
	assert.False(t, IsKind(nil, KindEvaluation))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "configuration", KindConfiguration.String())
	assert.Equal(t, "out_of_bounds", KindOutOfBounds.String())
	assert.Equal(t, "unknown", KindUnknown.String())
}
