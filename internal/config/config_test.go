package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 10, cfg.Optimization.DefaultWarmup)
	assert.Equal(t, 1000, cfg.Optimization.DefaultCandidates)
	assert.Equal(t, 256, cfg.Optimization.MaxSessions)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OPT_DEFAULT_WARMUP", "25")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 25, cfg.Optimization.DefaultWarmup)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("HTTP_PORT", "99999")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsZeroWorkers(t *testing.T) {
	t.Setenv("OPT_WORKERS", "0")
	_, err := Load()
	assert.Error(t, err)
}
