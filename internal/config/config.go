// Package config loads the service configuration from environment
// variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
		RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"60s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Optimization struct {
		// DefaultWarmup is the initial random batch size for sessions
		// that do not specify one.
		DefaultWarmup int `env:"OPT_DEFAULT_WARMUP" envDefault:"10"`
		// DefaultCandidates is the sampling-path pool size.
		DefaultCandidates int `env:"OPT_DEFAULT_CANDIDATES" envDefault:"1000"`
		// Workers caps concurrent objective evaluations per batch run.
		Workers int `env:"OPT_WORKERS" envDefault:"10"`
		// MaxSessions bounds the number of live sessions the server
		// holds in memory; 0 means unbounded.
		MaxSessions int `env:"OPT_MAX_SESSIONS" envDefault:"256"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}
	if cfg.HTTP.Port < 1 || cfg.HTTP.Port > 65535 {
		return nil, fmt.Errorf("invalid HTTP port %d", cfg.HTTP.Port)
	}
	if cfg.Optimization.Workers < 1 {
		return nil, fmt.Errorf("worker count must be positive, got %d", cfg.Optimization.Workers)
	}

	return cfg, nil
}
