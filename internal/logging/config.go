package logging

import (
	"io"
	"os"
	"strings"
)

// Config selects the logger's level and destination.
type Config struct {
	// Level is the minimum level to emit (debug, info, warn, error,
	// fatal).
	Level string
	// Output is "stdout", "stderr" or a file path.
	Output string
}

// DefaultConfig returns info-level logging to stderr.
func DefaultConfig() *Config {
	return &Config{Level: "info", Output: "stderr"}
}

// NewLogger builds a Logger from the configuration.
func NewLogger(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	output, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}
	return New(ParseLevel(cfg.Level), output), nil
}

// ParseLevel maps a level name to a Level; unknown names fall back to
// info.
func ParseLevel(level string) Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DebugLevel
	case "WARN":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	case "FATAL":
		return FatalLevel
	default:
		return InfoLevel
	}
}

func openOutput(output string) (io.Writer, error) {
	switch output {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	default:
		return os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	}
}
