// Package logging provides structured JSON logging for the
// optimization service.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"
)

// Level is the severity of a log entry.
type Level int

const (
	// DebugLevel is for development-time tracing of the optimization
	// loop; disabled in production.
	DebugLevel Level = iota
	// InfoLevel is the default priority.
	InfoLevel
	// WarnLevel flags recoverable problems such as failed objective
	// evaluations.
	WarnLevel
	// ErrorLevel flags failures that abort a request or a run.
	ErrorLevel
	// FatalLevel logs and then exits the process.
	FatalLevel
)

// String returns the wire label of the level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "INFO"
	}
}

// Fields is a free-form set of structured log attributes.
type Fields map[string]interface{}

// Logger writes JSON log lines at or above its level. Loggers are
// immutable; WithFields derives a child carrying extra attributes.
type Logger struct {
	level  Level
	output io.Writer
	fields Fields
}

// New creates a Logger writing to output at the given level.
func New(level Level, output io.Writer) *Logger {
	return &Logger{level: level, output: output, fields: Fields{}}
}

// WithFields returns a child logger carrying the merged fields.
func (l *Logger) WithFields(fields Fields) *Logger {
	merged := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{level: l.level, output: l.output, fields: merged}
}

// WithField returns a child logger carrying one extra field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(Fields{key: value})
}

// WithError returns a child logger with the error field set.
func (l *Logger) WithError(err error) *Logger {
	return l.WithField("error", err.Error())
}

func (l *Logger) enabled(level Level) bool {
	return level >= l.level
}

func (l *Logger) write(level Level, msg string, fields Fields) {
	if !l.enabled(level) {
		return
	}

	entry := make(Fields, len(l.fields)+len(fields)+4)
	for k, v := range l.fields {
		entry[k] = v
	}
	for k, v := range fields {
		entry[k] = v
	}
	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["message"] = msg
	entry["caller"] = callerOf(3)

	line, err := json.Marshal(entry)
	if err != nil {
		// A field that cannot marshal must not lose the message.
		fmt.Fprintf(l.output, "%s [%s] %s\n", entry["timestamp"], level, msg)
	} else {
		l.output.Write(append(line, '\n'))
	}

	if level == FatalLevel {
		os.Exit(1)
	}
}

func callerOf(depth int) string {
	_, file, line, ok := runtime.Caller(depth)
	if !ok {
		return "???"
	}
	parts := strings.Split(file, "/")
	if len(parts) > 2 {
		file = strings.Join(parts[len(parts)-2:], "/")
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// Debug logs at DebugLevel.
func (l *Logger) Debug(msg string, fields ...Fields) { l.write(DebugLevel, msg, first(fields)) }

// Info logs at InfoLevel.
func (l *Logger) Info(msg string, fields ...Fields) { l.write(InfoLevel, msg, first(fields)) }

// Warn logs at WarnLevel.
func (l *Logger) Warn(msg string, fields ...Fields) { l.write(WarnLevel, msg, first(fields)) }

// Error logs at ErrorLevel.
func (l *Logger) Error(msg string, fields ...Fields) { l.write(ErrorLevel, msg, first(fields)) }

// Fatal logs at FatalLevel and exits.
func (l *Logger) Fatal(msg string, fields ...Fields) { l.write(FatalLevel, msg, first(fields)) }

func first(fields []Fields) Fields {
	if len(fields) > 0 {
		return fields[0]
	}
	return nil
}

type ctxKey struct{}

// FromContext returns the request logger stored in ctx, or a default
// stderr logger when none is present.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return logger
	}
	return New(InfoLevel, os.Stderr)
}

// IntoContext stores the logger in a derived context.
func IntoContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}
