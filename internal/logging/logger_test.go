package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf)

	logger.Info("session created", Fields{"session_id": "abc", "dimensions": 3})

	entry := lastLine(t, &buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "session created", entry["message"])
	assert.Equal(t, "abc", entry["session_id"])
	assert.Equal(t, float64(3), entry["dimensions"])
	assert.NotEmpty(t, entry["timestamp"])
	assert.NotEmpty(t, entry["caller"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WarnLevel, &buf)

	logger.Debug("dropped")
	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestWithFieldsImmutable(t *testing.T) {
	var buf bytes.Buffer
	base := New(InfoLevel, &buf)
	child := base.WithField("run_id", "r1")

	base.Info("from base")
	entry := lastLine(t, &buf)
	_, has := entry["run_id"]
	assert.False(t, has, "base logger must not inherit child fields")

	child.Info("from child")
	entry = lastLine(t, &buf)
	assert.Equal(t, "r1", entry["run_id"])
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	New(InfoLevel, &buf).WithError(assert.AnError).Error("fit failed")

	entry := lastLine(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Contains(t, entry["error"], "assert.AnError")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, ErrorLevel, ParseLevel("ERROR"))
	assert.Equal(t, InfoLevel, ParseLevel("unknown"))
	assert.Equal(t, InfoLevel, ParseLevel(""))
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := New(DebugLevel, &buf).WithField("request_id", "req-1")

	ctx := IntoContext(context.Background(), logger)
	FromContext(ctx).Info("handled")

	entry := lastLine(t, &buf)
	assert.Equal(t, "req-1", entry["request_id"])

	// A bare context yields a usable default logger.
	assert.NotNil(t, FromContext(context.Background()))
}

func TestMiddlewareLogsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Middleware(logger))
	r.Get("/ping", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))

	entry := lastLine(t, &buf)
	assert.Equal(t, "request completed", entry["message"])
	assert.Equal(t, "/ping", entry["path"])
	assert.Equal(t, float64(http.StatusTeapot), entry["status"])
	assert.NotEmpty(t, entry["error"], "4xx responses carry the status text")
}

func TestZapAdapterForwards(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZapLogger(New(DebugLevel, &buf))

	zl.Named("gaussian_process").Info("fitting GP",
		zap.Int("samples", 12),
		zap.Float64("noise_var", 1e-6),
	)

	entry := lastLine(t, &buf)
	assert.Equal(t, "fitting GP", entry["message"])
	assert.Equal(t, float64(12), entry["samples"])
	assert.Equal(t, 1e-6, entry["noise_var"])
	assert.Equal(t, "gaussian_process", entry["component"])
}

func TestZapAdapterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZapLogger(New(WarnLevel, &buf))

	zl.Debug("dropped")
	zl.Info("dropped")
	assert.Zero(t, buf.Len())

	zl.Warn("kept")
	entry := lastLine(t, &buf)
	assert.Equal(t, "WARN", entry["level"])
}
