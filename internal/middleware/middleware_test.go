package middleware

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openroom/internal/adjust"
	"openroom/internal/logging"
	"openroom/internal/metrics"
	"openroom/internal/preview"
)

// captureLog redirects the standard logger for the duration of a test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	flags := log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	logging.SetLevel(logging.LevelInfo)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(flags)
	})
	return &buf
}

func TestResponseWriterFirstHeaderWins(t *testing.T) {
	rw := newResponseWriter(httptest.NewRecorder())
	assert.Equal(t, http.StatusOK, rw.statusCode)
	assert.False(t, rw.wroteHeader)

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusInternalServerError)

	assert.Equal(t, http.StatusNotFound, rw.statusCode)
	assert.True(t, rw.wroteHeader)
}

func TestResponseWriterCountsBytes(t *testing.T) {
	rw := newResponseWriter(httptest.NewRecorder())

	n, err := rw.Write([]byte("png bytes"))
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.Equal(t, int64(9), rw.bytesWritten)
	assert.True(t, rw.wroteHeader)
}

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"a\nb\rc", "a b c"},
		{"nul\x00byte", "nulbyte"},
		{"\x1b[31mred", "[31mred"},
		{"tab\tkept", "tab\tkept"},
		{"bell\x07", "bell"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeLogField(tt.in), "input %q", tt.in)
	}
}

func TestLogValueQuotesSplittingValues(t *testing.T) {
	assert.Equal(t, "curl/8.0", logValue("curl/8.0"))
	assert.Equal(t, `"Mozilla 5.0"`, logValue("Mozilla 5.0"))
	assert.Equal(t, `"a=b"`, logValue("a=b"))
	assert.Equal(t, `"say \"hi\""`, logValue(`say "hi"`))
	assert.Equal(t, `"x y"`, logValue("x\ny"))
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	r.RemoteAddr = "10.0.0.9:51234"
	assert.Equal(t, "10.0.0.9", getClientIP(r))

	r.Header.Set("X-Real-IP", "192.168.1.4")
	assert.Equal(t, "192.168.1.4", getClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", getClientIP(r))
}

func TestShouldSkip(t *testing.T) {
	cfg := DefaultLoggingConfig()
	assert.True(t, shouldSkip("/metrics", cfg))
	assert.True(t, shouldSkip("/healthz", cfg))
	assert.False(t, shouldSkip("/api/preview", cfg))

	cfg.LogHealthChecks = true
	assert.False(t, shouldSkip("/healthz", cfg))
}

func TestLoggerWritesAccessLine(t *testing.T) {
	buf := captureLog(t)

	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("12345"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/gpus?x=1", http.NoBody)
	req.RemoteAddr = "10.0.0.9:4000"
	req.Header.Set("User-Agent", "test agent\nforged")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	require.NotEmpty(t, line)
	assert.Contains(t, line, "[http] GET /api/gpus 404 5B ")
	assert.Contains(t, line, "client=10.0.0.9")
	assert.Contains(t, line, `ua="test agent forged"`)
	assert.NotContains(t, line, "kind=")
	assert.Equal(t, 1, strings.Count(line, "\n"))
}

func TestLoggerIncludesRenderTrace(t *testing.T) {
	buf := captureLog(t)

	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trace := preview.TraceFrom(r.Context())
		require.NotNil(t, trace)
		trace.Kind = "preview"
		trace.AssetID = "IMG 0042"
		trace.Tier = preview.TierVariant
		trace.Grading = adjust.GradingGPU
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/preview?assetId=x", http.NoBody))

	line := buf.String()
	assert.Contains(t, line, `asset="IMG 0042" kind=preview tier=variant grade=gpu`)
}

func TestLoggerThumbnailTraceOmitsGrade(t *testing.T) {
	buf := captureLog(t)

	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trace := preview.TraceFrom(r.Context())
		trace.Kind = "thumbnail"
		trace.AssetID = "a1"
		trace.Tier = preview.TierPlaceholder
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/thumbnail", http.NoBody))

	line := buf.String()
	assert.Contains(t, line, "asset=a1 kind=thumbnail tier=placeholder")
	assert.NotContains(t, line, "grade=")
}

func TestLoggerSkipsHealthChecks(t *testing.T) {
	buf := captureLog(t)

	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	assert.Empty(t, buf.String())
}

func TestMetricsRecordsRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(Metrics(DefaultMetricsConfig()))
	router.HandleFunc("/api/preview", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/preview", "418")
	before := testutil.ToFloat64(counter)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/preview?assetId=x", http.NoBody))

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.HTTPRequestsInFlight))
}

func TestMetricsSkipsConfiguredPaths(t *testing.T) {
	router := mux.NewRouter()
	router.Use(Metrics(DefaultMetricsConfig()))
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/healthz", "200")
	before := testutil.ToFloat64(counter)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	assert.Equal(t, before, testutil.ToFloat64(counter))
}

func TestRouteLabelUnmatched(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/random/path/123", http.NoBody)
	assert.Equal(t, "unmatched", routeLabel(r))
}
