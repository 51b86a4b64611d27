package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLogMeta(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status     int
		wantLevel  slog.Level
		wantResult string
		wantClass  string
	}{
		{status: 200, wantLevel: slog.LevelInfo, wantResult: "success", wantClass: "2xx"},
		{status: 302, wantLevel: slog.LevelInfo, wantResult: "redirect", wantClass: "3xx"},
		{status: 404, wantLevel: slog.LevelWarn, wantResult: "client_error", wantClass: "4xx"},
		{status: 503, wantLevel: slog.LevelError, wantResult: "server_error", wantClass: "5xx"},
	}

	for _, tc := range cases {
		level, result := requestLogMeta(tc.status)
		assert.Equal(t, tc.wantLevel, level, "status %d", tc.status)
		assert.Equal(t, tc.wantResult, result, "status %d", tc.status)
		assert.Equal(t, tc.wantClass, statusClass(tc.status), "status %d", tc.status)
	}
}

type httpSample struct {
	method string
	route  string
	status int
}

type recordingHTTPObserver struct {
	mu      sync.Mutex
	samples []httpSample
}

func (o *recordingHTTPObserver) ObserveHTTP(method, route string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.samples = append(o.samples, httpSample{method: method, route: route, status: status})
}

func TestWithMetrics_LabelsByPattern(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("GET /users/{id}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	obs := &recordingHTTPObserver{}
	h := WithRequestLogging(WithMetrics(mux, obs), slog.New(slog.NewTextHandler(io.Discard, nil)))

	for _, path := range []string{"/login", "/users/01HZX", "/nope"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Len(t, obs.samples, 3)
	assert.Equal(t, httpSample{method: "GET", route: "/login", status: 401}, obs.samples[0])
	assert.Equal(t, httpSample{method: "GET", route: "GET /users/{id}", status: 200}, obs.samples[1])
	assert.Equal(t, httpSample{method: "GET", route: "unmatched", status: 404}, obs.samples[2])
}

func TestWithRequestLogging_LevelByStatus(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	h := WithRequestLogging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("boom"))
	}), log)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/refresh-token", nil))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "http.request", rec["msg"])
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, float64(500), rec["status"])
	assert.Equal(t, "5xx", rec["status_class"])
	assert.Equal(t, float64(4), rec["bytes"])
	assert.Equal(t, "unmatched", rec["route"])
}
