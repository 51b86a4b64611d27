package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveOperation(t *testing.T) {
	t.Parallel()
	m := New()

	m.ObserveOperation("login", "ok", 20*time.Millisecond)
	m.ObserveOperation("login", "ok", 30*time.Millisecond)
	m.ObserveOperation("login", "invalid_credentials", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.authOps.WithLabelValues("login", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authOps.WithLabelValues("login", "invalid_credentials")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.authDuration))
}

func TestObserveHTTPAndThrottled(t *testing.T) {
	t.Parallel()
	m := New()

	m.ObserveHTTP(http.MethodPost, "/login", 200, time.Millisecond)
	m.ObserveHTTP(http.MethodPost, "/login", 429, time.Millisecond)
	m.ObserveThrottled("/login")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/login", "429")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.throttled.WithLabelValues("/login")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	t.Parallel()
	m := New()
	m.ObserveOperation("refresh", "ok", time.Millisecond)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, `askfm_auth_operations_total{code="ok",operation="refresh"} 1`), body)
	assert.Contains(t, body, "go_goroutines")
}
