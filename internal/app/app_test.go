package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestApp builds an App on an in-memory SQLite database. It calls
// t.Setenv, so tests using it must not be parallel.
func newTestApp(t *testing.T, env map[string]string) (*App, error) {
	t.Helper()

	isolateEnv(t, "ASKFM_REFRESH_HASH_KEY")
	t.Setenv("ASKFM_SQLITE_PATH", ":memory:")
	t.Setenv("ASKFM_JWT_SIGNING_KEY", strings.Repeat("k", 40))
	t.Setenv("ASKFM_BCRYPT_COST", "4")
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil {
		t.Cleanup(a.Close)
	}
	return a, err
}

func call(t *testing.T, h http.Handler, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestApp_EndToEndOnSQLite(t *testing.T) {
	a, err := newTestApp(t, nil)
	require.NoError(t, err)
	h := a.Handler()

	rr := call(t, h, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = call(t, h, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = call(t, h, http.MethodPost, "/register", "", map[string]string{
		"name": "Mona", "email": " Mona@Example.com ", "password": "hunter22",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var reg struct {
		UserID string `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &reg))
	require.NotEmpty(t, reg.UserID)

	rr = call(t, h, http.MethodPost, "/login", "", map[string]string{
		"email": "mona@example.com", "password": "hunter22", "deviceId": "phone",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var tokens struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		DeviceID     string `json:"deviceId"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tokens))
	assert.Equal(t, "phone", tokens.DeviceID)

	rr = call(t, h, http.MethodGet, "/me", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var me struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
	assert.Equal(t, reg.UserID, me.ID)
	assert.Equal(t, "mona@example.com", me.Email)

	rr = call(t, h, http.MethodPost, "/refresh-token", "", map[string]string{"refreshToken": tokens.RefreshToken})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = call(t, h, http.MethodPost, "/logout-all", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = call(t, h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `askfm_http_requests_total{method="POST",route="/login",status="200"} 1`)
	assert.Contains(t, body, `askfm_auth_operations_total{code="ok",operation="register"} 1`)
	assert.Contains(t, body, `askfm_auth_operations_total{code="ok",operation="refresh"} 1`)
}

func TestApp_MetricsDisabled(t *testing.T) {
	a, err := newTestApp(t, map[string]string{"ASKFM_METRICS_ENABLED": "false"})
	require.NoError(t, err)

	rr := call(t, a.Handler(), http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestApp_ReadinessRequiresPostgres(t *testing.T) {
	a, err := newTestApp(t, map[string]string{"ASKFM_READINESS_REQUIRE_DB": "true"})
	require.NoError(t, err)

	rr := call(t, a.Handler(), http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestApp_StartupFailures(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "hmac required without key", env: map[string]string{"ASKFM_REQUIRE_REFRESH_HMAC": "true"}},
		{name: "short signing key", env: map[string]string{"ASKFM_JWT_SIGNING_KEY": "short"}},
		{name: "bad password algo", env: map[string]string{"ASKFM_PASSWORD_ALGO": "md5"}},
		{name: "redis unreachable", env: map[string]string{"ASKFM_REDIS_ADDR": "127.0.0.1:1"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newTestApp(t, tc.env)
			require.Error(t, err)
		})
	}
}

func TestApp_HMACRequiredWithKey(t *testing.T) {
	_, err := newTestApp(t, map[string]string{
		"ASKFM_REQUIRE_REFRESH_HMAC": "true",
		"ASKFM_REFRESH_HASH_KEY":     strings.Repeat("h", 32),
	})
	require.NoError(t, err)
}
