package app

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateEnv unsets every variable Config reads, restoring them after the test.
func isolateEnv(t *testing.T, extra ...string) {
	t.Helper()

	keys := append([]string{ConfigFileEnv}, extra...)
	typ := reflect.TypeOf(Config{})
	for i := 0; i < typ.NumField(); i++ {
		if k := typ.Field(i).Tag.Get("env"); k != "" {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolateEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 5*time.Second, cfg.ReadHeaderTimeout)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 1<<20, cfg.MaxHeaderBytes)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, "askfm", cfg.DBSchema)
	assert.Equal(t, int32(10), cfg.DBMaxConns)
	assert.Equal(t, "askfm.db", cfg.SQLitePath)
	assert.Empty(t, cfg.RedisAddr)
	assert.True(t, cfg.MetricsEnabled)
	assert.False(t, cfg.RequireRefreshHMAC)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	isolateEnv(t)
	t.Setenv("ASKFM_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("ASKFM_LOG_FORMAT", "text")
	t.Setenv("ASKFM_HTTP_READ_TIMEOUT", "3s")
	t.Setenv("ASKFM_DB_MAX_CONNS", "4")
	t.Setenv("ASKFM_REDIS_ADDR", "localhost:6379")
	t.Setenv("ASKFM_METRICS_ENABLED", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 3*time.Second, cfg.ReadTimeout)
	assert.Equal(t, int32(4), cfg.DBMaxConns)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.False(t, cfg.MetricsEnabled)
}

func TestLoadConfig_YAMLFileThenEnv(t *testing.T) {
	isolateEnv(t)

	path := filepath.Join(t.TempDir(), "askfm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"http_addr: 127.0.0.1:7000\n"+
			"sqlite_path: /tmp/askfm-test.db\n"+
			"write_timeout: 20s\n"+
			"log_level: debug\n",
	), 0o600))
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("ASKFM_LOG_LEVEL", "error")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", cfg.HTTPAddr)
	assert.Equal(t, "/tmp/askfm-test.db", cfg.SQLitePath)
	assert.Equal(t, 20*time.Second, cfg.WriteTimeout)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad duration", env: map[string]string{"ASKFM_HTTP_READ_TIMEOUT": "soon"}},
		{name: "bad int", env: map[string]string{"ASKFM_DB_MAX_CONNS": "many"}},
		{name: "bad log format", env: map[string]string{"ASKFM_LOG_FORMAT": "xml"}},
		{name: "min above max", env: map[string]string{"ASKFM_DB_MIN_CONNS": "8", "ASKFM_DB_MAX_CONNS": "2"}},
		{name: "missing config file", env: map[string]string{ConfigFileEnv: "/nonexistent/askfm.yaml"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			isolateEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()
			require.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	base := Config{HTTPAddr: ":8080", SQLitePath: "askfm.db", DBSchema: "askfm"}
	require.NoError(t, base.Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "empty addr", mutate: func(c *Config) { c.HTTPAddr = " " }},
		{name: "no backend", mutate: func(c *Config) { c.SQLitePath = "" }},
		{name: "postgres without schema", mutate: func(c *Config) { c.DatabaseURL = "postgres://x"; c.DBSchema = "" }},
		{name: "negative conns", mutate: func(c *Config) { c.DBMaxConns = -1 }},
	}
	for _, tc := range cases {
		cfg := base
		tc.mutate(&cfg)
		assert.ErrorIs(t, cfg.Validate(), ErrConfig, tc.name)
	}
}
