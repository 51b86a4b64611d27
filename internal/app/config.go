package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// ErrConfig marks an invalid runtime configuration.
var ErrConfig = errors.New("app: invalid config")

// ConfigFileEnv names an optional YAML file read before the environment.
const ConfigFileEnv = "ASKFM_CONFIG"

// Config contains all runtime configuration. Environment variables override
// values from the optional YAML file.
type Config struct {
	HTTPAddr  string `yaml:"http_addr" env:"ASKFM_HTTP_ADDR" env-default:"0.0.0.0:8080"`
	LogLevel  string `yaml:"log_level" env:"ASKFM_LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env:"ASKFM_LOG_FORMAT" env-default:"json" env-description:"json or text"`

	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"ASKFM_HTTP_READ_HEADER_TIMEOUT" env-default:"5s"`
	ReadTimeout       time.Duration `yaml:"read_timeout" env:"ASKFM_HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout      time.Duration `yaml:"write_timeout" env:"ASKFM_HTTP_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" env:"ASKFM_HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"ASKFM_HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
	MaxHeaderBytes    int           `yaml:"max_header_bytes" env:"ASKFM_HTTP_MAX_HEADER_BYTES" env-default:"1048576"`

	// DatabaseURL selects Postgres. When empty the server runs on SQLite at SQLitePath.
	DatabaseURL string `yaml:"database_url" env:"ASKFM_DATABASE_URL"`
	DBSchema    string `yaml:"db_schema" env:"ASKFM_DB_SCHEMA" env-default:"askfm"`
	DBMaxConns  int32  `yaml:"db_max_conns" env:"ASKFM_DB_MAX_CONNS" env-default:"10"`
	DBMinConns  int32  `yaml:"db_min_conns" env:"ASKFM_DB_MIN_CONNS" env-default:"0"`
	SQLitePath  string `yaml:"sqlite_path" env:"ASKFM_SQLITE_PATH" env-default:"askfm.db"`

	// If true, /readyz returns 503 unless Postgres is configured and reachable.
	ReadinessRequireDB bool `yaml:"readiness_require_db" env:"ASKFM_READINESS_REQUIRE_DB" env-default:"false"`

	// Login throttling moves to Redis when RedisAddr is set.
	RedisAddr     string `yaml:"redis_addr" env:"ASKFM_REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"ASKFM_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"ASKFM_REDIS_DB" env-default:"0"`

	MetricsEnabled bool `yaml:"metrics_enabled" env:"ASKFM_METRICS_ENABLED" env-default:"true"`

	// If true, ASKFM_REFRESH_HASH_KEY must be set and refresh tokens are stored as HMAC digests.
	RequireRefreshHMAC bool `yaml:"require_refresh_hmac" env:"ASKFM_REQUIRE_REFRESH_HMAC" env-default:"false"`
}

// LoadConfig reads the YAML file named by ASKFM_CONFIG, if any, then the environment.
func LoadConfig() (Config, error) {
	var cfg Config

	var err error
	if path := strings.TrimSpace(os.Getenv(ConfigFileEnv)); path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return fmt.Errorf("%w: http addr is empty", ErrConfig)
	}
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "", "json", "text":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrConfig, c.LogFormat)
	}
	if c.DatabaseURL == "" && strings.TrimSpace(c.SQLitePath) == "" {
		return fmt.Errorf("%w: neither database url nor sqlite path is set", ErrConfig)
	}
	if c.DatabaseURL != "" && strings.TrimSpace(c.DBSchema) == "" {
		return fmt.Errorf("%w: db schema is empty", ErrConfig)
	}
	if c.DBMaxConns < 0 || c.DBMinConns < 0 {
		return fmt.Errorf("%w: db connection limits must not be negative", ErrConfig)
	}
	if c.DBMaxConns > 0 && c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("%w: db min conns (%d) > max conns (%d)", ErrConfig, c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
