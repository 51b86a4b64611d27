package authapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// ErrConfig is returned for invalid auth API configuration.
var ErrConfig = errors.New("invalid auth api config")

// Config controls auth API behavior and security defaults.
type Config struct {
	TrustProxy    bool
	MaxBodyBytes  int64
	LoginIPMax    int
	LoginIPWindow time.Duration
}

// DefaultConfig returns the defaults used when no environment is set.
func DefaultConfig() Config {
	return Config{
		TrustProxy:    false,
		MaxBodyBytes:  1 << 20, // 1 MiB
		LoginIPMax:    20,
		LoginIPWindow: 5 * time.Minute,
	}
}

type envConfig struct {
	TrustProxy    bool          `env:"ASKFM_AUTH_TRUST_PROXY" env-default:"false" env-description:"honor X-Forwarded-For / X-Real-IP"`
	MaxBodyBytes  int64         `env:"ASKFM_AUTH_MAX_BODY_BYTES" env-default:"1048576"`
	LoginIPMax    int           `env:"ASKFM_AUTH_LOGIN_IP_MAX" env-default:"20"`
	LoginIPWindow time.Duration `env:"ASKFM_AUTH_LOGIN_IP_WINDOW" env-default:"5m"`
}

// LoadConfigFromEnv loads auth API config from environment variables.
// Non-positive values fall back to defaults; unparsable values are an error.
func LoadConfigFromEnv() (Config, error) {
	var env envConfig
	if err := cleanenv.ReadEnv(&env); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	def := DefaultConfig()
	cfg := Config{
		TrustProxy:    env.TrustProxy,
		MaxBodyBytes:  env.MaxBodyBytes,
		LoginIPMax:    env.LoginIPMax,
		LoginIPWindow: env.LoginIPWindow,
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.LoginIPMax <= 0 {
		cfg.LoginIPMax = def.LoginIPMax
	}
	if cfg.LoginIPWindow <= 0 {
		cfg.LoginIPWindow = def.LoginIPWindow
	}

	return cfg, nil
}
