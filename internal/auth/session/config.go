package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/KhaledSayed04/Askfm-Clone/internal/security/token"
)

// MinSigningKeyBytes is the minimum HS256 key length.
const MinSigningKeyBytes = 32

// Config defines all runtime configuration for the session subsystem.
type Config struct {
	// SigningKey is the symmetric HS256 key for access tokens.
	SigningKey string

	// Issuer and Audience are set in and required on every access token.
	Issuer   string
	Audience string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// ClockSkew is the leeway allowed when validating exp/nbf/iat.
	ClockSkew time.Duration

	// RefreshTokenBytes is the entropy of opaque refresh tokens.
	RefreshTokenBytes int

	// RefreshHashKey switches refresh hashing to HMAC-SHA256 when non-empty.
	RefreshHashKey string

	// RevokeAllOnReuse revokes every session of a user when a rotated
	// refresh token is presented again.
	RevokeAllOnReuse bool

	// RotationGrace is how long after a rotation the rotated token counts as
	// a concurrent refresh of the same token rather than a replay. Such a
	// caller gets a retryable conflict and no sessions are revoked.
	RotationGrace time.Duration
}

// DefaultConfig returns defaults without a signing key.
func DefaultConfig() Config {
	return Config{
		Issuer:            "askfm",
		Audience:          "askfm-clients",
		AccessTokenTTL:    15 * time.Minute,
		RefreshTokenTTL:   30 * 24 * time.Hour,
		ClockSkew:         30 * time.Second,
		RefreshTokenBytes: token.MinOpaqueBytes,
		RevokeAllOnReuse:  true,
		RotationGrace:     10 * time.Second,
	}
}

type envConfig struct {
	SigningKey        string        `env:"ASKFM_JWT_SIGNING_KEY" env-description:"HS256 key, at least 32 bytes"`
	Issuer            string        `env:"ASKFM_JWT_ISSUER" env-default:"askfm"`
	Audience          string        `env:"ASKFM_JWT_AUDIENCE" env-default:"askfm-clients"`
	AccessTTLMinutes  int           `env:"ASKFM_ACCESS_TOKEN_TTL_MINUTES" env-default:"15"`
	RefreshTTLDays    int           `env:"ASKFM_REFRESH_TOKEN_TTL_DAYS" env-default:"30"`
	RefreshTokenBytes int           `env:"ASKFM_REFRESH_TOKEN_BYTES" env-default:"64"`
	RefreshHashKey    string        `env:"ASKFM_REFRESH_HASH_KEY"`
	ClockSkew         time.Duration `env:"ASKFM_CLOCK_SKEW" env-default:"30s"`
	RevokeAllOnReuse  bool          `env:"ASKFM_REVOKE_ALL_ON_REUSE" env-default:"true"`
	RotationGrace     time.Duration `env:"ASKFM_REFRESH_ROTATION_GRACE" env-default:"10s"`
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - ASKFM_JWT_SIGNING_KEY
//
// Optional:
//   - ASKFM_JWT_ISSUER, ASKFM_JWT_AUDIENCE
//   - ASKFM_ACCESS_TOKEN_TTL_MINUTES, ASKFM_REFRESH_TOKEN_TTL_DAYS
//   - ASKFM_REFRESH_TOKEN_BYTES (at least 64)
//   - ASKFM_REFRESH_HASH_KEY (empty, or at least 32 bytes)
//   - ASKFM_CLOCK_SKEW (Go duration)
//   - ASKFM_REVOKE_ALL_ON_REUSE
//   - ASKFM_REFRESH_ROTATION_GRACE (Go duration, at most 1m)
//
// Returns an error wrapping ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	var env envConfig
	if err := cleanenv.ReadEnv(&env); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	if env.AccessTTLMinutes <= 0 {
		return Config{}, fmt.Errorf("%w: access token ttl must be positive", ErrConfig)
	}
	if env.RefreshTTLDays <= 0 {
		return Config{}, fmt.Errorf("%w: refresh token ttl must be positive", ErrConfig)
	}

	cfg := Config{
		SigningKey:        env.SigningKey,
		Issuer:            strings.TrimSpace(env.Issuer),
		Audience:          strings.TrimSpace(env.Audience),
		AccessTokenTTL:    time.Duration(env.AccessTTLMinutes) * time.Minute,
		RefreshTokenTTL:   time.Duration(env.RefreshTTLDays) * 24 * time.Hour,
		ClockSkew:         env.ClockSkew,
		RefreshTokenBytes: env.RefreshTokenBytes,
		RefreshHashKey:    env.RefreshHashKey,
		RevokeAllOnReuse:  env.RevokeAllOnReuse,
		RotationGrace:     env.RotationGrace,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks a Config built in code or from env.
func (c Config) Validate() error {
	if len(strings.TrimSpace(c.SigningKey)) < MinSigningKeyBytes {
		return fmt.Errorf("%w: signing key must be at least %d bytes", ErrConfig, MinSigningKeyBytes)
	}
	if c.Issuer == "" || c.Audience == "" {
		return fmt.Errorf("%w: issuer and audience are required", ErrConfig)
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("%w: token ttls must be positive", ErrConfig)
	}
	if c.RefreshTokenTTL <= c.AccessTokenTTL {
		return fmt.Errorf("%w: refresh ttl must exceed access ttl", ErrConfig)
	}
	if c.ClockSkew < 0 || c.ClockSkew > 5*time.Minute {
		return fmt.Errorf("%w: clock skew out of range", ErrConfig)
	}
	if c.RotationGrace < 0 || c.RotationGrace > time.Minute {
		return fmt.Errorf("%w: rotation grace out of range [0..1m]", ErrConfig)
	}
	if c.RefreshTokenBytes < token.MinOpaqueBytes || c.RefreshTokenBytes > 256 {
		return fmt.Errorf("%w: refresh token bytes out of range [%d..256]", ErrConfig, token.MinOpaqueBytes)
	}
	if _, err := token.NewHasher(c.RefreshHashKey); err != nil {
		return fmt.Errorf("%w: refresh hash key: %v", ErrConfig, err)
	}
	return nil
}
