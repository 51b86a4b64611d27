package app

import (
	"errors"
	"fmt"
)

// RefreshHasher reports how refresh tokens are digested at rest.
type RefreshHasher interface {
	KeyedHashing() bool
}

// ValidateSecurityConfig enforces the refresh-token hashing policy at startup.
// Falling back to plain SHA-256 when HMAC is required is a startup error.
func ValidateSecurityConfig(cfg Config, hasher RefreshHasher) error {
	if !cfg.RequireRefreshHMAC {
		return nil
	}
	if hasher == nil {
		return errors.New("security policy: no refresh token hasher")
	}
	if !hasher.KeyedHashing() {
		return fmt.Errorf("%w: ASKFM_REQUIRE_REFRESH_HMAC=true but ASKFM_REFRESH_HASH_KEY is not set", ErrConfig)
	}
	return nil
}
