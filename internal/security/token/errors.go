package token

import "errors"

// Public, stable errors for callers.
var (
	ErrHMACKeyTooShort = errors.New("token HMAC key too short")
	ErrTokenTooShort   = errors.New("opaque token entropy too small")
)
