// Package session implements the Askfm session lifecycle.
//
// It provides a multi-device session model keyed by (user, device), with
// refresh-token rotation, reuse detection and per-device/per-user revocation.
//
// Access tokens are HS256 JWTs and are short-lived. Refresh tokens are opaque
// random strings stored hashed in the ledger (HMAC-SHA256 when
// ASKFM_REFRESH_HASH_KEY is set; otherwise SHA-256).
//
// Business failures are reported as Outcome values. A non-nil error from a
// Service method always wraps ErrFatal.
package session
