// Package token provides the refresh-token primitives for Askfm.
//
// Refresh tokens are opaque random strings. Only their digest is persisted:
//   - SHA-256(token) when no key is configured.
//   - HMAC-SHA256(token, key) when a key is configured.
//
// Both modes produce a stable 64-char hex string suitable for a unique index.
package token
