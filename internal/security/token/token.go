package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// MinHMACKeyBytes is the minimum accepted HMAC key size.
const MinHMACKeyBytes = 32

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// Hasher digests refresh tokens for server-side storage and lookup.
// The zero value hashes with plain SHA-256.
type Hasher struct {
	key []byte
}

// NewHasher returns a Hasher. An empty (after trim) key selects SHA-256 mode;
// a non-empty key shorter than MinHMACKeyBytes is rejected.
func NewHasher(key string) (Hasher, error) {
	k := strings.TrimSpace(key)
	if k == "" {
		return Hasher{}, nil
	}
	// Bytes, not runes: the key is used raw.
	if len(k) < MinHMACKeyBytes {
		return Hasher{}, ErrHMACKeyTooShort
	}
	return Hasher{key: []byte(k)}, nil
}

// HMAC reports whether h is in keyed mode.
func (h Hasher) HMAC() bool { return len(h.key) > 0 }

// Hash returns the hex digest of raw.
func (h Hasher) Hash(raw string) string {
	if len(h.key) == 0 {
		return HashSHA256Hex(raw)
	}
	return HashHMACSHA256Hex(raw, h.key)
}
