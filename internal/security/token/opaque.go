package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// MinOpaqueBytes is the minimum entropy of a refresh token.
const MinOpaqueBytes = 64

// NewOpaque returns nBytes of crypto/rand output, base64url-encoded without padding.
func NewOpaque(nBytes int) (string, error) {
	if nBytes < MinOpaqueBytes {
		return "", ErrTokenTooShort
	}

	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("token: read random: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
