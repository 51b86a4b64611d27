package token

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasher_DeterministicAndHex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  string
		hmac bool
	}{
		{name: "sha256", key: "", hmac: false},
		{name: "blank key falls back to sha256", key: "   ", hmac: false},
		{name: "hmac", key: strings.Repeat("k", MinHMACKeyBytes), hmac: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h, err := NewHasher(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.hmac, h.HMAC())

			a := h.Hash("raw-refresh-token")
			b := h.Hash("raw-refresh-token")
			assert.Equal(t, a, b)
			assert.Len(t, a, 64)
			assert.NotContains(t, a, "raw-refresh-token")
			assert.NotEqual(t, a, h.Hash("other-token"))
		})
	}
}

func TestHasher_HMACDiffersFromSHA(t *testing.T) {
	t.Parallel()

	keyed, err := NewHasher(strings.Repeat("x", 40))
	require.NoError(t, err)

	assert.NotEqual(t, HashSHA256Hex("tok"), keyed.Hash("tok"))
	assert.Equal(t, HashSHA256Hex("tok"), Hasher{}.Hash("tok"))
}

func TestNewHasher_ShortKey(t *testing.T) {
	t.Parallel()

	_, err := NewHasher("too-short")
	require.ErrorIs(t, err, ErrHMACKeyTooShort)
}

func TestNewOpaque(t *testing.T) {
	t.Parallel()

	raw, err := NewOpaque(MinOpaqueBytes)
	require.NoError(t, err)

	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	require.NoError(t, err)
	assert.Len(t, decoded, MinOpaqueBytes)

	other, err := NewOpaque(MinOpaqueBytes)
	require.NoError(t, err)
	assert.NotEqual(t, raw, other)
}

func TestNewOpaque_TooSmall(t *testing.T) {
	t.Parallel()

	_, err := NewOpaque(32)
	require.ErrorIs(t, err, ErrTokenTooShort)
}
