package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func fastConfig(algo Algorithm) Config {
	cfg := DefaultConfig()
	cfg.Algorithm = algo
	cfg.BcryptCost = bcrypt.MinCost
	cfg.Argon2.MemoryKiB = 8 * 1024
	cfg.Argon2.Iterations = 1
	cfg.Argon2.Parallelism = 1
	return cfg
}

func TestHashAndVerify(t *testing.T) {
	t.Parallel()

	for _, algo := range []Algorithm{AlgorithmBcrypt, AlgorithmArgon2id} {
		t.Run(string(algo), func(t *testing.T) {
			t.Parallel()

			cfg := fastConfig(algo)
			h, err := cfg.Hash("correct horse battery staple")
			require.NoError(t, err)
			assert.NotContains(t, h, "correct horse")

			ok, err := cfg.Verify(h, "correct horse battery staple")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = cfg.Verify(h, "wrong password")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestHash_Salted(t *testing.T) {
	t.Parallel()

	cfg := fastConfig(AlgorithmBcrypt)
	a, err := cfg.Hash("same-password")
	require.NoError(t, err)
	b, err := cfg.Hash("same-password")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerify_CrossAlgorithm(t *testing.T) {
	t.Parallel()

	argon := fastConfig(AlgorithmArgon2id)
	h, err := argon.Hash("migrated-user-password")
	require.NoError(t, err)

	// A bcrypt-configured verifier still accepts argon2id hashes.
	ok, err := fastConfig(AlgorithmBcrypt).Verify(h, "migrated-user-password")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_InvalidHash(t *testing.T) {
	t.Parallel()

	cfg := fastConfig(AlgorithmBcrypt)
	for _, h := range []string{"", "not-a-hash", "$argon2id$v=18$m=1,t=1,p=1$x$y", "$2a$10$short"} {
		ok, err := cfg.Verify(h, "whatever")
		require.ErrorIs(t, err, ErrInvalidHash, "hash %q", h)
		assert.False(t, ok)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Policy.MinLength = 8
	cfg.Policy.MaxLength = 16

	tests := []struct {
		name string
		pw   string
		want error
	}{
		{name: "short", pw: "short", want: ErrPasswordTooShort},
		{name: "long", pw: "this password is definitely too long", want: ErrPasswordTooLong},
		{name: "ok", pw: "goodpassw0rd!", want: nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cfg.Validate(tt.pw), tt.name)
	}
}

func TestValidate_BcryptByteLimit(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Policy.MaxLength = 200

	// 40 runes but 80 bytes.
	pw := strings.Repeat("é", 40)
	assert.Equal(t, ErrPasswordTooLong, cfg.Validate(pw))

	cfg.Algorithm = AlgorithmArgon2id
	assert.NoError(t, cfg.Validate(pw))
}

func TestPolicy_RejectVeryWeak(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Policy.RejectVeryWeak = true
	cfg.Policy.MinLength = 8

	assert.Equal(t, ErrWeakPassword, cfg.Validate("password"))
	assert.Equal(t, ErrWeakPassword, cfg.Validate("11111111"))
	assert.NoError(t, cfg.Validate("a-very-ok-pass"))
}
