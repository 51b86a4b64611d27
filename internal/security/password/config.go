package password

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"golang.org/x/crypto/bcrypt"
)

// Algorithm selects the hash used for new passwords.
type Algorithm string

const (
	AlgorithmBcrypt   Algorithm = "bcrypt"
	AlgorithmArgon2id Algorithm = "argon2id"
)

// bcryptMaxBytes is the input limit of bcrypt; longer input is rejected.
const bcryptMaxBytes = 72

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy controls password validation.
type Policy struct {
	MinLength      int
	MaxLength      int
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Algorithm  Algorithm
	BcryptCost int
	Argon2     Argon2idParams
	Policy     Policy
}

// DefaultConfig returns bcrypt at the library default cost and a permissive policy.
func DefaultConfig() Config {
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Algorithm:  AlgorithmBcrypt,
		BcryptCost: bcrypt.DefaultCost,
		Argon2: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength: 1,
			MaxLength: bcryptMaxBytes,
		},
	}
}

type envConfig struct {
	Algorithm         string `env:"ASKFM_PASSWORD_ALGO" env-default:"bcrypt" env-description:"bcrypt or argon2id"`
	BcryptCost        int    `env:"ASKFM_BCRYPT_COST" env-default:"10"`
	MinLength         int    `env:"ASKFM_PASSWORD_MIN_LEN" env-default:"1"`
	MaxLength         int    `env:"ASKFM_PASSWORD_MAX_LEN" env-default:"72"`
	RejectVeryWeak    bool   `env:"ASKFM_PASSWORD_REJECT_VERY_WEAK" env-default:"false"`
	Argon2MemoryKiB   uint32 `env:"ASKFM_ARGON2_MEMORY_KIB" env-default:"65536"`
	Argon2Iterations  uint32 `env:"ASKFM_ARGON2_ITERATIONS" env-default:"3"`
	Argon2Parallelism uint8  `env:"ASKFM_ARGON2_PARALLELISM" env-default:"2"`
}

// FromEnv loads config from environment variables on top of DefaultConfig.
func FromEnv() (Config, error) {
	var env envConfig
	if err := cleanenv.ReadEnv(&env); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	cfg := DefaultConfig()
	cfg.Algorithm = Algorithm(strings.ToLower(strings.TrimSpace(env.Algorithm)))
	cfg.BcryptCost = env.BcryptCost
	cfg.Policy.MinLength = env.MinLength
	cfg.Policy.MaxLength = env.MaxLength
	cfg.Policy.RejectVeryWeak = env.RejectVeryWeak
	cfg.Argon2.MemoryKiB = env.Argon2MemoryKiB
	cfg.Argon2.Iterations = env.Argon2Iterations
	cfg.Argon2.Parallelism = env.Argon2Parallelism

	if err := cfg.Check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Check validates the config itself (not a password).
func (c Config) Check() error {
	switch c.Algorithm {
	case AlgorithmBcrypt:
		if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
			return fmt.Errorf("%w: bcrypt cost out of range [%d..%d]", ErrConfig, bcrypt.MinCost, bcrypt.MaxCost)
		}
	case AlgorithmArgon2id:
		if c.Argon2.MemoryKiB < 8*1024 || c.Argon2.MemoryKiB > 1024*1024 {
			return fmt.Errorf("%w: argon2 memory out of range", ErrConfig)
		}
		if c.Argon2.Iterations < 1 || c.Argon2.Iterations > 20 {
			return fmt.Errorf("%w: argon2 iterations out of range", ErrConfig)
		}
		if c.Argon2.Parallelism < 1 {
			return fmt.Errorf("%w: argon2 parallelism out of range", ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown algorithm %q", ErrConfig, c.Algorithm)
	}

	if c.Policy.MinLength < 1 || c.Policy.MaxLength < 1 {
		return fmt.Errorf("%w: password lengths must be positive", ErrConfig)
	}
	if c.Policy.MinLength > c.Policy.MaxLength {
		return fmt.Errorf(
			"%w: min_len(%d) > max_len(%d)",
			ErrConfig,
			c.Policy.MinLength,
			c.Policy.MaxLength,
		)
	}
	return nil
}
