package password

import (
	"fmt"
	"math"
	"runtime"
	"strconv"

	"github.com/ilyakaznacheev/cleanenv"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy bounds the login secrets accepted by Hash and CheckSecret.
type Policy struct {
	MinLength int
	MaxLength int
	// RejectVeryWeak turns on the placeholder and small-alphabet checks.
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns the baseline used for the login secret hash.
func DefaultConfig() Config {
	// Clamp to [1..4] to keep resource usage predictable in containers.
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024, // 64 MiB
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength:      12,
			MaxLength:      256,
			RejectVeryWeak: false,
		},
	}
}

// envConfig is the raw env surface. Zero values mean "keep the default".
type envConfig struct {
	MinLength      int    `env:"CHECKLISTS_PASSWORD_MIN_LEN"`
	MaxLength      int    `env:"CHECKLISTS_PASSWORD_MAX_LEN"`
	RejectVeryWeak string `env:"CHECKLISTS_PASSWORD_REJECT_VERY_WEAK"`
	MemoryKiB      uint32 `env:"CHECKLISTS_ARGON2_MEMORY_KIB"`
	Iterations     uint32 `env:"CHECKLISTS_ARGON2_ITERATIONS"`
	Parallelism    uint32 `env:"CHECKLISTS_ARGON2_PARALLELISM"`
	SaltLength     uint32 `env:"CHECKLISTS_ARGON2_SALT_LEN"`
	KeyLength      uint32 `env:"CHECKLISTS_ARGON2_KEY_LEN"`
}

// FromEnv loads config from CHECKLISTS_PASSWORD_* and CHECKLISTS_ARGON2_*
// variables on top of DefaultConfig.
func FromEnv() (Config, error) {
	var raw envConfig
	if err := cleanenv.ReadEnv(&raw); err != nil {
		return Config{}, fmt.Errorf("password: config: %w", err)
	}

	cfg := DefaultConfig()
	if err := raw.apply(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength,
			cfg.Policy.MaxLength,
		)
	}
	return cfg, nil
}

func (e envConfig) apply(cfg *Config) error {
	checks := []struct {
		name     string
		v        uint64
		min, max uint64
		set      func(uint64)
	}{
		{"CHECKLISTS_PASSWORD_MIN_LEN", uint64(max(e.MinLength, 0)), 1, 1024, func(v uint64) { cfg.Policy.MinLength = int(v) }},
		{"CHECKLISTS_PASSWORD_MAX_LEN", uint64(max(e.MaxLength, 0)), 1, 4096, func(v uint64) { cfg.Policy.MaxLength = int(v) }},
		{"CHECKLISTS_ARGON2_MEMORY_KIB", uint64(e.MemoryKiB), 8 * 1024, 1024 * 1024, func(v uint64) { cfg.Params.MemoryKiB = uint32(v) }},
		{"CHECKLISTS_ARGON2_ITERATIONS", uint64(e.Iterations), 1, 20, func(v uint64) { cfg.Params.Iterations = uint32(v) }},
		{"CHECKLISTS_ARGON2_PARALLELISM", uint64(e.Parallelism), 1, math.MaxUint8, func(v uint64) { cfg.Params.Parallelism = uint8(v) }},
		{"CHECKLISTS_ARGON2_SALT_LEN", uint64(e.SaltLength), 8, 64, func(v uint64) { cfg.Params.SaltLength = uint32(v) }},
		{"CHECKLISTS_ARGON2_KEY_LEN", uint64(e.KeyLength), 16, 64, func(v uint64) { cfg.Params.KeyLength = uint32(v) }},
	}
	if e.MinLength < 0 || e.MaxLength < 0 {
		return fmt.Errorf("password: lengths must not be negative")
	}
	for _, c := range checks {
		if c.v == 0 {
			continue
		}
		if c.v < c.min || c.v > c.max {
			return fmt.Errorf("%s: out of range [%d..%d]", c.name, c.min, c.max)
		}
		c.set(c.v)
	}
	if e.RejectVeryWeak != "" {
		b, err := strconv.ParseBool(e.RejectVeryWeak)
		if err != nil {
			return fmt.Errorf("CHECKLISTS_PASSWORD_REJECT_VERY_WEAK: invalid boolean")
		}
		cfg.Policy.RejectVeryWeak = b
	}
	return nil
}
