package apitoken

import (
	"fmt"
	"regexp"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

var prefixRE = regexp.MustCompile(`^[a-z][a-z0-9]{0,15}_$`)

// Config controls API token issuance and validation.
type Config struct {
	// Prefix marks token strings so they are recognisable in logs and secret scanners.
	Prefix string `yaml:"prefix" env:"CHECKLISTS_API_TOKEN_PREFIX" env-default:"chk_"`

	DefaultTTL time.Duration `yaml:"default_ttl" env:"CHECKLISTS_API_TOKEN_DEFAULT_TTL" env-default:"8760h"`

	// LastUsedInterval throttles lastUsedAtIso writes per token.
	LastUsedInterval time.Duration `yaml:"last_used_interval" env:"CHECKLISTS_API_TOKEN_LAST_USED_INTERVAL" env-default:"1m"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Prefix:           "chk_",
		DefaultTTL:       365 * 24 * time.Hour,
		LastUsedInterval: time.Minute,
	}
}

// LoadConfigFromEnv reads CHECKLISTS_API_TOKEN_* variables.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field invariants.
func (c Config) Validate() error {
	if !prefixRE.MatchString(c.Prefix) {
		return fmt.Errorf("%w: prefix must match %s", ErrConfig, prefixRE)
	}
	if c.DefaultTTL <= 0 {
		return fmt.Errorf("%w: default ttl must be positive", ErrConfig)
	}
	if c.LastUsedInterval < 0 {
		return fmt.Errorf("%w: last-used interval must not be negative", ErrConfig)
	}
	return nil
}
