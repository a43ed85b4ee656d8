package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/seanWLawrence/checklists-sub000/cmd/internal/auth/username"

	"github.com/ilyakaznacheev/cleanenv"
)

// MinSigningSecretBytes is the shortest HS256 secret accepted at startup.
const MinSigningSecretBytes = 32

// Config defines runtime configuration for browser sessions.
//
// Issuer and Audience default to CanonicalURL. When neither is known the
// iss/aud claims are not emitted and not checked.
type Config struct {
	CanonicalURL string `yaml:"canonical_url" env:"CHECKLISTS_CANONICAL_URL"`
	Issuer       string `yaml:"issuer" env:"CHECKLISTS_AUTH_ISSUER"`
	Audience     string `yaml:"audience" env:"CHECKLISTS_AUTH_AUDIENCE"`

	AccessTTL    time.Duration `yaml:"access_ttl" env:"CHECKLISTS_AUTH_ACCESS_TTL" env-default:"15m"`
	MaxStaleness time.Duration `yaml:"max_staleness" env:"CHECKLISTS_AUTH_MAX_STALENESS" env-default:"15m"`

	// RefreshTTL is the hard age limit of a refresh record (checked against createdAtIso).
	RefreshTTL time.Duration `yaml:"refresh_ttl" env:"CHECKLISTS_AUTH_REFRESH_TTL" env-default:"720h"`
	// A record at least RotateAfter-RotationLeeway old is replaced on refresh.
	RotateAfter    time.Duration `yaml:"rotate_after" env:"CHECKLISTS_AUTH_ROTATE_AFTER" env-default:"696h"`
	RotationLeeway time.Duration `yaml:"rotation_leeway" env:"CHECKLISTS_AUTH_ROTATION_LEEWAY" env-default:"1m"`

	SigningSecret string `yaml:"-" env:"CHECKLISTS_AUTH_SIGNING_SECRET"`

	// LoginSecret is the shared login password: plaintext, or an argon2id PHC string.
	LoginSecret string `yaml:"-" env:"CHECKLISTS_AUTH_LOGIN_SECRET"`

	// Users optionally restricts which usernames may log in.
	Users []string `yaml:"users" env:"CHECKLISTS_AUTH_USERS" env-separator:","`
}

// DefaultConfig returns defaults without secrets.
func DefaultConfig() Config {
	return Config{
		AccessTTL:      15 * time.Minute,
		MaxStaleness:   15 * time.Minute,
		RefreshTTL:     30 * 24 * time.Hour,
		RotateAfter:    29 * 24 * time.Hour,
		RotationLeeway: time.Minute,
	}
}

// LoadConfigFromEnv loads session configuration from CHECKLISTS_* variables.
//
// Required:
//   - CHECKLISTS_AUTH_SIGNING_SECRET (at least 32 bytes)
//   - CHECKLISTS_AUTH_LOGIN_SECRET
//
// Returns an error wrapping ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	cfg = cfg.withDerived()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) withDerived() Config {
	c.CanonicalURL = strings.TrimRight(strings.TrimSpace(c.CanonicalURL), "/")
	if c.Issuer == "" {
		c.Issuer = c.CanonicalURL
	}
	if c.Audience == "" {
		c.Audience = c.CanonicalURL
	}
	users := c.Users[:0:0]
	for _, u := range c.Users {
		if u = strings.TrimSpace(u); u != "" {
			users = append(users, u)
		}
	}
	c.Users = users
	return c
}

// Validate checks invariants between fields.
func (c Config) Validate() error {
	switch {
	case len(c.SigningSecret) < MinSigningSecretBytes:
		return fmt.Errorf("%w: signing secret must be at least %d bytes", ErrConfig, MinSigningSecretBytes)
	case c.LoginSecret == "":
		return fmt.Errorf("%w: login secret is required", ErrConfig)
	case c.AccessTTL <= 0 || c.MaxStaleness <= 0:
		return fmt.Errorf("%w: access ttl and staleness must be positive", ErrConfig)
	case c.RefreshTTL <= 0 || c.RotateAfter <= 0 || c.RotationLeeway < 0:
		return fmt.Errorf("%w: refresh durations must be positive", ErrConfig)
	case c.RotateAfter > c.RefreshTTL:
		return fmt.Errorf("%w: rotate-after exceeds refresh ttl", ErrConfig)
	case (c.Issuer == "") != (c.Audience == ""):
		return fmt.Errorf("%w: issuer and audience must be set together", ErrConfig)
	}
	for _, u := range c.Users {
		if !username.Valid(u) {
			return fmt.Errorf("%w: invalid username %q in allowlist", ErrConfig, u)
		}
	}
	return nil
}
