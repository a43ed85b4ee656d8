package authapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config controls the auth HTTP surface and its rate limits.
type Config struct {
	Env          string `yaml:"env" env:"CHECKLISTS_ENV" env-default:"development"`
	CanonicalURL string `yaml:"canonical_url" env:"CHECKLISTS_CANONICAL_URL"`

	TrustProxy     bool   `yaml:"trust_proxy" env:"CHECKLISTS_AUTH_TRUST_PROXY" env-default:"false"`
	MaxBodyBytes   int64  `yaml:"max_body_bytes" env:"CHECKLISTS_AUTH_MAX_BODY_BYTES" env-default:"65536"`
	LogoutRedirect string `yaml:"logout_redirect" env:"CHECKLISTS_LOGOUT_REDIRECT" env-default:"/login"`

	// Failed logins per client IP.
	LoginMax    int           `yaml:"login_max" env:"CHECKLISTS_AUTH_LOGIN_MAX" env-default:"10"`
	LoginWindow time.Duration `yaml:"login_window" env:"CHECKLISTS_AUTH_LOGIN_WINDOW" env-default:"15m"`

	// Failed credential presentations (bearer or cookie) per client IP.
	FailureMax    int           `yaml:"failure_max" env:"CHECKLISTS_AUTH_FAILURE_MAX" env-default:"30"`
	FailureWindow time.Duration `yaml:"failure_window" env:"CHECKLISTS_AUTH_FAILURE_WINDOW" env-default:"5m"`
}

// DefaultConfig mirrors the env defaults.
func DefaultConfig() Config {
	return Config{
		Env:            "development",
		MaxBodyBytes:   64 << 10,
		LogoutRedirect: "/login",
		LoginMax:       10,
		LoginWindow:    15 * time.Minute,
		FailureMax:     30,
		FailureWindow:  5 * time.Minute,
	}
}

// LoadConfigFromEnv loads auth API config from CHECKLISTS_* variables.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("authapi: config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field invariants.
func (c Config) Validate() error {
	switch {
	case c.MaxBodyBytes <= 0:
		return fmt.Errorf("authapi: max body bytes must be positive")
	case c.LoginMax <= 0 || c.LoginWindow <= 0:
		return fmt.Errorf("authapi: login limit must be positive")
	case c.FailureMax <= 0 || c.FailureWindow <= 0:
		return fmt.Errorf("authapi: failure limit must be positive")
	case !localRedirect(c.LogoutRedirect):
		return fmt.Errorf("authapi: logout redirect must be a local path")
	}
	return nil
}

// Production reports whether cookies must be Secure.
func (c Config) Production() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

// localRedirect rejects absolute and protocol-relative URLs.
func localRedirect(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.Contains(p, `\`)
}
