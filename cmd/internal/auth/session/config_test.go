package session

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testSigningSecret = "0123456789abcdef0123456789abcdef"

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CHECKLISTS_AUTH_SIGNING_SECRET", testSigningSecret)
	t.Setenv("CHECKLISTS_AUTH_LOGIN_SECRET", "correct horse battery staple")
}

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.AccessTTL != 15*time.Minute || cfg.MaxStaleness != 15*time.Minute {
		t.Fatalf("access defaults: ttl=%v staleness=%v", cfg.AccessTTL, cfg.MaxStaleness)
	}
	if cfg.RefreshTTL != 30*24*time.Hour || cfg.RotateAfter != 29*24*time.Hour || cfg.RotationLeeway != time.Minute {
		t.Fatalf("refresh defaults: %+v", cfg)
	}
	if cfg.Issuer != "" || cfg.Audience != "" {
		t.Fatalf("expected no iss/aud without canonical url, got %q/%q", cfg.Issuer, cfg.Audience)
	}
}

func TestLoadConfigFromEnv_CanonicalURLDerivesIssuerAndAudience(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CHECKLISTS_CANONICAL_URL", "https://lists.example.com/")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.Issuer != "https://lists.example.com" || cfg.Audience != "https://lists.example.com" {
		t.Fatalf("iss/aud = %q/%q", cfg.Issuer, cfg.Audience)
	}
}

func TestLoadConfigFromEnv_Users(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CHECKLISTS_AUTH_USERS", "ann, bob ,")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if strings.Join(cfg.Users, ",") != "ann,bob" {
		t.Fatalf("users = %q", cfg.Users)
	}
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing signing secret", map[string]string{"CHECKLISTS_AUTH_SIGNING_SECRET": ""}},
		{"short signing secret", map[string]string{"CHECKLISTS_AUTH_SIGNING_SECRET": "short"}},
		{"missing login secret", map[string]string{"CHECKLISTS_AUTH_LOGIN_SECRET": ""}},
		{"bad duration", map[string]string{"CHECKLISTS_AUTH_ACCESS_TTL": "soon"}},
		{"negative ttl", map[string]string{"CHECKLISTS_AUTH_ACCESS_TTL": "-5m"}},
		{"rotate after ttl", map[string]string{"CHECKLISTS_AUTH_ROTATE_AFTER": "800h"}},
		{"one-sided issuer", map[string]string{"CHECKLISTS_AUTH_ISSUER": "https://a.example"}},
		{"bad allowlist user", map[string]string{"CHECKLISTS_AUTH_USERS": "ann,b.ob"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfigFromEnv()
			if !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}
