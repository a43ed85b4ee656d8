package password

import (
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	def := DefaultConfig()
	if cfg.Policy != def.Policy {
		t.Fatalf("policy mismatch: %+v", cfg.Policy)
	}
	if cfg.Params != def.Params {
		t.Fatalf("params mismatch: %+v", cfg.Params)
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("CHECKLISTS_PASSWORD_MIN_LEN", "10")
	t.Setenv("CHECKLISTS_PASSWORD_MAX_LEN", "200")
	t.Setenv("CHECKLISTS_PASSWORD_REJECT_VERY_WEAK", "true")
	t.Setenv("CHECKLISTS_ARGON2_MEMORY_KIB", "32768")
	t.Setenv("CHECKLISTS_ARGON2_ITERATIONS", "4")
	t.Setenv("CHECKLISTS_ARGON2_PARALLELISM", "2")
	t.Setenv("CHECKLISTS_ARGON2_SALT_LEN", "24")
	t.Setenv("CHECKLISTS_ARGON2_KEY_LEN", "32")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	if cfg.Policy.MinLength != 10 || cfg.Policy.MaxLength != 200 || !cfg.Policy.RejectVeryWeak {
		t.Fatalf("policy override failed: %+v", cfg.Policy)
	}
	if cfg.Params.MemoryKiB != 32768 || cfg.Params.Iterations != 4 || cfg.Params.Parallelism != 2 {
		t.Fatalf("argon2 override failed: %+v", cfg.Params)
	}
	if cfg.Params.SaltLength != 24 || cfg.Params.KeyLength != 32 {
		t.Fatalf("len override failed: %+v", cfg.Params)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string]string{
		"CHECKLISTS_ARGON2_MEMORY_KIB": "1024",
		"CHECKLISTS_ARGON2_ITERATIONS": "99",
		"CHECKLISTS_ARGON2_SALT_LEN":   "not-a-number",
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv(k, v)
			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected error for %s=%s", k, v)
			}
		})
	}
}

func TestFromEnv_InvalidMinMax(t *testing.T) {
	t.Setenv("CHECKLISTS_PASSWORD_MIN_LEN", "20")
	t.Setenv("CHECKLISTS_PASSWORD_MAX_LEN", "10")

	_, err := FromEnv()
	if err == nil {
		t.Fatalf("expected error")
	}
}
