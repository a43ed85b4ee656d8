package session

import (
	"testing"

	"github.com/seanWLawrence/checklists-sub000/cmd/internal/store"
	"github.com/seanWLawrence/checklists-sub000/cmd/security/password"
)

func benchManager(b *testing.B, hashed bool) *Manager {
	b.Helper()

	pw := password.DefaultConfig()
	cfg := testConfig()
	if hashed {
		h, err := pw.Hash(testLoginSecret)
		if err != nil {
			b.Fatalf("Hash: %v", err)
		}
		cfg.LoginSecret = h
	}
	m, err := NewManager(cfg, store.NewMemoryStore(nil), WithPasswordConfig(pw))
	if err != nil {
		b.Fatalf("NewManager: %v", err)
	}
	return m
}

func BenchmarkVerifySecret_Argon2id(b *testing.B) {
	m := benchManager(b, true)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !m.verifySecret(testLoginSecret) {
			b.Fatal("secret rejected")
		}
	}
}

func BenchmarkVerifySecret_Plaintext(b *testing.B) {
	m := benchManager(b, false)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !m.verifySecret(testLoginSecret) {
			b.Fatal("secret rejected")
		}
	}
}
