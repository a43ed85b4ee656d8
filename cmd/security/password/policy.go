package password

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	ErrSecretTooShort = errors.New("login secret too short")
	ErrSecretTooLong  = errors.New("login secret too long")
	ErrWeakSecret     = errors.New("login secret is a placeholder or trivially guessable")
)

// minDistinctRunes is the smallest alphabet a shared login secret may draw from.
const minDistinctRunes = 6

// placeholders are values people paste into .env files and forget.
var placeholders = map[string]struct{}{
	"changeme":    {},
	"changethis":  {},
	"secret":      {},
	"password":    {},
	"letmein":     {},
	"admin":       {},
	"checklists":  {},
	"loginsecret": {},
	"example":     {},
	"test":        {},
}

// CheckSecret applies the policy to a plaintext login secret. Length is counted
// in runes. The weak-secret heuristics only run when Policy.RejectVeryWeak is set.
func (c Config) CheckSecret(secret string) error {
	n := utf8.RuneCountInString(secret)
	if n < c.Policy.MinLength {
		return ErrSecretTooShort
	}
	if n > c.Policy.MaxLength {
		return ErrSecretTooLong
	}
	if c.Policy.RejectVeryWeak && guessable(secret) {
		return ErrWeakSecret
	}
	return nil
}

func guessable(secret string) bool {
	s := strings.TrimSpace(secret)
	if s == "" {
		return true
	}

	distinct := make(map[rune]struct{}, 16)
	letters := make([]rune, 0, len(s))
	digits := true
	for _, r := range s {
		distinct[r] = struct{}{}
		if !unicode.IsDigit(r) {
			digits = false
		}
		if unicode.IsLetter(r) {
			letters = append(letters, unicode.ToLower(r))
		}
	}
	if len(distinct) < minDistinctRunes || digits {
		return true
	}

	// "Changeme-2024!" is still changeme.
	_, ok := placeholders[string(letters)]
	return ok
}
