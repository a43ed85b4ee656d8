package apitoken

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/seanWLawrence/checklists-sub000/cmd/internal/store"
)

// MaxScopes bounds the scopes carried by one token.
const MaxScopes = 32

const maxNameLen = 100

var scopeRE = regexp.MustCompile(`^[a-z][a-z0-9_-]*(:[a-z0-9_-]+)*$`)

// Token is a stored API token. Hash never leaves the package in JSON.
type Token struct {
	ID         string     `json:"id"`
	Owner      string     `json:"owner"`
	Name       string     `json:"name"`
	Hash       string     `json:"-"`
	Scopes     []string   `json:"scopes"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// Revoked reports whether the token was revoked.
func (t Token) Revoked() bool { return t.RevokedAt != nil }

// Expired reports whether the token is expired at now.
func (t Token) Expired(now time.Time) bool { return !t.ExpiresAt.After(now) }

// HasScope reports exact membership.
func (t Token) HasScope(scope string) bool {
	for _, s := range t.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Stored field names.
const (
	fieldID         = "id"
	fieldOwner      = "owner"
	fieldName       = "name"
	fieldHash       = "hash"
	fieldScopes     = "scopes"
	fieldCreatedAt  = "createdAtIso"
	fieldExpiresAt  = "expiresAtIso"
	fieldLastUsedAt = "lastUsedAtIso"
	fieldRevokedAt  = "revokedAtIso"
)

func tokenKey(owner, id string) string { return ownerPrefix(owner) + id }

func ownerPrefix(owner string) string { return "user#" + owner + "#api-token#" }

func isoTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func (t Token) fields() (store.Fields, error) {
	scopes, err := json.Marshal(t.Scopes)
	if err != nil {
		return nil, err
	}
	f := store.Fields{
		fieldID:        t.ID,
		fieldOwner:     t.Owner,
		fieldName:      t.Name,
		fieldHash:      t.Hash,
		fieldScopes:    string(scopes),
		fieldCreatedAt: isoTime(t.CreatedAt),
		fieldExpiresAt: isoTime(t.ExpiresAt),
	}
	if t.LastUsedAt != nil {
		f[fieldLastUsedAt] = isoTime(*t.LastUsedAt)
	}
	if t.RevokedAt != nil {
		f[fieldRevokedAt] = isoTime(*t.RevokedAt)
	}
	return f, nil
}

func tokenFromFields(f store.Fields) (Token, error) {
	t := Token{
		ID:    f[fieldID],
		Owner: f[fieldOwner],
		Name:  f[fieldName],
		Hash:  f[fieldHash],
	}
	if t.ID == "" || t.Owner == "" || t.Hash == "" {
		return Token{}, ErrCorrupt
	}
	if err := json.Unmarshal([]byte(f[fieldScopes]), &t.Scopes); err != nil {
		return Token{}, fmt.Errorf("%w: scopes: %v", ErrCorrupt, err)
	}

	var err error
	if t.CreatedAt, err = parseISO(f[fieldCreatedAt]); err != nil {
		return Token{}, err
	}
	if t.ExpiresAt, err = parseISO(f[fieldExpiresAt]); err != nil {
		return Token{}, err
	}
	if t.LastUsedAt, err = parseOptionalISO(f[fieldLastUsedAt]); err != nil {
		return Token{}, err
	}
	if t.RevokedAt, err = parseOptionalISO(f[fieldRevokedAt]); err != nil {
		return Token{}, err
	}
	return t, nil
}

func parseISO(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return t.UTC(), nil
}

func parseOptionalISO(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseISO(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// normalizeScopes validates, dedupes and sorts scopes.
func normalizeScopes(in []string) ([]string, error) {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if !scopeRE.MatchString(s) {
			return nil, fmt.Errorf("%w: scope %q", ErrInvalidInput, s)
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) > MaxScopes {
		return nil, fmt.Errorf("%w: at most %d scopes", ErrInvalidInput, MaxScopes)
	}
	sort.Strings(out)
	return out, nil
}

// ValidScope reports whether s is a well-formed scope name.
func ValidScope(s string) bool { return scopeRE.MatchString(s) }
