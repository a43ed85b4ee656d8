package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seanWLawrence/checklists-sub000/cmd/internal/clock"
	"github.com/seanWLawrence/checklists-sub000/cmd/internal/store"
	"github.com/seanWLawrence/checklists-sub000/cmd/security/token"

	"github.com/oklog/ulid/v2"
)

const refreshKeyPrefix = "refreshToken#"

// Stored field names.
const (
	fieldHash      = "hash"
	fieldSalt      = "salt"
	fieldOwner     = "owner"
	fieldCreatedAt = "createdAtIso"
	fieldID        = "id"
)

// RefreshRecord is a persisted refresh token. The cleartext is never stored.
type RefreshRecord struct {
	ID        string
	Owner     string
	Hash      string
	Salt      string
	CreatedAt time.Time
}

// IssuedRefresh is a freshly created refresh token. Token is the only copy of the cleartext.
type IssuedRefresh struct {
	Token     string
	Record    RefreshRecord
	ExpiresAt time.Time
}

// RefreshStore persists hashed refresh tokens in a store.TokenStore.
type RefreshStore struct {
	kv     store.TokenStore
	clock  clock.Clock
	random token.RandomSource
	ttl    time.Duration
}

// NewRefreshStore builds a RefreshStore. ttl is the store-level expiry set on
// every record.
func NewRefreshStore(kv store.TokenStore, c clock.Clock, r token.RandomSource, ttl time.Duration) *RefreshStore {
	if c == nil {
		c = clock.Real()
	}
	if r == nil {
		r = token.DefaultRandom()
	}
	return &RefreshStore{kv: kv, clock: c, random: r, ttl: ttl}
}

func refreshKey(cleartext string) string { return refreshKeyPrefix + cleartext }

// Create mints a new refresh token for owner and persists its hashed record.
func (s *RefreshStore) Create(ctx context.Context, owner string) (IssuedRefresh, error) {
	secret, err := token.RandomToken(s.random)
	if err != nil {
		return IssuedRefresh{}, err
	}
	hashed, err := token.SecureHash(secret, "", s.random)
	if err != nil {
		return IssuedRefresh{}, err
	}

	now := s.clock.Now().UTC()
	id, err := ulid.New(ulid.Timestamp(now), s.random)
	if err != nil {
		return IssuedRefresh{}, fmt.Errorf("session: refresh id: %w", err)
	}

	rec := RefreshRecord{
		ID:        id.String(),
		Owner:     owner,
		Hash:      hashed.Hash,
		Salt:      hashed.Salt,
		CreatedAt: now,
	}
	exp := now.Add(s.ttl)

	if err := s.kv.Put(ctx, refreshKey(secret), rec.fields(), exp); err != nil {
		return IssuedRefresh{}, err
	}
	return IssuedRefresh{Token: secret, Record: rec, ExpiresAt: exp}, nil
}

// Lookup loads the record for cleartext and checks its hash with the stored salt.
// It does not check age.
func (s *RefreshStore) Lookup(ctx context.Context, cleartext string) (RefreshRecord, error) {
	if cleartext == "" {
		return RefreshRecord{}, ErrRefreshNotFound
	}

	f, err := s.kv.Get(ctx, refreshKey(cleartext))
	if errors.Is(err, store.ErrNotFound) {
		return RefreshRecord{}, ErrRefreshNotFound
	}
	if err != nil {
		return RefreshRecord{}, err
	}

	rec, err := recordFromFields(f)
	if err != nil {
		return RefreshRecord{}, err
	}

	// Recompute with the stored salt, never a fresh one.
	got, err := token.SecureHash(cleartext, rec.Salt, s.random)
	if err != nil {
		return RefreshRecord{}, err
	}
	if !token.ConstantTimeCompare(got.Hash, rec.Hash) {
		return RefreshRecord{}, ErrRefreshMismatch
	}
	return rec, nil
}

// Delete removes the record for cleartext. Missing records are not an error.
func (s *RefreshStore) Delete(ctx context.Context, cleartext string) error {
	if cleartext == "" {
		return nil
	}
	return s.kv.Delete(ctx, refreshKey(cleartext))
}

func (r RefreshRecord) fields() store.Fields {
	return store.Fields{
		fieldHash:      r.Hash,
		fieldSalt:      r.Salt,
		fieldOwner:     r.Owner,
		fieldCreatedAt: r.CreatedAt.UTC().Format(time.RFC3339Nano),
		fieldID:        r.ID,
	}
}

func recordFromFields(f store.Fields) (RefreshRecord, error) {
	rec := RefreshRecord{
		ID:    f[fieldID],
		Owner: f[fieldOwner],
		Hash:  f[fieldHash],
		Salt:  f[fieldSalt],
	}
	if rec.Owner == "" || rec.Hash == "" || rec.Salt == "" {
		return RefreshRecord{}, ErrRefreshCorrupt
	}
	created, err := time.Parse(time.RFC3339Nano, f[fieldCreatedAt])
	if err != nil {
		return RefreshRecord{}, ErrRefreshCorrupt
	}
	rec.CreatedAt = created.UTC()
	return rec, nil
}
