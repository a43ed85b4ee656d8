// Package store is the key-value persistence layer behind refresh tokens and API tokens.
//
// Records are flat string maps addressed by opaque keys built by the auth
// packages. Three backends implement TokenStore: Redis (hashes), Postgres
// (jsonb rows) and an in-memory map for development and tests. No operation
// spans more than one key.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key is missing or expired.
	ErrNotFound = errors.New("store: not found")

	// ErrInvalidKey is returned for empty keys.
	ErrInvalidKey = errors.New("store: invalid key")

	// ErrConfig is returned for invalid store configuration.
	ErrConfig = errors.New("store: invalid config")
)

// Fields is one stored record.
type Fields map[string]string

// Clone returns a copy that does not share the underlying map.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// TokenStore is the narrow per-key API used by the auth packages.
//
// Implementations must treat expired records exactly like missing ones.
type TokenStore interface {
	// Put creates or replaces the record at key. A non-zero expiresAt sets a
	// store-level expiry in the same call.
	Put(ctx context.Context, key string, fields Fields, expiresAt time.Time) error

	// Get returns the record at key or ErrNotFound.
	Get(ctx context.Context, key string) (Fields, error)

	// Update merges fields into an existing record. Missing keys return ErrNotFound
	// and are never created.
	Update(ctx context.Context, key string, fields Fields) error

	// SetFieldIfAbsent sets field on an existing record only when the record
	// does not carry it yet, atomically. It reports whether the write happened.
	// Missing keys return ErrNotFound.
	SetFieldIfAbsent(ctx context.Context, key, field, value string) (bool, error)

	// Delete removes the record at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns the live keys that start with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Ping checks backend reachability.
	Ping(ctx context.Context) error

	// Close releases backend resources owned by the store.
	Close() error
}

// Pruner is implemented by backends without native key expiry.
type Pruner interface {
	PruneExpired(ctx context.Context, now time.Time) (int64, error)
}

func validKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return nil
}
