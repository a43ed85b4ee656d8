package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/seanWLawrence/checklists-sub000/cmd/internal/clock"
)

// MemoryStore is the in-process TokenStore used when no backend is configured.
// Records live only as long as the process.
type MemoryStore struct {
	mu    sync.Mutex
	clock clock.Clock
	items map[string]memItem
}

type memItem struct {
	fields    Fields
	expiresAt time.Time
}

func (it memItem) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && !it.expiresAt.After(now)
}

// NewMemoryStore constructs an empty MemoryStore. A nil clock uses clock.Real().
func NewMemoryStore(c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.Real()
	}
	return &MemoryStore{
		clock: c,
		items: make(map[string]memItem),
	}
}

// Put creates or replaces key.
func (s *MemoryStore) Put(ctx context.Context, key string, fields Fields, expiresAt time.Time) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = memItem{fields: fields.Clone(), expiresAt: expiresAt}
	return nil
}

// Get returns a copy of the live record at key.
func (s *MemoryStore) Get(ctx context.Context, key string) (Fields, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[key]
	if !ok || it.expired(s.clock.Now()) {
		return nil, ErrNotFound
	}
	return it.fields.Clone(), nil
}

// Update merges fields into a live record.
func (s *MemoryStore) Update(ctx context.Context, key string, fields Fields) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[key]
	if !ok || it.expired(s.clock.Now()) {
		return ErrNotFound
	}
	merged := it.fields.Clone()
	if merged == nil {
		merged = Fields{}
	}
	for k, v := range fields {
		merged[k] = v
	}
	it.fields = merged
	s.items[key] = it
	return nil
}

func (s *MemoryStore) SetFieldIfAbsent(ctx context.Context, key, field, value string) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[key]
	if !ok || it.expired(s.clock.Now()) {
		return false, ErrNotFound
	}
	if _, set := it.fields[field]; set {
		return false, nil
	}
	merged := it.fields.Clone()
	if merged == nil {
		merged = Fields{}
	}
	merged[field] = value
	it.fields = merged
	s.items[key] = it
	return true, nil
}

// Delete removes key (idempotent).
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// Keys lists live keys with prefix.
func (s *MemoryStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	out := make([]string, 0, 8)
	for k, it := range s.items {
		if strings.HasPrefix(k, prefix) && !it.expired(now) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// PruneExpired drops records whose expiry is at or before now.
func (s *MemoryStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, it := range s.items {
		if it.expired(now) {
			delete(s.items, k)
			n++
		}
	}
	return n, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
