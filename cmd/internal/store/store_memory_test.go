package store

import (
	"context"
	"testing"
	"time"

	"github.com/seanWLawrence/checklists-sub000/cmd/internal/clock"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	runContract(t, NewMemoryStore(nil))
}

func TestMemoryStore_ExpiredIsMissing(t *testing.T) {
	ctx := context.Background()
	fc := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s := NewMemoryStore(fc)

	require.NoError(t, s.Put(ctx, "k", Fields{"a": "1"}, fc.Now().Add(time.Minute)))
	_, err := s.Get(ctx, "k")
	require.NoError(t, err)

	fc.Advance(time.Minute)

	_, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Update(ctx, "k", Fields{"a": "2"}), ErrNotFound)

	keys, err := s.Keys(ctx, "")
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestMemoryStore_ZeroExpiryNeverExpires(t *testing.T) {
	ctx := context.Background()
	fc := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s := NewMemoryStore(fc)

	require.NoError(t, s.Put(ctx, "k", Fields{"a": "1"}, time.Time{}))
	fc.Advance(24 * 365 * time.Hour)
	_, err := s.Get(ctx, "k")
	require.NoError(t, err)
}

func TestMemoryStore_PruneExpired(t *testing.T) {
	ctx := context.Background()
	fc := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s := NewMemoryStore(fc)

	require.NoError(t, s.Put(ctx, "a", Fields{"v": "1"}, fc.Now().Add(time.Minute)))
	require.NoError(t, s.Put(ctx, "b", Fields{"v": "2"}, fc.Now().Add(time.Hour)))
	require.NoError(t, s.Put(ctx, "c", Fields{"v": "3"}, time.Time{}))

	n, err := s.PruneExpired(ctx, fc.Now().Add(2*time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	keys, err := s.Keys(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{"b", "c"}, keys)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)

	in := Fields{"a": "1"}
	require.NoError(t, s.Put(ctx, "k", in, time.Time{}))
	in["a"] = "mutated"

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	got["a"] = "mutated too"

	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "1", again["a"])
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewMemoryStore(nil)
	require.ErrorIs(t, s.Put(ctx, "k", Fields{}, time.Time{}), context.Canceled)
	_, err := s.Get(ctx, "k")
	require.ErrorIs(t, err, context.Canceled)
}
