package store

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// runContract exercises behavior every TokenStore backend must share.
// Expiry timing is backend-specific and tested separately.
func runContract(t *testing.T, s TokenStore) {
	t.Helper()
	ctx := context.Background()
	future := time.Now().Add(time.Hour)

	t.Run("put get", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "c#put#1", Fields{"a": "1", "b": "2"}, future))
		got, err := s.Get(ctx, "c#put#1")
		require.NoError(t, err)
		require.Equal(t, Fields{"a": "1", "b": "2"}, got)
	})

	t.Run("put replaces", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "c#replace", Fields{"a": "1", "old": "x"}, future))
		require.NoError(t, s.Put(ctx, "c#replace", Fields{"a": "2"}, future))
		got, err := s.Get(ctx, "c#replace")
		require.NoError(t, err)
		require.Equal(t, Fields{"a": "2"}, got)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := s.Get(ctx, "c#missing")
		require.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	})

	t.Run("empty key", func(t *testing.T) {
		require.ErrorIs(t, s.Put(ctx, "", Fields{"a": "1"}, future), ErrInvalidKey)
		_, err := s.Get(ctx, "")
		require.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("update merges", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "c#upd", Fields{"a": "1", "b": "2"}, future))
		require.NoError(t, s.Update(ctx, "c#upd", Fields{"b": "3", "c": "4"}))
		got, err := s.Get(ctx, "c#upd")
		require.NoError(t, err)
		require.Equal(t, Fields{"a": "1", "b": "3", "c": "4"}, got)
	})

	t.Run("update never creates", func(t *testing.T) {
		require.ErrorIs(t, s.Update(ctx, "c#upd-missing", Fields{"a": "1"}), ErrNotFound)
		_, err := s.Get(ctx, "c#upd-missing")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set field if absent", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "c#once", Fields{"a": "1"}, future))

		set, err := s.SetFieldIfAbsent(ctx, "c#once", "revoked", "first")
		require.NoError(t, err)
		require.True(t, set)
		set, err = s.SetFieldIfAbsent(ctx, "c#once", "revoked", "second")
		require.NoError(t, err)
		require.False(t, set)

		got, err := s.Get(ctx, "c#once")
		require.NoError(t, err)
		require.Equal(t, Fields{"a": "1", "revoked": "first"}, got)

		_, err = s.SetFieldIfAbsent(ctx, "c#once-missing", "revoked", "x")
		require.ErrorIs(t, err, ErrNotFound)
		_, err = s.Get(ctx, "c#once-missing")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set field if absent has one winner", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "c#race", Fields{"a": "1"}, future))

		const n = 8
		var wg sync.WaitGroup
		wins := make(chan string, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(v string) {
				defer wg.Done()
				if set, err := s.SetFieldIfAbsent(ctx, "c#race", "revoked", v); err == nil && set {
					wins <- v
				}
			}(strconv.Itoa(i))
		}
		wg.Wait()
		close(wins)

		var winners []string
		for v := range wins {
			winners = append(winners, v)
		}
		require.Len(t, winners, 1)
		got, err := s.Get(ctx, "c#race")
		require.NoError(t, err)
		require.Equal(t, winners[0], got["revoked"])
	})

	t.Run("delete idempotent", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "c#del", Fields{"a": "1"}, future))
		require.NoError(t, s.Delete(ctx, "c#del"))
		require.NoError(t, s.Delete(ctx, "c#del"))
		_, err := s.Get(ctx, "c#del")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("keys by prefix", func(t *testing.T) {
		for _, k := range []string{"user#ann#api-token#b", "user#ann#api-token#a", "user#bob#api-token#c", "user#ann_x#api-token#d"} {
			require.NoError(t, s.Put(ctx, k, Fields{"v": k}, future))
		}
		keys, err := s.Keys(ctx, "user#ann#api-token#")
		require.NoError(t, err)
		require.Equal(t, []string{"user#ann#api-token#a", "user#ann#api-token#b"}, keys)
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, s.Ping(ctx))
	})
}
