package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// maxWatchAttempts bounds optimistic-lock retries for Update.
const maxWatchAttempts = 3

// RedisStore implements TokenStore on Redis hashes.
// Expiry is native (EXPIREAT), so it needs no pruning.
type RedisStore struct {
	rdb       *redis.Client
	namespace string
}

// NewRedisClient parses a redis:// URL and checks connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, ErrConfig
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("store: parse redis url: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("store: redis ping: %w", err)
	}
	return rdb, nil
}

// NewRedisStore wraps an existing client. namespace is prepended to every key.
func NewRedisStore(rdb *redis.Client, namespace string) *RedisStore {
	return &RedisStore{rdb: rdb, namespace: namespace}
}

func (s *RedisStore) key(k string) string { return s.namespace + k }

// Put replaces the hash at key and sets its expiry in one MULTI/EXEC.
func (s *RedisStore) Put(ctx context.Context, key string, fields Fields, expiresAt time.Time) error {
	if err := validKey(key); err != nil {
		return err
	}
	if len(fields) == 0 {
		return fmt.Errorf("store: empty record for put")
	}

	k := s.key(key)
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, k)
	pipe.HSet(ctx, k, pairs(fields)...)
	if !expiresAt.IsZero() {
		pipe.ExpireAt(ctx, k, expiresAt)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// Get returns the hash at key.
func (s *RedisStore) Get(ctx context.Context, key string) (Fields, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}

	m, err := s.rdb.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, ErrNotFound
	}
	return Fields(m), nil
}

// Update sets fields on an existing hash. WATCH guards against creating a
// partial record when the key expires or is deleted concurrently.
func (s *RedisStore) Update(ctx context.Context, key string, fields Fields) error {
	if err := validKey(key); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}

	k := s.key(key)
	update := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, k).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, k, pairs(fields)...)
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < maxWatchAttempts; attempt++ {
		err = s.rdb.Watch(ctx, update, k)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

// SetFieldIfAbsent uses HSETNX under WATCH; a bare HSETNX would recreate a
// key that expired or was deleted.
func (s *RedisStore) SetFieldIfAbsent(ctx context.Context, key, field, value string) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}

	k := s.key(key)
	var set bool
	apply := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, k).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		var cmd *redis.BoolCmd
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			cmd = pipe.HSetNX(ctx, k, field, value)
			return nil
		})
		if err != nil {
			return err
		}
		set = cmd.Val()
		return nil
	}

	var err error
	for attempt := 0; attempt < maxWatchAttempts; attempt++ {
		err = s.rdb.Watch(ctx, apply, k)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return false, err
	}
	return set, nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	return s.rdb.Del(ctx, s.key(key)).Err()
}

// Keys scans for keys with prefix.
func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	match := escapeGlob(s.key(prefix)) + "*"

	var out []string
	iter := s.rdb.Scan(ctx, 0, match, 100).Iterator()
	for iter.Next(ctx) {
		out = append(out, strings.TrimPrefix(iter.Val(), s.namespace))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	sort.Strings(out)
	return dedupeSorted(out), nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error { return s.rdb.Close() }

func escapeGlob(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\', '^':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func pairs(f Fields) []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}

// SCAN may return a key more than once.
func dedupeSorted(in []string) []string {
	if len(in) < 2 {
		return in
	}
	out := in[:1]
	for _, k := range in[1:] {
		if k != out[len(out)-1] {
			out = append(out, k)
		}
	}
	return out
}
