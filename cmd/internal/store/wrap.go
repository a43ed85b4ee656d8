package store

import (
	"context"
	"errors"
	"time"

	"github.com/seanWLawrence/checklists-sub000/cmd/internal/metrics"
)

// DefaultOpTimeout bounds a single store call when the caller's context has no
// earlier deadline.
const DefaultOpTimeout = 3 * time.Second

type timeoutStore struct {
	next TokenStore
	d    time.Duration
}

// WithTimeout wraps s so every call runs under a deadline of at most d.
// A non-positive d uses DefaultOpTimeout.
func WithTimeout(s TokenStore, d time.Duration) TokenStore {
	if d <= 0 {
		d = DefaultOpTimeout
	}
	return &timeoutStore{next: s, d: d}
}

func (t *timeoutStore) Put(ctx context.Context, key string, fields Fields, expiresAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.Put(ctx, key, fields, expiresAt)
}

func (t *timeoutStore) Get(ctx context.Context, key string) (Fields, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.Get(ctx, key)
}

func (t *timeoutStore) Update(ctx context.Context, key string, fields Fields) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.Update(ctx, key, fields)
}

func (t *timeoutStore) SetFieldIfAbsent(ctx context.Context, key, field, value string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.SetFieldIfAbsent(ctx, key, field, value)
}

func (t *timeoutStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.Delete(ctx, key)
}

func (t *timeoutStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.Keys(ctx, prefix)
}

func (t *timeoutStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.Ping(ctx)
}

func (t *timeoutStore) Close() error { return t.next.Close() }

func (t *timeoutStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	p, ok := t.next.(Pruner)
	if !ok {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return p.PruneExpired(ctx, now)
}

type instrumentedStore struct {
	next TokenStore
	m    *metrics.Metrics
}

// Instrument records per-operation latency and outcome on m.
// A nil m returns s unchanged.
func Instrument(s TokenStore, m *metrics.Metrics) TokenStore {
	if m == nil {
		return s
	}
	return &instrumentedStore{next: s, m: m}
}

func (i *instrumentedStore) observe(op string, start time.Time, err error) {
	i.m.StoreOp(op, result(err), time.Since(start))
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

func (i *instrumentedStore) Put(ctx context.Context, key string, fields Fields, expiresAt time.Time) error {
	start := time.Now()
	err := i.next.Put(ctx, key, fields, expiresAt)
	i.observe("put", start, err)
	return err
}

func (i *instrumentedStore) Get(ctx context.Context, key string) (Fields, error) {
	start := time.Now()
	f, err := i.next.Get(ctx, key)
	i.observe("get", start, err)
	return f, err
}

func (i *instrumentedStore) Update(ctx context.Context, key string, fields Fields) error {
	start := time.Now()
	err := i.next.Update(ctx, key, fields)
	i.observe("update", start, err)
	return err
}

func (i *instrumentedStore) SetFieldIfAbsent(ctx context.Context, key, field, value string) (bool, error) {
	start := time.Now()
	set, err := i.next.SetFieldIfAbsent(ctx, key, field, value)
	i.observe("set_if_absent", start, err)
	return set, err
}

func (i *instrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := i.next.Delete(ctx, key)
	i.observe("delete", start, err)
	return err
}

func (i *instrumentedStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	keys, err := i.next.Keys(ctx, prefix)
	i.observe("keys", start, err)
	return keys, err
}

func (i *instrumentedStore) Ping(ctx context.Context) error {
	start := time.Now()
	err := i.next.Ping(ctx)
	i.observe("ping", start, err)
	return err
}

func (i *instrumentedStore) Close() error { return i.next.Close() }

func (i *instrumentedStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	p, ok := i.next.(Pruner)
	if !ok {
		return 0, nil
	}
	start := time.Now()
	n, err := p.PruneExpired(ctx, now)
	i.observe("prune", start, err)
	return n, err
}
