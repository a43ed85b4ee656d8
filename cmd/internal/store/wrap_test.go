package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/seanWLawrence/checklists-sub000/cmd/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type slowStore struct {
	*MemoryStore
}

func (s slowStore) Get(ctx context.Context, key string) (Fields, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestWithTimeout_BoundsSlowBackend(t *testing.T) {
	s := WithTimeout(slowStore{NewMemoryStore(nil)}, 20*time.Millisecond)

	start := time.Now()
	_, err := s.Get(context.Background(), "k")
	require.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	require.Less(t, time.Since(start), time.Second)
}

func TestWithTimeout_Contract(t *testing.T) {
	runContract(t, WithTimeout(NewMemoryStore(nil), 0))
}

func TestWithTimeout_ForwardsPrune(t *testing.T) {
	mem := NewMemoryStore(nil)
	require.NoError(t, mem.Put(context.Background(), "k", Fields{}, time.Now().Add(-time.Second)))

	p, ok := WithTimeout(mem, time.Second).(Pruner)
	require.True(t, ok)
	n, err := p.PruneExpired(context.Background(), time.Now())
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestInstrument_RecordsOutcomes(t *testing.T) {
	m := metrics.New()
	s := Instrument(NewMemoryStore(nil), m)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", Fields{"a": "1"}, time.Time{}))
	_, err := s.Get(ctx, "k")
	require.NoError(t, err)
	_, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	n, err := testutil.GatherAndCount(m.Registry(), "checklists_store_op_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestInstrument_NilMetricsPassThrough(t *testing.T) {
	mem := NewMemoryStore(nil)
	require.Same(t, mem, Instrument(mem, nil).(*MemoryStore))
}
