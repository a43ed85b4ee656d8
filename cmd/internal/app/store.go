package app

import (
	"context"
	"fmt"
	"time"

	"github.com/seanWLawrence/checklists-sub000/cmd/internal/metrics"
	"github.com/seanWLawrence/checklists-sub000/cmd/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
)

// backend is the opened token store plus what the app must release on shutdown.
type backend struct {
	kind  string
	store store.TokenStore
	// pool is owned by the app; PostgresStore.Close leaves it open.
	pool *pgxpool.Pool
}

func (b backend) Close() {
	if b.store != nil {
		_ = b.store.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}

// openStore connects the configured backend and wraps it with per-call
// timeouts and metrics.
func openStore(ctx context.Context, cfg Config, log Logger, m *metrics.Metrics) (backend, error) {
	var b backend
	b.kind = cfg.Backend()

	var raw store.TokenStore
	switch b.kind {
	case BackendRedis:
		rdb, err := store.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return backend{}, err
		}
		raw = store.NewRedisStore(rdb, cfg.RedisNamespace)
		log.Info("store.enabled.redis", "namespace", cfg.RedisNamespace)

	case BackendPostgres:
		pool, err := openPostgres(ctx, cfg)
		if err != nil {
			return backend{}, fmt.Errorf("app: postgres: %w", err)
		}
		pg, err := store.NewPostgresStore(pool)
		if err != nil {
			pool.Close()
			return backend{}, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return backend{}, fmt.Errorf("app: postgres schema: %w", err)
		}
		b.pool = pool
		raw = pg
		log.Info("store.enabled.postgres")

	default:
		raw = store.NewMemoryStore(nil)
		log.Warn("store.enabled.memory", "note", "sessions and API tokens are lost on restart")
	}

	b.store = store.Instrument(store.WithTimeout(raw, cfg.StoreOpTimeout), m)
	return b, nil
}

// postgresPoolConfig applies the pool limits and tags connections so token
// store sessions are identifiable in pg_stat_activity.
func postgresPoolConfig(cfg Config) (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns >= 0 {
		pcfg.MinConns = cfg.DBMinConns
	}
	if pcfg.MinConns > pcfg.MaxConns {
		return nil, fmt.Errorf("db_min_conns(%d) > db_max_conns(%d)", pcfg.MinConns, pcfg.MaxConns)
	}
	if cfg.StoreOpTimeout > 0 {
		pcfg.ConnConfig.ConnectTimeout = cfg.StoreOpTimeout
	}
	if _, ok := pcfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		pcfg.ConnConfig.RuntimeParams["application_name"] = "checklists-auth"
	}
	return pcfg, nil
}

// openPostgres connects and pings within the store op timeout so a dead
// database fails startup instead of the first login.
func openPostgres(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := postgresPoolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.StoreOpTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// runPruner deletes expired records every interval until ctx ends. Backends
// with native expiry are skipped.
func runPruner(ctx context.Context, s store.TokenStore, interval time.Duration, log Logger) {
	p, ok := s.(store.Pruner)
	if !ok || interval <= 0 {
		return
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := p.PruneExpired(ctx, now.UTC())
			if err != nil {
				log.Error("store.prune.fail", "err", err)
				continue
			}
			if n > 0 {
				log.Info("store.prune.ok", "deleted", n)
			}
		}
	}
}
