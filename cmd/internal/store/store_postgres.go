package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS auth_token_store (
	key        text        PRIMARY KEY,
	fields     jsonb       NOT NULL,
	expires_at timestamptz NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS auth_token_store_expires_at_idx
	ON auth_token_store (expires_at)
	WHERE expires_at IS NOT NULL;
`

// PostgresStore implements TokenStore on a single jsonb table.
//
// Ownership model: the app owns the pool; Close is a no-op.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed token store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, ErrConfig
	}
	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the backing table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}

// Put upserts the record at key.
func (s *PostgresStore) Put(ctx context.Context, key string, fields Fields, expiresAt time.Time) error {
	if err := validKey(key); err != nil {
		return err
	}
	doc, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("store: encode record: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO auth_token_store (key, fields, expires_at, updated_at)
		VALUES ($1, $2::jsonb, $3, now())
		ON CONFLICT (key) DO UPDATE
		SET fields = EXCLUDED.fields,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = now()
	`, key, string(doc), nullTime(expiresAt))
	return err
}

// Get loads the live record at key.
func (s *PostgresStore) Get(ctx context.Context, key string) (Fields, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}

	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT fields
		FROM auth_token_store
		WHERE key = $1
		  AND (expires_at IS NULL OR expires_at > now())
	`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var f Fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("store: decode record: %w", err)
	}
	return f, nil
}

// Update merges fields into the live record at key.
func (s *PostgresStore) Update(ctx context.Context, key string, fields Fields) error {
	if err := validKey(key); err != nil {
		return err
	}
	doc, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("store: encode record: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE auth_token_store
		SET fields = fields || $2::jsonb,
		    updated_at = now()
		WHERE key = $1
		  AND (expires_at IS NULL OR expires_at > now())
	`, key, string(doc))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetFieldIfAbsent relies on the row lock taken by UPDATE: of two racing
// callers the second re-evaluates the predicate and matches nothing.
func (s *PostgresStore) SetFieldIfAbsent(ctx context.Context, key, field, value string) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE auth_token_store
		SET fields = fields || jsonb_build_object($2::text, $3::text),
		    updated_at = now()
		WHERE key = $1
		  AND (expires_at IS NULL OR expires_at > now())
		  AND fields->>($2::text) IS NULL
	`, key, field, value)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var live bool
	err = s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM auth_token_store
			WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())
		)
	`, key).Scan(&live)
	if err != nil {
		return false, err
	}
	if !live {
		return false, ErrNotFound
	}
	return false, nil
}

// Delete removes key (idempotent).
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM auth_token_store WHERE key = $1`, key)
	return err
}

// Keys lists live keys with prefix.
func (s *PostgresStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT key
		FROM auth_token_store
		WHERE key LIKE $1 ESCAPE '\'
		  AND (expires_at IS NULL OR expires_at > now())
		ORDER BY key
	`, escapeLike(prefix)+"%")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// PruneExpired deletes rows whose expiry is at or before now.
func (s *PostgresStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM auth_token_store
		WHERE expires_at IS NOT NULL
		  AND expires_at <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Ping acquires a connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
