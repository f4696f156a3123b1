package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/domain"
)

// ResultCache stores serialized evaluation results keyed by
// configuration fingerprint. Entries expire after ttl; beyond
// maxEntries the least recently used rows are evicted on write.
type ResultCache struct {
	db         *sql.DB
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func NewResultCache(db *sql.DB, ttl time.Duration, maxEntries int) *ResultCache {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &ResultCache{
		db:         db,
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (c *ResultCache) EnsureSchema(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026021002)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS evaluation_cache (
	cache_key TEXT PRIMARY KEY,
	value JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	last_used_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evaluation_cache_created_at ON evaluation_cache(created_at);
CREATE INDEX IF NOT EXISTS idx_evaluation_cache_last_used_at ON evaluation_cache(last_used_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Get returns the cached value and bumps its recency in one statement.
// Expired rows are treated as absent; PurgeExpired removes them.
func (c *ResultCache) Get(ctx context.Context, key string) ([]byte, error) {
	now := c.now()
	cutoff := now.Add(-c.ttl)

	var value []byte
	err := c.db.QueryRowContext(ctx, `
UPDATE evaluation_cache
SET last_used_at = $3
WHERE cache_key = $1 AND created_at > $2
RETURNING value
`, key, cutoff, now).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCacheMiss
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}
	return value, nil
}

// Put upserts the entry, then evicts least recently used rows beyond
// the capacity bound.
func (c *ResultCache) Put(ctx context.Context, key string, value []byte) error {
	now := c.now()
	_, err := c.db.ExecContext(ctx, `
INSERT INTO evaluation_cache (cache_key, value, created_at, last_used_at)
VALUES ($1, $2, $3, $3)
ON CONFLICT (cache_key) DO UPDATE
SET value = EXCLUDED.value, created_at = EXCLUDED.created_at, last_used_at = EXCLUDED.last_used_at
`, key, value, now)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}

	if c.maxEntries > 0 {
		if _, err := c.db.ExecContext(ctx, `
DELETE FROM evaluation_cache
WHERE cache_key IN (
	SELECT cache_key FROM evaluation_cache
	ORDER BY last_used_at DESC
	OFFSET $1
)
`, c.maxEntries); err != nil {
			return fmt.Errorf("cache evict: %w", err)
		}
	}
	return nil
}

func (c *ResultCache) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := c.now().Add(-c.ttl)
	result, err := c.db.ExecContext(ctx, `
DELETE FROM evaluation_cache WHERE created_at <= $1
`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cache purge: %w", err)
	}
	purged, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cache purge rows affected: %w", err)
	}
	return purged, nil
}
