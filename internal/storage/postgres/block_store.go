// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/wowhead-parser/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultBlockTable = "dump_blocks"

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// BlockStore writes one ledger row per fetched block.
type BlockStore struct {
	pool   execCloser
	table  string
	hasher crawler.Hasher
}

// Connect opens a pgx pool for cfg.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// NewBlockStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewBlockStoreWithPool(pool execCloser, table string, hasher crawler.Hasher) (*BlockStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	if table == "" {
		table = defaultBlockTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &BlockStore{pool: pool, table: table, hasher: hasher}, nil
}

// Close releases the underlying pool resources.
func (s *BlockStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// RecordBlock inserts a ledger row for block. Failed fetches are recorded
// with an empty content hash.
func (s *BlockStore) RecordBlock(ctx context.Context, runID string, block crawler.Block) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("block store is not configured")
	}
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	var hash string
	if block.FetchSucceeded {
		sum, err := s.hasher.Hash(block.Content)
		if err != nil {
			return fmt.Errorf("hash block %d: %w", block.ID, err)
		}
		hash = sum
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	entry_id,
	url,
	ok,
	status_code,
	content_hash,
	size_bytes,
	fetched_at,
	duration_ms
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)`, s.table)

	args := []any{
		runID,
		int64(block.ID),
		block.URL,
		block.FetchSucceeded,
		block.StatusCode,
		hash,
		int64(len(block.Content)),
		block.FetchedAt,
		block.Duration.Milliseconds(),
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert block %d: %w", block.ID, err)
	}
	return nil
}
