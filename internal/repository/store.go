// Package repository is the persistence layer: typed batch writes, the
// processor checkpoint, and idempotent upserts. Every insert operation
// accepts an externally provided transaction handle so the batch writer
// can span a whole batch in one database transaction.
//
// The surface is split into narrow capability groups, one file per group:
// the batch inserts (activities, bids, listings, nfts, wallets, collections)
// are package functions taking a pgx.Tx, and processor status, token
// prices and metadata are methods on one *Store.
package repository

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SchemaSQL is the embedded contents of schema.sql, so the process never
// depends on a file path existing alongside the binary at deploy time.
//
//go:embed schema.sql
var SchemaSQL string

// Store owns the process-lifetime connection pool every pipeline instance
// shares.
type Store struct {
	db *pgxpool.Pool
}

// New dials the connection pool described by dbURL. Pool size comes from
// the config; DB_MAX_OPEN_CONNS overrides it when set.
func New(ctx context.Context, dbURL string, poolSize uint32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	if poolSize > 0 {
		cfg.MaxConns = int32(poolSize)
	}
	if maxConnStr := os.Getenv("DB_MAX_OPEN_CONNS"); maxConnStr != "" {
		if maxConn, err := strconv.Atoi(maxConnStr); err == nil {
			cfg.MaxConns = int32(maxConn)
		}
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	return &Store{db: pool}, nil
}

// Close releases the pool. Safe to call once at process shutdown.
func (s *Store) Close() {
	s.db.Close()
}

// Migrate executes the schema file once at startup. Idempotent: every
// statement in schema.sql uses IF NOT EXISTS.
func (s *Store) Migrate(ctx context.Context, schemaSQL string) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// WithTx runs fn inside one transaction, committing on success and rolling
// back on any error or panic. WriteBatch uses this to span activities,
// bids, listings, nfts and wallets in a single DB transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op once committed

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
