package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is an interface that both pgxpool.Pool and pgx.Tx satisfy.
// This allows PostgresStore methods to work with either a connection pool
// or a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var errNoDatabase = errors.New("database not configured")

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS saved_analyses (
		id            UUID PRIMARY KEY,
		user_id       TEXT NOT NULL DEFAULT '',
		title         TEXT NOT NULL,
		subject_kind  TEXT NOT NULL,
		ticker        TEXT NOT NULL DEFAULT '',
		sector        TEXT NOT NULL DEFAULT '',
		timeframe     TEXT NOT NULL,
		analysis_kind TEXT NOT NULL,
		result        JSONB NOT NULL,
		bookmarked    BOOLEAN NOT NULL DEFAULT FALSE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_saved_analyses_user_created ON saved_analyses (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS market_snapshot_cache (
		cache_key  TEXT PRIMARY KEY,
		data       JSONB NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// PostgresStore provides database access backed by PostgreSQL
type PostgresStore struct {
	pool *pgxpool.Pool
	db   DBTX // The actual executor (pool or transaction)
}

// NewPostgresStore connects to PostgreSQL and creates the schema if needed
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	s := &PostgresStore{pool: pool, db: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// WithTx returns a new PostgresStore that uses the given transaction.
// This is useful for running multiple operations atomically.
func (s *PostgresStore) WithTx(tx pgx.Tx) *PostgresStore {
	return &PostgresStore{pool: s.pool, db: tx}
}

// BeginTx starts a new transaction and returns a PostgresStore that uses it.
// The caller is responsible for calling Commit() or Rollback() on the transaction.
func (s *PostgresStore) BeginTx(ctx context.Context) (pgx.Tx, *PostgresStore, error) {
	if err := s.checkDB(); err != nil {
		return nil, nil, err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, s.WithTx(tx), nil
}

// Close closes the database connection pool
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Health checks if the database connection is healthy
func (s *PostgresStore) Health(ctx context.Context) error {
	if err := s.checkDB(); err != nil {
		return err
	}
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) checkDB() error {
	if s == nil || s.db == nil {
		return errNoDatabase
	}
	return nil
}
