// Package store persists run history to PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/regprobe/internal/recorder"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
    id UUID PRIMARY KEY,
    started_at TIMESTAMPTZ NOT NULL,
    ended_at TIMESTAMPTZ NOT NULL,
    total INTEGER NOT NULL,
    passed INTEGER NOT NULL,
    failed INTEGER NOT NULL,
    metadata JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS case_results (
    id UUID PRIMARY KEY,
    run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    status TEXT NOT NULL,
    started_at TIMESTAMPTZ NOT NULL,
    ended_at TIMESTAMPTZ NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    screenshot TEXT NOT NULL DEFAULT '',
    steps JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_started_at_idx ON runs (started_at DESC);
`

const insertRunSQL = `
INSERT INTO runs (id, started_at, ended_at, total, passed, failed, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`

const recentRunsSQL = `
SELECT id, started_at, ended_at, total, passed, failed, metadata
FROM runs
ORDER BY started_at DESC
LIMIT $1;
`

var caseColumns = []string{"id", "run_id", "position", "name", "status", "started_at", "ended_at", "error", "screenshot", "steps"}

// RunSummary is one row of run history.
type RunSummary struct {
	ID       string
	Start    time.Time
	End      time.Time
	Totals   recorder.Totals
	Metadata recorder.Metadata
}

// Store provides PostgreSQL-backed run history.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New wraps an existing pool.
func New(pool DBPool, logger *zap.Logger) *Store {
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}
}

// Connect opens a pool for url and verifies the connection. The caller closes the pool.
func Connect(ctx context.Context, url string, logger *zap.Logger) (*Store, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return New(pool, logger), pool, nil
}

// EnsureSchema creates the history tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveRun writes the run and its cases in one transaction.
func (s *Store) SaveRun(ctx context.Context, run recorder.RunRecord) error {
	metadata, err := jsonAPI.Marshal(run.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode run metadata: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, insertRunSQL,
		run.ID, run.Start.UTC(), run.End.UTC(),
		run.Totals.Total, run.Totals.Passed, run.Totals.Failed,
		json.RawMessage(metadata),
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if len(run.Cases) > 0 {
		if err := s.persistCases(ctx, tx, run); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Run saved to history.", zap.String("run_id", run.ID), zap.Int("cases", len(run.Cases)))
	return nil
}

func (s *Store) persistCases(ctx context.Context, tx pgx.Tx, run recorder.RunRecord) error {
	rows := make([][]interface{}, len(run.Cases))
	for i, c := range run.Cases {
		steps, err := jsonAPI.Marshal(c.Steps)
		if err != nil {
			return fmt.Errorf("failed to encode steps for case %s: %w", c.Name, err)
		}
		if c.Steps == nil {
			steps = []byte("[]")
		}
		rows[i] = []interface{}{
			c.ID, run.ID, i, c.Name, string(c.Status),
			c.Start.UTC(), c.End.UTC(),
			c.Error, c.Screenshot,
			json.RawMessage(steps),
		}
	}

	copyCount, err := tx.CopyFrom(ctx, pgx.Identifier{"case_results"}, caseColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy case results: %w", err)
	}
	if int(copyCount) != len(run.Cases) {
		return fmt.Errorf("mismatch in copied case count: expected %d, got %d", len(run.Cases), copyCount)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	rows, err := s.pool.Query(ctx, recentRunsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		var metadata []byte
		if err := rows.Scan(&r.ID, &r.Start, &r.End, &r.Totals.Total, &r.Totals.Passed, &r.Totals.Failed, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		if len(metadata) > 0 {
			if err := jsonAPI.Unmarshal(metadata, &r.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata for run %s: %w", r.ID, err)
			}
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}
