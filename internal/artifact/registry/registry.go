// Package registry is an optional Postgres index of completed backtest
// runs — manifest hash, play hash, symbol, and window — for a validation
// harness to query across runs. The content-addressed
// trades.parquet/equity.parquet/manifest.json files under internal/artifact
// remain the source of truth; this index only answers "which runs exist for
// this Play/symbol/window" without re-walking the filesystem.
//
// One sqlx.DB-backed repo struct, one context-scoped timeout per call,
// *pq.Error code inspection for duplicate-key handling.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// RunRecord is one completed run as indexed in Postgres.
type RunRecord struct {
	RunID       string    `db:"run_id"`
	PlayHash    string    `db:"play_hash"`
	PlayName    string    `db:"play_name"`
	Symbol      string    `db:"symbol"`
	StartMs     int64     `db:"start_ms"`
	EndMs       int64     `db:"end_ms"`
	ArtifactDir string    `db:"artifact_dir"`
	CreatedAt   time.Time `db:"created_at"`
}

// Registry indexes completed runs in Postgres.
type Registry struct {
	db      *sqlx.DB
	timeout time.Duration
}

// New wraps an already-open *sqlx.DB; the caller owns its lifecycle.
func New(db *sqlx.DB, timeout time.Duration) *Registry {
	return &Registry{db: db, timeout: timeout}
}

// Schema is the DDL a deployment runs once to provision the registry table.
const Schema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
	run_id       TEXT PRIMARY KEY,
	play_hash    TEXT NOT NULL,
	play_name    TEXT NOT NULL,
	symbol       TEXT NOT NULL,
	start_ms     BIGINT NOT NULL,
	end_ms       BIGINT NOT NULL,
	artifact_dir TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS backtest_runs_play_symbol_idx ON backtest_runs (play_hash, symbol);
`

// Record inserts one completed run; a duplicate run_id (the same Play over
// the same window, re-run) is treated as a no-op rather than an error,
// since content-addressing already guarantees it would be identical.
func (r *Registry) Record(ctx context.Context, rec RunRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO backtest_runs (run_id, play_hash, play_name, symbol, start_ms, end_ms, artifact_dir)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		rec.RunID, rec.PlayHash, rec.PlayName, rec.Symbol, rec.StartMs, rec.EndMs, rec.ArtifactDir)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			return fmt.Errorf("recording run %s: %w (code %s)", rec.RunID, err, pqErr.Code)
		}
		return fmt.Errorf("recording run %s: %w", rec.RunID, err)
	}
	return nil
}

// ListByPlayHash returns every recorded run of a given Play, newest first.
func (r *Registry) ListByPlayHash(ctx context.Context, playHash string, limit int) ([]RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT run_id, play_hash, play_name, symbol, start_ms, end_ms, artifact_dir, created_at
		FROM backtest_runs
		WHERE play_hash = $1
		ORDER BY created_at DESC
		LIMIT $2`

	var records []RunRecord
	if err := r.db.SelectContext(ctx, &records, query, playHash, limit); err != nil {
		return nil, fmt.Errorf("listing runs for play_hash=%s: %w", playHash, err)
	}
	return records, nil
}

// GetByRunID looks up a single run by its content-addressed id.
func (r *Registry) GetByRunID(ctx context.Context, runID string) (*RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT run_id, play_hash, play_name, symbol, start_ms, end_ms, artifact_dir, created_at
		FROM backtest_runs
		WHERE run_id = $1`

	var rec RunRecord
	if err := r.db.GetContext(ctx, &rec, query, runID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("getting run %s: %w", runID, err)
	}
	return &rec, nil
}
