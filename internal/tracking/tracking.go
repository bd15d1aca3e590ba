// Package tracking records training runs and promotion decisions in
// PostgreSQL.
package tracking

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/selector"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/train"
	"github.com/goccy/go-json"
)

// Schema creates the tracking tables.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS training_runs (
	    id               TEXT PRIMARY KEY,
	    regressor        TEXT NOT NULL,
	    target_transform TEXT NOT NULL,
	    params           JSONB NOT NULL,
	    metrics          JSONB NOT NULL,
	    features         JSONB NOT NULL,
	    started_at       TIMESTAMPTZ NOT NULL,
	    finished_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS model_promotions (
	    id             BIGSERIAL PRIMARY KEY,
	    run_id         TEXT NOT NULL,
	    bundle_version TEXT NOT NULL,
	    outcome        TEXT NOT NULL,
	    decision       JSONB NOT NULL,
	    decided_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// DB is the subset of *sql.DB the tracker uses.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Tracker implements train.Tracker on PostgreSQL.
type Tracker struct {
	db     DB
	logger *slog.Logger
}

var _ train.Tracker = (*Tracker)(nil)

// New creates a Tracker.
func New(db DB) *Tracker {
	return &Tracker{
		db:     db,
		logger: slog.Default().With("component", "tracker"),
	}
}

// LogRun upserts a training run.
func (t *Tracker) LogRun(ctx context.Context, run train.Run) error {
	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("marshaling params: %w", err)
	}
	metrics, err := json.Marshal(run.Metrics)
	if err != nil {
		return fmt.Errorf("marshaling metrics: %w", err)
	}
	features, err := json.Marshal(run.Features)
	if err != nil {
		return fmt.Errorf("marshaling features: %w", err)
	}
	_, err = t.db.ExecContext(ctx,
		`INSERT INTO training_runs (id, regressor, target_transform, params, metrics, features, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		     params = EXCLUDED.params, metrics = EXCLUDED.metrics,
		     features = EXCLUDED.features, finished_at = EXCLUDED.finished_at`,
		run.ID, run.Regressor, run.TargetTransform, params, metrics, features,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving training run %s: %w", run.ID, err)
	}
	t.logger.Info("training run tracked", "run_id", run.ID, "regressor", run.Regressor)
	return nil
}

// LogPromotion records the outcome of a champion/challenger comparison.
func (t *Tracker) LogPromotion(ctx context.Context, runID, version string, d selector.Decision) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshaling decision: %w", err)
	}
	_, err = t.db.ExecContext(ctx,
		`INSERT INTO model_promotions (run_id, bundle_version, outcome, decision, decided_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		runID, version, string(d.Outcome), data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving promotion for run %s: %w", runID, err)
	}
	return nil
}

// RecentRuns returns the latest runs, newest first.
func (t *Tracker) RecentRuns(ctx context.Context, limit int) ([]train.Run, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, regressor, target_transform, params, metrics, features, started_at, finished_at
		 FROM training_runs ORDER BY finished_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing training runs: %w", err)
	}
	defer rows.Close()

	var runs []train.Run
	for rows.Next() {
		var (
			run                       train.Run
			params, metrics, features []byte
		)
		if err := rows.Scan(&run.ID, &run.Regressor, &run.TargetTransform,
			&params, &metrics, &features, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning training run: %w", err)
		}
		if err := json.Unmarshal(params, &run.Params); err != nil {
			t.logger.Warn("skipping corrupt run", "run_id", run.ID, "error", err)
			continue
		}
		if err := json.Unmarshal(metrics, &run.Metrics); err != nil {
			t.logger.Warn("skipping corrupt run", "run_id", run.ID, "error", err)
			continue
		}
		if err := json.Unmarshal(features, &run.Features); err != nil {
			t.logger.Warn("skipping corrupt run", "run_id", run.ID, "error", err)
			continue
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
