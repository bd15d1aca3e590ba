// Package aggregator persists periodic snapshots of the analytics aggregate
// to PostgreSQL.
package aggregator

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/analytics"
	"github.com/goccy/go-json"
)

// Schema creates the snapshot table. Headline figures are copied into
// columns so dashboards can chart them without unpacking the JSONB payload.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS analytics_snapshots (
	    id                BIGSERIAL PRIMARY KEY,
	    total_predictions BIGINT NOT NULL DEFAULT 0,
	    cache_hit_rate    DOUBLE PRECISION NOT NULL DEFAULT 0,
	    p95_latency_ms    DOUBLE PRECISION NOT NULL DEFAULT 0,
	    training_runs     BIGINT NOT NULL DEFAULT 0,
	    data              JSONB NOT NULL,
	    captured_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS analytics_snapshots_captured_at_idx
	    ON analytics_snapshots (captured_at DESC)`,
}

// DB is the subset of *sql.DB the store uses.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// StatsSource is satisfied by *analytics.Aggregator.
type StatsSource interface {
	Stats() analytics.AggregatedStats
}

type Store struct {
	db     DB
	now    func() time.Time
	logger *slog.Logger
}

func NewStore(db DB) *Store {
	return &Store{
		db:     db,
		now:    time.Now,
		logger: slog.Default().With("component", "analytics-store"),
	}
}

func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analytics_snapshots
		    (data, total_predictions, cache_hit_rate, p95_latency_ms, training_runs, captured_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		data, stats.TotalPredictions, stats.CacheHitRate, stats.P95LatencyMs, stats.TrainingRuns, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}
	s.logger.Debug("analytics snapshot saved",
		"total_predictions", stats.TotalPredictions,
		"training_runs", stats.TrainingRuns,
	)
	return nil
}

// Prune deletes snapshots captured before the retention window and returns
// how many were removed.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM analytics_snapshots WHERE captured_at < $1`,
		s.now().Add(-retention).UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots: %w", err)
	}
	return n, nil
}

// ListSnapshots returns the last limit snapshots, newest first. Corrupt rows
// are skipped.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]analytics.AggregatedStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM analytics_snapshots ORDER BY captured_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []analytics.AggregatedStats
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		var stats analytics.AggregatedStats
		if err := json.Unmarshal(data, &stats); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "error", err)
			continue
		}
		snapshots = append(snapshots, stats)
	}
	return snapshots, rows.Err()
}

// activity identifies an aggregate state. Snapshots are only written when it
// changes, so an idle service does not fill the table with duplicates.
type activity struct {
	predictions, trainingRuns, promotions int64
}

func activityOf(stats analytics.AggregatedStats) activity {
	return activity{stats.TotalPredictions, stats.TrainingRuns, stats.Promotions}
}

// StartPeriodicSave snapshots src every interval while it keeps changing and
// prunes rows older than retention (zero keeps everything). Once ctx is
// cancelled it writes a final snapshot and stops.
func (s *Store) StartPeriodicSave(ctx context.Context, src StatsSource, interval, retention time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last *activity
		save := func(ctx context.Context) {
			stats := src.Stats()
			act := activityOf(stats)
			if last != nil && *last == act {
				return
			}
			if err := s.SaveSnapshot(ctx, stats); err != nil {
				s.logger.Error("snapshot failed", "error", err)
				return
			}
			last = &act
		}

		for {
			select {
			case <-ticker.C:
				save(ctx)
				if retention > 0 {
					if n, err := s.Prune(ctx, retention); err != nil {
						s.logger.Error("snapshot pruning failed", "error", err)
					} else if n > 0 {
						s.logger.Info("old snapshots pruned", "deleted", n)
					}
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				save(shutdownCtx)
				cancel()
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval, "retention", retention)
}
