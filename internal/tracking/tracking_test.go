package tracking

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/selector"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/train"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	query string
	args  []any
}

type fakeDB struct {
	calls []execCall
	err   error
}

func (f *fakeDB) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.calls = append(f.calls, execCall{query, args})
	return nil, f.err
}

func (f *fakeDB) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("not supported")
}

func TestLogRun(t *testing.T) {
	db := &fakeDB{}
	tr := New(db)
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	run := train.Run{
		ID:              "run-1",
		Regressor:       "RandomForestRegressor",
		TargetTransform: "log",
		Params:          map[string]float64{"n_estimators": 100},
		Metrics:         map[string]float64{"test_mae": 0.12},
		Features:        []string{"location", "effective_area"},
		StartedAt:       started,
		FinishedAt:      started.Add(time.Minute),
	}
	require.NoError(t, tr.LogRun(context.Background(), run))
	require.Len(t, db.calls, 1)

	args := db.calls[0].args
	assert.Contains(t, db.calls[0].query, "INSERT INTO training_runs")
	assert.Equal(t, "run-1", args[0])
	assert.Equal(t, "log", args[2])
	var metrics map[string]float64
	require.NoError(t, json.Unmarshal(args[4].([]byte), &metrics))
	assert.Equal(t, 0.12, metrics["test_mae"])
	assert.Equal(t, started, args[6])
}

func TestLogRunPropagatesErrors(t *testing.T) {
	tr := New(&fakeDB{err: errors.New("connection refused")})
	err := tr.LogRun(context.Background(), train.Run{ID: "r"})
	assert.ErrorContains(t, err, "connection refused")
}

func TestLogPromotion(t *testing.T) {
	db := &fakeDB{}
	d := selector.Choose(selector.NewScore(0.1, 0.2), nil)
	require.NoError(t, New(db).LogPromotion(context.Background(), "run-2", "v-2", d))
	require.Len(t, db.calls, 1)
	assert.Equal(t, "challenger", db.calls[0].args[2])
}

func TestRecentRunsSurfacesQueryError(t *testing.T) {
	_, err := New(&fakeDB{}).RecentRuns(context.Background(), 5)
	assert.Error(t, err)
}
