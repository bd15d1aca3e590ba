package aggregator

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/analytics"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDB struct {
	mu      sync.Mutex
	inserts [][]any
	deletes []time.Time
	pruned  int64
	err     error
}

func (f *fakeDB) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if strings.HasPrefix(strings.TrimSpace(query), "DELETE") {
		f.deletes = append(f.deletes, args[0].(time.Time))
		return driverResult(f.pruned), nil
	}
	f.inserts = append(f.inserts, args)
	return driverResult(1), nil
}

func (f *fakeDB) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("not supported")
}

func (f *fakeDB) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inserts)
}

type driverResult int64

func (r driverResult) LastInsertId() (int64, error) { return 0, nil }
func (r driverResult) RowsAffected() (int64, error) { return int64(r), nil }

// liveStats reports a prediction count the test can bump.
type liveStats struct{ total atomic.Int64 }

func (s *liveStats) Stats() analytics.AggregatedStats {
	return analytics.AggregatedStats{TotalPredictions: s.total.Load()}
}

func TestSaveSnapshot(t *testing.T) {
	db := &fakeDB{}
	store := NewStore(db)
	stats := analytics.AggregatedStats{TotalPredictions: 7, CacheHitRate: 0.5, P95LatencyMs: 12, TrainingRuns: 2}
	require.NoError(t, store.SaveSnapshot(context.Background(), stats))
	require.Equal(t, 1, db.count())

	args := db.inserts[0]
	var got analytics.AggregatedStats
	require.NoError(t, json.Unmarshal(args[0].([]byte), &got))
	assert.Equal(t, int64(7), got.TotalPredictions)
	assert.Equal(t, []any{int64(7), 0.5, 12.0, int64(2)}, args[1:5])
}

func TestSaveSnapshotError(t *testing.T) {
	store := NewStore(&fakeDB{err: errors.New("db down")})
	assert.ErrorContains(t, store.SaveSnapshot(context.Background(), analytics.AggregatedStats{}), "db down")
}

func TestPruneUsesRetentionCutoff(t *testing.T) {
	db := &fakeDB{pruned: 4}
	store := NewStore(db)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	n, err := store.Prune(context.Background(), 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, []time.Time{now.Add(-48 * time.Hour)}, db.deletes)
}

func TestListSnapshotsSurfacesQueryError(t *testing.T) {
	_, err := NewStore(&fakeDB{}).ListSnapshots(context.Background(), 5)
	assert.Error(t, err)
}

func TestPeriodicSaveSkipsIdleAggregate(t *testing.T) {
	db := &fakeDB{}
	store := NewStore(db)
	src := &liveStats{}
	src.total.Store(3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.StartPeriodicSave(ctx, src, 5*time.Millisecond, 0)

	require.Eventually(t, func() bool { return db.count() == 1 }, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, db.count())

	src.total.Add(1)
	require.Eventually(t, func() bool { return db.count() == 2 }, time.Second, time.Millisecond)
}

func TestPeriodicSaveWritesFinalSnapshot(t *testing.T) {
	db := &fakeDB{}
	store := NewStore(db)
	src := &liveStats{}
	ctx, cancel := context.WithCancel(context.Background())
	store.StartPeriodicSave(ctx, src, time.Hour, 0)

	src.total.Store(9)
	cancel()
	require.Eventually(t, func() bool { return db.count() == 1 }, time.Second, time.Millisecond)
}
