package analytics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/train"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/kafka"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prediction(loc string, price float64, latency int64, hit bool) events.PredictionEvent {
	return events.PredictionEvent{
		Location:     loc,
		Prediction:   price,
		LatencyMs:    latency,
		CacheHit:     hit,
		ModelVersion: "v1",
	}
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator(nil)
	agg.Record(prediction("mumbai", 2.0, 10, false))
	agg.Record(prediction("mumbai", 4.0, 20, true))
	agg.Record(prediction("pune", 1.0, 30, false))
	agg.Record(prediction("thane", 0.5, 40, true))
	agg.Record(events.TrainingEvent{RunID: "r1", Regressor: "Ridge"})
	agg.Record(events.PromotionEvent{RunID: "r1", Outcome: "challenger"})
	agg.Record("not an event")

	stats := agg.Stats()
	assert.Equal(t, int64(4), stats.TotalPredictions)
	assert.Equal(t, int64(2), stats.CacheHits)
	assert.InDelta(t, 0.5, stats.CacheHitRate, 1e-9)
	assert.InDelta(t, 25.0, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, 20.0, stats.P50LatencyMs)
	assert.Equal(t, 40.0, stats.P99LatencyMs)
	assert.Equal(t, int64(4), stats.ModelVersions["v1"])

	require.Len(t, stats.TopLocations, 3)
	assert.Equal(t, LocationStats{Location: "mumbai", Count: 2, MeanPrediction: 3.0}, stats.TopLocations[0])
	assert.Equal(t, "pune", stats.TopLocations[1].Location)

	assert.Equal(t, int64(1), stats.TrainingRuns)
	require.NotNil(t, stats.LastTraining)
	assert.Equal(t, "Ridge", stats.LastTraining.Regressor)
	require.NotNil(t, stats.LastPromotion)
	assert.Equal(t, "challenger", stats.LastPromotion.Outcome)
}

func TestAggregatorEmpty(t *testing.T) {
	stats := NewAggregator(nil).Stats()
	assert.Zero(t, stats.TotalPredictions)
	assert.Zero(t, stats.CacheHitRate)
	assert.Empty(t, stats.TopLocations)
	assert.Nil(t, stats.LastTraining)
}

func TestLatencyWindowIsBounded(t *testing.T) {
	agg := NewAggregator(nil)
	for i := 0; i < maxLatencies+50; i++ {
		agg.Record(prediction("pune", 1, int64(i), false))
	}
	assert.Len(t, agg.latencies, maxLatencies)
	assert.Equal(t, int64(maxLatencies+50), agg.Stats().TotalPredictions)
}

func TestHandleEvent(t *testing.T) {
	agg := NewAggregator(nil)
	handle := HandleEvent(agg)

	value, err := json.Marshal(prediction("delhi", 1.5, 5, false))
	require.NoError(t, err)
	require.NoError(t, handle(context.Background(), kafka.Message{Type: string(events.TypePrediction), Value: value}))
	assert.ErrorIs(t, handle(context.Background(), kafka.Message{Type: "garbage", Value: []byte("{}")}), kafka.ErrMalformed)

	assert.Equal(t, int64(1), agg.Stats().TotalPredictions)
}

type fakeRuns struct {
	runs []train.Run
	err  error
}

func (f fakeRuns) RecentRuns(context.Context, int) ([]train.Run, error) { return f.runs, f.err }

func TestHandler(t *testing.T) {
	agg := NewAggregator(nil)
	agg.Record(prediction("mumbai", 2, 10, false))

	mux := http.NewServeMux()
	NewHandler(agg, nil, fakeRuns{runs: []train.Run{{ID: "r1"}}}).Register(mux)

	tests := []struct {
		path   string
		status int
	}{
		{"/api/v1/analytics", http.StatusOK},
		{"/api/v1/analytics/training", http.StatusOK},
		{"/api/v1/analytics/training?limit=0", http.StatusBadRequest},
		{"/api/v1/analytics/snapshots", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	var stats AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalPredictions)
}

func TestHandlerHidesStoreErrors(t *testing.T) {
	mux := http.NewServeMux()
	NewHandler(NewAggregator(nil), nil, fakeRuns{err: errors.New("pq: connection refused")}).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/training", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pq:")
}

func TestStartWithoutConsumerWaitsForCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewAggregator(nil).Start(ctx) }()
	cancel()
	require.NoError(t, <-done)
}
