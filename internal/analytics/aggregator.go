// Package analytics aggregates prediction, training and promotion events
// consumed from Kafka into serving statistics.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/kafka"
	"gonum.org/v1/gonum/stat"
)

// maxLatencies bounds the latency window used for percentiles.
const maxLatencies = 10000

// AggregatedStats is a point-in-time view of the aggregator.
type AggregatedStats struct {
	TotalPredictions     int64                  `json:"total_predictions"`
	CacheHits            int64                  `json:"cache_hits"`
	CacheMisses          int64                  `json:"cache_misses"`
	CacheHitRate         float64                `json:"cache_hit_rate"`
	AvgLatencyMs         float64                `json:"avg_latency_ms"`
	P50LatencyMs         float64                `json:"p50_latency_ms"`
	P95LatencyMs         float64                `json:"p95_latency_ms"`
	P99LatencyMs         float64                `json:"p99_latency_ms"`
	PredictionsPerMinute float64                `json:"predictions_per_minute"`
	TopLocations         []LocationStats        `json:"top_locations"`
	ModelVersions        map[string]int64       `json:"model_versions,omitempty"`
	TrainingRuns         int64                  `json:"training_runs"`
	LastTraining         *events.TrainingEvent  `json:"last_training,omitempty"`
	Promotions           int64                  `json:"promotions"`
	LastPromotion        *events.PromotionEvent `json:"last_promotion,omitempty"`
}

// LocationStats is the demand and mean predicted price for one location.
type LocationStats struct {
	Location       string  `json:"location"`
	Count          int64   `json:"count"`
	MeanPrediction float64 `json:"mean_prediction"`
}

type locationTotals struct {
	count int64
	sum   float64
}

type Aggregator struct {
	mu               sync.RWMutex
	totalPredictions atomic.Int64
	cacheHits        atomic.Int64
	cacheMisses      atomic.Int64
	trainingRuns     atomic.Int64
	promotions       atomic.Int64
	latencies        []float64
	next             int
	locations        map[string]*locationTotals
	versions         map[string]int64
	lastTraining     *events.TrainingEvent
	lastPromotion    *events.PromotionEvent
	startTime        time.Time

	consumer *kafka.Consumer
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator. consumer may be nil when events are
// fed through Record directly.
func NewAggregator(consumer *kafka.Consumer) *Aggregator {
	return &Aggregator{
		latencies: make([]float64, 0, 1024),
		locations: make(map[string]*locationTotals),
		versions:  make(map[string]int64),
		startTime: time.Now(),
		consumer:  consumer,
		logger:    slog.Default().With("component", "analytics-aggregator"),
	}
}

// SetConsumer attaches the consumer Start runs.
func (a *Aggregator) SetConsumer(c *kafka.Consumer) {
	a.consumer = c
}

// Start blocks consuming events until ctx is cancelled. Without a consumer
// it only waits for cancellation.
func (a *Aggregator) Start(ctx context.Context) error {
	if a.consumer == nil {
		a.logger.Warn("no event consumer attached, aggregate is fed directly")
		<-ctx.Done()
		return nil
	}
	a.logger.Info("analytics aggregator starting")
	return a.consumer.Start(ctx)
}

// HandleEvent decodes each message and folds it into agg. Undecodable
// messages surface as kafka.ErrMalformed, which the consumer drops.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		event, err := events.Decode(msg)
		if err != nil {
			return err
		}
		agg.Record(event)
		return nil
	}
}

// Record folds one decoded event into the aggregate.
func (a *Aggregator) Record(event any) {
	switch e := event.(type) {
	case events.PredictionEvent:
		a.recordPrediction(e)
	case events.TrainingEvent:
		a.trainingRuns.Add(1)
		a.mu.Lock()
		a.lastTraining = &e
		a.mu.Unlock()
	case events.PromotionEvent:
		a.promotions.Add(1)
		a.mu.Lock()
		a.lastPromotion = &e
		a.mu.Unlock()
	default:
		a.logger.Warn("ignoring unknown event", "type", fmt.Sprintf("%T", event))
	}
}

func (a *Aggregator) recordPrediction(e events.PredictionEvent) {
	a.totalPredictions.Add(1)
	if e.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.latencies) < maxLatencies {
		a.latencies = append(a.latencies, float64(e.LatencyMs))
	} else {
		a.latencies[a.next] = float64(e.LatencyMs)
		a.next = (a.next + 1) % maxLatencies
	}
	lt := a.locations[e.Location]
	if lt == nil {
		lt = &locationTotals{}
		a.locations[e.Location] = lt
	}
	lt.count++
	lt.sum += e.Prediction
	if e.ModelVersion != "" {
		a.versions[e.ModelVersion]++
	}
}

// Stats returns the current aggregate.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalPredictions: a.totalPredictions.Load(),
		CacheHits:        a.cacheHits.Load(),
		CacheMisses:      a.cacheMisses.Load(),
		TrainingRuns:     a.trainingRuns.Load(),
		Promotions:       a.promotions.Load(),
		LastTraining:     a.lastTraining,
		LastPromotion:    a.lastPromotion,
	}
	if total := stats.CacheHits + stats.CacheMisses; total > 0 {
		stats.CacheHitRate = float64(stats.CacheHits) / float64(total)
	}
	if len(a.latencies) > 0 {
		sorted := make([]float64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Float64s(sorted)
		stats.AvgLatencyMs = stat.Mean(sorted, nil)
		stats.P50LatencyMs = stat.Quantile(0.50, stat.Empirical, sorted, nil)
		stats.P95LatencyMs = stat.Quantile(0.95, stat.Empirical, sorted, nil)
		stats.P99LatencyMs = stat.Quantile(0.99, stat.Empirical, sorted, nil)
	}
	stats.TopLocations = topLocations(a.locations, 10)
	if len(a.versions) > 0 {
		stats.ModelVersions = make(map[string]int64, len(a.versions))
		for v, n := range a.versions {
			stats.ModelVersions[v] = n
		}
	}
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.PredictionsPerMinute = float64(stats.TotalPredictions) / elapsed
	}
	return stats
}

func topLocations(totals map[string]*locationTotals, n int) []LocationStats {
	result := make([]LocationStats, 0, len(totals))
	for loc, t := range totals {
		result = append(result, LocationStats{
			Location:       loc,
			Count:          t.count,
			MeanPrediction: t.sum / float64(t.count),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Location < result[j].Location
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
