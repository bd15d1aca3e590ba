package prediction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/bundle"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/events"
	apperrors "github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/middleware"
)

// EventTracker receives one event per served prediction. *events.Collector
// satisfies it.
type EventTracker interface {
	Track(event kafka.Event)
}

// Result is a served prediction.
type Result struct {
	Price        float64
	CacheHit     bool
	ModelVersion string
}

// Service answers prediction requests from a bundle loaded at startup. The
// bundle is never mutated, so Predict is safe for concurrent use.
type Service struct {
	bundle  *bundle.Bundle
	cache   *Cache
	events  EventTracker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewService creates a Service. cache, tracker and m may be nil.
func NewService(b *bundle.Bundle, cache *Cache, tracker EventTracker, m *metrics.Metrics) *Service {
	return &Service{
		bundle:  b,
		cache:   cache,
		events:  tracker,
		metrics: m,
		logger:  slog.Default().With("component", "prediction-service"),
	}
}

// Bundle returns the bundle the service predicts with.
func (s *Service) Bundle() *bundle.Bundle {
	return s.bundle
}

// Cache returns the prediction cache, or nil when caching is disabled.
func (s *Service) Cache() *Cache {
	return s.cache
}

// Predict validates req and returns the predicted price in crores.
func (s *Service) Predict(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	log := logger.FromContext(ctx)

	req.Normalize()
	if err := req.Validate(); err != nil {
		s.count("invalid")
		return Result{}, err
	}

	record := req.Record()
	compute := func() (float64, error) {
		p, err := s.bundle.PredictRecord(record)
		if err != nil {
			return 0, err
		}
		return finitePrice(p)
	}

	var (
		price    float64
		cacheHit bool
		err      error
	)
	if s.cache != nil {
		price, cacheHit, err = s.cache.GetOrCompute(ctx, Key(s.bundle.Version, req.Fingerprint()), compute)
	} else {
		price, err = compute()
	}
	if err != nil {
		s.count("error")
		log.Error("prediction failed", "location", req.Location, "error", err)
		if errors.Is(err, apperrors.ErrSchemaMismatch) {
			return Result{}, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "model artifacts do not match the request schema")
		}
		return Result{}, err
	}

	latency := time.Since(start)
	s.count("ok")
	if s.metrics != nil {
		status := "miss"
		if cacheHit {
			status = "hit"
			s.metrics.CacheHitsTotal.Inc()
		} else if s.cache != nil {
			s.metrics.CacheMissesTotal.Inc()
		}
		s.metrics.PredictionLatency.WithLabelValues(status).Observe(latency.Seconds())
		s.metrics.PredictedPrice.Observe(price)
	}
	if s.events != nil {
		s.events.Track(events.Prediction(events.PredictionEvent{
			RequestID:    middleware.GetRequestID(ctx),
			Location:     req.Location,
			NumBHK:       req.NumBHK,
			Prediction:   price,
			CacheHit:     cacheHit,
			LatencyMs:    latency.Milliseconds(),
			ModelVersion: s.bundle.Version,
			Timestamp:    time.Now().UTC(),
		}))
	}
	log.Info("prediction served",
		"location", req.Location,
		"prediction", price,
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	return Result{Price: price, CacheHit: cacheHit, ModelVersion: s.bundle.Version}, nil
}

// finitePrice rejects NaN and infinite model outputs so they are never cached
// or served.
func finitePrice(p float64) (float64, error) {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, fmt.Errorf("%w: model produced non-finite price %v", apperrors.ErrInternal, p)
	}
	return p, nil
}

func (s *Service) count(result string) {
	if s.metrics != nil {
		s.metrics.PredictionsTotal.WithLabelValues(result).Inc()
	}
}
