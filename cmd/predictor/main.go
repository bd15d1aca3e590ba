// Command predictor serves house price predictions over HTTP.
//
// It loads the promoted model bundle from the artifact store once at start-up,
// memoises predictions in Redis behind a circuit breaker, publishes one
// prediction event per request to Kafka, and exposes POST /api/v1/predict.
//
// Usage:
//
//	go run ./cmd/predictor [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/bundle"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/prediction"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting prediction service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := artifact.Open(cfg.Artifacts)
	if err != nil {
		slog.Error("failed to open artifact store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	b, err := loadBundle(ctx, store, cfg.Artifacts.Keys.Bundle)
	if err != nil {
		slog.Error("failed to load model bundle", "key", cfg.Artifacts.Keys.Bundle, "error", err)
		os.Exit(1)
	}
	slog.Info("model bundle loaded",
		"version", b.Version,
		"run_id", b.RunID,
		"regressor", b.Model.Kind,
		"features", len(b.Model.Features),
	)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	var cache *prediction.Cache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, prediction caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		breaker := resilience.NewCircuitBreaker("prediction-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			OnStateChange: func(name string, from, to resilience.State) {
				if m != nil {
					m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
				}
			},
		})
		cache = prediction.NewCache(redisClient, cfg.Redis, breaker)
		slog.Info("prediction cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	var tracker prediction.EventTracker
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.PredictionEvents)
		defer producer.Close()
		collector := events.NewCollector(producer, 100, 5*time.Second)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector
		slog.Info("prediction event collector started", "topic", cfg.Kafka.Topics.PredictionEvents)
	}

	service := prediction.NewService(b, cache, tracker, m)
	h := prediction.NewHandler(service)

	checker := health.NewChecker()
	checker.SetInfo("model_version", b.Version)
	checker.SetInfo("regressor", string(b.Model.Kind))
	checker.Register("artifact_store", health.PingCheck(store.Ping, false))
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		return health.PingCheck(redisClient.Ping, true)(ctx)
	})

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if m != nil {
		chain = middleware.Metrics(m, mux)(chain)
	}
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("prediction service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("prediction service stopped")
}

// loadBundle reads and decodes the promoted bundle. Store errors are retried;
// a missing or undecodable bundle fails at once.
func loadBundle(ctx context.Context, store artifact.Store, key string) (*bundle.Bundle, error) {
	var b *bundle.Bundle
	err := resilience.Retry(ctx, "load-bundle", resilience.RetryConfig{MaxAttempts: 5, InitialDelay: 500 * time.Millisecond}, func(ctx context.Context) error {
		data, err := store.Get(ctx, key)
		if errors.Is(err, apperrors.ErrArtifactMissing) {
			return resilience.Permanent(err)
		}
		if err != nil {
			return err
		}
		b, err = bundle.Decode(data)
		return resilience.Permanent(err)
	})
	return b, err
}
