// Command analytics starts the standalone analytics aggregation service.
//
// It consumes prediction, training and promotion events from Kafka, aggregates
// them in memory (prediction volume, latency percentiles, cache hit rate, top
// locations, last training run and promotion), snapshots the aggregate to
// PostgreSQL, and serves GET /api/v1/analytics for dashboards.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/tracking"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/postgres"
)

// main boots the analytics service: it wires the Kafka consumer into the
// in-memory aggregator, starts periodic snapshots when PostgreSQL is
// reachable, registers health checks, and serves the HTTP API until
// SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Analytics.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	topics := []string{
		cfg.Kafka.Topics.PredictionEvents,
		cfg.Kafka.Topics.TrainingEvents,
		cfg.Kafka.Topics.ModelPromotions,
	}
	agg := analytics.NewAggregator(nil)
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		consumer = kafka.NewConsumer(cfg.Kafka, topics, analytics.HandleEvent(agg))
		agg.SetConsumer(consumer)
	}

	go func() {
		if err := agg.Start(ctx); err != nil {
			slog.Error("aggregator error", "error", err)
		}
	}()
	slog.Info("analytics aggregator started", "topics", topics)

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		if consumer == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "disabled"}
		}
		st := consumer.Stats()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("processed %d, dropped %d", st.Processed, st.Dropped),
		}
	})

	var (
		snapshots analytics.SnapshotLister
		runs      analytics.RunLister
	)
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, snapshots and training history disabled", "error", err)
	} else {
		defer db.Close()
		schema := append(append([]string{}, aggregator.Schema...), tracking.Schema...)
		if err := db.Migrate(ctx, schema...); err != nil {
			slog.Error("failed to migrate analytics schema", "error", err)
			os.Exit(1)
		}
		store := aggregator.NewStore(db.DB)
		store.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval, cfg.Analytics.SnapshotRetention)
		snapshots = store
		runs = tracking.New(db.DB)
		checker.Register("postgres", health.PingCheck(db.Ping, true))
	}

	mux := http.NewServeMux()
	analytics.NewHandler(agg, snapshots, runs).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Analytics.Port),
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

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
