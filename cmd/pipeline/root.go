package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/tracking"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/postgres"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var configPath string

// env holds everything a subcommand needs. It is built in PersistentPreRunE
// and torn down once the command finishes, successfully or not.
var env struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	metrics  *metrics.Metrics
	runID    string
	closers  []func() error
}

var rootCmd = &cobra.Command{
	Use:           "pipeline",
	Short:         "House price training pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `Runs the offline training pipeline against the configured artifact store.

Stages:
  etl        parse and clean the raw listings
  split      partition cleaned rows into train, validation and test sets
  validate   check every interim partition against the listing schema
  transform  fit imputation and the column transformer, encode partitions
  train      fit the configured regressor and store a candidate bundle
  promote    compare the candidate with the promoted bundle

Examples:
  go run ./cmd/pipeline etl --input data/house_prices.csv
  go run ./cmd/pipeline run
  go run ./cmd/pipeline schedule --cron "0 0 3 * * 0"`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/development.yaml", "path to config file")
	cobra.OnFinalize(teardown)
}

func setup(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	// stdout carries the JSON stage reports.
	logger.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	env.cfg = cfg
	env.runID = uuid.NewString()

	store, err := artifact.Open(cfg.Artifacts)
	if err != nil {
		return fmt.Errorf("opening artifact store: %w", err)
	}
	env.closers = append(env.closers, store.Close)

	var opts []pipeline.Option
	if cfg.Metrics.Enabled {
		env.metrics = metrics.New()
		opts = append(opts, pipeline.WithMetrics(env.metrics))
	}

	if cfg.Tracking.Enabled {
		tracker, err := openTracker(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("experiment tracking disabled", "error", err)
		} else {
			opts = append(opts, pipeline.WithTracker(tracker))
		}
	}

	if cfg.Kafka.Enabled {
		training := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.TrainingEvents)
		promotion := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ModelPromotions)
		env.closers = append(env.closers, training.Close, promotion.Close)
		opts = append(opts, pipeline.WithNotifier(events.NewNotifier(training, promotion)))
	}

	env.pipeline = pipeline.New(cfg, store, opts...)
	return nil
}

func openTracker(ctx context.Context, cfg config.PostgresConfig) (*tracking.Tracker, error) {
	db, err := postgres.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, tracking.Schema...); err != nil {
		db.Close()
		return nil, err
	}
	env.closers = append(env.closers, db.Close)
	slog.Info("experiment tracking enabled", "database", cfg.Database)
	return tracking.New(db.DB), nil
}

func teardown() {
	pushMetrics()
	for i := len(env.closers) - 1; i >= 0; i-- {
		if err := env.closers[i](); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
	env.closers = nil
}

// pushMetrics hands the command's metrics to the Pushgateway, if one is
// configured. The scheduler serves /metrics itself and never pushes.
func pushMetrics() {
	if env.metrics == nil || env.cfg.Metrics.PushGateway == "" || env.runID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := env.metrics.Push(ctx, env.cfg.Metrics.PushGateway, "pipeline", env.runID); err != nil {
		slog.Warn("metrics push failed", "error", err)
	}
}
