package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var (
	cronExpr string
	runNow   bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Retrain on a cron schedule",
	Long: `Runs the full pipeline on a six-field cron expression (with seconds) until
interrupted. Overlapping runs are skipped. Metrics are served while the scheduler
is up when metrics are enabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env.runID = ""
		expr := cronExpr
		if expr == "" {
			expr = env.cfg.Schedule.Cron
		}

		if env.cfg.Metrics.Enabled {
			shutdown := env.metrics.StartServer(env.cfg.Metrics.Port)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(shutdownCtx)
			}()
		}

		log := slog.Default().With("component", "scheduler")
		c := cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
		)
		job := func() {
			result, err := env.pipeline.Run(ctx)
			if err != nil {
				log.Error("scheduled run failed", "run_id", result.RunID, "error", err)
				return
			}
			log.Info("scheduled run finished",
				"run_id", result.RunID,
				"outcome", result.Decision.Outcome,
				"bundle_version", result.BundleVersion,
			)
		}
		id, err := c.AddFunc(expr, job)
		if err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", expr, err)
		}

		c.Start()
		log.Info("scheduler started", "cron", expr)
		if runNow {
			c.Entry(id).WrappedJob.Run()
		}

		<-ctx.Done()
		log.Info("shutdown signal received, waiting for running job")
		<-c.Stop().Done()
		log.Info("scheduler stopped")
		return nil
	},
}

func init() {
	scheduleCmd.Flags().StringVar(&cronExpr, "cron", "", "cron expression with seconds (default from config)")
	scheduleCmd.Flags().BoolVar(&runNow, "now", false, "run once immediately after starting")
	rootCmd.AddCommand(scheduleCmd)
}
