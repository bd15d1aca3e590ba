// Command pipeline runs the offline training pipeline.
//
// Each stage can be invoked on its own; "run" executes all of them in order
// and "schedule" repeats full runs on a cron expression.
//
// Usage:
//
//	go run ./cmd/pipeline [--config configs/development.yaml] <etl|split|validate|transform|train|promote|run|schedule>
package main

import (
	"context"
	"log/slog"
	"os"
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("pipeline command failed", "error", err)
		os.Exit(1)
	}
}
