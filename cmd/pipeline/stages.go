package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/pipeline"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var inputPath string

var etlCmd = &cobra.Command{
	Use:   "etl",
	Short: "Parse and clean the raw listings",
	Long: `Reads the raw listings CSV from the artifact store, cleans it and writes the
cleaned dataset. With --input the local file is uploaded as the raw dataset first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ingest(cmd.Context()); err != nil {
			return err
		}
		return report(env.pipeline.ETL(cmd.Context()))
	},
}

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Partition cleaned rows into train, validation and test sets",
	RunE: func(cmd *cobra.Command, args []string) error {
		return report(env.pipeline.Split(cmd.Context()))
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the interim partitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return report(env.pipeline.Validate(cmd.Context()))
	},
}

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Fit imputation and the column transformer and encode every partition",
	RunE: func(cmd *cobra.Command, args []string) error {
		return report(env.pipeline.Transform(cmd.Context()))
	},
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit the configured regressor and store a candidate bundle",
	RunE: func(cmd *cobra.Command, args []string) error {
		return report(env.pipeline.Train(cmd.Context(), env.runID))
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Compare the candidate bundle with the promoted one",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, d, err := env.pipeline.Promote(cmd.Context())
		if err != nil {
			return report(res, err)
		}
		res.Details["decision"] = d
		return report(res, nil)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage in order",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ingest(cmd.Context()); err != nil {
			return err
		}
		result, err := env.pipeline.Run(cmd.Context())
		env.runID = result.RunID
		if printErr := printJSON(result); printErr != nil {
			return printErr
		}
		return err
	},
}

func init() {
	for _, c := range []*cobra.Command{etlCmd, runCmd} {
		c.Flags().StringVar(&inputPath, "input", "", "local raw listings CSV to upload before running")
	}
	rootCmd.AddCommand(etlCmd, splitCmd, validateCmd, transformCmd, trainCmd, promoteCmd, runCmd)
}

func ingest(ctx context.Context) error {
	if inputPath == "" {
		return nil
	}
	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()
	if err := env.pipeline.Ingest(ctx, f); err != nil {
		return fmt.Errorf("uploading %s: %w", inputPath, err)
	}
	slog.Info("raw listings uploaded", "input", inputPath, "key", env.cfg.Artifacts.RawPath)
	return nil
}

func report(res pipeline.StageResult, err error) error {
	if printErr := printJSON(res); printErr != nil {
		return printErr
	}
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
