package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Velocity-Developer/newads/internal/app"
	"github.com/Velocity-Developer/newads/internal/domain"
	"github.com/Velocity-Developer/newads/internal/usecase"
)

var (
	pipelineApply     bool
	pipelineMode      string
	pipelineJSON      bool
	pipelineBatchSize int

	scheduleApply     bool
	scheduleMode      string
	scheduleInterval  time.Duration
	scheduleBatchSize int

	serveSchedule bool
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run all six stages in order as one batch job",
	Long: `Runs fetch-terms, analyze-terms, submit-terms, process-phrases, analyze-frasa and
submit-frasa in order. Every step runs even when an earlier one fails; the command exits 1
when any step failed. Without --apply submissions are validated only.

A second invocation while one is running is skipped and exits 0.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := resolveMode(pipelineMode, pipelineApply)
		if err != nil {
			return err
		}
		opts := usecase.PipelineOptions{Mode: mode, BatchSize: pipelineBatchSize}
		return withApp(func(a *app.Application) error {
			run, skipped, err := a.RunPipeline(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if skipped {
				return nil
			}
			if pipelineJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(run); err != nil {
					return fmt.Errorf("encode run summary: %w", err)
				}
			}
			if usecase.ExitCode(run) != 0 {
				return errRunFailed
			}
			return nil
		})
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline every interval until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := resolveMode(scheduleMode, scheduleApply)
		if err != nil {
			return err
		}
		opts := usecase.PipelineOptions{Mode: mode, BatchSize: scheduleBatchSize}
		return withApp(func(a *app.Application) error {
			return a.Schedule(cmd.Context(), scheduleInterval, opts)
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve /health, /metrics, /stats and the blacklist invalidation hook",
	Long: `Starts the admin HTTP server on http.addr. With --schedule the pipeline also runs
every interval in the same process, so POST /blacklist/invalidate refreshes the cache the
scheduled runs read.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := resolveMode(scheduleMode, scheduleApply)
		if err != nil {
			return err
		}
		opts := usecase.PipelineOptions{Mode: mode, BatchSize: scheduleBatchSize}
		return withApp(func(a *app.Application) error {
			return a.Serve(cmd.Context(), serveSchedule, scheduleInterval, opts)
		})
	},
}

func init() {
	pipelineCmd.Flags().BoolVar(&pipelineApply, "apply", false, "execute submissions instead of validating them")
	pipelineCmd.Flags().StringVar(&pipelineMode, "mode", string(domain.ModeValidate), "submission mode: validate or execute (--apply implies execute)")
	pipelineCmd.Flags().BoolVar(&pipelineJSON, "json", false, "print the run summary as JSON")
	pipelineCmd.Flags().IntVar(&pipelineBatchSize, "batch-size", 0, "maximum items per step (0 = unlimited)")

	for _, cmd := range []*cobra.Command{scheduleCmd, serveCmd} {
		cmd.Flags().BoolVar(&scheduleApply, "apply", false, "execute submissions instead of validating them")
		cmd.Flags().StringVar(&scheduleMode, "mode", string(domain.ModeValidate), "submission mode: validate or execute (--apply implies execute)")
		cmd.Flags().DurationVar(&scheduleInterval, "interval", 0, "time between runs (default scheduler.interval)")
		cmd.Flags().IntVar(&scheduleBatchSize, "batch-size", 0, "maximum items per step (0 = unlimited)")
	}
	serveCmd.Flags().BoolVar(&serveSchedule, "schedule", false, "also run the pipeline on the scheduler interval")

	rootCmd.AddCommand(pipelineCmd, scheduleCmd, serveCmd)
}
