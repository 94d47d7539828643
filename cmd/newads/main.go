package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Velocity-Developer/newads/internal/app"
	"github.com/Velocity-Developer/newads/internal/config"
	"github.com/Velocity-Developer/newads/internal/domain"
	"github.com/Velocity-Developer/newads/internal/logging"
)

// errRunFailed marks a command that ran to completion but reported failure; it has been logged already.
var errRunFailed = errors.New("run failed")

var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "newads",
	Short: "Negative-keyword curation pipeline for ad campaigns",
	Long: `newads fetches zero-click search terms, classifies them with a language model,
splits rejected terms into phrases and submits negative keywords to the ads platform.

Configuration is read from the YAML file named by NEWADS_CONFIG and environment overrides.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return
	}
	if !errors.Is(err, errRunFailed) {
		if logger == nil {
			logger = logging.New("info", "text")
		}
		logger.Error("command failed", "error", err)
	}
	stop()
	os.Exit(1)
}

// withApp builds the application for one command and releases it afterwards.
func withApp(fn func(a *app.Application) error) error {
	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// resolveMode reads the --mode flag; --apply always selects execute.
func resolveMode(mode string, apply bool) (domain.Mode, error) {
	if apply {
		return domain.ModeExecute, nil
	}
	return domain.ParseMode(mode)
}
