// Package cmd defines and implements the CLI commands for the fundingcrawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/funding-crawler/internal/app"
	"github.com/JakeFAU/funding-crawler/internal/config"
	"github.com/JakeFAU/funding-crawler/internal/logging"
	"github.com/JakeFAU/funding-crawler/internal/telemetry"
)

const serviceName = "funding-crawler"

// runtimeKeyType is the key for storing the loaded runtime in the context.
type runtimeKeyType string

const runtimeKey runtimeKeyType = "runtime"

// runtime carries what PersistentPreRunE loaded for the subcommands.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
	close  func(ctx context.Context) error
}

// newApp is the application factory. It's a variable so tests can inject
// collaborators.
var newApp = func(ctx context.Context, cfg config.Config, opts app.Options, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, opts, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "fundingcrawler",
		Short: "Crawls news sources for startup funding announcements.",
		Long: `fundingcrawler discovers funding articles on configured news sites,
extracts and normalizes the funding events they describe, resolves each
company's website and profile page, and stores new events exactly once.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Config{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(logger)

			tp, err := telemetry.InitTracerProvider(cmd.Context(), serviceName)
			if err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			rt := &runtime{
				cfg:    cfg,
				logger: logger,
				close: func(ctx context.Context) error {
					return tp.Shutdown(ctx)
				},
			}
			cmd.SetContext(context.WithValue(cmd.Context(), runtimeKey, rt))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			rt, ok := cmd.Context().Value(runtimeKey).(*runtime)
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := rt.close(ctx); err != nil {
				rt.logger.Warn("tracer shutdown failed", zap.Error(err))
			}
			_ = rt.logger.Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); FUNDING_* env vars override it")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newScheduleCmd())
	cmd.AddCommand(newRecordsCmd())
	return cmd
}

func resolveRuntime(ctx context.Context) (*runtime, error) {
	rt, ok := ctx.Value(runtimeKey).(*runtime)
	if !ok || rt == nil {
		return nil, errors.New("configuration not loaded")
	}
	return rt, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command's
// context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
