package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/funding-crawler/internal/api"
	"github.com/JakeFAU/funding-crawler/internal/app"
)

// newScheduleCmd creates the 'schedule' subcommand: a long-running process
// that crawls on a cron schedule and serves the operational API.
func newScheduleCmd() *cobra.Command {
	var (
		runNow bool
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Runs crawls on the configured cron schedule and serves the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			logger := rt.logger

			a, err := newApp(ctx, rt.cfg, app.Options{DryRun: dryRun}, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			defer a.Close()

			sources, err := a.Sources(nil)
			if err != nil {
				return err
			}
			scheduler, err := app.NewScheduler(ctx, a.Runner().Run, sources, logger.Named("scheduler"))
			if err != nil {
				return err
			}
			if err := scheduler.Start(rt.cfg.Schedule.Cron); err != nil {
				return err
			}
			defer scheduler.Stop()
			if runNow {
				if err := scheduler.Trigger(); err != nil {
					logger.Warn("initial run not started", zap.Error(err))
				}
			}

			apiServer := api.NewServer(scheduler, a, api.Options{APIKey: rt.cfg.Server.APIKey}, logger.Named("api"))
			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", rt.cfg.Server.Port),
				Handler:           apiServer.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			serveErr := make(chan error, 1)
			go func() {
				logger.Info("http server started", zap.Int("port", rt.cfg.Server.Port))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case <-ctx.Done():
			case err := <-serveErr:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
			}
			logger.Info("shutdown initiated")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("server shutdown error", zap.Error(err))
			}
			logger.Info("shutdown complete")
			return nil
		},
	}
	cmd.Flags().BoolVar(&runNow, "run-now", false, "start a run immediately instead of waiting for the schedule")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "keep records in memory and skip publishing")
	return cmd
}
