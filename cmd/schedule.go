package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobsearch-crawler/internal/api"
	"github.com/JakeFAU/jobsearch-crawler/internal/scheduler"
)

func newScheduleCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Runs the configured searches on a cron schedule",
		Long: `Runs every entry of schedule.searches on schedule.cron and serves
/healthz, /metrics and /v1/runs on metrics.addr until interrupted. With --once
the searches run a single time and their summaries are printed as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScheduleCommand(cmd, once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run every search once and exit")
	return cmd
}

func runScheduleCommand(cmd *cobra.Command, once bool) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	sched, err := scheduler.New(scheduler.Config{
		Spec:        cfg.Schedule.Cron,
		RunOnStart:  cfg.Schedule.RunOnStart,
		HistorySize: cfg.Schedule.HistorySize,
		Searches:    cfg.Schedule.Searches,
	}, appInstance.RunSearch, logger.Named("scheduler"))
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if once {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(sched.RunOnce(ctx)); err != nil {
			return fmt.Errorf("print summaries: %w", err)
		}
		return nil
	}

	srv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           api.NewServer(sched.History(), cfg.Schedule.Searches, logger.Named("api")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http server started", zap.String("addr", cfg.Metrics.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler stop timed out", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}
