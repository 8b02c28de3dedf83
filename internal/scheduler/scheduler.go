// Package scheduler runs the configured searches on a cron expression.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobsearch-crawler/internal/config"
	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
)

// Summary describes one finished scheduled search.
type Summary struct {
	Search     string             `json:"search"`
	RunID      string             `json:"run_id,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Results    int                `json:"results"`
	StopReason crawler.StopReason `json:"stop_reason,omitempty"`
	Location   string             `json:"location,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// RunFunc crawls one search and persists its records.
type RunFunc func(ctx context.Context, search config.NamedSearch) Summary

// Config holds the schedule settings.
type Config struct {
	Spec        string
	RunOnStart  bool
	HistorySize int
	Searches    []config.NamedSearch
}

// Scheduler wraps robfig/cron and keeps a bounded history of runs.
type Scheduler struct {
	cron     *cron.Cron
	spec     string
	onStart  bool
	searches []config.NamedSearch
	run      RunFunc
	history  *History
	logger   *zap.Logger

	startOnce sync.Once
	job       cron.Job
}

// New validates the cron expression and prepares the scheduler.
func New(cfg Config, run RunFunc, logger *zap.Logger) (*Scheduler, error) {
	if run == nil {
		return nil, fmt.Errorf("run func is required")
	}
	if len(cfg.Searches) == 0 {
		return nil, fmt.Errorf("schedule.searches is empty")
	}
	if _, err := cron.ParseStandard(cfg.Spec); err != nil {
		return nil, fmt.Errorf("parse cron spec %q: %w", cfg.Spec, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cronLogger := zapCronLogger{logger: logger.Sugar()}
	s := &Scheduler{
		cron:     cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.Recover(cronLogger))),
		spec:     cfg.Spec,
		onStart:  cfg.RunOnStart,
		searches: append([]config.NamedSearch(nil), cfg.Searches...),
		run:      run,
		history:  NewHistory(cfg.HistorySize),
		logger:   logger,
	}
	return s, nil
}

// History exposes the recorded runs.
func (s *Scheduler) History() *History {
	return s.history
}

// Start registers the cycle and starts the cron loop. With RunOnStart the
// first cycle begins immediately instead of waiting for the first tick.
// Cycles never overlap; a tick that arrives mid-cycle is skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	var err error
	s.startOnce.Do(func() {
		s.job = cron.NewChain(cron.SkipIfStillRunning(zapCronLogger{logger: s.logger.Sugar()})).
			Then(cron.FuncJob(func() { s.RunOnce(ctx) }))
		if _, err = s.cron.AddJob(s.spec, s.job); err != nil {
			err = fmt.Errorf("cron.AddJob: %w", err)
			return
		}
		s.cron.Start()
		s.logger.Info("scheduler started", zap.String("spec", s.spec), zap.Int("searches", len(s.searches)))
		if s.onStart {
			go s.job.Run()
		}
	})
	return err
}

// Stop halts the cron loop and waits for a running cycle or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running cycle: %w", ctx.Err())
	}
}

// RunOnce runs every search in order and records a summary for each.
func (s *Scheduler) RunOnce(ctx context.Context) []Summary {
	s.logger.Info("scrape cycle started", zap.Int("searches", len(s.searches)))
	out := make([]Summary, 0, len(s.searches))
	for _, search := range s.searches {
		if ctx.Err() != nil {
			s.logger.Info("scrape cycle interrupted", zap.Error(ctx.Err()))
			break
		}
		summary := s.run(ctx, search)
		if summary.Search == "" {
			summary.Search = search.Name
		}
		s.history.Add(summary)
		fields := []zap.Field{
			zap.String("search", summary.Search),
			zap.String("run_id", summary.RunID),
			zap.Int("results", summary.Results),
			zap.String("stop_reason", string(summary.StopReason)),
		}
		if summary.Error != "" {
			s.logger.Warn("scheduled search failed", append(fields, zap.String("error", summary.Error))...)
		} else {
			s.logger.Info("scheduled search finished", append(fields, zap.String("location", summary.Location))...)
		}
		out = append(out, summary)
	}
	s.logger.Info("scrape cycle complete", zap.Int("runs", len(out)))
	return out
}

type zapCronLogger struct {
	logger *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
