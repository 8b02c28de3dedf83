// Package app builds the long-lived services shared by the CLI commands and
// acts as their dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobsearch-crawler/internal/clock/system"
	"github.com/JakeFAU/jobsearch-crawler/internal/config"
	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
	"github.com/JakeFAU/jobsearch-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/jobsearch-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/jobsearch-crawler/internal/id/uuid"
	"github.com/JakeFAU/jobsearch-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/jobsearch-crawler/internal/scheduler"
	"github.com/JakeFAU/jobsearch-crawler/internal/storage"
	"github.com/JakeFAU/jobsearch-crawler/internal/storage/postgres"
)

// writeTimeout bounds the final sink write, which still runs after the crawl
// context is canceled so partial results are kept.
const writeTimeout = 30 * time.Second

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// SinkOpener opens the sink for a destination.
type SinkOpener func(ctx context.Context, destination string) (storage.Sink, error)

// App holds the services built from one Config.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	engine   *crawler.Engine
	limiter  *ratelimit.Limiter
	clock    Clock
	openSink SinkOpener

	fetcherOpts []collyfetcher.Option
	engineOpts  []crawler.Option
}

// Option customizes an App.
type Option func(*App)

// WithSinkOpener replaces destination routing.
func WithSinkOpener(open SinkOpener) Option {
	return func(a *App) { a.openSink = open }
}

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithFetcherOptions passes options to the colly fetcher.
func WithFetcherOptions(opts ...collyfetcher.Option) Option {
	return func(a *App) { a.fetcherOpts = append(a.fetcherOpts, opts...) }
}

// WithEngineOptions passes options to the crawl engine.
func WithEngineOptions(opts ...crawler.Option) Option {
	return func(a *App) { a.engineOpts = append(a.engineOpts, opts...) }
}

// New validates cfg and wires the crawl pipeline. It fails fast on bad config.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		clock:  system.New(),
	}
	a.openSink = func(ctx context.Context, destination string) (storage.Sink, error) {
		return storage.Open(ctx, destination, storage.Options{
			ContentType: cfg.Storage.ContentType,
			GCSEndpoint: cfg.Storage.GCSEndpoint,
			DB: postgres.Config{
				Table:    cfg.DB.Table,
				MaxConns: cfg.DB.MaxConns,
			},
		})
	}
	for _, opt := range opts {
		opt(a)
	}

	extractor, err := extract.New(extract.DescriptionFormat(cfg.Crawl.DescriptionFormat))
	if err != nil {
		return nil, fmt.Errorf("init extractor: %w", err)
	}
	a.limiter = ratelimit.New(ratelimit.Config{RPS: cfg.HTTP.RateLimitRPS, Burst: cfg.HTTP.RateLimitBurst})
	fetcherOpts := append([]collyfetcher.Option{collyfetcher.WithLimiter(a.limiter)}, a.fetcherOpts...)
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:   cfg.HTTP.UserAgent,
		Headers:     cfg.HTTP.Headers,
		MaxAttempts: cfg.HTTP.MaxRetries,
		RetryUnit:   cfg.HTTP.RetryUnit,
	}, logger.Named("fetcher"), fetcherOpts...)

	engineOpts := append([]crawler.Option{
		crawler.WithIDGenerator(uuid.New()),
		crawler.WithClock(a.clock.Now),
	}, a.engineOpts...)
	a.engine = crawler.NewEngine(
		cfg.ToCrawlerConfig(),
		fetcher.NewSession,
		extractor,
		extractor,
		logger.Named("crawler"),
		engineOpts...,
	)

	logger.Info("application services initialized",
		zap.String("base_url", cfg.Crawl.BaseURL),
		zap.Bool("full_description", cfg.Crawl.FullDescription),
		zap.Float64("rate_limit_rps", cfg.HTTP.RateLimitRPS),
	)
	return a, nil
}

// Config returns the validated configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Engine returns the crawl engine.
func (a *App) Engine() *crawler.Engine {
	return a.engine
}

// Crawl runs one search and writes its records to destination. The sink is
// opened before crawling so a bad destination fails before any request.
func (a *App) Crawl(ctx context.Context, criteria crawler.SearchCriteria, destination string) (crawler.Result, string, error) {
	sink, err := a.openSink(ctx, destination)
	if err != nil {
		return crawler.Result{}, "", fmt.Errorf("open sink %q: %w", destination, err)
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			a.logger.Warn("sink close failed", zap.String("destination", destination), zap.Error(cerr))
		}
	}()

	result, err := a.engine.Crawl(ctx, criteria)
	if err != nil {
		return crawler.Result{}, "", err
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	location, err := sink.Write(writeCtx, result.Jobs)
	if err != nil {
		return result, "", fmt.Errorf("write results: %w", err)
	}
	a.logger.Info("results written",
		zap.String("run_id", result.Stats.RunID),
		zap.Int("results", len(result.Jobs)),
		zap.String("location", location),
	)
	return result, location, nil
}

// RunSearch satisfies scheduler.RunFunc.
func (a *App) RunSearch(ctx context.Context, search config.NamedSearch) scheduler.Summary {
	summary := scheduler.Summary{Search: search.Name, StartedAt: a.clock.Now()}
	result, location, err := a.Crawl(ctx, search.SearchCriteria, a.cfg.Destination(search))
	summary.FinishedAt = a.clock.Now()
	summary.RunID = result.Stats.RunID
	summary.Results = len(result.Jobs)
	summary.StopReason = result.Stats.StopReason
	summary.Location = location
	if err != nil {
		summary.Error = err.Error()
	}
	return summary
}

// Close flushes the logger. Sinks are closed per crawl.
func (a *App) Close() {
	a.logger.Debug("shutting down application services", zap.Int("rate_limited_hosts", a.limiter.Hosts()))
	// Sync fails on terminals (ENOTTY/EINVAL); there is nothing to do about it.
	_ = a.logger.Sync()
}
