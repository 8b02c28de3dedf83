package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobsearch-crawler/internal/metrics"
)

type crawlState int

const (
	stateFetchingPage crawlState = iota
	stateProcessingCards
	stateThrottleDelay
	stateDone
)

func (s crawlState) String() string {
	switch s {
	case stateFetchingPage:
		return "FETCHING_PAGE"
	case stateProcessingCards:
		return "PROCESSING_CARDS"
	case stateThrottleDelay:
		return "THROTTLE_DELAY"
	default:
		return "DONE"
	}
}

// Engine runs crawls. It holds no per-crawl state, so one Engine may serve
// several callers; every Crawl builds its own session, seen set and results.
type Engine struct {
	cfg       Config
	sessions  SessionFactory
	extractor Extractor
	details   DetailParser
	pauser    Pauser
	jitter    Jitter
	ids       IDGenerator
	now       func() time.Time
	logger    *zap.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithPauser replaces the wall-clock pauser used for throttle delays.
func WithPauser(p Pauser) Option {
	return func(e *Engine) { e.pauser = p }
}

// WithJitter replaces the random source for throttle delays.
func WithJitter(j Jitter) Option {
	return func(e *Engine) { e.jitter = j }
}

// WithIDGenerator sets the run ID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithClock overrides time.Now for crawl stats.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine wires an Engine.
func NewEngine(
	cfg Config,
	sessions SessionFactory,
	extractor Extractor,
	details DetailParser,
	logger *zap.Logger,
	opts ...Option,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		cfg:       cfg,
		sessions:  sessions,
		extractor: extractor,
		details:   details,
		pauser:    TimerPauser{},
		jitter:    UniformJitter{},
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Scrape runs a crawl and returns only the records. Invalid criteria and
// session setup failures are logged and yield an empty list.
func (e *Engine) Scrape(ctx context.Context, criteria SearchCriteria) []JobRecord {
	res, err := e.Crawl(ctx, criteria)
	if err != nil {
		e.logger.Error("crawl not started", zap.Error(err))
		return []JobRecord{}
	}
	return res.Jobs
}

// Crawl runs one crawl to completion. Fetch failures never surface as errors;
// they end the crawl and the accumulated records are returned. An error is
// returned only when the crawl cannot start.
func (e *Engine) Crawl(ctx context.Context, criteria SearchCriteria) (Result, error) {
	criteria = criteria.Normalize()
	if err := criteria.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid search criteria: %w", err)
	}
	if err := e.cfg.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid crawl config: %w", err)
	}
	session, err := e.sessions()
	if err != nil {
		return Result{}, fmt.Errorf("open session: %w", err)
	}

	runID := ""
	if e.ids != nil {
		if id, idErr := e.ids.NewID(); idErr == nil {
			runID = id
		} else {
			e.logger.Warn("run id generation failed", zap.Error(idErr))
		}
	}
	logger := e.logger.With(zap.String("run_id", runID))

	run := &crawlRun{
		cfg:       e.cfg,
		criteria:  criteria,
		session:   session,
		extractor: e.extractor,
		detail:    NewDetailFetcher(e.cfg, session, e.details, logger),
		pauser:    e.pauser,
		jitter:    e.jitter,
		cursor:    criteria.StartCursor(),
		seen:      newSeenSet(),
		results:   make([]JobRecord, 0, min(criteria.ResultsWanted, e.cfg.MaxCursor)),
		stats: CrawlStats{
			RunID:     runID,
			StartedAt: e.now(),
			Cards:     make(map[CardOutcome]int),
			Details:   make(map[EnrichmentStatus]int),
		},
		logger: logger,
	}
	logger.Info("crawl started",
		zap.String("keywords", criteria.Keywords),
		zap.String("location", criteria.Location),
		zap.Int("results_wanted", criteria.ResultsWanted),
		zap.Int("cursor", run.cursor),
	)
	run.run(ctx)

	run.stats.FinishedAt = e.now()
	run.stats.FinalCursor = run.cursor
	jobs := run.results
	if len(jobs) > criteria.ResultsWanted {
		jobs = jobs[:criteria.ResultsWanted]
	}
	metrics.ObserveCrawl(string(run.stats.StopReason), len(jobs), run.stats.FinishedAt.Sub(run.stats.StartedAt))
	logger.Info("crawl finished",
		zap.String("stop_reason", string(run.stats.StopReason)),
		zap.Int("results", len(jobs)),
		zap.Int("pages", run.stats.Pages),
		zap.Int("cursor", run.cursor),
	)
	return Result{Jobs: jobs, Stats: run.stats}, nil
}

// crawlRun owns every piece of per-crawl state. It is used by one goroutine.
type crawlRun struct {
	cfg       Config
	criteria  SearchCriteria
	session   Fetcher
	extractor Extractor
	detail    *DetailFetcher
	pauser    Pauser
	jitter    Jitter

	cursor  int
	seen    *seenSet
	results []JobRecord
	stats   CrawlStats
	logger  *zap.Logger
}

// shouldContinue is the termination predicate. It is evaluated before every
// page and after every accepted card.
func (r *crawlRun) shouldContinue() bool {
	return len(r.results) < r.criteria.ResultsWanted && r.cursor < r.cfg.MaxCursor
}

func (r *crawlRun) limitReason() StopReason {
	if len(r.results) >= r.criteria.ResultsWanted {
		return StopResultsWanted
	}
	return StopCursorLimit
}

func (r *crawlRun) stop(reason StopReason, err error) crawlState {
	r.stats.StopReason = reason
	if err != nil {
		r.stats.LastError = err.Error()
	}
	return stateDone
}

func (r *crawlRun) run(ctx context.Context) {
	var cards []Card
	state := stateFetchingPage
	for state != stateDone {
		next := state
		switch state {
		case stateFetchingPage:
			cards, next = r.fetchPage(ctx)
		case stateProcessingCards:
			next = r.processCards(ctx, cards)
		case stateThrottleDelay:
			next = r.throttle(ctx, len(cards))
		}
		r.logger.Debug("crawl transition",
			zap.Stringer("from", state),
			zap.Stringer("to", next),
			zap.Int("cursor", r.cursor),
			zap.Int("results", len(r.results)),
		)
		state = next
	}
}

func (r *crawlRun) fetchPage(ctx context.Context) ([]Card, crawlState) {
	if !r.shouldContinue() {
		return nil, r.stop(r.limitReason(), nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, r.stop(StopCanceled, err)
	}

	resp, err := r.session.Fetch(ctx, FetchRequest{
		URL:     r.cfg.ListingURL(),
		Query:   r.criteria.QueryParams(r.cursor),
		Timeout: r.cfg.ListingTimeout,
	})
	if err != nil {
		reason := StopTransport
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			reason = fetchErr.StopReason()
		}
		if errors.Is(err, context.Canceled) {
			reason = StopCanceled
		}
		metrics.ObservePage(string(reason))
		r.logger.Warn("listing fetch ended crawl",
			zap.Int("cursor", r.cursor),
			zap.String("stop_reason", string(reason)),
			zap.Error(err),
		)
		return nil, r.stop(reason, err)
	}
	r.stats.Pages++

	cards, err := r.extractor.ParseListing(resp.Body)
	if err != nil {
		metrics.ObservePage(string(StopParseError))
		r.logger.Warn("listing parse ended crawl", zap.Int("cursor", r.cursor), zap.Error(err))
		return nil, r.stop(StopParseError, err)
	}
	if len(cards) == 0 {
		metrics.ObservePage(string(StopEmptyPage))
		r.logger.Info("listing page empty", zap.Int("cursor", r.cursor))
		return nil, r.stop(StopEmptyPage, nil)
	}
	metrics.ObservePage("ok")
	r.logger.Debug("listing page fetched",
		zap.Int("cursor", r.cursor),
		zap.Int("cards", len(cards)),
		zap.Int("rate_limit_attempts", resp.Retry.Attempts),
	)
	return cards, stateProcessingCards
}

func (r *crawlRun) processCards(ctx context.Context, cards []Card) crawlState {
	for _, card := range cards {
		outcome := r.processCard(ctx, card)
		r.stats.Cards[outcome]++
		metrics.ObserveCard(string(outcome))
		if outcome == CardAccepted && !r.shouldContinue() {
			break
		}
	}
	if !r.shouldContinue() {
		return r.stop(r.limitReason(), nil)
	}
	return stateThrottleDelay
}

// processCard handles one card. Failures are contained to the card.
func (r *crawlRun) processCard(ctx context.Context, card Card) (outcome CardOutcome) {
	jobID, ok := r.extractor.JobID(card)
	if !ok {
		return CardNoLink
	}
	if !r.seen.MarkIfNew(jobID) {
		return CardDuplicate
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("card processing panicked", zap.String("job_id", jobID), zap.Any("panic", p))
			outcome = CardFailed
		}
	}()
	record, err := r.buildRecord(ctx, jobID, card)
	if err != nil {
		r.logger.Warn("card skipped", zap.String("job_id", jobID), zap.Error(err))
		return CardFailed
	}
	r.results = append(r.results, record)
	return CardAccepted
}

func (r *crawlRun) buildRecord(ctx context.Context, jobID string, card Card) (JobRecord, error) {
	if jobID == "" {
		return JobRecord{}, ErrEmptyIdentifier
	}
	fields, ok := r.extractor.Extract(card)
	if !ok {
		return JobRecord{}, fmt.Errorf("extract card %s: missing detail link", jobID)
	}

	detail := DetailFields{Status: EnrichmentNotRequested}
	if r.cfg.FullDescription {
		detail = r.detail.FetchDetails(ctx, jobID)
	}
	r.stats.Details[detail.Status]++

	return JobRecord{
		ID:               jobID,
		Title:            fields.Title,
		CompanyName:      fields.CompanyName,
		CompanyURL:       fields.CompanyURL,
		Location:         fields.Location,
		DatePosted:       fields.DatePosted,
		JobURL:           r.cfg.JobURL(jobID),
		Compensation:     fields.Compensation,
		Description:      detail.Description,
		LogoPhotoURL:     detail.LogoPhotoURL,
		JobFunction:      detail.JobFunction,
		Emails:           detail.Emails,
		Enrichment:       detail.Status,
		EnrichmentReason: detail.Reason,
	}, nil
}

func (r *crawlRun) throttle(ctx context.Context, pageCards int) crawlState {
	delay := r.jitter.Between(r.cfg.Delay, r.cfg.Delay+r.cfg.BandDelay)
	r.pauser.Pause(ctx, delay)
	if err := ctx.Err(); err != nil {
		return r.stop(StopCanceled, err)
	}

	advance := len(r.results)
	if r.cfg.CursorAdvance == AdvanceByPage {
		advance = pageCards
	}
	if advance == 0 {
		// Nothing accepted yet: step past the page so the same offset is not
		// requested forever.
		advance = pageCards
	}
	r.cursor += advance
	return stateFetchingPage
}
