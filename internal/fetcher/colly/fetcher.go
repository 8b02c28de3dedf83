// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
	"github.com/JakeFAU/jobsearch-crawler/internal/metrics"
	"github.com/JakeFAU/jobsearch-crawler/internal/policy/ratelimit"
)

// Defaults applied when Config leaves a field empty.
const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	DefaultMaxAttempts = 5
	DefaultRetryUnit   = 60 * time.Second
	defaultTimeout     = 10 * time.Second
)

// Config controls collector behavior.
type Config struct {
	UserAgent   string
	Headers     map[string]string
	MaxAttempts int
	RetryUnit   time.Duration
}

// Fetcher builds crawl sessions. It holds no per-session state.
type Fetcher struct {
	cfg       Config
	pauser    crawler.Pauser
	limiter   *ratelimit.Limiter
	transport func() http.RoundTripper
	logger    *zap.Logger
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithPauser replaces the pauser used for rate limit backoff.
func WithPauser(p crawler.Pauser) Option {
	return func(f *Fetcher) { f.pauser = p }
}

// WithLimiter paces every request through l.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(f *Fetcher) { f.limiter = l }
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger, opts ...Option) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryUnit <= 0 {
		cfg.RetryUnit = DefaultRetryUnit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Fetcher{
		cfg:       cfg,
		pauser:    crawler.TimerPauser{},
		transport: func() http.RoundTripper { return newHTTPTransport() },
		logger:    logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewSession opens a session with its own cookie jar and connection pool.
// It satisfies crawler.SessionFactory.
func (f *Fetcher) NewSession() (crawler.Fetcher, error) {
	c := colly.NewCollector(
		colly.UserAgent(f.cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	c.IgnoreRobotsTxt = true
	c.ParseHTTPErrorResponse = true
	c.WithTransport(f.transport())
	return &Session{fetcher: f, base: c}, nil
}

// Session is one crawl's HTTP identity. It must not be used concurrently.
type Session struct {
	fetcher *Fetcher
	base    *colly.Collector
}

// Fetch issues a GET and interprets the status. 429 responses are retried on
// the same URL after attempt*RetryUnit until the attempt cap is used up.
func (s *Session) Fetch(ctx context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	target, err := buildURL(req.URL, req.Query)
	if err != nil {
		return crawler.FetchResponse{}, crawler.NewTransportError(req.URL, err)
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = s.fetcher.cfg.MaxAttempts
	}

	var retry crawler.RetryState
	for {
		resp, err := s.attempt(ctx, target, req)
		if err != nil {
			return crawler.FetchResponse{Retry: retry}, crawler.NewTransportError(target, err)
		}
		metrics.ObserveRequest(target, resp.StatusCode)

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			retry.Attempts++
			resp.Retry = retry
			if retry.Attempts >= maxAttempts {
				s.fetcher.logger.Error("rate limit retries exhausted",
					zap.String("url", target),
					zap.Int("attempts", retry.Attempts),
					zap.Duration("total_wait", retry.TotalWait),
				)
				return resp, crawler.NewRetryExhaustedError(target, retry.Attempts)
			}
			wait := time.Duration(retry.Attempts) * s.fetcher.cfg.RetryUnit
			s.fetcher.logger.Warn("rate limited, backing off",
				zap.String("url", target),
				zap.Int("attempt", retry.Attempts),
				zap.Duration("wait", wait),
			)
			metrics.ObserveRateLimit(wait)
			s.fetcher.pauser.Pause(ctx, wait)
			retry.TotalWait += wait
			if err := ctx.Err(); err != nil {
				return resp, crawler.NewTransportError(target, err)
			}
		case resp.StatusCode < 200 || resp.StatusCode >= 400:
			resp.Retry = retry
			return resp, crawler.NewUnsuccessfulError(target, resp.StatusCode)
		default:
			resp.Retry = retry
			return resp, nil
		}
	}
}

func (s *Session) attempt(ctx context.Context, target string, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	if s.fetcher.limiter != nil {
		if err := s.fetcher.limiter.Wait(ctx, target); err != nil {
			return crawler.FetchResponse{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return crawler.FetchResponse{}, fmt.Errorf("colly fetch canceled: %w", err)
	}

	collector := s.base.Clone()
	collector.Context = ctx
	collector.ParseHTTPErrorResponse = true
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	collector.SetRequestTimeout(timeout)

	var (
		result   crawler.FetchResponse
		fetchErr error
	)
	start := time.Now()
	collector.OnRequest(func(r *colly.Request) {
		for key, value := range s.fetcher.cfg.Headers {
			r.Headers.Set(key, value)
		}
		for key, values := range req.Headers {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		// colly rewrites the request URL when it follows a redirect.
		finalURL := target
		if r.Request != nil && r.Request.URL != nil {
			finalURL = r.Request.URL.String()
		}
		result = crawler.FetchResponse{
			URL:        target,
			FinalURL:   finalURL,
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := collector.Visit(target); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return crawler.FetchResponse{}, fmt.Errorf("colly fetch canceled: %w", ctxErr)
		}
		return crawler.FetchResponse{}, fmt.Errorf("colly visit failed: %w", err)
	}
	if fetchErr != nil {
		return crawler.FetchResponse{}, fmt.Errorf("colly response failed: %w", fetchErr)
	}
	return result, nil
}

func buildURL(base string, query map[string]string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q is not absolute", base)
	}
	if len(query) == 0 {
		return u.String(), nil
	}
	values := u.Query()
	for key, value := range query {
		values.Set(key, value)
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
