// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Search   crawler.SearchCriteria `mapstructure:"search"`
	Crawl    CrawlConfig            `mapstructure:"crawl"`
	HTTP     HTTPConfig             `mapstructure:"http"`
	Output   OutputConfig           `mapstructure:"output"`
	Storage  StorageConfig          `mapstructure:"storage"`
	DB       DBConfig               `mapstructure:"db"`
	Schedule ScheduleConfig         `mapstructure:"schedule"`
	Metrics  MetricsConfig          `mapstructure:"metrics"`
	Logging  LoggingConfig          `mapstructure:"logging"`
}

// CrawlConfig governs endpoints, pacing and pagination.
type CrawlConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	ListingPath       string        `mapstructure:"listing_path"`
	DetailPath        string        `mapstructure:"detail_path"`
	ListingTimeout    time.Duration `mapstructure:"listing_timeout"`
	DetailTimeout     time.Duration `mapstructure:"detail_timeout"`
	Delay             time.Duration `mapstructure:"delay"`
	BandDelay         time.Duration `mapstructure:"band_delay"`
	MaxCursor         int           `mapstructure:"max_cursor"`
	CursorAdvance     string        `mapstructure:"cursor_advance"`
	FullDescription   bool          `mapstructure:"full_description"`
	DescriptionFormat string        `mapstructure:"description_format"`
}

// HTTPConfig configures the outbound client and its 429 handling.
type HTTPConfig struct {
	UserAgent      string            `mapstructure:"user_agent"`
	Headers        map[string]string `mapstructure:"headers"`
	MaxRetries     int               `mapstructure:"max_retries"`
	RetryUnit      time.Duration     `mapstructure:"retry_unit"`
	RateLimitRPS   float64           `mapstructure:"rate_limit_rps"`
	RateLimitBurst int               `mapstructure:"rate_limit_burst"`
}

// OutputConfig names where finished results go. See storage.Open for the
// accepted destinations.
type OutputConfig struct {
	Destination string `mapstructure:"destination"`
}

// StorageConfig tunes the blob sink.
type StorageConfig struct {
	ContentType string `mapstructure:"content_type"`
	GCSEndpoint string `mapstructure:"gcs_endpoint"`
}

// DBConfig tunes the Postgres sink. The DSN is the output destination itself.
type DBConfig struct {
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ScheduleConfig drives the schedule command.
type ScheduleConfig struct {
	Cron        string        `mapstructure:"cron"`
	RunOnStart  bool          `mapstructure:"run_on_start"`
	HistorySize int           `mapstructure:"history_size"`
	Searches    []NamedSearch `mapstructure:"searches"`
}

// NamedSearch is one scheduled search. An empty Output falls back to
// output.destination.
type NamedSearch struct {
	Name                   string `mapstructure:"name"`
	Output                 string `mapstructure:"output"`
	crawler.SearchCriteria `mapstructure:",squash"`
}

// MetricsConfig controls the metrics/health listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates an already populated Viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Search = cfg.Search.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults registers every key with its default so env overrides resolve.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("search.keywords", "")
	v.SetDefault("search.location", "")
	v.SetDefault("search.distance", 0)
	v.SetDefault("search.remote", false)
	v.SetDefault("search.job_type", "")
	v.SetDefault("search.easy_apply", false)
	v.SetDefault("search.company_ids", []string{})
	v.SetDefault("search.offset", 0)
	v.SetDefault("search.results_wanted", 10)
	v.SetDefault("search.hours_old", 0)

	v.SetDefault("crawl.base_url", crawler.DefaultBaseURL)
	v.SetDefault("crawl.listing_path", crawler.DefaultListingPath)
	v.SetDefault("crawl.detail_path", crawler.DefaultDetailPath)
	v.SetDefault("crawl.listing_timeout", "10s")
	v.SetDefault("crawl.detail_timeout", "5s")
	v.SetDefault("crawl.delay", "3s")
	v.SetDefault("crawl.band_delay", "4s")
	v.SetDefault("crawl.max_cursor", crawler.DefaultMaxCursor)
	v.SetDefault("crawl.cursor_advance", string(crawler.AdvanceByResults))
	v.SetDefault("crawl.full_description", true)
	v.SetDefault("crawl.description_format", "markdown")

	v.SetDefault("http.user_agent", "")
	v.SetDefault("http.max_retries", 5)
	v.SetDefault("http.retry_unit", "60s")
	v.SetDefault("http.rate_limit_rps", 0)
	v.SetDefault("http.rate_limit_burst", 1)

	v.SetDefault("output.destination", "jobs_data.json")
	v.SetDefault("storage.content_type", "application/json; charset=utf-8")
	v.SetDefault("storage.gcs_endpoint", "")
	v.SetDefault("db.table", "job_postings")
	v.SetDefault("db.max_conns", 4)

	v.SetDefault("schedule.cron", "@every 6h")
	v.SetDefault("schedule.run_on_start", true)
	v.SetDefault("schedule.history_size", 20)

	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := c.ToCrawlerConfig().Validate(); err != nil {
		return err
	}
	switch c.Crawl.DescriptionFormat {
	case "markdown", "html", "plain":
	default:
		return fmt.Errorf("crawl.description_format must be markdown, html or plain, got %q", c.Crawl.DescriptionFormat)
	}
	if c.HTTP.MaxRetries <= 0 {
		return fmt.Errorf("http.max_retries must be > 0")
	}
	if c.HTTP.RetryUnit < 0 {
		return fmt.Errorf("http.retry_unit must be >= 0")
	}
	if c.HTTP.RateLimitRPS < 0 {
		return fmt.Errorf("http.rate_limit_rps must be >= 0")
	}
	if strings.TrimSpace(c.Output.Destination) == "" {
		return fmt.Errorf("output.destination must be set")
	}
	if c.Schedule.HistorySize <= 0 {
		return fmt.Errorf("schedule.history_size must be > 0")
	}
	owners := make(map[string]string, len(c.Schedule.Searches))
	for i, s := range c.Schedule.Searches {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("schedule.searches[%d].name must be set", i)
		}
		if err := s.Normalize().Validate(); err != nil {
			return fmt.Errorf("schedule.searches[%d] (%s): %w", i, s.Name, err)
		}
		dest := strings.TrimSpace(c.Destination(s))
		if !overwrites(dest) {
			continue
		}
		if prev, ok := owners[dest]; ok {
			return fmt.Errorf("schedule.searches[%d] (%s) and %s both write %s; set output on each search", i, s.Name, prev, dest)
		}
		owners[dest] = s.Name
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// ToCrawlerConfig maps the crawl section onto the engine's config.
func (c Config) ToCrawlerConfig() crawler.Config {
	return crawler.Config{
		BaseURL:         c.Crawl.BaseURL,
		ListingPath:     c.Crawl.ListingPath,
		DetailPath:      c.Crawl.DetailPath,
		ListingTimeout:  c.Crawl.ListingTimeout,
		DetailTimeout:   c.Crawl.DetailTimeout,
		Delay:           c.Crawl.Delay,
		BandDelay:       c.Crawl.BandDelay,
		MaxCursor:       c.Crawl.MaxCursor,
		CursorAdvance:   crawler.CursorAdvance(c.Crawl.CursorAdvance),
		FullDescription: c.Crawl.FullDescription,
	}
}

// overwrites reports whether each write to dest replaces the previous one.
// Postgres upserts and memory batches accumulate instead.
func overwrites(dest string) bool {
	lower := strings.ToLower(dest)
	for _, prefix := range []string{"postgres://", "postgresql://", "memory://"} {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return true
}

// Destination returns the search's own output or the global fallback.
func (c Config) Destination(s NamedSearch) string {
	if s.Output != "" {
		return s.Output
	}
	return c.Output.Destination
}
