package crawler

import (
	"fmt"
	"strings"
	"time"
)

// CursorAdvance selects how the pagination cursor moves between pages.
type CursorAdvance string

// Cursor advance modes.
const (
	// AdvanceByResults adds the number of results accumulated so far. This is
	// what the listing endpoint's own pager does.
	AdvanceByResults CursorAdvance = "results"
	// AdvanceByPage adds the number of cards returned by the last page.
	AdvanceByPage CursorAdvance = "page"
)

// Endpoint defaults.
const (
	DefaultBaseURL     = "https://www.linkedin.com"
	DefaultListingPath = "/jobs-guest/jobs/api/seeMoreJobPostings/search"
	DefaultDetailPath  = "/jobs/view/"
	DefaultMaxCursor   = 1000
)

// Config captures every knob that influences a crawl run. It is decoupled
// from Viper so the controller can be tested on its own.
type Config struct {
	BaseURL         string
	ListingPath     string
	DetailPath      string
	ListingTimeout  time.Duration
	DetailTimeout   time.Duration
	Delay           time.Duration
	BandDelay       time.Duration
	MaxCursor       int
	CursorAdvance   CursorAdvance
	FullDescription bool
}

// DefaultConfig mirrors the production endpoint and politeness settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		ListingPath:     DefaultListingPath,
		DetailPath:      DefaultDetailPath,
		ListingTimeout:  10 * time.Second,
		DetailTimeout:   5 * time.Second,
		Delay:           3 * time.Second,
		BandDelay:       4 * time.Second,
		MaxCursor:       DefaultMaxCursor,
		CursorAdvance:   AdvanceByResults,
		FullDescription: true,
	}
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("crawl.base_url must be set")
	}
	if c.ListingTimeout <= 0 {
		return fmt.Errorf("crawl.listing_timeout must be > 0")
	}
	if c.DetailTimeout <= 0 {
		return fmt.Errorf("crawl.detail_timeout must be > 0")
	}
	if c.Delay < 0 || c.BandDelay < 0 {
		return fmt.Errorf("crawl.delay and crawl.band_delay must be >= 0")
	}
	if c.MaxCursor <= 0 {
		return fmt.Errorf("crawl.max_cursor must be > 0")
	}
	switch c.CursorAdvance {
	case AdvanceByResults, AdvanceByPage:
	default:
		return fmt.Errorf("crawl.cursor_advance must be %q or %q, got %q", AdvanceByResults, AdvanceByPage, c.CursorAdvance)
	}
	return nil
}

// ListingURL is the absolute listing endpoint.
func (c Config) ListingURL() string {
	return strings.TrimRight(c.BaseURL, "/") + c.ListingPath
}

// JobURL is the canonical detail URL for a job identifier.
func (c Config) JobURL(jobID string) string {
	return strings.TrimRight(c.BaseURL, "/") + c.DetailPath + jobID
}
