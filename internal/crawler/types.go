package crawler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DateLayout is the machine-readable posting date format used by listing cards.
const DateLayout = "2006-01-02"

// Date is a calendar day that serializes as YYYY-MM-DD.
type Date struct {
	time.Time
}

// ParseDate parses a YYYY-MM-DD string. Any failure yields nil.
func ParseDate(raw string) *Date {
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return nil
	}
	return &Date{Time: t}
}

// String renders the date in DateLayout.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(DateLayout))
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode date: %w", err)
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", raw, err)
	}
	d.Time = t
	return nil
}

// Compensation is the structured salary range advertised on a card.
type Compensation struct {
	MinAmount int64  `json:"min_amount"`
	MaxAmount int64  `json:"max_amount"`
	Currency  string `json:"currency"`
	Interval  string `json:"interval,omitempty"`
}

// RawJobFields is what the field extractor pulls from one listing card.
type RawJobFields struct {
	JobID        string
	Title        string
	CompanyName  string
	CompanyURL   string
	Location     string
	DatePosted   *Date
	Compensation *Compensation
}

// EnrichmentStatus explains why detail fields are (or are not) populated.
type EnrichmentStatus string

// Enrichment outcomes recorded on every JobRecord.
const (
	EnrichmentNotRequested EnrichmentStatus = "not_requested"
	EnrichmentOK           EnrichmentStatus = "ok"
	EnrichmentDegraded     EnrichmentStatus = "degraded"
)

// DetailFields is the result of one detail fetch.
type DetailFields struct {
	Description  *string
	LogoPhotoURL *string
	JobFunction  *string
	Emails       []string
	Status       EnrichmentStatus
	// Reason is set when Status is EnrichmentDegraded.
	Reason string
}

// JobRecord is one accepted posting. It is never mutated after creation.
type JobRecord struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	CompanyName  string        `json:"company_name"`
	CompanyURL   string        `json:"company_url"`
	Location     string        `json:"location"`
	DatePosted   *Date         `json:"date_posted"`
	JobURL       string        `json:"job_url"`
	Compensation *Compensation `json:"compensation"`
	Description  *string       `json:"description"`
	LogoPhotoURL *string       `json:"logo_photo_url"`
	JobFunction  *string       `json:"job_function"`
	Emails       []string      `json:"emails,omitempty"`

	Enrichment       EnrichmentStatus `json:"-"`
	EnrichmentReason string           `json:"-"`
}

// CardOutcome records what happened to a single listing card.
type CardOutcome string

// Card outcomes counted per crawl.
const (
	CardAccepted  CardOutcome = "accepted"
	CardDuplicate CardOutcome = "duplicate"
	CardNoLink    CardOutcome = "no_link"
	CardFailed    CardOutcome = "failed"
)

// StopReason names the transition that moved the crawl into DONE.
type StopReason string

// Reasons a crawl stops.
const (
	StopResultsWanted  StopReason = "results_wanted"
	StopCursorLimit    StopReason = "cursor_limit"
	StopEmptyPage      StopReason = "empty_page"
	StopRetryExhausted StopReason = "retry_exhausted"
	StopUnsuccessful   StopReason = "unsuccessful_status"
	StopTransport      StopReason = "transport_error"
	StopParseError     StopReason = "parse_error"
	StopCanceled       StopReason = "canceled"
)

// CrawlStats summarizes one crawl invocation.
type CrawlStats struct {
	RunID       string                   `json:"run_id"`
	StartedAt   time.Time                `json:"started_at"`
	FinishedAt  time.Time                `json:"finished_at"`
	Pages       int                      `json:"pages"`
	FinalCursor int                      `json:"final_cursor"`
	Cards       map[CardOutcome]int      `json:"cards"`
	Details     map[EnrichmentStatus]int `json:"details"`
	StopReason  StopReason               `json:"stop_reason"`
	LastError   string                   `json:"last_error,omitempty"`
}

// Result is what a crawl hands back: the capped records plus bookkeeping.
type Result struct {
	Jobs  []JobRecord
	Stats CrawlStats
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Query   map[string]string
	Timeout time.Duration
	Headers http.Header

	// MaxAttempts caps rate limited attempts. Zero uses the fetcher default.
	MaxAttempts int
}

// RetryState is the attempt bookkeeping for one request.
type RetryState struct {
	Attempts  int
	TotalWait time.Duration
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Retry      RetryState
}
