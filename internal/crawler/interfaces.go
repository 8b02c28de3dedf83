package crawler

import (
	"context"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata. Failures are
// reported as *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// SessionFactory opens a fresh HTTP session (cookie jar, connection pool) for a
// single crawl. Sessions are never shared between crawls.
type SessionFactory func() (Fetcher, error)

// Card is one job summary fragment within a listing page.
type Card interface {
	// DetailLink returns the href of the card's detail-page anchor.
	DetailLink() (string, bool)
}

// Extractor turns listing markup into cards and cards into raw fields.
type Extractor interface {
	ParseListing(body []byte) ([]Card, error)
	JobID(card Card) (string, bool)
	Extract(card Card) (RawJobFields, bool)
}

// DetailParser extracts enrichment fields from a detail page body.
type DetailParser interface {
	ParseDetail(body []byte) (DetailFields, error)
}

// Pauser blocks for a delay or until ctx is done.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// Jitter picks a delay uniformly in [low, high].
type Jitter interface {
	Between(low, high time.Duration) time.Duration
}

// IDGenerator produces crawl run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
