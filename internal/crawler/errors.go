package crawler

import (
	"errors"
	"fmt"
)

// ErrRetryExhausted is returned once a request has been rate limited MaxRetries times.
var ErrRetryExhausted = errors.New("rate limit retries exhausted")

// ErrEmptyIdentifier marks a card whose detail link yields no job identifier.
var ErrEmptyIdentifier = errors.New("empty job identifier")

// FetchErrorKind classifies a failed fetch.
type FetchErrorKind string

// Fetch failure classes. All of them end the crawl.
const (
	KindRetryExhausted FetchErrorKind = "retry_exhausted"
	KindUnsuccessful   FetchErrorKind = "unsuccessful"
	KindTransport      FetchErrorKind = "transport"
)

// FetchError is returned by Fetcher implementations.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindUnsuccessful:
		return fmt.Sprintf("fetch %s: unsuccessful status %d", e.URL, e.StatusCode)
	case KindRetryExhausted:
		return fmt.Sprintf("fetch %s: %v after %d attempts", e.URL, e.Err, e.Attempts)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StopReason maps the fetch failure onto the crawl stop reason it causes.
func (e *FetchError) StopReason() StopReason {
	switch e.Kind {
	case KindRetryExhausted:
		return StopRetryExhausted
	case KindUnsuccessful:
		return StopUnsuccessful
	default:
		return StopTransport
	}
}

// NewUnsuccessfulError builds a FetchError for a non 2xx/3xx status.
func NewUnsuccessfulError(url string, status int) *FetchError {
	return &FetchError{
		Kind:       KindUnsuccessful,
		URL:        url,
		StatusCode: status,
		Err:        fmt.Errorf("status %d", status),
	}
}

// NewTransportError wraps a network level failure.
func NewTransportError(url string, err error) *FetchError {
	return &FetchError{Kind: KindTransport, URL: url, Err: err}
}

// NewRetryExhaustedError reports that every rate limited attempt was used.
func NewRetryExhaustedError(url string, attempts int) *FetchError {
	return &FetchError{
		Kind:       KindRetryExhausted,
		URL:        url,
		StatusCode: 429,
		Attempts:   attempts,
		Err:        ErrRetryExhausted,
	}
}
