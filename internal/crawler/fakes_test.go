package crawler

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"
)

type fakeCard struct {
	id        string
	noLink    bool
	panics    bool
	noExtract bool
}

func (c fakeCard) DetailLink() (string, bool) {
	if c.noLink {
		return "", false
	}
	return "/jobs/view/title-at-acme-" + c.id, true
}

func cardsFor(ids ...int) []Card {
	cards := make([]Card, 0, len(ids))
	for _, id := range ids {
		cards = append(cards, fakeCard{id: strconv.Itoa(id)})
	}
	return cards
}

func idRange(from, to int) []int {
	ids := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		ids = append(ids, i)
	}
	return ids
}

// fakeExtractor treats the listing body as a page key.
type fakeExtractor struct {
	pages    map[string][]Card
	parseErr error
}

func (e *fakeExtractor) ParseListing(body []byte) ([]Card, error) {
	if e.parseErr != nil {
		return nil, e.parseErr
	}
	return e.pages[string(body)], nil
}

func (e *fakeExtractor) JobID(card Card) (string, bool) {
	c := card.(fakeCard)
	if c.noLink {
		return "", false
	}
	return c.id, true
}

func (e *fakeExtractor) Extract(card Card) (RawJobFields, bool) {
	c := card.(fakeCard)
	if c.panics {
		panic("malformed card " + c.id)
	}
	if c.noExtract || c.noLink {
		return RawJobFields{}, false
	}
	return RawJobFields{
		JobID:       c.id,
		Title:       "Engineer " + c.id,
		CompanyName: "Acme",
		Location:    "Remote",
	}, true
}

type fakeDetailParser struct{}

func (fakeDetailParser) ParseDetail(body []byte) (DetailFields, error) {
	if string(body) == "unparseable" {
		return DetailFields{}, errFakeParse
	}
	desc := "about " + string(body)
	return DetailFields{Description: &desc}, nil
}

var errFakeParse = errors.New("fake parse failure")

// fakeSession scripts listing responses by start cursor and detail responses
// by job URL.
type fakeSession struct {
	mu       sync.Mutex
	listing  func(start int) (FetchResponse, error)
	detail   func(url string) (FetchResponse, error)
	starts   []int
	details  []string
	attempts []int
}

func (s *fakeSession) Fetch(_ context.Context, req FetchRequest) (FetchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, req.MaxAttempts)
	if req.Query == nil {
		s.details = append(s.details, req.URL)
		if s.detail == nil {
			return FetchResponse{URL: req.URL, FinalURL: req.URL, StatusCode: 200, Body: []byte("detail")}, nil
		}
		return s.detail(req.URL)
	}
	start, err := strconv.Atoi(req.Query["start"])
	if err != nil {
		return FetchResponse{}, NewTransportError(req.URL, err)
	}
	s.starts = append(s.starts, start)
	return s.listing(start)
}

func (s *fakeSession) Starts() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.starts...)
}

func (s *fakeSession) Details() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.details...)
}

func listingPage(start int) (FetchResponse, error) {
	return FetchResponse{StatusCode: 200, Body: []byte(strconv.Itoa(start))}, nil
}

type recordingPauser struct {
	delays []time.Duration
}

func (p *recordingPauser) Pause(_ context.Context, d time.Duration) {
	p.delays = append(p.delays, d)
}

type recordingJitter struct {
	bounds [][2]time.Duration
}

func (j *recordingJitter) Between(low, high time.Duration) time.Duration {
	j.bounds = append(j.bounds, [2]time.Duration{low, high})
	return low
}

type staticIDs string

func (s staticIDs) NewID() (string, error) { return string(s), nil }

type harness struct {
	cfg       Config
	session   *fakeSession
	extractor *fakeExtractor
	pauser    *recordingPauser
	jitter    *recordingJitter
}

func newHarness(pages map[string][]Card) *harness {
	cfg := DefaultConfig()
	cfg.FullDescription = false
	return &harness{
		cfg:       cfg,
		session:   &fakeSession{listing: listingPage},
		extractor: &fakeExtractor{pages: pages},
		pauser:    &recordingPauser{},
		jitter:    &recordingJitter{},
	}
}

func (h *harness) engine() *Engine {
	return NewEngine(
		h.cfg,
		func() (Fetcher, error) { return h.session, nil },
		h.extractor,
		fakeDetailParser{},
		nil,
		WithPauser(h.pauser),
		WithJitter(h.jitter),
		WithIDGenerator(staticIDs("run-1")),
	)
}

func jobIDs(jobs []JobRecord) []string {
	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	return ids
}
