package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobsearch-crawler/internal/app"
	"github.com/JakeFAU/jobsearch-crawler/internal/clock/system"
	"github.com/JakeFAU/jobsearch-crawler/internal/config"
	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
	"github.com/JakeFAU/jobsearch-crawler/internal/storage"
)

// MockSink mocks the storage.Sink interface.
type MockSink struct {
	mock.Mock
}

// Write satisfies the storage.Sink interface for the mock.
func (m *MockSink) Write(ctx context.Context, jobs []crawler.JobRecord) (string, error) {
	args := m.Called(ctx, jobs)
	return args.String(0), args.Error(1)
}

// Close satisfies the storage.Sink interface for the mock.
func (m *MockSink) Close() error {
	args := m.Called()
	return args.Error(0)
}

const listingCard = `<li><div class="base-search-card">
  <a class="base-card__full-link" href="%s/jobs/view/go-engineer-%s?trk=guest"><span class="sr-only">Go Engineer %s</span></a>
  <h4 class="base-search-card__subtitle"><a href="https://example.com/company/acme?trk=x">Acme</a></h4>
  <div class="base-search-card__metadata">
    <span class="job-search-card__location">Remote</span>
    <time class="job-search-card__listdate" datetime="2024-03-01">1 day ago</time>
  </div>
</div></li>`

const detailPage = `<html><body>
<img class="job-search-company__logo" src="https://example.com/logo.png">
<div class="show-more-less-html__markup"><p>Build <strong>crawlers</strong>. Mail jobs@example.com</p></div>
</body></html>`

type fakeBoard struct {
	server   *httptest.Server
	listings atomic.Int32
}

func newFakeBoard(t *testing.T) *fakeBoard {
	t.Helper()
	b := &fakeBoard{}
	mux := http.NewServeMux()
	mux.HandleFunc(crawler.DefaultListingPath, func(w http.ResponseWriter, r *http.Request) {
		b.listings.Add(1)
		if r.URL.Query().Get("start") != "0" {
			return
		}
		for _, id := range []string{"101", "102"} {
			_, _ = fmt.Fprintf(w, listingCard, b.server.URL, id, id)
		}
	})
	mux.HandleFunc(crawler.DefaultDetailPath, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(detailPage))
	})
	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func testConfig(t *testing.T, baseURL string) config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	cfg.Crawl.BaseURL = baseURL
	cfg.Crawl.Delay = 0
	cfg.Crawl.BandDelay = 0
	cfg.HTTP.RetryUnit = time.Millisecond
	cfg.Output.Destination = filepath.Join(t.TempDir(), "jobs_data.json")
	return cfg
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1")
	cfg.HTTP.MaxRetries = 0
	_, err := app.New(cfg, zap.NewNop())
	require.Error(t, err)
}

func TestCrawlWritesLocalFile(t *testing.T) {
	t.Parallel()

	board := newFakeBoard(t)
	cfg := testConfig(t, board.server.URL)
	a, err := app.New(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	result, location, err := a.Crawl(context.Background(), crawler.NewSearchCriteria("golang", 5), cfg.Output.Destination)
	require.NoError(t, err)
	assert.Equal(t, "file://"+cfg.Output.Destination, location)
	assert.Equal(t, crawler.StopEmptyPage, result.Stats.StopReason)
	assert.NotEmpty(t, result.Stats.RunID)
	require.Len(t, result.Jobs, 2)
	assert.Equal(t, int32(2), board.listings.Load())

	raw, err := os.ReadFile(cfg.Output.Destination)
	require.NoError(t, err)
	var records []map[string]any
	require.NoError(t, json.Unmarshal(raw, &records))
	require.Len(t, records, 2)
	assert.Equal(t, "101", records[0]["id"])
	assert.Equal(t, "Go Engineer 101", records[0]["title"])
	assert.Equal(t, "https://example.com/company/acme", records[0]["company_url"])
	assert.Equal(t, board.server.URL+"/jobs/view/101", records[0]["job_url"])
	assert.Equal(t, "2024-03-01", records[0]["date_posted"])
	assert.Contains(t, records[0]["description"], "**crawlers**")
	assert.Equal(t, "https://example.com/logo.png", records[0]["logo_photo_url"])
	assert.Equal(t, []any{"jobs@example.com"}, records[0]["emails"])
}

func TestCrawlUsesSinkOpener(t *testing.T) {
	t.Parallel()

	board := newFakeBoard(t)
	cfg := testConfig(t, board.server.URL)
	cfg.Crawl.FullDescription = false

	sink := &MockSink{}
	sink.On("Write", mock.Anything, mock.MatchedBy(func(jobs []crawler.JobRecord) bool {
		return len(jobs) == 1 && jobs[0].ID == "101" && jobs[0].Description == nil
	})).Return("memory://mock", nil).Once()
	sink.On("Close").Return(nil).Once()

	var opened string
	a, err := app.New(cfg, zap.NewNop(), app.WithSinkOpener(func(_ context.Context, dest string) (storage.Sink, error) {
		opened = dest
		return sink, nil
	}))
	require.NoError(t, err)

	result, location, err := a.Crawl(context.Background(), crawler.NewSearchCriteria("golang", 1), "memory://mock")
	require.NoError(t, err)
	assert.Equal(t, "memory://mock", opened)
	assert.Equal(t, "memory://mock", location)
	assert.Equal(t, crawler.StopResultsWanted, result.Stats.StopReason)
	sink.AssertExpectations(t)
}

func TestCrawlFailsBeforeFetchingWhenSinkCannotOpen(t *testing.T) {
	t.Parallel()

	board := newFakeBoard(t)
	cfg := testConfig(t, board.server.URL)
	a, err := app.New(cfg, zap.NewNop(), app.WithSinkOpener(func(context.Context, string) (storage.Sink, error) {
		return nil, errors.New("bucket missing")
	}))
	require.NoError(t, err)

	_, _, err = a.Crawl(context.Background(), crawler.NewSearchCriteria("golang", 5), "gs://missing/jobs.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket missing")
	assert.Zero(t, board.listings.Load())
}

func TestCrawlReportsWriteFailure(t *testing.T) {
	t.Parallel()

	board := newFakeBoard(t)
	cfg := testConfig(t, board.server.URL)
	cfg.Crawl.FullDescription = false

	sink := &MockSink{}
	sink.On("Write", mock.Anything, mock.Anything).Return("", errors.New("disk full")).Once()
	sink.On("Close").Return(nil).Once()
	a, err := app.New(cfg, zap.NewNop(), app.WithSinkOpener(func(context.Context, string) (storage.Sink, error) {
		return sink, nil
	}))
	require.NoError(t, err)

	result, _, err := a.Crawl(context.Background(), crawler.NewSearchCriteria("golang", 5), "memory://x")
	require.Error(t, err)
	assert.Len(t, result.Jobs, 2)
	sink.AssertExpectations(t)
}

func TestRunSearchBuildsSummary(t *testing.T) {
	t.Parallel()

	board := newFakeBoard(t)
	cfg := testConfig(t, board.server.URL)
	cfg.Crawl.FullDescription = false
	at := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)

	a, err := app.New(cfg, zap.NewNop(), app.WithClock(system.Fixed{At: at}))
	require.NoError(t, err)

	summary := a.RunSearch(context.Background(), config.NamedSearch{
		Name:           "golang-remote",
		SearchCriteria: crawler.NewSearchCriteria("golang", 5),
	})
	assert.Equal(t, "golang-remote", summary.Search)
	assert.Equal(t, at, summary.StartedAt)
	assert.Equal(t, 2, summary.Results)
	assert.Equal(t, crawler.StopEmptyPage, summary.StopReason)
	assert.Equal(t, "file://"+cfg.Output.Destination, summary.Location)
	assert.Empty(t, summary.Error)
	assert.NotEmpty(t, summary.RunID)

	summary = a.RunSearch(context.Background(), config.NamedSearch{
		Name:           "bad",
		Output:         "s3://nope/x.json",
		SearchCriteria: crawler.NewSearchCriteria("golang", 5),
	})
	assert.Contains(t, summary.Error, "unsupported destination scheme")
}
