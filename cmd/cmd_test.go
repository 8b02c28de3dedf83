package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobsearch-crawler/internal/config"
	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
	"github.com/JakeFAU/jobsearch-crawler/internal/scheduler"
)

type crawlCall struct {
	criteria    crawler.SearchCriteria
	destination string
}

type fakeApp struct {
	cfg      config.Config
	crawls   []crawlCall
	searches []string
	crawlErr error
	closed   bool
}

func (f *fakeApp) Config() config.Config { return f.cfg }

func (f *fakeApp) Logger() *zap.Logger { return zap.NewNop() }

func (f *fakeApp) Crawl(_ context.Context, criteria crawler.SearchCriteria, destination string) (crawler.Result, string, error) {
	f.crawls = append(f.crawls, crawlCall{criteria: criteria, destination: destination})
	if f.crawlErr != nil {
		return crawler.Result{}, "", f.crawlErr
	}
	return crawler.Result{
		Jobs:  []crawler.JobRecord{{ID: "1"}, {ID: "2"}},
		Stats: crawler.CrawlStats{StopReason: crawler.StopResultsWanted},
	}, destination, nil
}

func (f *fakeApp) RunSearch(_ context.Context, search config.NamedSearch) scheduler.Summary {
	f.searches = append(f.searches, search.Name)
	return scheduler.Summary{
		Search:     search.Name,
		Results:    search.ResultsWanted,
		StopReason: crawler.StopResultsWanted,
		Location:   f.cfg.Destination(search),
	}
}

func (f *fakeApp) Close() { f.closed = true }

func withFakeApp(t *testing.T) *fakeApp {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	fake := &fakeApp{}
	orig := newApp
	newApp = func(cfg config.Config) (App, error) {
		fake.cfg = cfg
		return fake, nil
	}
	t.Cleanup(func() { newApp = orig })
	return fake
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(args ...string) (string, error) {
	root := newRootCmd()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

const baseConfig = `
search:
  keywords: golang
  location: Austin, TX
  results_wanted: 15
output:
  destination: /tmp/jobcrawler-test/jobs_data.json
schedule:
  cron: "@every 1h"
  searches:
    - name: go
      keywords: golang
      results_wanted: 5
    - name: rust
      keywords: rust
      results_wanted: 7
      output: memory://rust
`

func TestCrawlUsesConfigSearch(t *testing.T) {
	fake := withFakeApp(t)
	path := writeConfig(t, baseConfig)

	out, err := execute("crawl", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "wrote 2 jobs to /tmp/jobcrawler-test/jobs_data.json (stopped: results_wanted)\n", out)

	require.Len(t, fake.crawls, 1)
	call := fake.crawls[0]
	assert.Equal(t, "golang", call.criteria.Keywords)
	assert.Equal(t, "Austin, TX", call.criteria.Location)
	assert.Equal(t, 15, call.criteria.ResultsWanted)
	assert.Equal(t, []string{}, call.criteria.CompanyIDs)
	assert.Equal(t, "/tmp/jobcrawler-test/jobs_data.json", call.destination)
	assert.True(t, fake.closed)
}

func TestCrawlFlagsOverrideConfig(t *testing.T) {
	fake := withFakeApp(t)
	path := writeConfig(t, baseConfig)

	_, err := execute("crawl", "--config", path,
		"-k", "  rust ", "--remote", "--easy-apply", "--company-ids", "1441,1035",
		"--distance", "25", "--job-type", "F", "--offset", "37", "-n", "3", "--hours-old", "24",
		"-o", "memory://adhoc")
	require.NoError(t, err)

	require.Len(t, fake.crawls, 1)
	c := fake.crawls[0].criteria
	assert.Equal(t, "rust", c.Keywords)
	assert.Equal(t, "Austin, TX", c.Location)
	assert.True(t, c.Remote)
	assert.True(t, c.EasyApply)
	assert.Equal(t, []string{"1441", "1035"}, c.CompanyIDs)
	assert.Equal(t, 25, c.Distance)
	assert.Equal(t, "F", c.JobType)
	assert.Equal(t, 37, c.Offset)
	assert.Equal(t, 3, c.ResultsWanted)
	assert.Equal(t, 24, c.HoursOld)
	assert.Equal(t, "memory://adhoc", fake.crawls[0].destination)
}

func TestCrawlReportsFailure(t *testing.T) {
	fake := withFakeApp(t)
	fake.crawlErr = errors.New("open sink: denied")
	path := writeConfig(t, baseConfig)

	_, err := execute("crawl", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open sink: denied")
}

func TestCrawlRejectsInvalidConfig(t *testing.T) {
	withFakeApp(t)
	path := writeConfig(t, "http:\n  max_retries: 0\n")

	_, err := execute("crawl", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http.max_retries")
}

func TestMissingExplicitConfigFails(t *testing.T) {
	withFakeApp(t)

	_, err := execute("crawl", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestScheduleOncePrintsSummaries(t *testing.T) {
	fake := withFakeApp(t)
	path := writeConfig(t, baseConfig)

	out, err := execute("schedule", "--once", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "rust"}, fake.searches)

	var summaries []scheduler.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summaries))
	require.Len(t, summaries, 2)
	assert.Equal(t, "/tmp/jobcrawler-test/jobs_data.json", summaries[0].Location)
	assert.Equal(t, 5, summaries[0].Results)
	assert.Equal(t, "memory://rust", summaries[1].Location)
	assert.Equal(t, 7, summaries[1].Results)
}

func TestScheduleRequiresSearches(t *testing.T) {
	withFakeApp(t)
	path := writeConfig(t, "search:\n  keywords: golang\n")

	_, err := execute("schedule", "--once", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule.searches")
}
