package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
)

type crawlFlags struct {
	keywords      string
	location      string
	distance      int
	remote        bool
	jobType       string
	easyApply     bool
	companyIDs    []string
	offset        int
	resultsWanted int
	hoursOld      int
	output        string
}

func newCrawlCmd() *cobra.Command {
	var f crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs one search and writes the results",
		Long: `Runs one search built from the search section of the config, with any
flag given here taking precedence, and writes the records to --output or
output.destination. Interrupting the crawl still writes what was collected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawlCommand(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.keywords, "keywords", "k", "", "search keywords")
	flags.StringVarP(&f.location, "location", "l", "", "location filter")
	flags.IntVar(&f.distance, "distance", 0, "radius in miles around location")
	flags.BoolVar(&f.remote, "remote", false, "only remote positions")
	flags.StringVar(&f.jobType, "job-type", "", "job type code (F, P, C, T, I)")
	flags.BoolVar(&f.easyApply, "easy-apply", false, "only postings with easy apply")
	flags.StringSliceVar(&f.companyIDs, "company-ids", nil, "comma separated company ids")
	flags.IntVar(&f.offset, "offset", 0, "starting offset, rounded down to a multiple of 10")
	flags.IntVarP(&f.resultsWanted, "results-wanted", "n", 0, "maximum number of records")
	flags.IntVar(&f.hoursOld, "hours-old", 0, "only postings newer than this many hours")
	flags.StringVarP(&f.output, "output", "o", "", "destination: path, file://, gs://bucket/object or postgres://dsn")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, f crawlFlags) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	criteria := f.apply(cmd.Flags(), cfg.Search)
	destination := cfg.Output.Destination
	if f.output != "" {
		destination = f.output
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, location, err := appInstance.Crawl(ctx, criteria, destination)
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		appInstance.Logger().Warn("crawl interrupted, partial results written", zap.Int("results", len(result.Jobs)))
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d jobs to %s (stopped: %s)\n",
		len(result.Jobs), location, result.Stats.StopReason)
	return err
}

// apply overlays the flags the user actually set onto base.
func (f crawlFlags) apply(flags *pflag.FlagSet, base crawler.SearchCriteria) crawler.SearchCriteria {
	c := base
	if flags.Changed("keywords") {
		c.Keywords = f.keywords
	}
	if flags.Changed("location") {
		c.Location = f.location
	}
	if flags.Changed("distance") {
		c.Distance = f.distance
	}
	if flags.Changed("remote") {
		c.Remote = f.remote
	}
	if flags.Changed("job-type") {
		c.JobType = f.jobType
	}
	if flags.Changed("easy-apply") {
		c.EasyApply = f.easyApply
	}
	if flags.Changed("company-ids") {
		c.CompanyIDs = f.companyIDs
	}
	if flags.Changed("offset") {
		c.Offset = f.offset
	}
	if flags.Changed("results-wanted") {
		c.ResultsWanted = f.resultsWanted
	}
	if flags.Changed("hours-old") {
		c.HoursOld = f.hoursOld
	}
	return c.Normalize()
}
