package crawler

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobsearch-crawler/internal/metrics"
)

// authWallMarkers identify a redirect to the signup/login wall.
var authWallMarkers = []string{"/signup", "/authwall", "/login", "/uas/login"}

// DetailFetcher performs the best-effort second stage fetch for one job.
type DetailFetcher struct {
	cfg     Config
	session Fetcher
	parser  DetailParser
	logger  *zap.Logger
}

// NewDetailFetcher builds a DetailFetcher bound to one crawl session.
func NewDetailFetcher(cfg Config, session Fetcher, parser DetailParser, logger *zap.Logger) *DetailFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DetailFetcher{cfg: cfg, session: session, parser: parser, logger: logger}
}

// FetchDetails never fails outward; every failure degrades to empty fields
// tagged with the reason.
func (d *DetailFetcher) FetchDetails(ctx context.Context, jobID string) DetailFields {
	target := d.cfg.JobURL(jobID)
	// Enrichment is best effort, so a 429 here degrades instead of backing off.
	resp, err := d.session.Fetch(ctx, FetchRequest{URL: target, Timeout: d.cfg.DetailTimeout, MaxAttempts: 1})
	if err != nil {
		reason := "fetch failed"
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			reason = "fetch " + string(fetchErr.Kind)
		}
		d.logger.Debug("detail fetch degraded", zap.String("job_id", jobID), zap.Error(err))
		return d.degraded(reason)
	}
	if isAuthWall(resp.FinalURL) {
		d.logger.Debug("detail fetch redirected to auth wall",
			zap.String("job_id", jobID),
			zap.String("final_url", resp.FinalURL),
		)
		return d.degraded("auth wall redirect")
	}
	fields, err := d.parser.ParseDetail(resp.Body)
	if err != nil {
		d.logger.Debug("detail parse degraded", zap.String("job_id", jobID), zap.Error(err))
		return d.degraded("parse failed")
	}
	fields.Status = EnrichmentOK
	metrics.ObserveDetail(string(EnrichmentOK))
	return fields
}

func (d *DetailFetcher) degraded(reason string) DetailFields {
	metrics.ObserveDetail(string(EnrichmentDegraded))
	return DetailFields{Status: EnrichmentDegraded, Reason: reason}
}

func isAuthWall(finalURL string) bool {
	lower := strings.ToLower(finalURL)
	for _, marker := range authWallMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
