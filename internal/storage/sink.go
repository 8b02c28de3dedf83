// Package storage routes crawl results to a sink chosen by destination.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
	"github.com/JakeFAU/jobsearch-crawler/internal/storage/gcs"
	"github.com/JakeFAU/jobsearch-crawler/internal/storage/local"
	"github.com/JakeFAU/jobsearch-crawler/internal/storage/memory"
	"github.com/JakeFAU/jobsearch-crawler/internal/storage/postgres"
)

// Sink persists the records of one crawl and reports where they went.
type Sink interface {
	Write(ctx context.Context, jobs []crawler.JobRecord) (string, error)
	Close() error
}

// Options carries backend settings that are not part of the destination.
type Options struct {
	ContentType string
	GCSEndpoint string
	DB          postgres.Config
}

// Open picks a sink from the destination scheme:
//
//	gs://bucket/object          Google Cloud Storage
//	postgres://... postgresql:// Postgres upsert
//	memory://name               in-process batches
//	file:///path or a bare path local JSON file
func Open(ctx context.Context, destination string, opts Options) (Sink, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return nil, fmt.Errorf("output destination is required")
	}
	if !strings.Contains(destination, "://") {
		return local.New(destination)
	}
	u, err := url.Parse(destination)
	if err != nil {
		return nil, fmt.Errorf("parse destination %q: %w", destination, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "file":
		return local.New(u.Path)
	case "gs":
		return gcs.Open(ctx, destination, opts.ContentType, opts.GCSEndpoint)
	case "postgres", "postgresql":
		dbCfg := opts.DB
		dbCfg.DSN = destination
		return postgres.New(ctx, dbCfg)
	case "memory":
		return memory.New(u.Host), nil
	default:
		return nil, fmt.Errorf("unsupported destination scheme %q", u.Scheme)
	}
}
