// Package postgres upserts crawl results into Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
)

const defaultTable = "job_postings"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for job rows.
type Config struct {
	DSN      string
	Table    string
	MaxConns int32
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// JobStore writes job postings keyed by job id. Re-crawled postings replace
// the stored row.
type JobStore struct {
	pool  execCloser
	table string
	now   func() time.Time
}

// New connects a pool and makes sure the table exists.
func New(ctx context.Context, cfg Config) (*JobStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, table string) (*JobStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &JobStore{pool: pool, table: table, now: func() time.Time { return time.Now().UTC() }}, nil
}

// EnsureSchema creates the table if it is missing.
func (s *JobStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	company_name TEXT NOT NULL,
	company_url TEXT NOT NULL,
	location TEXT NOT NULL,
	date_posted DATE,
	job_url TEXT NOT NULL,
	compensation JSONB,
	description TEXT,
	logo_photo_url TEXT,
	job_function TEXT,
	emails TEXT[],
	enrichment TEXT NOT NULL,
	scraped_at TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Write upserts every record and returns a location description.
func (s *JobStore) Write(ctx context.Context, jobs []crawler.JobRecord) (string, error) {
	scrapedAt := s.now()
	for _, job := range jobs {
		if err := s.Upsert(ctx, job, scrapedAt); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("postgres table %s (%d rows)", s.table, len(jobs)), nil
}

// Upsert inserts one posting or refreshes the stored copy.
func (s *JobStore) Upsert(ctx context.Context, job crawler.JobRecord, scrapedAt time.Time) error {
	if job.ID == "" {
		return fmt.Errorf("record id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	title,
	company_name,
	company_url,
	location,
	date_posted,
	job_url,
	compensation,
	description,
	logo_photo_url,
	job_function,
	emails,
	enrichment,
	scraped_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	company_name = EXCLUDED.company_name,
	company_url = EXCLUDED.company_url,
	location = EXCLUDED.location,
	date_posted = EXCLUDED.date_posted,
	job_url = EXCLUDED.job_url,
	compensation = EXCLUDED.compensation,
	description = COALESCE(EXCLUDED.description, %s.description),
	logo_photo_url = COALESCE(EXCLUDED.logo_photo_url, %s.logo_photo_url),
	job_function = EXCLUDED.job_function,
	emails = EXCLUDED.emails,
	enrichment = EXCLUDED.enrichment,
	scraped_at = EXCLUDED.scraped_at`, s.table, s.table, s.table)

	args, err := rowArgs(job, scrapedAt)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert job %s: %w", job.ID, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func rowArgs(job crawler.JobRecord, scrapedAt time.Time) ([]any, error) {
	var datePosted any
	if job.DatePosted != nil {
		datePosted = job.DatePosted.Time
	}
	var compensation any
	if job.Compensation != nil {
		raw, err := json.Marshal(job.Compensation)
		if err != nil {
			return nil, fmt.Errorf("marshal compensation: %w", err)
		}
		compensation = raw
	}
	emails := job.Emails
	if emails == nil {
		emails = []string{}
	}
	enrichment := job.Enrichment
	if enrichment == "" {
		enrichment = crawler.EnrichmentNotRequested
	}
	return []any{
		job.ID,
		job.Title,
		job.CompanyName,
		job.CompanyURL,
		job.Location,
		datePosted,
		job.JobURL,
		compensation,
		job.Description,
		job.LogoPhotoURL,
		job.JobFunction,
		emails,
		string(enrichment),
		scrapedAt,
	}, nil
}
