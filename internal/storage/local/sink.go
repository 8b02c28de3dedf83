// Package local writes crawl results to the local filesystem.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
)

// Sink overwrites one JSON file per write.
type Sink struct {
	path string
}

// New creates a Sink for path. Parent directories are created on write.
func New(path string) (*Sink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("output path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve output path: %w", err)
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return nil, fmt.Errorf("output path %s is a directory", abs)
	}
	return &Sink{path: abs}, nil
}

// Write replaces the file with the encoded records and returns a file:// URI.
func (s *Sink) Write(_ context.Context, jobs []crawler.JobRecord) (string, error) {
	data, err := crawler.MarshalRecords(jobs)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return "", fmt.Errorf("failed to create parent directories: %w", err)
	}

	// Write next to the target and rename so readers never see a partial file.
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".jobs-*.json")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("chmod output: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("replace output: %w", err)
	}
	return "file://" + s.path, nil
}

// Close is a no-op.
func (s *Sink) Close() error {
	return nil
}

// Path is the absolute output path.
func (s *Sink) Path() string {
	return s.path
}
