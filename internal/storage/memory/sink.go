// Package memory keeps written batches in process. It backs tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
)

// Sink records every batch handed to Write.
type Sink struct {
	mu      sync.Mutex
	name    string
	batches [][]crawler.JobRecord
	closed  bool
}

// New returns an empty Sink. name only shows up in the returned location.
func New(name string) *Sink {
	if name == "" {
		name = "default"
	}
	return &Sink{name: name}
}

// Write stores a copy of jobs.
func (s *Sink) Write(ctx context.Context, jobs []crawler.JobRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("memory write: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", fmt.Errorf("memory sink %s is closed", s.name)
	}
	batch := make([]crawler.JobRecord, len(jobs))
	copy(batch, jobs)
	s.batches = append(s.batches, batch)
	return "memory://" + s.name, nil
}

// Batches returns the stored batches in write order.
func (s *Sink) Batches() [][]crawler.JobRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]crawler.JobRecord, len(s.batches))
	copy(out, s.batches)
	return out
}

// Last returns the most recent batch, or nil.
func (s *Sink) Last() []crawler.JobRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.batches) == 0 {
		return nil
	}
	return s.batches[len(s.batches)-1]
}

// Close marks the sink closed. Further writes fail.
func (s *Sink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
