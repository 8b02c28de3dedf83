package crawler

import (
	"context"
	"math/rand/v2"
	"time"
)

// seenSet tracks job identifiers for one crawl. It only grows.
type seenSet struct {
	ids map[string]struct{}
}

func newSeenSet() *seenSet {
	return &seenSet{ids: make(map[string]struct{})}
}

// MarkIfNew stores the id if it has not been seen before and returns true.
func (s *seenSet) MarkIfNew(id string) bool {
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *seenSet) Len() int {
	return len(s.ids)
}

// TimerPauser sleeps on a timer and wakes early when ctx is done.
type TimerPauser struct{}

// Pause implements Pauser.
func (TimerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// UniformJitter draws delays from math/rand/v2.
type UniformJitter struct{}

// Between implements Jitter.
func (UniformJitter) Between(low, high time.Duration) time.Duration {
	if high <= low {
		return low
	}
	return low + rand.N(high-low+1)
}
