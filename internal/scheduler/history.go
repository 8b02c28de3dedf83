package scheduler

import "sync"

// History is a bounded, concurrency-safe list of run summaries.
type History struct {
	mu    sync.RWMutex
	max   int
	items []Summary
}

// NewHistory keeps at most max summaries. max < 1 is treated as 1.
func NewHistory(max int) *History {
	if max < 1 {
		max = 1
	}
	return &History{max: max}
}

// Add appends a summary, evicting the oldest once full.
func (h *History) Add(s Summary) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, s)
	if over := len(h.items) - h.max; over > 0 {
		h.items = append(h.items[:0:0], h.items[over:]...)
	}
}

// List returns the summaries newest first.
func (h *History) List() []Summary {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Summary, len(h.items))
	for i, s := range h.items {
		out[len(h.items)-1-i] = s
	}
	return out
}
