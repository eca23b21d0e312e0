package engine

import "sync"

// Tracker counts top-suggestion allocations within one batch run, so later
// prompts can surface how often a raider has already won. Each batch gets
// its own Tracker; counters never cross runs.
type Tracker struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewTracker() *Tracker {
	return &Tracker{counts: make(map[string]int)}
}

// Reset clears all counters.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts = make(map[string]int)
}

// Record notes one top-suggestion win for the raider.
func (t *Tracker) Record(raider string) {
	if raider == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[raider]++
}

// Count returns the raider's current win count.
func (t *Tracker) Count(raider string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[raider]
}

// AllocationsFor returns the nonzero counters for the given candidates.
func (t *Tracker) AllocationsFor(names []string) map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int)
	for _, name := range names {
		if count := t.counts[name]; count > 0 {
			out[name] = count
		}
	}
	return out
}
