// Package expiry tracks pending alert expirations and runs the sweep
// that demotes expired alerts.
package expiry

import (
	"sync"
	"time"
)

// TrackedSet maps alert ids to their display-through instants, covering
// exactly the alerts that currently have one. It mirrors the durable
// store: every write to an alert's display-through field must update the
// set in the same logical step.
type TrackedSet struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

// NewTrackedSet creates an empty tracked set.
func NewTrackedSet() *TrackedSet {
	return &TrackedSet{entries: make(map[string]time.Time)}
}

// Record upserts the display-through instant for an alert.
func (t *TrackedSet) Record(alertID string, through time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[alertID] = through
}

// Remove drops an alert from the set.
func (t *TrackedSet) Remove(alertID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, alertID)
}

// Replace swaps the whole set for rebuilt in one step. Readers see
// either the full previous set or the full new one, never a mix.
func (t *TrackedSet) Replace(rebuilt map[string]time.Time) {
	if rebuilt == nil {
		rebuilt = make(map[string]time.Time)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = rebuilt
}

// Soonest returns the earliest tracked instant, or false when the set
// is empty.
func (t *TrackedSet) Soonest() (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var soonest time.Time
	found := false
	for _, through := range t.entries {
		if !found || through.Before(soonest) {
			soonest = through
			found = true
		}
	}
	return soonest, found
}

// Len returns the number of tracked alerts.
func (t *TrackedSet) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Entries returns a copy of the tracked set.
func (t *TrackedSet) Entries() map[string]time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]time.Time, len(t.entries))
	for id, through := range t.entries {
		out[id] = through
	}
	return out
}
