package shutdown

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// CleanupFunc releases one resource during shutdown. It should honor ctx's
// deadline and be safe to call more than once.
type CleanupFunc func(ctx context.Context) error

// Cleanup priorities. Lower runs first.
const (
	PrioritySessions = 10 // close live llama sessions
	PriorityLogger   = 90 // flush logs last so earlier steps are recorded
)

type cleanupEntry struct {
	name     string
	priority int
	fn       CleanupFunc
}

// CleanupRegistry runs named cleanups once, ordered by priority. Entries with
// equal priority run in registration order.
type CleanupRegistry struct {
	mu      sync.Mutex
	entries []cleanupEntry
	ran     bool
}

// NewCleanupRegistry returns an empty registry.
func NewCleanupRegistry() *CleanupRegistry {
	return &CleanupRegistry{}
}

// Register adds fn under name. Registration after Run is ignored.
func (r *CleanupRegistry) Register(name string, priority int, fn CleanupFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ran {
		return
	}
	r.entries = append(r.entries, cleanupEntry{name: name, priority: priority, fn: fn})
}

func (r *CleanupRegistry) sorted() []cleanupEntry {
	out := make([]cleanupEntry, len(r.entries))
	copy(out, r.entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].priority < out[j].priority
	})
	return out
}

// Run calls every cleanup even when some fail and returns the failures,
// each prefixed with its cleanup name. Only the first call does anything.
func (r *CleanupRegistry) Run(ctx context.Context) []error {
	r.mu.Lock()
	if r.ran {
		r.mu.Unlock()
		return nil
	}
	r.ran = true
	entries := r.sorted()
	r.mu.Unlock()

	var errs []error
	for _, e := range entries {
		if err := e.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
		}
	}
	return errs
}

// Names lists the cleanups in the order Run would call them.
func (r *CleanupRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.sorted()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names
}

// Count returns the number of registered cleanups.
func (r *CleanupRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
