package agent

import "sync"

// DedupeSet is a process-lifetime record of already-dispatched message
// IDs. It is append-only and shared by all dispatch goroutines.
type DedupeSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewDedupeSet() *DedupeSet {
	return &DedupeSet{seen: make(map[string]struct{})}
}

// MarkIfNew records the ID and reports whether it was unseen. The check
// and the insert happen under one lock, so two deliveries of the same ID
// racing each other admit exactly one. Empty IDs are never deduplicated.
func (d *DedupeSet) MarkIfNew(id string) bool {
	if id == "" {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		return false
	}
	d.seen[id] = struct{}{}
	return true
}

// Len reports how many IDs have been recorded.
func (d *DedupeSet) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
