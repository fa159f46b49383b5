package events

import "sync"

// GlobalDedupe remembers recently seen message ids across every account so a
// message scraped by several monkeys prints once. When full, the oldest ids
// are evicted to make room for new ones. A limit of zero disables eviction.
type GlobalDedupe struct {
	mu    sync.Mutex
	limit int
	seen  map[string]struct{}
	order []string
}

// NewGlobalDedupe creates a dedupe cache holding at most limit ids.
func NewGlobalDedupe(limit int) *GlobalDedupe {
	if limit < 0 {
		limit = 0
	}
	return &GlobalDedupe{
		limit: limit,
		seen:  make(map[string]struct{}),
	}
}

// Allow reports whether a message id has not been seen before and records
// it. Empty ids are always allowed and never recorded.
func (d *GlobalDedupe) Allow(messageID string) bool {
	if messageID == "" {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[messageID]; ok {
		return false
	}
	d.seen[messageID] = struct{}{}
	d.order = append(d.order, messageID)
	if d.limit > 0 {
		for len(d.order) > d.limit {
			// Evict oldest
			oldest := d.order[0]
			copy(d.order, d.order[1:])
			d.order = d.order[:len(d.order)-1]
			delete(d.seen, oldest)
		}
	}
	return true
}

// Len returns the number of remembered ids.
func (d *GlobalDedupe) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}
