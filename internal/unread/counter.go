package unread

import (
	"maps"
	"sync"
)

// Counter caches the server's per-counterparty unread counts.
type Counter struct {
	mu     sync.RWMutex
	counts map[string]int
}

// NewCounter creates an empty counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int)}
}

// ApplyServerSnapshot replaces every count with the server's view.
// Negative values are stored as zero.
func (c *Counter) ApplyServerSnapshot(counts map[string]int) {
	next := make(map[string]int, len(counts))
	for id, n := range counts {
		next[id] = max(n, 0)
	}
	c.mu.Lock()
	c.counts = next
	c.mu.Unlock()
}

// Count returns the badge value for a counterparty.
func (c *Counter) Count(counterparty string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counts[counterparty]
}

// Zero resets one counterparty's count after a read acknowledgement came back.
// Returns whether the count was non-zero.
func (c *Counter) Zero(counterparty string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts[counterparty] == 0 {
		return false
	}
	c.counts[counterparty] = 0
	return true
}

// Snapshot returns a copy of all counts.
func (c *Counter) Snapshot() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.counts)
}

// Total sums every count.
func (c *Counter) Total() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}

// Reset drops every count.
func (c *Counter) Reset() {
	c.mu.Lock()
	c.counts = make(map[string]int)
	c.mu.Unlock()
}
