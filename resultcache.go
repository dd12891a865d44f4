package markupcheck

import (
	"sync"

	"github.com/validatehq/markupcheck/w3c"
)

// DefaultCacheSize is the number of validation results retained for the
// view-result page.
const DefaultCacheSize = 20

// ResultCache retains the most recent validation results in a fixed-size
// ring. Ids grow monotonically from 1; storing result i overwrites the slot
// result i-capacity lived in, and looking up an overwritten id fails
// instead of returning the newer result that happens to share its slot.
type ResultCache struct {
	mu    sync.Mutex
	slots []*w3c.Result
	last  int
}

// NewResultCache returns a ring retaining the capacity most recent results.
// Capacities below 1 select DefaultCacheSize.
func NewResultCache(capacity int) *ResultCache {
	if capacity < 1 {
		capacity = DefaultCacheSize
	}
	return &ResultCache{slots: make([]*w3c.Result, capacity)}
}

// Put stores r and returns its id. Safe for concurrent use; ids are unique
// and strictly increasing.
func (c *ResultCache) Put(r *w3c.Result) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last++
	c.slots[c.last%len(c.slots)] = r
	return c.last
}

// Get returns the result stored under id, or a *CacheMissError when id was
// never allocated or has left the retention window.
func (c *ResultCache) Get(id int) (*w3c.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id < 1 || id > c.last || id <= c.last-len(c.slots) {
		return nil, &CacheMissError{ID: id, Oldest: c.oldest(), Newest: c.last}
	}
	return c.slots[id%len(c.slots)], nil
}

// oldest returns the lowest retained id. Callers hold mu.
func (c *ResultCache) oldest() int {
	if c.last == 0 {
		return 0
	}
	if first := c.last - len(c.slots) + 1; first > 1 {
		return first
	}
	return 1
}
