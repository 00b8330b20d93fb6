package recs

import (
	"context"
	"sync"
	"time"

	"spot-trader/internal/types"
)

// Cache holds the latest analysis snapshot pushed by the recommendation
// producer. The trading loop only ever reads the latest entry per symbol;
// the previous snapshot is kept for delta reporting by external readers.
type Cache struct {
	mu       sync.RWMutex
	latest   map[string]types.Rec
	previous map[string]types.Rec
	pushedAt time.Time
	count    int
}

func NewCache() *Cache {
	return &Cache{
		latest:   map[string]types.Rec{},
		previous: map[string]types.Rec{},
	}
}

// Push replaces the snapshot, rotating the current one into previous.
func (c *Cache) Push(entries []types.Rec) {
	next := make(map[string]types.Rec, len(entries))
	for _, r := range entries {
		next[r.Symbol] = r
	}
	c.mu.Lock()
	c.previous = c.latest
	c.latest = next
	c.pushedAt = time.Now()
	c.count = len(next)
	c.mu.Unlock()
}

// Latest returns the most recent entry for symbol, if any.
func (c *Cache) Latest(_ context.Context, symbol string) (types.Rec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.latest[symbol]
	return r, ok
}

// Previous returns the prior snapshot's entry for symbol, if any.
func (c *Cache) Previous(symbol string) (types.Rec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.previous[symbol]
	return r, ok
}

// Meta reports when the snapshot was last pushed and how many entries it had.
func (c *Cache) Meta() (pushedAt time.Time, count int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pushedAt, c.count
}
