// Package cache provides a date-keyed memoization layer.
//
// A DateCache holds one computed value per calendar day. It is a pure memo:
// it has no independent source of truth and no TTL; entries only leave via
// explicit invalidation. An entry must always equal what a full
// recomputation would produce, so staleness is a correctness bug and
// invalidation errs on the side of dropping too much.
package cache

import (
	"sync"

	"easybudget/internal/core"
)

// DateCache maps calendar dates to memoized values of type T.
type DateCache[T any] struct {
	mu    sync.RWMutex
	items map[int64]T // keyed by epoch days
}

// NewDateCache creates an empty date-keyed cache.
func NewDateCache[T any]() *DateCache[T] {
	return &DateCache[T]{
		items: make(map[int64]T),
	}
}

// Get retrieves the value cached for a date.
func (c *DateCache[T]) Get(d core.Date) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.items[d.EpochDays()]
	return v, ok
}

// Put stores a value for a date, replacing any previous entry.
func (c *DateCache[T]) Put(d core.Date, v T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[d.EpochDays()] = v
}

// InvalidateExact drops only the entry at the given date.
func (c *DateCache[T]) InvalidateExact(d core.Date) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, d.EpochDays())
}

// InvalidateFrom drops every entry at or after the given date. The whole
// sweep happens under one lock so a concurrent reader never observes a
// partially-invalidated state.
func (c *DateCache[T]) InvalidateFrom(d core.Date) {
	c.mu.Lock()
	defer c.mu.Unlock()

	from := d.EpochDays()
	for day := range c.items {
		if day >= from {
			delete(c.items, day)
		}
	}
}

// InvalidateAll drops every entry.
func (c *DateCache[T]) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[int64]T)
}

// Floor returns the entry with the greatest cached date at or before d,
// along with that date. It powers incremental recomputation: a balance for
// a later day only needs the deltas over the gap since the anchor.
func (c *DateCache[T]) Floor(d core.Date) (core.Date, T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero T
	limit := d.EpochDays()
	best := int64(0)
	found := false
	for day := range c.items {
		if day <= limit && (!found || day > best) {
			best = day
			found = true
		}
	}
	if !found {
		return core.Date{}, zero, false
	}
	// Rebuild the date from epoch days.
	anchor := core.NewDate(1970, 1, 1).AddDays(int(best))
	return anchor, c.items[best], true
}

// Len returns the current number of entries.
func (c *DateCache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
