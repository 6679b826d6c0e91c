package cache

import "time"

// Cache is an immutable snapshot of selectable items plus an expiration
// instant. It is never mutated after New; a refresh replaces it wholesale, so
// readers holding an older snapshot keep a consistent view.
//
// Items keep resolver-return order, which is not a selection order.
type Cache[T any] struct {
	items     []T
	expiresAt time.Time
}

// New constructs a snapshot owning items. Callers must not modify items
// afterwards.
func New[T any](items []T, expiresAt time.Time) *Cache[T] {
	return &Cache[T]{items: items, expiresAt: expiresAt}
}

// Valid reports whether the snapshot can serve a selection right now.
func (c *Cache[T]) Valid() bool { return c.ValidAt(time.Now()) }

// ValidAt reports whether the snapshot is non-empty and now is not past its
// expiration. The expiration instant itself still counts as valid.
// A nil or zero-value cache is never valid.
func (c *Cache[T]) ValidAt(now time.Time) bool {
	if c == nil || len(c.items) == 0 {
		return false
	}
	return !now.After(c.expiresAt)
}

// Items returns a read-only view of the cached items.
func (c *Cache[T]) Items() []T {
	if c == nil {
		return nil
	}
	return c.items
}

// Len returns the number of cached items.
func (c *Cache[T]) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// ExpiresAt returns the absolute expiration instant.
func (c *Cache[T]) ExpiresAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	return c.expiresAt
}
