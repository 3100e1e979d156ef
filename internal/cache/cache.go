// Package cache holds static resources in memory behind a read-through
// policy flag. Entries accumulate without bound while caching is enabled;
// disabling the cache clears them in bulk and subsequent lookups bypass
// the store until re-enabled.
package cache

import (
	"sync"
	"time"
)

// Entry is one cached resource body plus its metadata.
type Entry struct {
	Body        []byte
	ContentType string
	Size        int
	LoadedAt    time.Time
}

// Cache maps resource paths to entries under its own lock. It is never
// owned by an individual worker; all mutation happens here.
type Cache struct {
	mu      sync.Mutex
	enabled bool
	entries map[string]Entry
}

// New returns a cache with the given initial policy.
func New(enabled bool) *Cache {
	return &Cache{
		enabled: enabled,
		entries: make(map[string]Entry),
	}
}

// Get returns the entry for path. A disabled cache never hits. The body
// slice is shared with the store, so callers must not mutate it; entries
// are written once and never modified in place, which keeps hits already
// handed out valid across a disable.
func (c *Cache) Get(path string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return Entry{}, false
	}
	e, ok := c.entries[path]
	return e, ok
}

// Put stores an entry for path. Dropped silently while disabled.
func (c *Cache) Put(path string, body []byte, contentType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	c.entries[path] = Entry{
		Body:        body,
		ContentType: contentType,
		Size:        len(body),
		LoadedAt:    time.Now(),
	}
}

// Enabled reports the current policy.
func (c *Cache) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// SetEnabled flips the policy. Disabling clears all stored entries.
func (c *Cache) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
	if !enabled {
		c.entries = make(map[string]Entry)
	}
}

// Toggle inverts the policy and returns the new state.
func (c *Cache) Toggle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = !c.enabled
	if !c.enabled {
		c.entries = make(map[string]Entry)
	}
	return c.enabled
}

// Len reports how many entries are stored.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
