// Package cache holds the small lookup tables the persistence worker needs
// to stay off the database read path.
package cache

import "sync"

// RowIDCache maps store entity ids to their database row ids so the
// persistence worker can update and delete without SELECTs.
type RowIDCache struct {
	mu   sync.RWMutex
	rows map[string]uint
}

// NewRowIDCache creates an empty RowIDCache.
func NewRowIDCache() *RowIDCache {
	return &RowIDCache{
		rows: make(map[string]uint),
	}
}

// Get retrieves a row id by entity id.
func (c *RowIDCache) Get(id string) (uint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rowID, ok := c.rows[id]
	return rowID, ok
}

// Set stores a row id by entity id.
func (c *RowIDCache) Set(id string, rowID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows[id] = rowID
}

// Delete removes an entity id from the cache.
func (c *RowIDCache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rows, id)
}

// Len returns the number of cached entries.
func (c *RowIDCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rows)
}

// Reset clears the cache.
func (c *RowIDCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = make(map[string]uint)
}

// SafeCounter is a thread-safe counter.
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}
