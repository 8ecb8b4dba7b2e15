package cache

import "sync"

// EdgeKey identifies one waypoint-group membership edge.
type EdgeKey struct {
	WaypointID string
	GroupID    string
}

// EdgeCache maps membership edges to their database row ids so edge
// deletions skip the row lookup.
type EdgeCache struct {
	mu    sync.RWMutex
	edges map[EdgeKey]uint
}

// NewEdgeCache creates an empty EdgeCache.
func NewEdgeCache() *EdgeCache {
	return &EdgeCache{
		edges: make(map[EdgeKey]uint),
	}
}

// Get retrieves the row id of an edge.
func (c *EdgeCache) Get(waypointID, groupID string) (uint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rowID, ok := c.edges[EdgeKey{waypointID, groupID}]
	return rowID, ok
}

// Set stores the row id of an edge.
func (c *EdgeCache) Set(waypointID, groupID string, rowID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edges[EdgeKey{waypointID, groupID}] = rowID
}

// Delete removes one edge from the cache.
func (c *EdgeCache) Delete(waypointID, groupID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.edges, EdgeKey{waypointID, groupID})
}

// DeleteWaypoint removes every edge of the given waypoint and returns the
// dropped row ids.
func (c *EdgeCache) DeleteWaypoint(waypointID string) []uint {
	c.mu.Lock()
	defer c.mu.Unlock()

	var dropped []uint
	for key, rowID := range c.edges {
		if key.WaypointID == waypointID {
			dropped = append(dropped, rowID)
			delete(c.edges, key)
		}
	}
	return dropped
}

// DeleteGroup removes every edge of the given group and returns the
// dropped row ids.
func (c *EdgeCache) DeleteGroup(groupID string) []uint {
	c.mu.Lock()
	defer c.mu.Unlock()

	var dropped []uint
	for key, rowID := range c.edges {
		if key.GroupID == groupID {
			dropped = append(dropped, rowID)
			delete(c.edges, key)
		}
	}
	return dropped
}

// Len returns the number of cached edges.
func (c *EdgeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.edges)
}

// Reset clears the cache.
func (c *EdgeCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edges = make(map[EdgeKey]uint)
}
