// internal/store/index.go
package store

import "sort"

// Index is the many-to-many association between waypoints and groups,
// invertible in both directions. Edges carry no ordering significance;
// queries return ids sorted for deterministic output.
// It holds no lock of its own; the Store serializes access.
type Index struct {
	byWaypoint map[string]map[string]bool // waypoint id -> group id set
	byGroup    map[string]map[string]bool // group id -> waypoint id set
	edges      int
}

// NewIndex creates an empty membership index.
func NewIndex() *Index {
	return &Index{
		byWaypoint: make(map[string]map[string]bool),
		byGroup:    make(map[string]map[string]bool),
	}
}

// Link adds the edge and reports whether it was newly created.
func (x *Index) Link(waypointID, groupID string) bool {
	if x.byWaypoint[waypointID][groupID] {
		return false
	}
	if x.byWaypoint[waypointID] == nil {
		x.byWaypoint[waypointID] = make(map[string]bool)
	}
	if x.byGroup[groupID] == nil {
		x.byGroup[groupID] = make(map[string]bool)
	}
	x.byWaypoint[waypointID][groupID] = true
	x.byGroup[groupID][waypointID] = true
	x.edges++
	return true
}

// Unlink removes the edge and reports whether it existed.
func (x *Index) Unlink(waypointID, groupID string) bool {
	if !x.byWaypoint[waypointID][groupID] {
		return false
	}
	x.dropWaypointEdge(waypointID, groupID)
	x.dropGroupEdge(groupID, waypointID)
	x.edges--
	return true
}

// Linked reports whether the edge exists.
func (x *Index) Linked(waypointID, groupID string) bool {
	return x.byWaypoint[waypointID][groupID]
}

// GroupsOf returns the sorted group ids the waypoint belongs to directly.
func (x *Index) GroupsOf(waypointID string) []string {
	return sortedKeys(x.byWaypoint[waypointID])
}

// WaypointsOf returns the sorted waypoint ids directly in the group.
func (x *Index) WaypointsOf(groupID string) []string {
	return sortedKeys(x.byGroup[groupID])
}

// PruneWaypoint drops every edge touching the waypoint. Idempotent.
func (x *Index) PruneWaypoint(waypointID string) {
	for groupID := range x.byWaypoint[waypointID] {
		x.dropGroupEdge(groupID, waypointID)
		x.edges--
	}
	delete(x.byWaypoint, waypointID)
}

// PruneGroup drops every edge touching the group. Idempotent.
func (x *Index) PruneGroup(groupID string) {
	for waypointID := range x.byGroup[groupID] {
		x.dropWaypointEdge(waypointID, groupID)
		x.edges--
	}
	delete(x.byGroup, groupID)
}

func (x *Index) dropWaypointEdge(waypointID, groupID string) {
	set := x.byWaypoint[waypointID]
	delete(set, groupID)
	if len(set) == 0 {
		delete(x.byWaypoint, waypointID)
	}
}

func (x *Index) dropGroupEdge(groupID, waypointID string) {
	set := x.byGroup[groupID]
	delete(set, waypointID)
	if len(set) == 0 {
		delete(x.byGroup, groupID)
	}
}

// Clear drops every edge.
func (x *Index) Clear() {
	x.byWaypoint = make(map[string]map[string]bool)
	x.byGroup = make(map[string]map[string]bool)
	x.edges = 0
}

// Len returns the number of edges.
func (x *Index) Len() int {
	return x.edges
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
