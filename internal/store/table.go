// internal/store/table.go
package store

import (
	"github.com/waymark3d/waymark/pkg/core"
)

// Table owns the waypoint records: plain CRUD plus type-filtered listing.
// It holds no lock of its own; the Store serializes access.
type Table struct {
	records map[string]*core.Waypoint
	order   []string // live ids in insertion order
}

// NewTable creates an empty waypoint table.
func NewTable() *Table {
	return &Table{
		records: make(map[string]*core.Waypoint),
	}
}

// Insert registers a waypoint under its id. The id must not be in use.
func (t *Table) Insert(w core.Waypoint) {
	rec := w.Clone()
	t.records[w.ID] = &rec
	t.order = append(t.order, w.ID)
}

// Get returns a copy of the waypoint, if present.
func (t *Table) Get(id string) (core.Waypoint, bool) {
	rec, ok := t.records[id]
	if !ok {
		return core.Waypoint{}, false
	}
	return rec.Clone(), true
}

// Has reports whether the id is present.
func (t *Table) Has(id string) bool {
	_, ok := t.records[id]
	return ok
}

// List returns copies of all waypoints in insertion order.
// A non-empty filter keeps only waypoints of that type.
func (t *Table) List(filter core.WaypointType) []core.Waypoint {
	out := make([]core.Waypoint, 0, len(t.order))
	for _, id := range t.order {
		rec := t.records[id]
		if filter != "" && rec.Type != filter {
			continue
		}
		out = append(out, rec.Clone())
	}
	return out
}

// WaypointUpdate carries the mutable waypoint fields. Nil fields are left
// unchanged; a non-nil Metadata map replaces the stored map entirely.
type WaypointUpdate struct {
	Position *core.Position3D
	Target   *core.Position3D
	Name     *string
	Metadata map[string]any
}

// Update applies upd to the waypoint and returns the updated copy.
func (t *Table) Update(id string, upd WaypointUpdate) (core.Waypoint, bool) {
	rec, ok := t.records[id]
	if !ok {
		return core.Waypoint{}, false
	}
	if upd.Position != nil {
		rec.Position = *upd.Position
	}
	if upd.Target != nil {
		rec.Target = *upd.Target
	}
	if upd.Name != nil {
		rec.Name = *upd.Name
	}
	if upd.Metadata != nil {
		m := make(map[string]any, len(upd.Metadata))
		for k, v := range upd.Metadata {
			m[k] = v
		}
		rec.Metadata = m
	}
	return rec.Clone(), true
}

// Remove deletes the waypoint. Membership pruning is the caller's concern.
func (t *Table) Remove(id string) bool {
	if _, ok := t.records[id]; !ok {
		return false
	}
	delete(t.records, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// Clear drops every waypoint and returns how many were removed.
func (t *Table) Clear() int {
	n := len(t.records)
	t.records = make(map[string]*core.Waypoint)
	t.order = nil
	return n
}

// Len returns the number of live waypoints.
func (t *Table) Len() int {
	return len(t.records)
}
