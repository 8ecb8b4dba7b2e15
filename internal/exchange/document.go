// internal/exchange/document.go

// Package exchange serializes store contents to a JSON document and
// reconciles incoming documents against a live store under a merge mode.
package exchange

import (
	"fmt"
	"time"

	"github.com/waymark3d/waymark/pkg/core"
)

// Document is the export wire format: always a full snapshot, never a
// delta. Groups is null when the export was taken without groups.
type Document struct {
	Waypoints  []WaypointRecord `json:"waypoints"`
	Groups     []GroupRecord    `json:"groups"`
	ExportedAt time.Time        `json:"exported_at"`
}

// WaypointRecord is one waypoint in a document. GroupIDs rides along so
// membership edges survive the round trip even though the store keeps them
// in a separate index.
type WaypointRecord struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Type      string         `json:"waypoint_type"`
	Position  []float64      `json:"position"`
	Target    []float64      `json:"target"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	GroupIDs  []string       `json:"group_ids,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// GroupRecord is one group in a document.
type GroupRecord struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Color         string    `json:"color"`
	ParentGroupID string    `json:"parent_group_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func newWaypointRecord(w core.Waypoint, groupIDs []string) WaypointRecord {
	return WaypointRecord{
		ID:        w.ID,
		Name:      w.Name,
		Type:      string(w.Type),
		Position:  w.Position.Array(),
		Target:    w.Target.Array(),
		Metadata:  w.Metadata,
		GroupIDs:  groupIDs,
		CreatedAt: w.CreatedAt,
	}
}

// waypoint converts the record back to a domain waypoint, validating
// position, target and type. An empty name is regenerated from type and id.
func (r WaypointRecord) waypoint() (core.Waypoint, error) {
	pos, err := core.PositionFromSlice(r.Position)
	if err != nil {
		return core.Waypoint{}, fmt.Errorf("position: %w", err)
	}
	var target core.Position3D
	if r.Target != nil {
		target, err = core.PositionFromSlice(r.Target)
		if err != nil {
			return core.Waypoint{}, fmt.Errorf("target: %w", err)
		}
	}
	wt, err := core.ParseWaypointType(r.Type)
	if err != nil {
		return core.Waypoint{}, err
	}
	name := r.Name
	if name == "" {
		name = core.DefaultName(wt, r.ID)
	}
	return core.Waypoint{
		ID:        r.ID,
		Name:      name,
		Type:      wt,
		Position:  pos,
		Target:    target,
		Metadata:  r.Metadata,
		CreatedAt: r.CreatedAt,
	}, nil
}

func newGroupRecord(g core.Group) GroupRecord {
	return GroupRecord{
		ID:            g.ID,
		Name:          g.Name,
		Description:   g.Description,
		Color:         g.Color,
		ParentGroupID: g.ParentGroupID,
		CreatedAt:     g.CreatedAt,
	}
}

// group converts the record back to a domain group, defaulting the color.
// Name presence is the caller's check; it decides skip-vs-abort by mode.
func (r GroupRecord) group() core.Group {
	color := r.Color
	if color == "" {
		color = core.DefaultGroupColor
	}
	return core.Group{
		ID:            r.ID,
		Name:          r.Name,
		Description:   r.Description,
		Color:         color,
		ParentGroupID: r.ParentGroupID,
		CreatedAt:     r.CreatedAt,
	}
}
