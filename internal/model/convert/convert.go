// Package convert maps between database rows and the core annotation types.
package convert

import (
	"encoding/json"

	"github.com/waymark3d/waymark/internal/geo"
	"github.com/waymark3d/waymark/internal/model"
	"github.com/waymark3d/waymark/pkg/core"
)

// WaypointToCore converts a row back to a core.Waypoint.
// The row's WaypointID maps to core Waypoint.ID, not the row's own key.
func WaypointToCore(w model.Waypoint) core.Waypoint {
	var metadata map[string]any
	if len(w.Metadata) > 0 {
		_ = json.Unmarshal(w.Metadata, &metadata)
	}
	if len(metadata) == 0 {
		metadata = nil
	}

	return core.Waypoint{
		ID:        w.WaypointID,
		Name:      w.Name,
		Type:      core.WaypointType(w.Type),
		Position:  geo.Position(w.Position),
		Target:    geo.Position(w.Target),
		Metadata:  metadata,
		CreatedAt: w.CreatedAt,
	}
}

// GroupToCore converts a row back to a core.Group.
func GroupToCore(g model.Group) core.Group {
	return core.Group{
		ID:            g.GroupID,
		Name:          g.Name,
		Description:   g.Description,
		Color:         g.Color,
		ParentGroupID: g.ParentGroupID,
		CreatedAt:     g.CreatedAt,
	}
}
