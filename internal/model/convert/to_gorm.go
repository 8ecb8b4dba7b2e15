package convert

import (
	"encoding/json"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"

	"github.com/waymark3d/waymark/internal/geo"
	"github.com/waymark3d/waymark/internal/model"
	"github.com/waymark3d/waymark/pkg/core"
)

// metadataToJSON converts a metadata map to a JSON column value.
func metadataToJSON(metadata map[string]any) datatypes.JSON {
	if len(metadata) == 0 {
		return datatypes.JSON("{}")
	}
	data, _ := json.Marshal(metadata)
	return datatypes.JSON(data)
}

// CoreToWaypoint converts a core.Waypoint to a row for the given scene.
// When anchor is non-nil the row also carries the EPSG:3857 point; empty
// geometry marks an unanchored scene.
func CoreToWaypoint(w core.Waypoint, sceneID uint, anchor *geo.Anchor) model.Waypoint {
	var geoPoint geom.Point
	if anchor != nil {
		geoPoint = anchor.Mercator(w.Position)
	}

	return model.Waypoint{
		SceneID:    sceneID,
		WaypointID: w.ID,
		Name:       w.Name,
		Type:       string(w.Type),
		Position:   geo.Point(w.Position),
		Target:     geo.Point(w.Target),
		GeoPoint:   geoPoint,
		Metadata:   metadataToJSON(w.Metadata),
		CreatedAt:  w.CreatedAt,
	}
}

// CoreToGroup converts a core.Group to a row for the given scene.
func CoreToGroup(g core.Group, sceneID uint) model.Group {
	return model.Group{
		SceneID:       sceneID,
		GroupID:       g.ID,
		Name:          g.Name,
		Description:   g.Description,
		Color:         g.Color,
		ParentGroupID: g.ParentGroupID,
		CreatedAt:     g.CreatedAt,
	}
}

// EdgeToMembership converts one waypoint-group edge to a row.
func EdgeToMembership(waypointID, groupID string, sceneID uint) model.Membership {
	return model.Membership{
		SceneID:    sceneID,
		WaypointID: waypointID,
		GroupID:    groupID,
	}
}
