package convert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"

	"github.com/waymark3d/waymark/internal/geo"
	"github.com/waymark3d/waymark/internal/model"
	"github.com/waymark3d/waymark/pkg/core"
)

func TestWaypointToCore(t *testing.T) {
	created := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	row := model.Waypoint{
		ID:         7,
		SceneID:    1,
		WaypointID: "wp_3fa85f64a717",
		Name:       "wide shot",
		Type:       "camera_position",
		Position:   geo.Point(core.Position3D{X: 12.5, Y: -3.0, Z: 1.7}),
		Target:     geo.Point(core.Position3D{X: 0, Y: 0, Z: 1.5}),
		Metadata:   datatypes.JSON(`{"note":"opening scene"}`),
		CreatedAt:  created,
	}

	w := WaypointToCore(row)

	// Core ID = row WaypointID, not the row primary key.
	assert.Equal(t, "wp_3fa85f64a717", w.ID)
	assert.Equal(t, "wide shot", w.Name)
	assert.Equal(t, core.TypeCameraPosition, w.Type)
	assert.Equal(t, core.Position3D{X: 12.5, Y: -3.0, Z: 1.7}, w.Position)
	assert.Equal(t, core.Position3D{X: 0, Y: 0, Z: 1.5}, w.Target)
	assert.Equal(t, map[string]any{"note": "opening scene"}, w.Metadata)
	assert.Equal(t, created, w.CreatedAt)
}

func TestWaypointToCore_EmptyMetadata(t *testing.T) {
	row := model.Waypoint{
		WaypointID: "wp_a",
		Type:       "spawn_point",
		Metadata:   datatypes.JSON("{}"),
	}

	w := WaypointToCore(row)
	assert.Nil(t, w.Metadata)
}

func TestWaypointToCore_NilMetadata(t *testing.T) {
	row := model.Waypoint{WaypointID: "wp_a", Type: "spawn_point"}

	w := WaypointToCore(row)
	assert.Nil(t, w.Metadata)
}

func TestGroupToCore(t *testing.T) {
	created := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	row := model.Group{
		ID:            3,
		SceneID:       1,
		GroupID:       "grp_9b2f1c440aa3",
		Name:          "cameras",
		Description:   "all camera marks",
		Color:         "#FF8800",
		ParentGroupID: "grp_root00000001",
		CreatedAt:     created,
	}

	g := GroupToCore(row)

	assert.Equal(t, "grp_9b2f1c440aa3", g.ID)
	assert.Equal(t, "cameras", g.Name)
	assert.Equal(t, "all camera marks", g.Description)
	assert.Equal(t, "#FF8800", g.Color)
	assert.Equal(t, "grp_root00000001", g.ParentGroupID)
	assert.Equal(t, created, g.CreatedAt)
}
