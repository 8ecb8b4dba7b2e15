// Package model defines the database row types mirroring the in-memory
// annotation store. Rows are scoped to a scene so one database can hold
// the annotations of many scenes.
package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels lists every struct AutoMigrate manages.
var DatabaseModels = []interface{}{
	&Scene{},
	&Waypoint{},
	&Group{},
	&Membership{},
}

// Scene is one annotated scene. Waypoints, groups, and membership edges
// hang off it via SceneID.
type Scene struct {
	gorm.Model
	Name         string    `json:"name" gorm:"size:127;index:idx_scene_name"`
	Source       string    `json:"source" gorm:"size:127"`
	SessionStart time.Time `json:"sessionStart" gorm:"type:timestamptz"`

	// Geographic anchor of the scene origin, EPSG:4326. Zero values with
	// Anchored false mean the scene is not georeferenced.
	Anchored        bool    `json:"anchored" gorm:"default:false"`
	AnchorLongitude float64 `json:"anchorLongitude"`
	AnchorLatitude  float64 `json:"anchorLatitude"`
}

func (*Scene) TableName() string {
	return "scenes"
}

// Waypoint is the durable mirror of one waypoint.
type Waypoint struct {
	ID      uint  `json:"id" gorm:"primarykey;autoIncrement;"`
	SceneID uint  `json:"sceneId" gorm:"index:idx_waypoint_scene_id"`
	Scene   Scene `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SceneID;"`

	WaypointID string         `json:"waypointId" gorm:"size:64;index:idx_waypoint_waypoint_id"` // Store id, e.g. wp_3fa85f64a717
	Name       string         `json:"name" gorm:"size:256"`
	Type       string         `json:"waypointType" gorm:"size:32"`
	Position   geom.Point     `json:"position"`                                  // Scene-local XYZ, meters
	Target     geom.Point     `json:"target"`                                    // Scene-local XYZ look-at
	GeoPoint   geom.Point     `json:"geoPoint"`                                  // EPSG:3857 position; empty when the scene has no anchor
	Metadata   datatypes.JSON `json:"metadata" gorm:"type:jsonb;default:'{}'"`   // Arbitrary key-value payload
	CreatedAt  time.Time      `json:"createdAt" gorm:"type:timestamptz"`
}

func (*Waypoint) TableName() string {
	return "waypoints"
}

// Group is the durable mirror of one annotation group.
type Group struct {
	ID      uint  `json:"id" gorm:"primarykey;autoIncrement;"`
	SceneID uint  `json:"sceneId" gorm:"index:idx_group_scene_id"`
	Scene   Scene `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SceneID;"`

	GroupID       string    `json:"groupId" gorm:"size:64;index:idx_group_group_id"` // Store id, e.g. grp_9b2f1c440aa3
	Name          string    `json:"name" gorm:"size:256"`
	Description   string    `json:"description" gorm:"size:1024"`
	Color         string    `json:"color" gorm:"size:16"`         // #RRGGBB
	ParentGroupID string    `json:"parentGroupId" gorm:"size:64"` // Empty for root groups
	CreatedAt     time.Time `json:"createdAt" gorm:"type:timestamptz"`
}

func (*Group) TableName() string {
	return "annotation_groups"
}

// Membership is one waypoint-to-group edge.
type Membership struct {
	ID      uint  `json:"id" gorm:"primarykey;autoIncrement;"`
	SceneID uint  `json:"sceneId" gorm:"index:idx_membership_scene_id"`
	Scene   Scene `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SceneID;"`

	WaypointID string `json:"waypointId" gorm:"size:64;index:idx_membership_waypoint_id"`
	GroupID    string `json:"groupId" gorm:"size:64;index:idx_membership_group_id"`
}

func (*Membership) TableName() string {
	return "memberships"
}
