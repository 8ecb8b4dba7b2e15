package core

// VisibilityMode is the base display policy for markers in the scene.
// Per-waypoint overrides layer on top of the base mode.
type VisibilityMode string

const (
	VisibilityAllVisible VisibilityMode = "all_visible"
	VisibilityAllHidden  VisibilityMode = "all_hidden"
	VisibilitySelective  VisibilityMode = "selective"
)
