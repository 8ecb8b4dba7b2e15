// pkg/core/waypoint.go
package core

import (
	"fmt"
	"strings"
	"time"
)

// Position3D represents a 3D world-space coordinate.
type Position3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Array returns the position as a [x, y, z] slice, the shape used on the wire.
func (p Position3D) Array() []float64 {
	return []float64{p.X, p.Y, p.Z}
}

// PositionFromSlice builds a Position3D from a wire-shaped coordinate array.
// The slice must contain exactly 3 components.
func PositionFromSlice(vals []float64) (Position3D, error) {
	if len(vals) != 3 {
		return Position3D{}, fmt.Errorf("position must have exactly 3 components, got %d", len(vals))
	}
	return Position3D{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

// WaypointType classifies what a waypoint annotates in the scene.
type WaypointType string

const (
	TypeCameraPosition      WaypointType = "camera_position"
	TypeDirectionalLighting WaypointType = "directional_lighting"
	TypeObjectAnchor        WaypointType = "object_anchor"
	TypePointOfInterest     WaypointType = "point_of_interest"
	TypeSelectionMark       WaypointType = "selection_mark"
	TypeLightingPosition    WaypointType = "lighting_position"
	TypeAudioSource         WaypointType = "audio_source"
	TypeSpawnPoint          WaypointType = "spawn_point"
)

// DefaultWaypointType is used when a creation request omits the type.
const DefaultWaypointType = TypePointOfInterest

// waypointTypes is the fixed enumeration, in display order.
var waypointTypes = []WaypointType{
	TypeCameraPosition,
	TypeDirectionalLighting,
	TypeObjectAnchor,
	TypePointOfInterest,
	TypeSelectionMark,
	TypeLightingPosition,
	TypeAudioSource,
	TypeSpawnPoint,
}

// WaypointTypes returns all valid waypoint types.
func WaypointTypes() []WaypointType {
	out := make([]WaypointType, len(waypointTypes))
	copy(out, waypointTypes)
	return out
}

// Valid reports whether t is a member of the type enumeration.
func (t WaypointType) Valid() bool {
	for _, wt := range waypointTypes {
		if t == wt {
			return true
		}
	}
	return false
}

// ParseWaypointType validates a wire string against the enumeration.
// An empty string resolves to DefaultWaypointType.
func ParseWaypointType(s string) (WaypointType, error) {
	if s == "" {
		return DefaultWaypointType, nil
	}
	t := WaypointType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown waypoint type %q", s)
	}
	return t, nil
}

// DefaultName derives the label for a waypoint created without one: the
// type followed by the id's unique suffix.
func DefaultName(t WaypointType, id string) string {
	suffix := id
	if i := strings.IndexByte(id, '_'); i >= 0 {
		suffix = id[i+1:]
	}
	return string(t) + "_" + suffix
}

// Waypoint is a named, typed point annotation.
// ID is assigned at creation and never reused for the lifetime of the store.
type Waypoint struct {
	ID        string
	Name      string
	Type      WaypointType
	Position  Position3D
	Target    Position3D // look-at point; zero vector when unset
	Metadata  map[string]any
	CreatedAt time.Time
}

// Clone returns a deep copy safe to hand to callers.
func (w Waypoint) Clone() Waypoint {
	out := w
	if w.Metadata != nil {
		out.Metadata = make(map[string]any, len(w.Metadata))
		for k, v := range w.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
