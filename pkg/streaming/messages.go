package streaming

import (
	"encoding/json"
	"time"

	"github.com/waymark3d/waymark/pkg/core"
)

// Message type constants matching the feed protocol.
const (
	TypeSessionStart      = "session_start"
	TypeWaypointCreated   = "waypoint_created"
	TypeWaypointUpdated   = "waypoint_updated"
	TypeWaypointRemoved   = "waypoint_removed"
	TypeGroupCreated      = "group_created"
	TypeGroupRemoved      = "group_removed"
	TypeMembershipAdded   = "membership_added"
	TypeMembershipRemoved = "membership_removed"
	TypeVisibilityChanged = "visibility_changed"
	TypeWaypointsCleared  = "waypoints_cleared"
	TypeImported          = "imported"
	TypeGotoWaypoint      = "goto_waypoint"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// SessionStartPayload announces the scene a feed connection will carry.
// It is the first message on every connection, including reconnects.
type SessionStartPayload struct {
	Scene        string    `json:"scene"`
	Source       string    `json:"source,omitempty"`
	SessionStart time.Time `json:"session_start"`
}

// WaypointPayload carries the full waypoint for created, updated, and
// goto messages.
type WaypointPayload struct {
	Waypoint *core.Waypoint `json:"waypoint"`
}

// WaypointRemovedPayload names a removed waypoint.
type WaypointRemovedPayload struct {
	WaypointID string `json:"waypoint_id"`
}

// GroupPayload carries the full group for created messages.
type GroupPayload struct {
	Group *core.Group `json:"group"`
}

// GroupRemovedPayload names the removed group and, when the removal
// cascaded, its descendants.
type GroupRemovedPayload struct {
	GroupIDs []string `json:"group_ids"`
}

// MembershipPayload carries one waypoint's changed group links.
type MembershipPayload struct {
	WaypointID string   `json:"waypoint_id"`
	GroupIDs   []string `json:"group_ids"`
}

// VisibilityPayload describes a visibility controller change. WaypointID
// and Visible are set for per-waypoint changes, WaypointIDs for a
// selective allowlist, and Visible alone for show-all and hide-all.
type VisibilityPayload struct {
	Mode        string   `json:"mode"`
	WaypointID  string   `json:"waypoint_id,omitempty"`
	WaypointIDs []string `json:"waypoint_ids,omitempty"`
	Visible     *bool    `json:"visible,omitempty"`
}

// ClearedPayload reports a bulk waypoint clear.
type ClearedPayload struct {
	Count int `json:"count"`
}

// ImportedPayload reports a completed document import.
type ImportedPayload struct {
	Count int `json:"count"`
}
