// internal/store/events.go
package store

import (
	"time"

	"github.com/waymark3d/waymark/pkg/core"
)

// EventKind names a committed store mutation.
type EventKind string

const (
	EventWaypointCreated   EventKind = "waypoint_created"
	EventWaypointUpdated   EventKind = "waypoint_updated"
	EventWaypointRemoved   EventKind = "waypoint_removed"
	EventGroupCreated      EventKind = "group_created"
	EventGroupRemoved      EventKind = "group_removed"
	EventMembershipAdded   EventKind = "membership_added"
	EventMembershipRemoved EventKind = "membership_removed"
	EventVisibilityChanged EventKind = "visibility_changed"
	EventWaypointsCleared  EventKind = "waypoints_cleared"
	EventImported          EventKind = "imported"
	EventGotoWaypoint      EventKind = "goto_waypoint"
)

// Event describes a committed mutation. Events carry copies, never
// references into store state, and are delivered in commit order on the
// mutating goroutine while the store lock is still held.
type Event struct {
	Kind EventKind
	Time time.Time

	Waypoint *core.Waypoint // waypoint_* and goto_waypoint
	Group    *core.Group    // group_created

	// IDs carries the removed subtree for group_removed, the allowlist for
	// selective visibility, and the affected group ids for membership events.
	IDs        []string
	WaypointID string // membership and per-waypoint visibility events

	Visible *bool               // visibility events
	Mode    core.VisibilityMode // visibility events

	Count int // waypoints_cleared and imported
}

// Listener observes store events. The callback runs under the store lock,
// so it must return quickly and must not call back into the store; hand the
// event to a channel or queue instead.
type Listener func(Event)
