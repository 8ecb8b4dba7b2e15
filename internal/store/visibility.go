// internal/store/visibility.go
package store

import (
	"github.com/waymark3d/waymark/pkg/core"
)

// Visibility is the process-local display intent for markers: a base mode
// with per-waypoint overrides layered on top. It is never persisted or
// exported. It holds no lock of its own; the Store serializes access.
type Visibility struct {
	mode      core.VisibilityMode
	allowlist map[string]bool // consulted in selective mode
	overrides map[string]bool // per-waypoint, consulted before the base mode
}

// NewVisibility starts in all_visible with no overrides.
func NewVisibility() *Visibility {
	return &Visibility{
		mode:      core.VisibilityAllVisible,
		allowlist: make(map[string]bool),
		overrides: make(map[string]bool),
	}
}

// SetAll resets the base mode and clears overrides and the allowlist.
func (v *Visibility) SetAll(visible bool) {
	if visible {
		v.mode = core.VisibilityAllVisible
	} else {
		v.mode = core.VisibilityAllHidden
	}
	v.allowlist = make(map[string]bool)
	v.overrides = make(map[string]bool)
}

// SetOne records a per-waypoint override without changing the base mode.
func (v *Visibility) SetOne(id string, visible bool) {
	v.overrides[id] = visible
}

// SetSelective switches to selective mode with exactly the given ids
// visible. Overrides are cleared so the allowlist is authoritative.
func (v *Visibility) SetSelective(ids []string) {
	v.mode = core.VisibilitySelective
	v.allowlist = make(map[string]bool, len(ids))
	for _, id := range ids {
		v.allowlist[id] = true
	}
	v.overrides = make(map[string]bool)
}

// IsVisible resolves the display state: override first, then base mode.
func (v *Visibility) IsVisible(id string) bool {
	if visible, ok := v.overrides[id]; ok {
		return visible
	}
	switch v.mode {
	case core.VisibilityAllHidden:
		return false
	case core.VisibilitySelective:
		return v.allowlist[id]
	default:
		return true
	}
}

// Mode returns the base mode.
func (v *Visibility) Mode() core.VisibilityMode {
	return v.mode
}

// Forget drops any state held for the id. Called when a waypoint is deleted.
func (v *Visibility) Forget(id string) {
	delete(v.overrides, id)
	delete(v.allowlist, id)
}

// Reset returns to the initial all_visible state.
func (v *Visibility) Reset() {
	v.mode = core.VisibilityAllVisible
	v.allowlist = make(map[string]bool)
	v.overrides = make(map[string]bool)
}
