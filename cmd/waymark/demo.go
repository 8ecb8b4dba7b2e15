package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/waymark3d/waymark/internal/dispatcher"
	"github.com/waymark3d/waymark/internal/handlers"
)

// dispatchDemoEvent sends a command through the dispatcher the same way
// a host request would arrive.
func dispatchDemoEvent(command string, params any) (any, error) {
	if eventDispatcher == nil {
		return nil, fmt.Errorf("dispatcher not running")
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding %s params: %w", command, err)
	}
	return eventDispatcher.Dispatch(dispatcher.Event{
		Command:   command,
		Params:    raw,
		Timestamp: time.Now(),
	})
}

// decodeResult copies a handler result into dst through a JSON round
// trip, the same shape a host would read off the wire.
func decodeResult(res any, dst any) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// populateDemoData fills the store with a small harbor scene so the
// full command surface can be exercised without a host attached.
func populateDemoData() error {
	if _, err := dispatchDemoEvent(handlers.OpSetScene, map[string]any{
		"scene":  "demo-harbor",
		"source": "demo",
	}); err != nil {
		return fmt.Errorf("setting demo scene: %w", err)
	}

	demoGroups := []struct {
		name        string
		description string
		color       string
		parent      string
	}{
		{"Dock A", "Primary loading dock", "#4A90E2", ""},
		{"Cranes", "Gantry cranes on Dock A", "#D0021B", "Dock A"},
		{"Moorings", "Bollards and cleats", "#F5A623", "Dock A"},
		{"Utilities", "Shore power and water", "#7ED321", ""},
	}

	groupIDs := make(map[string]string, len(demoGroups))
	for _, g := range demoGroups {
		params := map[string]any{
			"name":        g.name,
			"description": g.description,
			"color":       g.color,
		}
		if g.parent != "" {
			params["parent_group_id"] = groupIDs[g.parent]
		}
		res, err := dispatchDemoEvent(handlers.OpCreateGroup, params)
		if err != nil {
			return fmt.Errorf("creating demo group %q: %w", g.name, err)
		}
		var created struct {
			GroupID string `json:"group_id"`
		}
		if err := decodeResult(res, &created); err != nil {
			return fmt.Errorf("reading demo group id: %w", err)
		}
		groupIDs[g.name] = created.GroupID
	}

	demoWaypoints := []struct {
		name         string
		waypointType string
		position     [3]float64
		group        string
	}{
		{"Quay spawn", "spawn_point", [3]float64{0, 0, 0}, "Dock A"},
		{"Crane 1 base", "object_anchor", [3]float64{42.5, 12.0, 0}, "Cranes"},
		{"Crane 2 base", "object_anchor", [3]float64{61.0, 12.0, 0}, "Cranes"},
		{"Bollard 7", "point_of_interest", [3]float64{38.2, -4.5, 1.1}, "Moorings"},
		{"Bollard 8", "point_of_interest", [3]float64{55.8, -4.5, 1.1}, "Moorings"},
		{"Shore power cabinet", "point_of_interest", [3]float64{20.0, 18.3, 0.4}, "Utilities"},
		{"Overview camera", "camera_position", [3]float64{30.0, -60.0, 45.0}, ""},
	}

	for _, w := range demoWaypoints {
		res, err := dispatchDemoEvent(handlers.OpCreateWaypoint, map[string]any{
			"position":      w.position,
			"waypoint_type": w.waypointType,
			"name":          w.name,
			"metadata":      map[string]any{"demo": true},
		})
		if err != nil {
			return fmt.Errorf("creating demo waypoint %q: %w", w.name, err)
		}
		var created struct {
			ID string `json:"id"`
		}
		if err := decodeResult(res, &created); err != nil {
			return fmt.Errorf("reading demo waypoint id: %w", err)
		}

		if w.group != "" {
			if _, err := dispatchDemoEvent(handlers.OpAddToGroups, map[string]any{
				"waypoint_id": created.ID,
				"group_ids":   []string{groupIDs[w.group]},
			}); err != nil {
				return fmt.Errorf("grouping demo waypoint %q: %w", w.name, err)
			}
		}
	}

	res, err := dispatchDemoEvent(handlers.OpStoreStats, nil)
	if err != nil {
		return fmt.Errorf("reading store stats: %w", err)
	}
	var stats struct {
		Waypoints   int `json:"waypoint_count"`
		Groups      int `json:"group_count"`
		Memberships int `json:"membership_count"`
	}
	if err := decodeResult(res, &stats); err != nil {
		return fmt.Errorf("reading store stats: %w", err)
	}

	// Demo mode owns stdout, there is no protocol loop to collide with.
	fmt.Printf("Demo scene ready: %d waypoints, %d groups, %d memberships\n",
		stats.Waypoints, stats.Groups, stats.Memberships)
	Logger.Info("Demo scene ready",
		"waypoints", stats.Waypoints,
		"groups", stats.Groups,
		"memberships", stats.Memberships)
	return nil
}
