// internal/store/table_test.go
package store

import (
	"testing"

	"github.com/waymark3d/waymark/pkg/core"
)

func wp(id string, typ core.WaypointType) core.Waypoint {
	return core.Waypoint{ID: id, Name: id, Type: typ, Metadata: map[string]any{"src": id}}
}

func TestTableInsertGetIsolation(t *testing.T) {
	tb := NewTable()
	w := wp("wp_1", core.TypePointOfInterest)
	tb.Insert(w)

	// Mutating the inserted value must not reach the table.
	w.Metadata["src"] = "tampered"
	got, ok := tb.Get("wp_1")
	if !ok {
		t.Fatal("waypoint not found after insert")
	}
	if got.Metadata["src"] != "wp_1" {
		t.Error("table aliases inserted metadata")
	}

	// Mutating the returned value must not reach the table either.
	got.Metadata["src"] = "tampered"
	again, _ := tb.Get("wp_1")
	if again.Metadata["src"] != "wp_1" {
		t.Error("table aliases returned metadata")
	}
}

func TestTableListOrderSurvivesRemoval(t *testing.T) {
	tb := NewTable()
	tb.Insert(wp("wp_1", core.TypePointOfInterest))
	tb.Insert(wp("wp_2", core.TypeSpawnPoint))
	tb.Insert(wp("wp_3", core.TypePointOfInterest))

	if !tb.Remove("wp_2") {
		t.Fatal("Remove failed")
	}
	tb.Insert(wp("wp_4", core.TypeSpawnPoint))

	list := tb.List("")
	if len(list) != 3 {
		t.Fatalf("expected 3 waypoints, got %d", len(list))
	}
	if list[0].ID != "wp_1" || list[1].ID != "wp_3" || list[2].ID != "wp_4" {
		t.Errorf("insertion order broken: %v", []string{list[0].ID, list[1].ID, list[2].ID})
	}

	spawns := tb.List(core.TypeSpawnPoint)
	if len(spawns) != 1 || spawns[0].ID != "wp_4" {
		t.Errorf("type filter wrong: %v", spawns)
	}
}

func TestTableUpdate(t *testing.T) {
	tb := NewTable()
	tb.Insert(wp("wp_1", core.TypeObjectAnchor))

	name := "renamed"
	pos := core.Position3D{X: 7, Y: 8, Z: 9}
	got, ok := tb.Update("wp_1", WaypointUpdate{Name: &name, Position: &pos})
	if !ok {
		t.Fatal("Update reported missing waypoint")
	}
	if got.Name != "renamed" || got.Position != pos {
		t.Errorf("update not applied: %+v", got)
	}
	if got.Type != core.TypeObjectAnchor {
		t.Error("type changed by update")
	}

	// A nil metadata leaves the map alone; a non-nil one replaces it and is
	// copied in.
	meta := map[string]any{"n": 1}
	got, _ = tb.Update("wp_1", WaypointUpdate{Metadata: meta})
	meta["n"] = 2
	check, _ := tb.Get("wp_1")
	if check.Metadata["n"] != 1 {
		t.Error("table aliases update metadata")
	}

	if _, ok := tb.Update("wp_missing", WaypointUpdate{Name: &name}); ok {
		t.Error("Update invented a waypoint")
	}
}

func TestTableClear(t *testing.T) {
	tb := NewTable()
	tb.Insert(wp("wp_1", core.TypePointOfInterest))
	tb.Insert(wp("wp_2", core.TypePointOfInterest))

	if n := tb.Clear(); n != 2 {
		t.Errorf("expected clear count 2, got %d", n)
	}
	if tb.Len() != 0 {
		t.Errorf("table not empty after clear: %d", tb.Len())
	}
	if list := tb.List(""); len(list) != 0 {
		t.Errorf("list not empty after clear: %v", list)
	}
}
