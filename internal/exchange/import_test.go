// internal/exchange/import_test.go
package exchange

import (
	"reflect"
	"testing"
	"time"

	"github.com/waymark3d/waymark/internal/store"
	"github.com/waymark3d/waymark/pkg/core"
)

func TestParseMode(t *testing.T) {
	cases := []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"", ModeReplace, true},
		{"replace", ModeReplace, true},
		{"merge", ModeMerge, true},
		{"upsert", "", false},
	}
	for _, tc := range cases {
		got, err := ParseMode(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("ParseMode(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
		if !tc.ok && !core.IsValidation(err) {
			t.Errorf("ParseMode(%q): expected validation error, got %v", tc.in, err)
		}
	}
}

func TestParseMalformedDocument(t *testing.T) {
	if _, err := Parse([]byte("{not json")); !core.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// Export with groups, import with replace into a fresh store: ids,
// hierarchy and memberships must all come back identical.
func TestReplaceRoundTrip(t *testing.T) {
	src := newSeededStore(t)
	doc := Export(src, true)

	dst := store.New(store.WithIDGenerators(seqIDs("x"), seqIDs("y")))
	sum, err := Import(dst, doc, ModeReplace)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if sum.Waypoints != 2 || sum.Groups != 2 || sum.Errors() != 0 {
		t.Fatalf("summary wrong: %+v", sum)
	}

	srcWps, _ := src.ListWaypoints("")
	dstWps, _ := dst.ListWaypoints("")
	if len(dstWps) != len(srcWps) {
		t.Fatalf("waypoint count mismatch: %d vs %d", len(dstWps), len(srcWps))
	}
	for i := range srcWps {
		if dstWps[i].ID != srcWps[i].ID {
			t.Errorf("waypoint %d id mismatch: %s vs %s", i, dstWps[i].ID, srcWps[i].ID)
		}
		if dstWps[i].Position != srcWps[i].Position || dstWps[i].Type != srcWps[i].Type {
			t.Errorf("waypoint %d fields mismatch", i)
		}
		if !dstWps[i].CreatedAt.Equal(srcWps[i].CreatedAt) {
			t.Errorf("waypoint %d created_at not preserved", i)
		}
	}

	srcForest, srcTotal := src.Hierarchy()
	dstForest, dstTotal := dst.Hierarchy()
	if dstTotal != srcTotal {
		t.Fatalf("group total mismatch: %d vs %d", dstTotal, srcTotal)
	}
	if len(dstForest) != len(srcForest) || dstForest[0].ID != srcForest[0].ID {
		t.Error("hierarchy roots mismatch")
	}
	if len(dstForest[0].Children) != 1 || dstForest[0].Children[0].ID != srcForest[0].Children[0].ID {
		t.Error("hierarchy children mismatch")
	}

	for _, w := range srcWps {
		want, _ := src.GroupsOfWaypoint(w.ID)
		got, err := dst.GroupsOfWaypoint(w.ID)
		if err != nil {
			t.Fatalf("GroupsOfWaypoint(%s) failed after import: %v", w.ID, err)
		}
		if !reflect.DeepEqual(groupIDsOf(got), groupIDsOf(want)) {
			t.Errorf("memberships of %s mismatch: %v vs %v", w.ID, groupIDsOf(got), groupIDsOf(want))
		}
	}
}

func groupIDsOf(gs []core.Group) []string {
	ids := make([]string, 0, len(gs))
	for _, g := range gs {
		ids = append(ids, g.ID)
	}
	return ids
}

func TestReplaceDiscardsPreviousContents(t *testing.T) {
	dst := newSeededStore(t)
	doc := Document{
		Waypoints: []WaypointRecord{{
			ID:       "wp_fresh",
			Name:     "only one",
			Type:     "point_of_interest",
			Position: []float64{9, 9, 9},
		}},
	}

	sum, err := Import(dst, doc, ModeReplace)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if sum.Waypoints != 1 || sum.Groups != 0 {
		t.Fatalf("summary wrong: %+v", sum)
	}

	wps, _ := dst.ListWaypoints("")
	if len(wps) != 1 || wps[0].ID != "wp_fresh" {
		t.Errorf("previous waypoints survived replace: %v", wps)
	}
	if len(dst.ListGroups()) != 0 {
		t.Error("previous groups survived replace")
	}
	if wps[0].CreatedAt.IsZero() {
		t.Error("missing created_at not backfilled")
	}
}

func TestReplaceAbortsBeforeClearing(t *testing.T) {
	dst := newSeededStore(t)

	bad := []Document{
		// Short position.
		{Waypoints: []WaypointRecord{{ID: "a", Type: "point_of_interest", Position: []float64{1, 2}}}},
		// Unknown type.
		{Waypoints: []WaypointRecord{{ID: "a", Type: "teleporter", Position: []float64{1, 2, 3}}}},
		// Missing waypoint id.
		{Waypoints: []WaypointRecord{{Type: "point_of_interest", Position: []float64{1, 2, 3}}}},
		// Duplicate id.
		{Waypoints: []WaypointRecord{
			{ID: "a", Type: "point_of_interest", Position: []float64{1, 2, 3}},
			{ID: "a", Type: "point_of_interest", Position: []float64{4, 5, 6}},
		}},
		// Group without a name.
		{Groups: []GroupRecord{{ID: "g"}}},
		// Parent outside the document.
		{Groups: []GroupRecord{{ID: "g", Name: "g", ParentGroupID: "elsewhere"}}},
		// Parent cycle.
		{Groups: []GroupRecord{
			{ID: "g1", Name: "g1", ParentGroupID: "g2"},
			{ID: "g2", Name: "g2", ParentGroupID: "g1"},
		}},
	}
	for i, doc := range bad {
		if _, err := Import(dst, doc, ModeReplace); !core.IsValidation(err) {
			t.Errorf("document %d: expected validation error, got %v", i, err)
		}
	}

	// Every failed replace left the store exactly as it was.
	wps, _ := dst.ListWaypoints("")
	if len(wps) != 2 || len(dst.ListGroups()) != 2 {
		t.Error("failed replace modified the store")
	}
}

func TestReplaceGrouplessDocumentKeepsWaypoints(t *testing.T) {
	src := newSeededStore(t)
	doc := Export(src, false) // group_ids present, groups null

	dst := store.New()
	sum, err := Import(dst, doc, ModeReplace)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if sum.Waypoints != 2 || sum.Groups != 0 {
		t.Fatalf("summary wrong: %+v", sum)
	}
	// The three dangling edges are counted, never silently dropped.
	if sum.Errors() != 3 {
		t.Errorf("expected 3 unresolved edges, got %d: %+v", sum.Errors(), sum.Issues)
	}
	for _, is := range sum.Issues {
		if is.Reason != "unresolved_edge" {
			t.Errorf("unexpected issue: %+v", is)
		}
	}
	if dst.Stats().Memberships != 0 {
		t.Error("edges installed despite missing groups")
	}
}

func TestMergeKeepsExistingAndCounts(t *testing.T) {
	dst := newSeededStore(t)
	liveWps, _ := dst.ListWaypoints("")
	liveGroups := dst.ListGroups()

	doc := Document{
		Waypoints: []WaypointRecord{
			// Collides with a live id: skipped.
			{ID: liveWps[0].ID, Name: "intruder", Type: "point_of_interest", Position: []float64{0, 0, 0}},
			// Fresh, carries one resolvable and one dangling edge.
			{ID: "doc_wp", Name: "new arrival", Type: "audio_source", Position: []float64{7, 7, 7},
				GroupIDs: []string{"doc_grp", "doc_gone"}},
			// Malformed: excluded up front.
			{ID: "doc_bad", Type: "point_of_interest", Position: []float64{1}},
		},
		Groups: []GroupRecord{
			{ID: liveGroups[0].ID, Name: "intruder group"},
			{ID: "doc_grp", Name: "fresh group"},
			// Parent cycle: both dropped.
			{ID: "doc_c1", Name: "c1", ParentGroupID: "doc_c2"},
			{ID: "doc_c2", Name: "c2", ParentGroupID: "doc_c1"},
		},
	}

	sum, err := Import(dst, doc, ModeMerge)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if sum.Waypoints != 1 || sum.Groups != 1 {
		t.Fatalf("expected 1/1 created, got %d/%d", sum.Waypoints, sum.Groups)
	}

	// Issues: live wp duplicate, malformed wp, live group duplicate, two
	// cyclic groups, one dangling edge.
	if sum.Errors() != 6 {
		t.Fatalf("expected 6 issues, got %d: %+v", sum.Errors(), sum.Issues)
	}
	reasons := map[string]int{}
	for _, is := range sum.Issues {
		reasons[is.Reason]++
	}
	if reasons["duplicate"] != 2 || reasons["invalid"] != 1 || reasons["cyclic_parent"] != 2 || reasons["unresolved_edge"] != 1 {
		t.Errorf("issue breakdown wrong: %v", reasons)
	}

	// Existing entities untouched, document ids not live.
	got, err := dst.GetWaypoint(liveWps[0].ID)
	if err != nil || got.Name != liveWps[0].Name {
		t.Error("merge mutated a live waypoint")
	}
	if _, err := dst.GetWaypoint("doc_wp"); !core.IsNotFound(err) {
		t.Error("merge installed a document id verbatim")
	}

	// The fresh waypoint exists under a new id with its edge translated.
	wps, _ := dst.ListWaypoints("audio_source")
	if len(wps) != 1 || wps[0].Name != "new arrival" {
		t.Fatalf("merged waypoint missing: %v", wps)
	}
	groups, err := dst.GroupsOfWaypoint(wps[0].ID)
	if err != nil || len(groups) != 1 || groups[0].Name != "fresh group" {
		t.Errorf("translated membership wrong: %v (%v)", groups, err)
	}
}

func TestMergeBackfillsTimestamps(t *testing.T) {
	dst := store.New()
	doc := Document{
		Waypoints: []WaypointRecord{{ID: "w", Name: "w", Type: "point_of_interest", Position: []float64{1, 2, 3}}},
		Groups:    []GroupRecord{{ID: "g", Name: "g"}},
	}

	if _, err := Import(dst, doc, ModeMerge); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	wps, _ := dst.ListWaypoints("")
	if len(wps) != 1 || wps[0].CreatedAt.IsZero() {
		t.Error("waypoint created_at not backfilled")
	}
	gs := dst.ListGroups()
	if len(gs) != 1 || gs[0].CreatedAt.IsZero() {
		t.Error("group created_at not backfilled")
	}
	if gs[0].Color != core.DefaultGroupColor {
		t.Errorf("group color not defaulted: %s", gs[0].Color)
	}
	if time.Since(wps[0].CreatedAt) > time.Minute {
		t.Error("backfilled timestamp not current")
	}
}
