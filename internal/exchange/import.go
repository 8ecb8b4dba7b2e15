// internal/exchange/import.go
package exchange

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/waymark3d/waymark/internal/store"
	"github.com/waymark3d/waymark/pkg/core"
)

const opImport = "import_waypoints"

// Mode selects how an imported document meets existing store contents.
type Mode string

const (
	// ModeReplace validates the whole document first, then clears the
	// store and installs the document verbatim, original ids preserved.
	ModeReplace Mode = "replace"
	// ModeMerge adds document records under fresh ids, skipping records
	// whose document id is already live and counting every skip.
	ModeMerge Mode = "merge"
)

// ParseMode resolves the wire merge_mode value; empty means replace.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", string(ModeReplace):
		return ModeReplace, nil
	case string(ModeMerge):
		return ModeMerge, nil
	default:
		return "", core.NewValidation(opImport, "merge_mode", "unknown merge mode %q", s)
	}
}

// Parse decodes a document from JSON bytes.
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, core.NewValidation(opImport, "document", "malformed document: %v", err)
	}
	return doc, nil
}

// Read decodes a document from r.
func Read(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, core.NewValidation(opImport, "document", "malformed document: %v", err)
	}
	return doc, nil
}

// ReadFile decodes a document from a JSON file. Files with a .gz suffix
// are transparently decompressed, matching WriteGzipFile output.
func ReadFile(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return Document{}, fmt.Errorf("open gzip %s: %w", path, err)
		}
		defer gz.Close()
		return Read(gz)
	}
	return Read(f)
}

// Summary reports an import: entities installed plus per-record issues.
type Summary struct {
	Waypoints int
	Groups    int
	Issues    []store.ImportIssue
}

// Errors is the issue count the wire layer reports.
func (s Summary) Errors() int {
	return len(s.Issues)
}

// Import reconciles the document against the store under the given mode.
// Replace is all-or-nothing: a malformed record fails the call before the
// store is touched. Merge never fails on record content; every rejected
// record or edge comes back as an issue instead.
func Import(st *store.Store, doc Document, mode Mode) (Summary, error) {
	if mode == ModeMerge {
		return importMerge(st, doc), nil
	}
	return importReplace(st, doc)
}

func importReplace(st *store.Store, doc Document) (Summary, error) {
	ws, gs, edges, issues, err := validateReplace(doc)
	if err != nil {
		return Summary{}, err
	}
	nw, ng := st.ImportReplace(ws, gs, edges)
	return Summary{Waypoints: nw, Groups: ng, Issues: issues}, nil
}

func importMerge(st *store.Store, doc Document) Summary {
	ws, gs, edges, issues := sanitizeMerge(doc)
	out := st.ImportMerge(ws, gs, edges)
	return Summary{
		Waypoints: out.WaypointsCreated,
		Groups:    out.GroupsCreated,
		Issues:    append(issues, out.Issues...),
	}
}

// validateReplace checks the whole document before anything is touched.
// Any malformed record aborts the import; the one tolerated defect is a
// membership edge whose group is not in the document (a groupless export
// still carries group_ids), which is skipped and counted.
func validateReplace(doc Document) ([]core.Waypoint, []core.Group, []store.MembershipEdge, []store.ImportIssue, error) {
	seen := make(map[string]bool)

	gs := make([]core.Group, 0, len(doc.Groups))
	groupIDs := make(map[string]bool, len(doc.Groups))
	parents := make(map[string]string)
	for i, r := range doc.Groups {
		field := "groups[" + strconv.Itoa(i) + "]"
		if r.ID == "" {
			return nil, nil, nil, nil, core.NewValidation(opImport, field, "id is required")
		}
		if seen[r.ID] {
			return nil, nil, nil, nil, core.NewValidation(opImport, field, "duplicate id %q", r.ID)
		}
		if r.Name == "" {
			return nil, nil, nil, nil, core.NewValidation(opImport, field, "name is required")
		}
		seen[r.ID] = true
		groupIDs[r.ID] = true
		if r.ParentGroupID != "" {
			parents[r.ID] = r.ParentGroupID
		}
		gs = append(gs, r.group())
	}
	for id, parent := range parents {
		if !groupIDs[parent] {
			return nil, nil, nil, nil, core.NewValidation(opImport, "groups", "group %q references parent %q not in document", id, parent)
		}
	}
	if id, ok := findCycle(parents); ok {
		return nil, nil, nil, nil, core.NewValidation(opImport, "groups", "group %q sits on a parent cycle", id)
	}

	ws := make([]core.Waypoint, 0, len(doc.Waypoints))
	var edges []store.MembershipEdge
	var issues []store.ImportIssue
	for i, r := range doc.Waypoints {
		field := "waypoints[" + strconv.Itoa(i) + "]"
		if r.ID == "" {
			return nil, nil, nil, nil, core.NewValidation(opImport, field, "id is required")
		}
		if seen[r.ID] {
			return nil, nil, nil, nil, core.NewValidation(opImport, field, "duplicate id %q", r.ID)
		}
		seen[r.ID] = true
		w, err := r.waypoint()
		if err != nil {
			return nil, nil, nil, nil, core.NewValidation(opImport, field, "%v", err)
		}
		ws = append(ws, w)
		for _, gid := range r.GroupIDs {
			if !groupIDs[gid] {
				issues = append(issues, store.ImportIssue{Entity: "membership", ID: r.ID + "->" + gid, Reason: "unresolved_edge"})
				continue
			}
			edges = append(edges, store.MembershipEdge{WaypointID: r.ID, GroupID: gid})
		}
	}
	return ws, gs, edges, issues, nil
}

// sanitizeMerge drops malformed records one by one, counting each; the
// store layer then handles live-id collisions and reference translation.
// Edges are passed through untrimmed so that every edge of a rejected
// record still surfaces downstream as an unresolved_edge issue.
func sanitizeMerge(doc Document) ([]core.Waypoint, []core.Group, []store.MembershipEdge, []store.ImportIssue) {
	var issues []store.ImportIssue
	seen := make(map[string]bool)

	gs := make([]core.Group, 0, len(doc.Groups))
	parents := make(map[string]string)
	for _, r := range doc.Groups {
		if r.ID == "" || r.Name == "" {
			issues = append(issues, store.ImportIssue{Entity: "group", ID: r.ID, Reason: "invalid"})
			continue
		}
		if seen[r.ID] {
			issues = append(issues, store.ImportIssue{Entity: "group", ID: r.ID, Reason: "duplicate"})
			continue
		}
		seen[r.ID] = true
		if r.ParentGroupID != "" {
			parents[r.ID] = r.ParentGroupID
		}
		gs = append(gs, r.group())
	}

	// Groups on a parent cycle can never resolve; dropping them here makes
	// their surviving children surface as unresolved_parent downstream.
	if cyclic := cyclicMembers(parents); len(cyclic) > 0 {
		kept := gs[:0]
		for _, g := range gs {
			if cyclic[g.ID] {
				issues = append(issues, store.ImportIssue{Entity: "group", ID: g.ID, Reason: "cyclic_parent"})
				continue
			}
			kept = append(kept, g)
		}
		gs = kept
	}

	ws := make([]core.Waypoint, 0, len(doc.Waypoints))
	var edges []store.MembershipEdge
	for _, r := range doc.Waypoints {
		for _, gid := range r.GroupIDs {
			edges = append(edges, store.MembershipEdge{WaypointID: r.ID, GroupID: gid})
		}
		if r.ID == "" {
			issues = append(issues, store.ImportIssue{Entity: "waypoint", ID: r.ID, Reason: "invalid"})
			continue
		}
		if seen[r.ID] {
			issues = append(issues, store.ImportIssue{Entity: "waypoint", ID: r.ID, Reason: "duplicate"})
			continue
		}
		w, err := r.waypoint()
		if err != nil {
			issues = append(issues, store.ImportIssue{Entity: "waypoint", ID: r.ID, Reason: "invalid"})
			continue
		}
		seen[r.ID] = true
		ws = append(ws, w)
	}
	return ws, gs, edges, issues
}

// cyclicMembers returns the ids sitting on a parent cycle. parents maps
// child id to parent id; ids without an entry terminate a chain.
func cyclicMembers(parents map[string]string) map[string]bool {
	cyclic := make(map[string]bool)
	done := make(map[string]bool)
	for start := range parents {
		if done[start] {
			continue
		}
		var path []string
		pos := make(map[string]int)
		cur := start
		for {
			if done[cur] || cyclic[cur] {
				break
			}
			if at, ok := pos[cur]; ok {
				for _, id := range path[at:] {
					cyclic[id] = true
				}
				break
			}
			pos[cur] = len(path)
			path = append(path, cur)
			next, ok := parents[cur]
			if !ok {
				break
			}
			cur = next
		}
		for _, id := range path {
			done[id] = true
		}
	}
	return cyclic
}

// findCycle reports one group on a parent cycle, if any exists.
func findCycle(parents map[string]string) (string, bool) {
	for id := range cyclicMembers(parents) {
		return id, true
	}
	return "", false
}
