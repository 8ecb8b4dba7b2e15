// internal/store/store.go
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/waymark3d/waymark/internal/ident"
	"github.com/waymark3d/waymark/pkg/core"
)

// Store is the annotation engine facade. All public methods are safe for
// concurrent use; a single RWMutex serializes access to the underlying
// waypoint table, group tree, membership index and visibility state.
type Store struct {
	mu    sync.RWMutex
	table *Table
	tree  *Tree
	index *Index
	vis   *Visibility

	// usedIDs records every identifier ever accepted into the store,
	// including ids of records that were later removed or cleared. It is
	// never reset, so an id is never handed out twice in one process.
	usedIDs map[string]bool

	newWaypointID func() string
	newGroupID    func() string
	clock         func() time.Time

	lmu       sync.RWMutex
	listeners []Listener
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithIDGenerators overrides the waypoint and group id generators.
func WithIDGenerators(waypoint, group func() string) Option {
	return func(s *Store) {
		s.newWaypointID = waypoint
		s.newGroupID = group
	}
}

// WithClock overrides the time source used for created_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.clock = now
	}
}

// WithListener registers an event listener at construction time.
func WithListener(l Listener) Option {
	return func(s *Store) {
		s.listeners = append(s.listeners, l)
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		table:         NewTable(),
		tree:          NewTree(),
		index:         NewIndex(),
		vis:           NewVisibility(),
		usedIDs:       make(map[string]bool),
		newWaypointID: ident.NewWaypointID,
		newGroupID:    ident.NewGroupID,
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddListener registers an event listener after construction.
func (s *Store) AddListener(l Listener) {
	s.lmu.Lock()
	s.listeners = append(s.listeners, l)
	s.lmu.Unlock()
}

func (s *Store) emit(ev Event) {
	s.lmu.RLock()
	ls := s.listeners
	s.lmu.RUnlock()
	for _, l := range ls {
		l(ev)
	}
}

// nextID draws fresh ids from gen until one is found that has never been
// used in this store, then reserves it.
func (s *Store) nextID(gen func() string) string {
	for {
		id := gen()
		if !s.usedIDs[id] {
			s.usedIDs[id] = true
			return id
		}
	}
}

// CreateWaypointRequest carries the caller-supplied fields for a new
// waypoint. Position is required; everything else is optional.
type CreateWaypointRequest struct {
	Position []float64
	Type     string
	Name     string
	Target   []float64
	Metadata map[string]any
}

// CreateWaypoint validates the request, assigns a fresh id and stores the
// waypoint.
func (s *Store) CreateWaypoint(req CreateWaypointRequest) (core.Waypoint, error) {
	const op = "create_waypoint"

	pos, err := core.PositionFromSlice(req.Position)
	if err != nil {
		return core.Waypoint{}, core.NewValidation(op, "position", "%v", err)
	}
	wt, err := core.ParseWaypointType(req.Type)
	if err != nil {
		return core.Waypoint{}, core.NewValidation(op, "waypoint_type", "%v", err)
	}
	var target core.Position3D
	if req.Target != nil {
		target, err = core.PositionFromSlice(req.Target)
		if err != nil {
			return core.Waypoint{}, core.NewValidation(op, "target", "%v", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID(s.newWaypointID)
	name := req.Name
	if name == "" {
		name = core.DefaultName(wt, id)
	}
	w := core.Waypoint{
		ID:        id,
		Name:      name,
		Type:      wt,
		Position:  pos,
		Target:    target,
		Metadata:  req.Metadata,
		CreatedAt: s.clock(),
	}
	s.table.Insert(w)

	out := w.Clone()
	s.emit(Event{Kind: EventWaypointCreated, Time: out.CreatedAt, Waypoint: &out})
	return out, nil
}

// GetWaypoint returns a copy of the waypoint with the given id.
func (s *Store) GetWaypoint(id string) (core.Waypoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.table.Get(id)
	if !ok {
		return core.Waypoint{}, core.NewNotFound("get_waypoint", "waypoint", id)
	}
	return w, nil
}

// ListWaypoints returns all waypoints in creation order. A non-empty
// typeFilter restricts the result to that waypoint type.
func (s *Store) ListWaypoints(typeFilter string) ([]core.Waypoint, error) {
	var filter core.WaypointType
	if typeFilter != "" {
		filter = core.WaypointType(typeFilter)
		if !filter.Valid() {
			return nil, core.NewValidation("list_waypoints", "waypoint_type", "unknown waypoint type %q", typeFilter)
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.List(filter), nil
}

// UpdateWaypointRequest carries the mutable waypoint fields. Nil fields are
// left unchanged; a non-nil Metadata replaces the stored map wholesale.
type UpdateWaypointRequest struct {
	Position []float64
	Target   []float64
	Name     *string
	Metadata map[string]any
}

// UpdateWaypoint applies the non-nil fields of req to the waypoint and
// returns the updated record.
func (s *Store) UpdateWaypoint(id string, req UpdateWaypointRequest) (core.Waypoint, error) {
	const op = "update_waypoint"

	var upd WaypointUpdate
	if req.Position != nil {
		pos, err := core.PositionFromSlice(req.Position)
		if err != nil {
			return core.Waypoint{}, core.NewValidation(op, "position", "%v", err)
		}
		upd.Position = &pos
	}
	if req.Target != nil {
		tgt, err := core.PositionFromSlice(req.Target)
		if err != nil {
			return core.Waypoint{}, core.NewValidation(op, "target", "%v", err)
		}
		upd.Target = &tgt
	}
	upd.Name = req.Name
	upd.Metadata = req.Metadata

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.table.Update(id, upd)
	if !ok {
		return core.Waypoint{}, core.NewNotFound(op, "waypoint", id)
	}
	s.emit(Event{Kind: EventWaypointUpdated, Time: s.clock(), Waypoint: &w})
	return w, nil
}

// RemoveWaypoint deletes the waypoint, its membership edges and any
// visibility override it carried.
func (s *Store) RemoveWaypoint(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.table.Get(id)
	if !ok {
		return core.NewNotFound("remove_waypoint", "waypoint", id)
	}
	s.table.Remove(id)
	s.index.PruneWaypoint(id)
	s.vis.Forget(id)

	s.emit(Event{Kind: EventWaypointRemoved, Time: s.clock(), Waypoint: &w, WaypointID: id})
	return nil
}

// ClearAllWaypoints removes every waypoint along with all membership edges
// and visibility overrides. Groups are left in place. The caller must pass
// confirm=true; the count of removed waypoints is returned.
func (s *Store) ClearAllWaypoints(confirm bool) (int, error) {
	if !confirm {
		return 0, core.NewConfirmationRequired("clear_all_waypoints")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.table.Clear()
	s.index.Clear()
	s.vis.Reset()

	s.emit(Event{Kind: EventWaypointsCleared, Time: s.clock(), Count: n})
	return n, nil
}

// CreateGroupRequest carries the caller-supplied fields for a new group.
// Name is required; Color defaults to core.DefaultGroupColor.
type CreateGroupRequest struct {
	Name          string
	Description   string
	Color         string
	ParentGroupID string
}

// CreateGroup validates the request, assigns a fresh id and stores the
// group under its parent (or as a root when ParentGroupID is empty).
func (s *Store) CreateGroup(req CreateGroupRequest) (core.Group, error) {
	const op = "create_group"

	if req.Name == "" {
		return core.Group{}, core.NewValidation(op, "name", "name is required")
	}
	color := req.Color
	if color == "" {
		color = core.DefaultGroupColor
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ParentGroupID != "" && !s.tree.Has(req.ParentGroupID) {
		return core.Group{}, core.NewNotFound(op, "parent group", req.ParentGroupID)
	}

	g := core.Group{
		ID:            s.nextID(s.newGroupID),
		Name:          req.Name,
		Description:   req.Description,
		Color:         color,
		ParentGroupID: req.ParentGroupID,
		CreatedAt:     s.clock(),
	}
	s.tree.Insert(g)

	s.emit(Event{Kind: EventGroupCreated, Time: g.CreatedAt, Group: &g})
	return g, nil
}

// GetGroup returns a copy of the group with the given id.
func (s *Store) GetGroup(id string) (core.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.tree.Get(id)
	if !ok {
		return core.Group{}, core.NewNotFound("get_group", "group", id)
	}
	return g, nil
}

// ListGroups returns every group in creation order.
func (s *Store) ListGroups() []core.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.List()
}

// ListRootGroups returns the groups that have no parent, in creation order.
func (s *Store) ListRootGroups() []core.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Roots()
}

// ListChildGroups returns the direct children of the given group, in
// creation order.
func (s *Store) ListChildGroups(parentID string) ([]core.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.tree.Has(parentID) {
		return nil, core.NewNotFound("list_groups", "group", parentID)
	}
	return s.tree.ChildrenOf(parentID), nil
}

// RemoveGroup deletes a group and prunes its membership edges. A group with
// children is only removed when cascade is set, in which case the whole
// subtree goes with it. Waypoints are never deleted by group removal.
func (s *Store) RemoveGroup(id string, cascade bool) error {
	const op = "remove_group"

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.tree.Has(id) {
		return core.NewNotFound(op, "group", id)
	}
	if s.tree.HasChildren(id) && !cascade {
		return core.NewConflict(op, id, "group has child groups; pass cascade to remove the subtree")
	}

	var removed []string
	if cascade {
		removed = s.tree.RemoveSubtree(id)
	} else {
		s.tree.Remove(id)
		removed = []string{id}
	}
	for _, rid := range removed {
		s.index.PruneGroup(rid)
	}

	s.emit(Event{Kind: EventGroupRemoved, Time: s.clock(), IDs: removed})
	return nil
}

// Hierarchy returns the group forest as nested nodes plus the total group
// count.
func (s *Store) Hierarchy() ([]*core.GroupNode, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Hierarchy(), s.tree.Len()
}

// MembershipResult reports the per-group outcome of a bulk membership
// change. Applied lists the group ids now in the requested end state,
// Missing the requested ids that do not exist. Partial application is a
// normal outcome, not an error.
type MembershipResult struct {
	Applied []string
	Missing []string
}

// AddWaypointToGroups links the waypoint into each of the given groups.
// Adding an existing membership is a no-op counted as applied.
func (s *Store) AddWaypointToGroups(waypointID string, groupIDs []string) (MembershipResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.table.Has(waypointID) {
		return MembershipResult{}, core.NewNotFound("add_waypoint_to_groups", "waypoint", waypointID)
	}

	var res MembershipResult
	for _, gid := range groupIDs {
		if !s.tree.Has(gid) {
			res.Missing = append(res.Missing, gid)
			continue
		}
		s.index.Link(waypointID, gid)
		res.Applied = append(res.Applied, gid)
	}

	if len(res.Applied) > 0 {
		s.emit(Event{Kind: EventMembershipAdded, Time: s.clock(), WaypointID: waypointID, IDs: res.Applied})
	}
	return res, nil
}

// RemoveWaypointFromGroups unlinks the waypoint from each of the given
// groups. Removing an absent membership is a no-op counted as applied.
func (s *Store) RemoveWaypointFromGroups(waypointID string, groupIDs []string) (MembershipResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.table.Has(waypointID) {
		return MembershipResult{}, core.NewNotFound("remove_waypoint_from_groups", "waypoint", waypointID)
	}

	var res MembershipResult
	for _, gid := range groupIDs {
		if !s.tree.Has(gid) {
			res.Missing = append(res.Missing, gid)
			continue
		}
		s.index.Unlink(waypointID, gid)
		res.Applied = append(res.Applied, gid)
	}

	if len(res.Applied) > 0 {
		s.emit(Event{Kind: EventMembershipRemoved, Time: s.clock(), WaypointID: waypointID, IDs: res.Applied})
	}
	return res, nil
}

// GroupsOfWaypoint returns the groups the waypoint is a direct member of,
// ordered by group id.
func (s *Store) GroupsOfWaypoint(waypointID string) ([]core.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.table.Has(waypointID) {
		return nil, core.NewNotFound("groups_of_waypoint", "waypoint", waypointID)
	}

	ids := s.index.GroupsOf(waypointID)
	groups := make([]core.Group, 0, len(ids))
	for _, gid := range ids {
		if g, ok := s.tree.Get(gid); ok {
			groups = append(groups, g)
		}
	}
	return groups, nil
}

// WaypointsOfGroup returns the members of the group in waypoint creation
// order. With includeNested set, members of every descendant group are
// folded in as well, each waypoint listed once.
func (s *Store) WaypointsOfGroup(groupID string, includeNested bool) ([]core.Waypoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.tree.Has(groupID) {
		return nil, core.NewNotFound("waypoints_of_group", "group", groupID)
	}

	member := make(map[string]bool)
	for _, wid := range s.index.WaypointsOf(groupID) {
		member[wid] = true
	}
	if includeNested {
		for _, did := range s.tree.Descendants(groupID) {
			for _, wid := range s.index.WaypointsOf(did) {
				member[wid] = true
			}
		}
	}

	out := make([]core.Waypoint, 0, len(member))
	for _, w := range s.table.List("") {
		if member[w.ID] {
			out = append(out, w)
		}
	}
	return out, nil
}

// SetAllVisible switches the store to all-visible or all-hidden mode,
// dropping any per-waypoint overrides and selective allowlist.
func (s *Store) SetAllVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vis.SetAll(visible)
	v := visible
	s.emit(Event{Kind: EventVisibilityChanged, Time: s.clock(), Mode: s.vis.Mode(), Visible: &v})
}

// SetWaypointVisible records a per-waypoint override on top of the current
// mode. The override is dropped the next time the mode changes.
func (s *Store) SetWaypointVisible(id string, visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.table.Has(id) {
		return core.NewNotFound("set_individual", "waypoint", id)
	}
	s.vis.SetOne(id, visible)

	v := visible
	s.emit(Event{Kind: EventVisibilityChanged, Time: s.clock(), Mode: s.vis.Mode(), WaypointID: id, Visible: &v})
	return nil
}

// SetSelectiveVisibility switches to selective mode where exactly the given
// waypoints are visible. Every id must name an existing waypoint.
func (s *Store) SetSelectiveVisibility(ids []string) error {
	const op = "set_selective"

	if len(ids) == 0 {
		return core.NewValidation(op, "waypoint_ids", "at least one waypoint id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if !s.table.Has(id) {
			return core.NewNotFound(op, "waypoint", id)
		}
	}
	s.vis.SetSelective(ids)

	allow := make([]string, len(ids))
	copy(allow, ids)
	s.emit(Event{Kind: EventVisibilityChanged, Time: s.clock(), Mode: core.VisibilitySelective, IDs: allow})
	return nil
}

// IsVisible reports whether the waypoint is currently visible under the
// active mode and overrides.
func (s *Store) IsVisible(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.table.Has(id) {
		return false, core.NewNotFound("get_visibility", "waypoint", id)
	}
	return s.vis.IsVisible(id), nil
}

// VisibilityMode returns the active visibility mode.
func (s *Store) VisibilityMode() core.VisibilityMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vis.Mode()
}

// GotoWaypoint resolves the waypoint and announces it to listeners so a
// connected viewer can jump to it. Store state is not modified.
func (s *Store) GotoWaypoint(id string) (core.Waypoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.table.Get(id)
	if !ok {
		return core.Waypoint{}, core.NewNotFound("goto_waypoint", "waypoint", id)
	}
	s.emit(Event{Kind: EventGotoWaypoint, Time: s.clock(), Waypoint: &w})
	return w, nil
}

// Stats is a point-in-time summary of store contents.
type Stats struct {
	Waypoints   int
	Groups      int
	Memberships int
	Visibility  core.VisibilityMode
}

// Stats returns current entity counts and the visibility mode.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Waypoints:   s.table.Len(),
		Groups:      s.tree.Len(),
		Memberships: s.index.Len(),
		Visibility:  s.vis.Mode(),
	}
}

// Snapshot is a consistent copy of all store contents, taken under one
// read lock. Memberships maps waypoint id to its sorted group ids; only
// waypoints with at least one membership appear.
type Snapshot struct {
	Waypoints   []core.Waypoint
	Groups      []core.Group
	Memberships map[string][]string
	TakenAt     time.Time
}

// Snapshot copies the full store state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Waypoints:   s.table.List(""),
		Groups:      s.tree.List(),
		Memberships: make(map[string][]string),
		TakenAt:     s.clock(),
	}
	for _, w := range snap.Waypoints {
		if ids := s.index.GroupsOf(w.ID); len(ids) > 0 {
			snap.Memberships[w.ID] = ids
		}
	}
	return snap
}

// MembershipEdge names one waypoint-group membership in a document.
type MembershipEdge struct {
	WaypointID string
	GroupID    string
}

// ImportReplace discards all current contents and installs the given
// records verbatim, preserving their ids and created_at stamps. The caller
// must have validated the input: ids unique, group parents acyclic and
// resolving within gs, edge endpoints resolving within ws and gs. Returns
// the numbers of waypoints and groups installed.
//
// Listeners observe the full transition: removal events for the prior
// contents, then creation and membership events for the new ones, then a
// final imported event.
func (s *Store) ImportReplace(ws []core.Waypoint, gs []core.Group, edges []MembershipEdge) (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleared := s.table.Len()
	priorGroups := s.tree.List()
	s.table.Clear()
	s.tree.Clear()
	s.index.Clear()
	s.vis.Reset()
	if cleared > 0 {
		s.emit(Event{Kind: EventWaypointsCleared, Time: s.clock(), Count: cleared})
	}
	if len(priorGroups) > 0 {
		ids := make([]string, len(priorGroups))
		for i, g := range priorGroups {
			ids[i] = g.ID
		}
		s.emit(Event{Kind: EventGroupRemoved, Time: s.clock(), IDs: ids})
	}

	for _, g := range sortGroupsParentsFirst(gs) {
		if g.CreatedAt.IsZero() {
			g.CreatedAt = s.clock()
		}
		s.usedIDs[g.ID] = true
		s.tree.Insert(g)
		cg := g
		s.emit(Event{Kind: EventGroupCreated, Time: cg.CreatedAt, Group: &cg})
	}
	for _, w := range ws {
		if w.CreatedAt.IsZero() {
			w.CreatedAt = s.clock()
		}
		s.usedIDs[w.ID] = true
		s.table.Insert(w)
		cw := w.Clone()
		s.emit(Event{Kind: EventWaypointCreated, Time: cw.CreatedAt, Waypoint: &cw})
	}
	s.linkAndEmit(edges)

	s.emit(Event{Kind: EventImported, Time: s.clock(), Count: len(ws)})
	return len(ws), len(gs)
}

// linkAndEmit installs membership edges and emits one membership event per
// waypoint, keeping the edges' input order.
func (s *Store) linkAndEmit(edges []MembershipEdge) {
	linked := make(map[string][]string)
	var order []string
	for _, e := range edges {
		s.index.Link(e.WaypointID, e.GroupID)
		if len(linked[e.WaypointID]) == 0 {
			order = append(order, e.WaypointID)
		}
		linked[e.WaypointID] = append(linked[e.WaypointID], e.GroupID)
	}
	for _, wid := range order {
		s.emit(Event{Kind: EventMembershipAdded, Time: s.clock(), WaypointID: wid, IDs: linked[wid]})
	}
}

// ImportIssue records one entity or edge a merge import could not take.
type ImportIssue struct {
	Entity string // "waypoint", "group" or "membership"
	ID     string
	Reason string // short token, e.g. "duplicate" or "unresolved_edge"
}

// MergeOutcome summarizes a merge import.
type MergeOutcome struct {
	WaypointsCreated int
	GroupsCreated    int
	Issues           []ImportIssue
}

// ImportMerge adds the given records alongside current contents. Every
// accepted record gets a fresh id; parent and edge references are rewritten
// through the old-to-new translation, which only ever maps ids found in the
// input. A record whose input id collides with a live store id is skipped,
// as is any reference to a skipped or unknown record, each reported as an
// issue.
func (s *Store) ImportMerge(ws []core.Waypoint, gs []core.Group, edges []MembershipEdge) MergeOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out MergeOutcome
	translate := make(map[string]string)

	for _, g := range sortGroupsParentsFirst(gs) {
		if s.tree.Has(g.ID) {
			out.Issues = append(out.Issues, ImportIssue{Entity: "group", ID: g.ID, Reason: "duplicate"})
			continue
		}
		parent := ""
		if g.ParentGroupID != "" {
			np, ok := translate[g.ParentGroupID]
			if !ok {
				out.Issues = append(out.Issues, ImportIssue{Entity: "group", ID: g.ID, Reason: "unresolved_parent"})
				continue
			}
			parent = np
		}
		ng := g
		ng.ID = s.nextID(s.newGroupID)
		ng.ParentGroupID = parent
		if ng.CreatedAt.IsZero() {
			ng.CreatedAt = s.clock()
		}
		s.tree.Insert(ng)
		translate[g.ID] = ng.ID
		out.GroupsCreated++
		s.emit(Event{Kind: EventGroupCreated, Time: s.clock(), Group: &ng})
	}

	for _, w := range ws {
		if s.table.Has(w.ID) {
			out.Issues = append(out.Issues, ImportIssue{Entity: "waypoint", ID: w.ID, Reason: "duplicate"})
			continue
		}
		nw := w.Clone()
		nw.ID = s.nextID(s.newWaypointID)
		if nw.CreatedAt.IsZero() {
			nw.CreatedAt = s.clock()
		}
		s.table.Insert(nw)
		translate[w.ID] = nw.ID
		out.WaypointsCreated++
		s.emit(Event{Kind: EventWaypointCreated, Time: s.clock(), Waypoint: &nw})
	}

	applied := make([]MembershipEdge, 0, len(edges))
	for _, e := range edges {
		wid, wok := translate[e.WaypointID]
		gid, gok := translate[e.GroupID]
		if !wok || !gok {
			out.Issues = append(out.Issues, ImportIssue{Entity: "membership", ID: e.WaypointID + "->" + e.GroupID, Reason: "unresolved_edge"})
			continue
		}
		applied = append(applied, MembershipEdge{WaypointID: wid, GroupID: gid})
	}
	s.linkAndEmit(applied)

	s.emit(Event{Kind: EventImported, Time: s.clock(), Count: out.WaypointsCreated})
	return out
}

// sortGroupsParentsFirst orders groups so every parent precedes its
// children, keeping the relative input order within each depth. Parents
// outside the slice count as depth zero; a parent cycle does not loop, it
// just stops contributing depth.
func sortGroupsParentsFirst(gs []core.Group) []core.Group {
	depth := make(map[string]int, len(gs))
	byID := make(map[string]core.Group, len(gs))
	for _, g := range gs {
		byID[g.ID] = g
	}
	var depthOf func(id string) int
	depthOf = func(id string) int {
		if d, ok := depth[id]; ok {
			return d
		}
		depth[id] = 0
		g := byID[id]
		d := 0
		if g.ParentGroupID != "" {
			if _, ok := byID[g.ParentGroupID]; ok {
				d = depthOf(g.ParentGroupID) + 1
			}
		}
		depth[id] = d
		return d
	}
	out := make([]core.Group, len(gs))
	copy(out, gs)
	sort.SliceStable(out, func(i, j int) bool {
		return depthOf(out[i].ID) < depthOf(out[j].ID)
	})
	return out
}
