// Package handlers implements the command surface of the annotation store.
// Each handler decodes its JSON params, calls into the store, and shapes a
// wire response. The request and response field names are the protocol
// contract shared with host applications.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/waymark3d/waymark/internal/dispatcher"
	"github.com/waymark3d/waymark/internal/exchange"
	"github.com/waymark3d/waymark/internal/logging"
	"github.com/waymark3d/waymark/internal/scene"
	"github.com/waymark3d/waymark/internal/store"
	"github.com/waymark3d/waymark/pkg/core"
)

// Command names accepted by the dispatcher.
const (
	OpCreateWaypoint   = "create_waypoint"
	OpGetWaypoint      = "get_waypoint"
	OpListWaypoints    = "list_waypoints"
	OpUpdateWaypoint   = "update_waypoint"
	OpRemoveWaypoint   = "remove_waypoint"
	OpClearAll         = "clear_all_waypoints"
	OpCreateGroup      = "create_group"
	OpGetGroup         = "get_group"
	OpListGroups       = "list_groups"
	OpRemoveGroup      = "remove_group"
	OpGroupHierarchy   = "group_hierarchy"
	OpAddToGroups      = "add_waypoint_to_groups"
	OpRemoveFromGroups = "remove_waypoint_from_groups"
	OpGroupsOfWaypoint = "groups_of_waypoint"
	OpWaypointsOfGroup = "waypoints_of_group"
	OpExport           = "export_waypoints"
	OpImport           = "import_waypoints"
	OpSetAllVisible    = "set_markers_visible"
	OpSetIndividual    = "set_individual"
	OpSetSelective     = "set_selective"
	OpGetVisibility    = "get_visibility"
	OpGotoWaypoint     = "goto_waypoint"
	OpSetScene         = "set_scene"
	OpStoreStats       = "store_stats"
	OpUploadSnapshot   = "upload_snapshot"
)

// Uploader ships an exported snapshot file to the annotation server.
type Uploader interface {
	UploadSnapshot(path string, meta core.UploadMetadata) error
}

// Dependencies holds everything the command handlers need.
type Dependencies struct {
	Store      *store.Store
	Scene      *scene.Context
	LogManager *logging.SlogManager

	// Uploader may be nil when no annotation server is configured.
	Uploader Uploader

	// QueueDepth reports the persistence backlog for store_stats. Nil
	// reads as zero.
	QueueDepth func() int

	// OnSceneChange runs after set_scene commits so the host can
	// re-announce the feed session. Nil is allowed.
	OnSceneChange func()

	ExportDir string
	Compress  bool
}

// Service provides the handler methods behind every command.
type Service struct {
	deps Dependencies
	log  *slog.Logger
}

// NewService creates a handler service around the given dependencies.
func NewService(deps Dependencies) *Service {
	s := &Service{deps: deps}
	if deps.LogManager != nil {
		s.log = deps.LogManager.Logger()
	} else {
		s.log = slog.Default()
	}
	return s
}

// Register wires every command onto the dispatcher. Destructive commands
// get debug/error logging around the handler.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	d.Register(OpCreateWaypoint, s.CreateWaypoint)
	d.Register(OpGetWaypoint, s.GetWaypoint)
	d.Register(OpListWaypoints, s.ListWaypoints)
	d.Register(OpUpdateWaypoint, s.UpdateWaypoint)
	d.Register(OpRemoveWaypoint, s.RemoveWaypoint)
	d.Register(OpClearAll, s.ClearAllWaypoints, dispatcher.Logged())
	d.Register(OpCreateGroup, s.CreateGroup)
	d.Register(OpGetGroup, s.GetGroup)
	d.Register(OpListGroups, s.ListGroups)
	d.Register(OpRemoveGroup, s.RemoveGroup, dispatcher.Logged())
	d.Register(OpGroupHierarchy, s.GroupHierarchy)
	d.Register(OpAddToGroups, s.AddWaypointToGroups)
	d.Register(OpRemoveFromGroups, s.RemoveWaypointFromGroups)
	d.Register(OpGroupsOfWaypoint, s.GroupsOfWaypoint)
	d.Register(OpWaypointsOfGroup, s.WaypointsOfGroup)
	d.Register(OpExport, s.ExportWaypoints)
	d.Register(OpImport, s.ImportWaypoints, dispatcher.Logged())
	d.Register(OpSetAllVisible, s.SetMarkersVisible)
	d.Register(OpSetIndividual, s.SetIndividual)
	d.Register(OpSetSelective, s.SetSelective)
	d.Register(OpGetVisibility, s.GetVisibility)
	d.Register(OpGotoWaypoint, s.GotoWaypoint)
	d.Register(OpSetScene, s.SetScene)
	d.Register(OpStoreStats, s.StoreStats)
	d.Register(OpUploadSnapshot, s.UploadSnapshot, dispatcher.Logged())
}

// decodeParams unmarshals the raw command params. Absent params decode as
// the zero value so commands with all-optional inputs work without a body.
func decodeParams(op string, raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return core.NewValidation(op, "params", "malformed params: %v", err)
	}
	return nil
}

// ErrorBody shapes a handler failure for the wire. Typed store failures
// keep their kind and offending field/id; anything else maps onto kind
// "internal".
func ErrorBody(err error) map[string]any {
	body := map[string]any{"ok": false}
	detail := map[string]any{}

	var se *core.Error
	if errors.As(err, &se) {
		detail["kind"] = string(se.Kind)
		if se.Op != "" {
			detail["op"] = se.Op
		}
		if se.Field != "" {
			detail["field"] = se.Field
		}
		if se.ID != "" {
			detail["id"] = se.ID
		}
		detail["message"] = se.Message
	} else {
		detail["kind"] = "internal"
		detail["message"] = err.Error()
	}

	body["error"] = detail
	return body
}

// waypointView is the wire shape of one waypoint.
type waypointView struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Type      string         `json:"waypoint_type"`
	Position  []float64      `json:"position"`
	Target    []float64      `json:"target"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func viewOfWaypoint(w core.Waypoint) waypointView {
	return waypointView{
		ID:        w.ID,
		Name:      w.Name,
		Type:      string(w.Type),
		Position:  w.Position.Array(),
		Target:    w.Target.Array(),
		Metadata:  w.Metadata,
		CreatedAt: w.CreatedAt,
	}
}

func viewOfWaypoints(ws []core.Waypoint) []waypointView {
	out := make([]waypointView, len(ws))
	for i, w := range ws {
		out[i] = viewOfWaypoint(w)
	}
	return out
}

// groupView is the wire shape of one group.
type groupView struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Color         string    `json:"color"`
	ParentGroupID string    `json:"parent_group_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func viewOfGroup(g core.Group) groupView {
	return groupView{
		ID:            g.ID,
		Name:          g.Name,
		Description:   g.Description,
		Color:         g.Color,
		ParentGroupID: g.ParentGroupID,
		CreatedAt:     g.CreatedAt,
	}
}

func viewOfGroups(gs []core.Group) []groupView {
	out := make([]groupView, len(gs))
	for i, g := range gs {
		out[i] = viewOfGroup(g)
	}
	return out
}

// hierarchyNode is one tree node of the group forest.
type hierarchyNode struct {
	groupView
	Children []*hierarchyNode `json:"children"`
}

func viewOfForest(nodes []*core.GroupNode) []*hierarchyNode {
	out := make([]*hierarchyNode, len(nodes))
	for i, n := range nodes {
		out[i] = &hierarchyNode{
			groupView: viewOfGroup(n.Group),
			Children:  viewOfForest(n.Children),
		}
	}
	return out
}

// issueView is the wire shape of one import issue.
type issueView struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

func viewOfIssues(issues []store.ImportIssue) []issueView {
	out := make([]issueView, len(issues))
	for i, is := range issues {
		out[i] = issueView{Entity: is.Entity, ID: is.ID, Reason: is.Reason}
	}
	return out
}

type createWaypointParams struct {
	Position []float64      `json:"position"`
	Type     string         `json:"waypoint_type"`
	Name     string         `json:"name"`
	Target   []float64      `json:"target"`
	Metadata map[string]any `json:"metadata"`
}

type createWaypointResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

// CreateWaypoint handles create_waypoint.
func (s *Service) CreateWaypoint(e dispatcher.Event) (any, error) {
	var p createWaypointParams
	if err := decodeParams(OpCreateWaypoint, e.Params, &p); err != nil {
		return nil, err
	}

	w, err := s.deps.Store.CreateWaypoint(store.CreateWaypointRequest{
		Position: p.Position,
		Type:     p.Type,
		Name:     p.Name,
		Target:   p.Target,
		Metadata: p.Metadata,
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("waypoint created", "id", w.ID, "type", string(w.Type))
	return createWaypointResponse{OK: true, ID: w.ID}, nil
}

type waypointIDParams struct {
	ID string `json:"id"`
}

type waypointResponse struct {
	OK       bool         `json:"ok"`
	Waypoint waypointView `json:"waypoint"`
}

// GetWaypoint handles get_waypoint.
func (s *Service) GetWaypoint(e dispatcher.Event) (any, error) {
	var p waypointIDParams
	if err := decodeParams(OpGetWaypoint, e.Params, &p); err != nil {
		return nil, err
	}

	w, err := s.deps.Store.GetWaypoint(p.ID)
	if err != nil {
		return nil, err
	}
	return waypointResponse{OK: true, Waypoint: viewOfWaypoint(w)}, nil
}

type listWaypointsParams struct {
	Type string `json:"waypoint_type"`
}

type waypointListResponse struct {
	OK        bool           `json:"ok"`
	Waypoints []waypointView `json:"waypoints"`
	Count     int            `json:"count"`
}

// ListWaypoints handles list_waypoints.
func (s *Service) ListWaypoints(e dispatcher.Event) (any, error) {
	var p listWaypointsParams
	if err := decodeParams(OpListWaypoints, e.Params, &p); err != nil {
		return nil, err
	}

	ws, err := s.deps.Store.ListWaypoints(p.Type)
	if err != nil {
		return nil, err
	}
	return waypointListResponse{OK: true, Waypoints: viewOfWaypoints(ws), Count: len(ws)}, nil
}

type updateWaypointParams struct {
	ID       string         `json:"id"`
	Position []float64      `json:"position"`
	Target   []float64      `json:"target"`
	Name     *string        `json:"name"`
	Metadata map[string]any `json:"metadata"`
}

// UpdateWaypoint handles update_waypoint.
func (s *Service) UpdateWaypoint(e dispatcher.Event) (any, error) {
	var p updateWaypointParams
	if err := decodeParams(OpUpdateWaypoint, e.Params, &p); err != nil {
		return nil, err
	}

	w, err := s.deps.Store.UpdateWaypoint(p.ID, store.UpdateWaypointRequest{
		Position: p.Position,
		Target:   p.Target,
		Name:     p.Name,
		Metadata: p.Metadata,
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("waypoint updated", "id", w.ID)
	return waypointResponse{OK: true, Waypoint: viewOfWaypoint(w)}, nil
}

type okResponse struct {
	OK bool `json:"ok"`
}

// RemoveWaypoint handles remove_waypoint.
func (s *Service) RemoveWaypoint(e dispatcher.Event) (any, error) {
	var p waypointIDParams
	if err := decodeParams(OpRemoveWaypoint, e.Params, &p); err != nil {
		return nil, err
	}

	if err := s.deps.Store.RemoveWaypoint(p.ID); err != nil {
		return nil, err
	}

	s.log.Debug("waypoint removed", "id", p.ID)
	return okResponse{OK: true}, nil
}

type clearAllParams struct {
	Confirm bool `json:"confirm"`
}

type clearAllResponse struct {
	OK           bool `json:"ok"`
	ClearedCount int  `json:"cleared_count"`
}

// ClearAllWaypoints handles clear_all_waypoints. The confirm flag is
// mandatory; without it the call fails instead of quietly doing nothing.
func (s *Service) ClearAllWaypoints(e dispatcher.Event) (any, error) {
	var p clearAllParams
	if err := decodeParams(OpClearAll, e.Params, &p); err != nil {
		return nil, err
	}

	n, err := s.deps.Store.ClearAllWaypoints(p.Confirm)
	if err != nil {
		return nil, err
	}

	s.log.Info("cleared all waypoints", "count", n)
	return clearAllResponse{OK: true, ClearedCount: n}, nil
}

type createGroupParams struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Color         string `json:"color"`
	ParentGroupID string `json:"parent_group_id"`
}

type createGroupResponse struct {
	OK      bool   `json:"ok"`
	GroupID string `json:"group_id"`
}

// CreateGroup handles create_group.
func (s *Service) CreateGroup(e dispatcher.Event) (any, error) {
	var p createGroupParams
	if err := decodeParams(OpCreateGroup, e.Params, &p); err != nil {
		return nil, err
	}

	g, err := s.deps.Store.CreateGroup(store.CreateGroupRequest{
		Name:          p.Name,
		Description:   p.Description,
		Color:         p.Color,
		ParentGroupID: p.ParentGroupID,
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("group created", "id", g.ID, "parent", g.ParentGroupID)
	return createGroupResponse{OK: true, GroupID: g.ID}, nil
}

type groupIDParams struct {
	GroupID string `json:"group_id"`
}

type groupResponse struct {
	OK    bool      `json:"ok"`
	Group groupView `json:"group"`
}

// GetGroup handles get_group.
func (s *Service) GetGroup(e dispatcher.Event) (any, error) {
	var p groupIDParams
	if err := decodeParams(OpGetGroup, e.Params, &p); err != nil {
		return nil, err
	}

	g, err := s.deps.Store.GetGroup(p.GroupID)
	if err != nil {
		return nil, err
	}
	return groupResponse{OK: true, Group: viewOfGroup(g)}, nil
}

// listGroupsParams keeps parent_group_id raw because the field is
// tri-state: absent lists all groups, JSON null lists roots only, and a
// concrete id lists that group's direct children.
type listGroupsParams struct {
	ParentGroupID json.RawMessage `json:"parent_group_id"`
}

type groupListResponse struct {
	OK     bool        `json:"ok"`
	Groups []groupView `json:"groups"`
	Count  int         `json:"count"`
}

// ListGroups handles list_groups.
func (s *Service) ListGroups(e dispatcher.Event) (any, error) {
	var p listGroupsParams
	if err := decodeParams(OpListGroups, e.Params, &p); err != nil {
		return nil, err
	}

	var gs []core.Group
	switch {
	case len(p.ParentGroupID) == 0:
		gs = s.deps.Store.ListGroups()
	case string(p.ParentGroupID) == "null":
		gs = s.deps.Store.ListRootGroups()
	default:
		var parentID string
		if err := json.Unmarshal(p.ParentGroupID, &parentID); err != nil {
			return nil, core.NewValidation(OpListGroups, "parent_group_id", "malformed parent_group_id: %v", err)
		}
		var err error
		gs, err = s.deps.Store.ListChildGroups(parentID)
		if err != nil {
			return nil, err
		}
	}

	return groupListResponse{OK: true, Groups: viewOfGroups(gs), Count: len(gs)}, nil
}

type removeGroupParams struct {
	GroupID string `json:"group_id"`
	Cascade bool   `json:"cascade"`
}

// RemoveGroup handles remove_group. Removing a group with children
// requires the explicit cascade flag.
func (s *Service) RemoveGroup(e dispatcher.Event) (any, error) {
	var p removeGroupParams
	if err := decodeParams(OpRemoveGroup, e.Params, &p); err != nil {
		return nil, err
	}

	if err := s.deps.Store.RemoveGroup(p.GroupID, p.Cascade); err != nil {
		return nil, err
	}

	s.log.Debug("group removed", "id", p.GroupID, "cascade", p.Cascade)
	return okResponse{OK: true}, nil
}

type hierarchyResponse struct {
	OK          bool             `json:"ok"`
	Forest      []*hierarchyNode `json:"forest"`
	TotalGroups int              `json:"total_groups"`
}

// GroupHierarchy handles group_hierarchy.
func (s *Service) GroupHierarchy(e dispatcher.Event) (any, error) {
	forest, total := s.deps.Store.Hierarchy()
	return hierarchyResponse{OK: true, Forest: viewOfForest(forest), TotalGroups: total}, nil
}

type membershipParams struct {
	WaypointID string   `json:"waypoint_id"`
	GroupIDs   []string `json:"group_ids"`
}

type addToGroupsResponse struct {
	OK         bool     `json:"ok"`
	AddedCount int      `json:"added_count"`
	Missing    []string `json:"missing_group_ids,omitempty"`
}

// AddWaypointToGroups handles add_waypoint_to_groups. Unknown group ids
// are reported alongside the applied count, not escalated to a failure.
func (s *Service) AddWaypointToGroups(e dispatcher.Event) (any, error) {
	var p membershipParams
	if err := decodeParams(OpAddToGroups, e.Params, &p); err != nil {
		return nil, err
	}

	res, err := s.deps.Store.AddWaypointToGroups(p.WaypointID, p.GroupIDs)
	if err != nil {
		return nil, err
	}

	s.log.Debug("memberships added", "waypoint", p.WaypointID, "added", len(res.Applied))
	return addToGroupsResponse{OK: true, AddedCount: len(res.Applied), Missing: res.Missing}, nil
}

type removeFromGroupsResponse struct {
	OK           bool     `json:"ok"`
	RemovedCount int      `json:"removed_count"`
	Missing      []string `json:"missing_group_ids,omitempty"`
}

// RemoveWaypointFromGroups handles remove_waypoint_from_groups.
func (s *Service) RemoveWaypointFromGroups(e dispatcher.Event) (any, error) {
	var p membershipParams
	if err := decodeParams(OpRemoveFromGroups, e.Params, &p); err != nil {
		return nil, err
	}

	res, err := s.deps.Store.RemoveWaypointFromGroups(p.WaypointID, p.GroupIDs)
	if err != nil {
		return nil, err
	}

	s.log.Debug("memberships removed", "waypoint", p.WaypointID, "removed", len(res.Applied))
	return removeFromGroupsResponse{OK: true, RemovedCount: len(res.Applied), Missing: res.Missing}, nil
}

type groupsOfWaypointParams struct {
	WaypointID string `json:"waypoint_id"`
}

// GroupsOfWaypoint handles groups_of_waypoint.
func (s *Service) GroupsOfWaypoint(e dispatcher.Event) (any, error) {
	var p groupsOfWaypointParams
	if err := decodeParams(OpGroupsOfWaypoint, e.Params, &p); err != nil {
		return nil, err
	}

	gs, err := s.deps.Store.GroupsOfWaypoint(p.WaypointID)
	if err != nil {
		return nil, err
	}
	return groupListResponse{OK: true, Groups: viewOfGroups(gs), Count: len(gs)}, nil
}

type waypointsOfGroupParams struct {
	GroupID       string `json:"group_id"`
	IncludeNested bool   `json:"include_nested"`
}

// WaypointsOfGroup handles waypoints_of_group.
func (s *Service) WaypointsOfGroup(e dispatcher.Event) (any, error) {
	var p waypointsOfGroupParams
	if err := decodeParams(OpWaypointsOfGroup, e.Params, &p); err != nil {
		return nil, err
	}

	ws, err := s.deps.Store.WaypointsOfGroup(p.GroupID, p.IncludeNested)
	if err != nil {
		return nil, err
	}
	return waypointListResponse{OK: true, Waypoints: viewOfWaypoints(ws), Count: len(ws)}, nil
}

type exportParams struct {
	IncludeGroups *bool `json:"include_groups"`
	ToFile        bool  `json:"to_file"`
}

type exportResponse struct {
	OK       bool              `json:"ok"`
	Document exchange.Document `json:"document"`
}

type exportFileResponse struct {
	OK            bool   `json:"ok"`
	Path          string `json:"path"`
	WaypointCount int    `json:"waypoint_count"`
	GroupCount    int    `json:"group_count"`
}

// ExportWaypoints handles export_waypoints. include_groups defaults to
// true. With to_file the document is written under the configured export
// directory instead of being returned inline.
func (s *Service) ExportWaypoints(e dispatcher.Event) (any, error) {
	var p exportParams
	if err := decodeParams(OpExport, e.Params, &p); err != nil {
		return nil, err
	}

	includeGroups := true
	if p.IncludeGroups != nil {
		includeGroups = *p.IncludeGroups
	}

	doc := exchange.Export(s.deps.Store, includeGroups)
	if !p.ToFile {
		return exportResponse{OK: true, Document: doc}, nil
	}

	path := exchange.ExportPath(s.deps.ExportDir, s.deps.Scene.Name(), doc.ExportedAt, s.deps.Compress)
	var err error
	if s.deps.Compress {
		err = exchange.WriteGzipFile(doc, path)
	} else {
		err = exchange.WriteFile(doc, path)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("exported waypoints to file", "path", path, "waypoints", len(doc.Waypoints))
	return exportFileResponse{
		OK:            true,
		Path:          path,
		WaypointCount: len(doc.Waypoints),
		GroupCount:    len(doc.Groups),
	}, nil
}

type importParams struct {
	Document  json.RawMessage `json:"document"`
	FromFile  string          `json:"from_file"`
	MergeMode string          `json:"merge_mode"`
}

type importResponse struct {
	OK                bool        `json:"ok"`
	ImportedWaypoints int         `json:"imported_waypoints"`
	ImportedGroups    int         `json:"imported_groups"`
	Errors            int         `json:"errors"`
	Issues            []issueView `json:"issues,omitempty"`
}

// ImportWaypoints handles import_waypoints. The document arrives inline or
// via from_file; merge_mode defaults to replace.
func (s *Service) ImportWaypoints(e dispatcher.Event) (any, error) {
	var p importParams
	if err := decodeParams(OpImport, e.Params, &p); err != nil {
		return nil, err
	}

	mode, err := exchange.ParseMode(p.MergeMode)
	if err != nil {
		return nil, err
	}

	var doc exchange.Document
	switch {
	case p.FromFile != "":
		doc, err = exchange.ReadFile(p.FromFile)
	case len(p.Document) > 0:
		doc, err = exchange.Parse(p.Document)
	default:
		return nil, core.NewValidation(OpImport, "document", "document or from_file is required")
	}
	if err != nil {
		return nil, err
	}

	summary, err := exchange.Import(s.deps.Store, doc, mode)
	if err != nil {
		return nil, err
	}

	s.log.Info("imported waypoints",
		"mode", string(mode),
		"waypoints", summary.Waypoints,
		"groups", summary.Groups,
		"errors", summary.Errors())
	return importResponse{
		OK:                true,
		ImportedWaypoints: summary.Waypoints,
		ImportedGroups:    summary.Groups,
		Errors:            summary.Errors(),
		Issues:            viewOfIssues(summary.Issues),
	}, nil
}

type setMarkersVisibleParams struct {
	Visible bool `json:"visible"`
}

// SetMarkersVisible handles set_markers_visible, the show-all / hide-all
// switch.
func (s *Service) SetMarkersVisible(e dispatcher.Event) (any, error) {
	var p setMarkersVisibleParams
	if err := decodeParams(OpSetAllVisible, e.Params, &p); err != nil {
		return nil, err
	}

	s.deps.Store.SetAllVisible(p.Visible)
	return okResponse{OK: true}, nil
}

type setIndividualParams struct {
	WaypointID string `json:"waypoint_id"`
	Visible    bool   `json:"visible"`
}

// SetIndividual handles set_individual, a per-waypoint visibility override.
func (s *Service) SetIndividual(e dispatcher.Event) (any, error) {
	var p setIndividualParams
	if err := decodeParams(OpSetIndividual, e.Params, &p); err != nil {
		return nil, err
	}

	if err := s.deps.Store.SetWaypointVisible(p.WaypointID, p.Visible); err != nil {
		return nil, err
	}
	return okResponse{OK: true}, nil
}

type setSelectiveParams struct {
	WaypointIDs []string `json:"waypoint_ids"`
}

// SetSelective handles set_selective: exactly the listed waypoints become
// visible.
func (s *Service) SetSelective(e dispatcher.Event) (any, error) {
	var p setSelectiveParams
	if err := decodeParams(OpSetSelective, e.Params, &p); err != nil {
		return nil, err
	}

	if err := s.deps.Store.SetSelectiveVisibility(p.WaypointIDs); err != nil {
		return nil, err
	}
	return okResponse{OK: true}, nil
}

type getVisibilityParams struct {
	WaypointID string `json:"waypoint_id"`
}

type visibilityResponse struct {
	OK      bool   `json:"ok"`
	Mode    string `json:"mode"`
	Visible *bool  `json:"visible,omitempty"`
}

// GetVisibility handles get_visibility. With a waypoint_id the response
// carries that waypoint's effective visibility alongside the mode.
func (s *Service) GetVisibility(e dispatcher.Event) (any, error) {
	var p getVisibilityParams
	if err := decodeParams(OpGetVisibility, e.Params, &p); err != nil {
		return nil, err
	}

	resp := visibilityResponse{OK: true, Mode: string(s.deps.Store.VisibilityMode())}
	if p.WaypointID != "" {
		visible, err := s.deps.Store.IsVisible(p.WaypointID)
		if err != nil {
			return nil, err
		}
		resp.Visible = &visible
	}
	return resp, nil
}

// GotoWaypoint handles goto_waypoint. The store validates the id and emits
// the camera event; motion itself happens in the visualization host.
func (s *Service) GotoWaypoint(e dispatcher.Event) (any, error) {
	var p waypointIDParams
	if err := decodeParams(OpGotoWaypoint, e.Params, &p); err != nil {
		return nil, err
	}

	w, err := s.deps.Store.GotoWaypoint(p.ID)
	if err != nil {
		return nil, err
	}
	return waypointResponse{OK: true, Waypoint: viewOfWaypoint(w)}, nil
}

type setSceneParams struct {
	Scene  string `json:"scene"`
	Source string `json:"source"`
}

type setSceneResponse struct {
	OK    bool   `json:"ok"`
	Scene string `json:"scene"`
}

// SetScene handles set_scene, switching the scene label stamped onto logs,
// metrics, and uploads.
func (s *Service) SetScene(e dispatcher.Event) (any, error) {
	var p setSceneParams
	if err := decodeParams(OpSetScene, e.Params, &p); err != nil {
		return nil, err
	}
	if p.Scene == "" {
		return nil, core.NewValidation(OpSetScene, "scene", "scene name is required")
	}

	s.deps.Scene.SetScene(p.Scene, p.Source)
	s.log.Info("scene changed", "scene", p.Scene, "source", p.Source)
	if s.deps.OnSceneChange != nil {
		s.deps.OnSceneChange()
	}
	return setSceneResponse{OK: true, Scene: p.Scene}, nil
}

type storeStatsResponse struct {
	OK              bool   `json:"ok"`
	Scene           string `json:"scene"`
	WaypointCount   int    `json:"waypoint_count"`
	GroupCount      int    `json:"group_count"`
	MembershipCount int    `json:"membership_count"`
	VisibilityMode  string `json:"visibility_mode"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
	QueueDepth      int    `json:"queue_depth"`
}

// StoreStats handles store_stats.
func (s *Service) StoreStats(e dispatcher.Event) (any, error) {
	st := s.deps.Store.Stats()

	depth := 0
	if s.deps.QueueDepth != nil {
		depth = s.deps.QueueDepth()
	}

	return storeStatsResponse{
		OK:              true,
		Scene:           s.deps.Scene.Name(),
		WaypointCount:   st.Waypoints,
		GroupCount:      st.Groups,
		MembershipCount: st.Memberships,
		VisibilityMode:  string(st.Visibility),
		UptimeSeconds:   int64(time.Since(s.deps.Scene.SessionStart()).Seconds()),
		QueueDepth:      depth,
	}, nil
}

type uploadSnapshotParams struct {
	Tag string `json:"tag"`
}

type uploadSnapshotResponse struct {
	OK            bool   `json:"ok"`
	Path          string `json:"path"`
	WaypointCount int    `json:"waypoint_count"`
	GroupCount    int    `json:"group_count"`
}

// UploadSnapshot handles upload_snapshot: export the full store to a file
// and ship it to the annotation server.
func (s *Service) UploadSnapshot(e dispatcher.Event) (any, error) {
	if s.deps.Uploader == nil {
		return nil, errors.New("no annotation server configured")
	}

	var p uploadSnapshotParams
	if err := decodeParams(OpUploadSnapshot, e.Params, &p); err != nil {
		return nil, err
	}

	doc := exchange.Export(s.deps.Store, true)
	path := exchange.ExportPath(s.deps.ExportDir, s.deps.Scene.Name(), doc.ExportedAt, s.deps.Compress)

	var err error
	if s.deps.Compress {
		err = exchange.WriteGzipFile(doc, path)
	} else {
		err = exchange.WriteFile(doc, path)
	}
	if err != nil {
		return nil, err
	}

	meta := core.UploadMetadata{
		SceneName:     s.deps.Scene.Name(),
		SourceApp:     s.deps.Scene.Source(),
		WaypointCount: len(doc.Waypoints),
		GroupCount:    len(doc.Groups),
		Tag:           p.Tag,
	}
	if err := s.deps.Uploader.UploadSnapshot(path, meta); err != nil {
		s.log.Error("snapshot upload failed", "path", path, "error", err)
		return nil, err
	}

	s.log.Info("snapshot uploaded", "path", path, "waypoints", meta.WaypointCount)
	return uploadSnapshotResponse{
		OK:            true,
		Path:          path,
		WaypointCount: meta.WaypointCount,
		GroupCount:    meta.GroupCount,
	}, nil
}
