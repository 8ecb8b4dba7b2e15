package persist

import (
	"fmt"

	"github.com/waymark3d/waymark/internal/model"
	"github.com/waymark3d/waymark/internal/model/convert"
	"github.com/waymark3d/waymark/internal/store"
	"github.com/waymark3d/waymark/pkg/core"
)

// Restore rebuilds the in-memory store from the active scene's rows and
// primes the row id caches. Call it after Init and before the listener is
// attached, so the install does not echo back into the write queue.
// Returns the numbers of waypoints and groups restored.
func (p *Pipeline) Restore(st *store.Store) (int, int, error) {
	if !p.dbReady {
		return 0, 0, nil
	}
	sceneID := uint(p.sceneID.Load())
	db := p.deps.DB

	var wrows []model.Waypoint
	if err := db.Where("scene_id = ?", sceneID).Order("id").Find(&wrows).Error; err != nil {
		return 0, 0, fmt.Errorf("load waypoint rows: %w", err)
	}
	var grows []model.Group
	if err := db.Where("scene_id = ?", sceneID).Order("id").Find(&grows).Error; err != nil {
		return 0, 0, fmt.Errorf("load group rows: %w", err)
	}
	var mrows []model.Membership
	if err := db.Where("scene_id = ?", sceneID).Order("id").Find(&mrows).Error; err != nil {
		return 0, 0, fmt.Errorf("load membership rows: %w", err)
	}

	knownW := make(map[string]bool, len(wrows))
	for _, r := range wrows {
		knownW[r.WaypointID] = true
	}
	knownG := make(map[string]bool, len(grows))
	for _, r := range grows {
		knownG[r.GroupID] = true
	}

	ws := make([]core.Waypoint, 0, len(wrows))
	for _, r := range wrows {
		ws = append(ws, convert.WaypointToCore(r))
		p.waypointRows.Set(r.WaypointID, r.ID)
	}
	gs := make([]core.Group, 0, len(grows))
	for _, r := range grows {
		g := convert.GroupToCore(r)
		// An unclean shutdown can leave a child whose parent row never
		// made it; surface it as a root rather than losing it.
		if g.ParentGroupID != "" && !knownG[g.ParentGroupID] {
			g.ParentGroupID = ""
		}
		gs = append(gs, g)
		p.groupRows.Set(r.GroupID, r.ID)
	}
	var edges []store.MembershipEdge
	for _, r := range mrows {
		if !knownW[r.WaypointID] || !knownG[r.GroupID] {
			continue
		}
		edges = append(edges, store.MembershipEdge{WaypointID: r.WaypointID, GroupID: r.GroupID})
		p.edgeRows.Set(r.WaypointID, r.GroupID, r.ID)
	}

	nw, ng := st.ImportReplace(ws, gs, edges)
	p.log.Info("Restored annotations from database",
		"scene", p.deps.Scene.Name(), "waypoints", nw, "groups", ng, "memberships", len(edges))
	return nw, ng, nil
}
