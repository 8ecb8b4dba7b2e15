// Package persist mirrors the in-memory annotation store into the
// relational database. A store listener turns committed events into row
// operations on an internal queue, and a background writer drains the
// queue in batched transactions so annotation calls never wait on the
// database.
package persist

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/waymark3d/waymark/internal/cache"
	"github.com/waymark3d/waymark/internal/geo"
	"github.com/waymark3d/waymark/internal/logging"
	"github.com/waymark3d/waymark/internal/model"
	"github.com/waymark3d/waymark/internal/model/convert"
	"github.com/waymark3d/waymark/internal/queue"
	"github.com/waymark3d/waymark/internal/scene"
	"github.com/waymark3d/waymark/internal/store"
)

// Dependencies holds all dependencies for the persistence pipeline.
type Dependencies struct {
	DB         *gorm.DB
	Scene      *scene.Context
	LogManager *logging.SlogManager

	// Anchor georeferences waypoint rows when the scene is pinned to a
	// geographic location. Nil leaves the projected column empty.
	Anchor *geo.Anchor

	// FlushEvery is the write cycle period. Zero means 5 seconds.
	FlushEvery time.Duration
}

type opKind int

const (
	opInsertWaypoint opKind = iota
	opUpdateWaypoint
	opDeleteWaypoint
	opInsertGroup
	opDeleteGroup
	opLink
	opUnlink
	opClear
)

// op is one pending row mutation. Ops drain in the order the store emitted
// their events, so a replace import's teardown lands before the rows it
// reinstalls.
type op struct {
	kind     opKind
	waypoint model.Waypoint
	group    model.Group
	edge     model.Membership
	id       string // store entity id, delete ops only
}

// Pipeline buffers store events and writes them to the database in batches
// from a background goroutine.
type Pipeline struct {
	deps Dependencies
	log  *slog.Logger

	ops *queue.Queue[op]

	waypointRows *cache.RowIDCache
	groupRows    *cache.RowIDCache
	edgeRows     *cache.EdgeCache

	sceneID       atomic.Uint64
	lastSceneName string

	lastFlush atomic.Int64 // duration of the last successful flush, ns

	stopChan chan struct{}
	doneChan chan struct{}
	dbReady  bool
}

// New creates a pipeline. Call Init before attaching its Listener.
func New(deps Dependencies) *Pipeline {
	return &Pipeline{
		deps:         deps,
		log:          deps.LogManager.Logger(),
		ops:          queue.New[op](),
		waypointRows: cache.NewRowIDCache(),
		groupRows:    cache.NewRowIDCache(),
		edgeRows:     cache.NewEdgeCache(),
	}
}

// Init ensures the scene row exists and starts the background writer. The
// schema must already be migrated; database.Manager.Setup does that. With
// no DB injected the pipeline runs queue-only, which the host uses when
// persistence is disabled.
func (p *Pipeline) Init() error {
	p.stopChan = make(chan struct{})
	p.doneChan = make(chan struct{})

	if p.deps.DB != nil {
		if err := p.ensureScene(); err != nil {
			return err
		}
		p.dbReady = true
	}

	p.startWriter()
	return nil
}

// Close stops the background writer and flushes whatever is still queued.
func (p *Pipeline) Close() error {
	if p.stopChan != nil {
		close(p.stopChan)
		<-p.doneChan
	}
	if p.dbReady {
		p.flushOnce()
	}
	return nil
}

// QueueDepth returns the number of row operations waiting to be written.
func (p *Pipeline) QueueDepth() int {
	return p.ops.Len()
}

// LastFlushDuration returns how long the most recent successful flush took.
func (p *Pipeline) LastFlushDuration() time.Duration {
	return time.Duration(p.lastFlush.Load())
}

// Listener returns the store listener feeding the write queue. It only
// copies event payloads into ops, so it is cheap enough to run under the
// store lock.
func (p *Pipeline) Listener() store.Listener {
	return func(ev store.Event) {
		switch ev.Kind {
		case store.EventWaypointCreated:
			p.ops.Push(op{kind: opInsertWaypoint, waypoint: convert.CoreToWaypoint(*ev.Waypoint, 0, p.deps.Anchor)})
		case store.EventWaypointUpdated:
			p.ops.Push(op{kind: opUpdateWaypoint, waypoint: convert.CoreToWaypoint(*ev.Waypoint, 0, p.deps.Anchor)})
		case store.EventWaypointRemoved:
			p.ops.Push(op{kind: opDeleteWaypoint, id: ev.WaypointID})
		case store.EventGroupCreated:
			p.ops.Push(op{kind: opInsertGroup, group: convert.CoreToGroup(*ev.Group, 0)})
		case store.EventGroupRemoved:
			for _, gid := range ev.IDs {
				p.ops.Push(op{kind: opDeleteGroup, id: gid})
			}
		case store.EventMembershipAdded:
			for _, gid := range ev.IDs {
				p.ops.Push(op{kind: opLink, edge: convert.EdgeToMembership(ev.WaypointID, gid, 0)})
			}
		case store.EventMembershipRemoved:
			for _, gid := range ev.IDs {
				p.ops.Push(op{kind: opUnlink, edge: convert.EdgeToMembership(ev.WaypointID, gid, 0)})
			}
		case store.EventWaypointsCleared:
			p.ops.Push(op{kind: opClear})
		}
		// Visibility, goto and import summary events carry no rows.
	}
}

// ensureScene get-or-creates the row for the active scene and refreshes
// its session metadata. The row id stamps everything written afterwards.
func (p *Pipeline) ensureScene() error {
	name := p.deps.Scene.Name()
	row := model.Scene{Name: name}
	if err := p.deps.DB.Where(model.Scene{Name: name}).FirstOrCreate(&row).Error; err != nil {
		return fmt.Errorf("failed to ensure scene row %q: %w", name, err)
	}

	updates := map[string]any{
		"source":        p.deps.Scene.Source(),
		"session_start": p.deps.Scene.SessionStart(),
	}
	if p.deps.Anchor != nil {
		updates["anchored"] = true
		updates["anchor_longitude"] = p.deps.Anchor.Longitude
		updates["anchor_latitude"] = p.deps.Anchor.Latitude
	}
	if err := p.deps.DB.Model(&model.Scene{}).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update scene row %q: %w", name, err)
	}

	p.sceneID.Store(uint64(row.ID))
	p.lastSceneName = name
	return nil
}

func (p *Pipeline) flushEvery() time.Duration {
	if p.deps.FlushEvery <= 0 {
		return 5 * time.Second
	}
	return p.deps.FlushEvery
}

// startWriter starts the background goroutine that periodically drains the
// op queue into the database.
func (p *Pipeline) startWriter() {
	go func() {
		defer close(p.doneChan)
		for {
			select {
			case <-p.stopChan:
				return
			case <-time.After(p.flushEvery()):
			}

			if !p.dbReady {
				continue
			}
			p.flushOnce()
		}
	}()
}

// flushOnce drains the op queue and applies it in one transaction. On
// failure the drained ops go back to the head of the queue and retry next
// cycle.
func (p *Pipeline) flushOnce() {
	ops := p.ops.Drain()
	if len(ops) == 0 {
		return
	}

	// The host can switch scenes between flushes; rows follow the active one.
	if p.deps.Scene.Name() != p.lastSceneName {
		if err := p.ensureScene(); err != nil {
			p.log.Error("Scene row refresh failed, batch requeued", "error", err)
			p.ops.Requeue(ops...)
			return
		}
	}

	start := time.Now()
	var post []func()
	err := p.deps.DB.Transaction(func(tx *gorm.DB) error {
		sceneID := uint(p.sceneID.Load())
		for i := 0; i < len(ops); {
			j := i
			for j < len(ops) && ops[j].kind == ops[i].kind {
				j++
			}
			fns, err := p.applyRun(tx, sceneID, ops[i:j])
			if err != nil {
				return err
			}
			post = append(post, fns...)
			i = j
		}
		return nil
	})
	if err != nil {
		p.log.Error("Database flush failed, batch requeued", "ops", len(ops), "error", err)
		p.ops.Requeue(ops...)
		return
	}

	// Row id caches update only after the transaction commits.
	for _, fn := range post {
		fn()
	}
	p.lastFlush.Store(int64(time.Since(start)))
	p.log.Debug("Flushed annotation rows", "ops", len(ops), "took", time.Since(start))
}

// applyRun applies one run of same-kind ops inside tx. Cache updates are
// returned as callbacks to run after commit, so a rollback cannot leave
// the caches pointing at rows that were never written.
func (p *Pipeline) applyRun(tx *gorm.DB, sceneID uint, run []op) ([]func(), error) {
	switch run[0].kind {
	case opInsertWaypoint:
		rows := make([]model.Waypoint, len(run))
		for i, o := range run {
			rows[i] = o.waypoint
			rows[i].SceneID = sceneID
		}
		if err := tx.Create(&rows).Error; err != nil {
			return nil, fmt.Errorf("insert waypoints: %w", err)
		}
		return []func(){func() {
			for _, r := range rows {
				p.waypointRows.Set(r.WaypointID, r.ID)
			}
		}}, nil

	case opUpdateWaypoint:
		for _, o := range run {
			w := o.waypoint
			cols := map[string]any{
				"name":      w.Name,
				"position":  w.Position,
				"target":    w.Target,
				"geo_point": w.GeoPoint,
				"metadata":  w.Metadata,
			}
			q := tx.Model(&model.Waypoint{})
			if rowID, ok := p.waypointRows.Get(w.WaypointID); ok {
				q = q.Where("id = ?", rowID)
			} else {
				q = q.Where("scene_id = ? AND waypoint_id = ?", sceneID, w.WaypointID)
			}
			if err := q.Updates(cols).Error; err != nil {
				return nil, fmt.Errorf("update waypoint %s: %w", w.WaypointID, err)
			}
		}
		return nil, nil

	case opDeleteWaypoint:
		ids := make([]string, len(run))
		for i, o := range run {
			ids[i] = o.id
		}
		if err := tx.Where("scene_id = ? AND waypoint_id IN ?", sceneID, ids).Delete(&model.Waypoint{}).Error; err != nil {
			return nil, fmt.Errorf("delete waypoints: %w", err)
		}
		// A removed waypoint takes its membership rows with it.
		if err := tx.Where("scene_id = ? AND waypoint_id IN ?", sceneID, ids).Delete(&model.Membership{}).Error; err != nil {
			return nil, fmt.Errorf("delete waypoint memberships: %w", err)
		}
		return []func(){func() {
			for _, id := range ids {
				p.waypointRows.Delete(id)
				p.edgeRows.DeleteWaypoint(id)
			}
		}}, nil

	case opInsertGroup:
		rows := make([]model.Group, len(run))
		for i, o := range run {
			rows[i] = o.group
			rows[i].SceneID = sceneID
		}
		if err := tx.Create(&rows).Error; err != nil {
			return nil, fmt.Errorf("insert groups: %w", err)
		}
		return []func(){func() {
			for _, r := range rows {
				p.groupRows.Set(r.GroupID, r.ID)
			}
		}}, nil

	case opDeleteGroup:
		ids := make([]string, len(run))
		for i, o := range run {
			ids[i] = o.id
		}
		if err := tx.Where("scene_id = ? AND group_id IN ?", sceneID, ids).Delete(&model.Group{}).Error; err != nil {
			return nil, fmt.Errorf("delete groups: %w", err)
		}
		if err := tx.Where("scene_id = ? AND group_id IN ?", sceneID, ids).Delete(&model.Membership{}).Error; err != nil {
			return nil, fmt.Errorf("delete group memberships: %w", err)
		}
		return []func(){func() {
			for _, id := range ids {
				p.groupRows.Delete(id)
				p.edgeRows.DeleteGroup(id)
			}
		}}, nil

	case opLink:
		rows := make([]model.Membership, len(run))
		for i, o := range run {
			rows[i] = o.edge
			rows[i].SceneID = sceneID
		}
		if err := tx.Create(&rows).Error; err != nil {
			return nil, fmt.Errorf("insert memberships: %w", err)
		}
		return []func(){func() {
			for _, r := range rows {
				p.edgeRows.Set(r.WaypointID, r.GroupID, r.ID)
			}
		}}, nil

	case opUnlink:
		for _, o := range run {
			q := tx
			if rowID, ok := p.edgeRows.Get(o.edge.WaypointID, o.edge.GroupID); ok {
				q = q.Where("id = ?", rowID)
			} else {
				q = q.Where("scene_id = ? AND waypoint_id = ? AND group_id = ?", sceneID, o.edge.WaypointID, o.edge.GroupID)
			}
			if err := q.Delete(&model.Membership{}).Error; err != nil {
				return nil, fmt.Errorf("delete membership %s->%s: %w", o.edge.WaypointID, o.edge.GroupID, err)
			}
		}
		return []func(){func() {
			for _, o := range run {
				p.edgeRows.Delete(o.edge.WaypointID, o.edge.GroupID)
			}
		}}, nil

	case opClear:
		// One clear covers any number of queued clear ops.
		if err := tx.Where("scene_id = ?", sceneID).Delete(&model.Waypoint{}).Error; err != nil {
			return nil, fmt.Errorf("clear waypoints: %w", err)
		}
		if err := tx.Where("scene_id = ?", sceneID).Delete(&model.Membership{}).Error; err != nil {
			return nil, fmt.Errorf("clear memberships: %w", err)
		}
		return []func(){func() {
			p.waypointRows.Reset()
			p.edgeRows.Reset()
		}}, nil
	}

	return nil, nil
}
