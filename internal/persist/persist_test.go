package persist

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/waymark3d/waymark/internal/logging"
	"github.com/waymark3d/waymark/internal/model"
	"github.com/waymark3d/waymark/internal/scene"
	"github.com/waymark3d/waymark/internal/store"
	"github.com/waymark3d/waymark/pkg/core"
)

// newTestDB creates an in-memory SQLite DB with auto-migrated tables.
// MaxOpenConns=1 ensures all operations use the same connection (in-memory
// SQLite databases are per-connection, so multiple connections would each
// see an empty database).
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(model.DatabaseModels...))
	return db
}

// newTestPipeline wires a pipeline and a store together. The flush period
// is an hour so tests drive flushes explicitly through flushOnce.
func newTestPipeline(t *testing.T, db *gorm.DB) (*Pipeline, *store.Store) {
	t.Helper()
	p := New(Dependencies{
		DB:         db,
		Scene:      scene.NewContext("test-scene", time.Now()),
		LogManager: logging.NewSlogManager(),
		FlushEvery: time.Hour,
	})
	require.NoError(t, p.Init())
	t.Cleanup(func() { require.NoError(t, p.Close()) })

	st := store.New()
	st.AddListener(p.Listener())
	return p, st
}

func TestNew(t *testing.T) {
	p := New(Dependencies{LogManager: logging.NewSlogManager()})
	require.NotNil(t, p)
}

func TestInitCreatesSceneRow(t *testing.T) {
	db := newTestDB(t)
	p := New(Dependencies{
		DB:         db,
		Scene:      scene.NewContext("harbor", time.Now()),
		LogManager: logging.NewSlogManager(),
		FlushEvery: time.Hour,
	})
	require.NoError(t, p.Init())
	require.NotNil(t, p.stopChan)
	require.NoError(t, p.Close())

	var row model.Scene
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, "harbor", row.Name)
	assert.NotZero(t, p.sceneID.Load())

	// A second Init against the same scene reuses the row.
	p2 := New(Dependencies{
		DB:         db,
		Scene:      scene.NewContext("harbor", time.Now()),
		LogManager: logging.NewSlogManager(),
		FlushEvery: time.Hour,
	})
	require.NoError(t, p2.Init())
	require.NoError(t, p2.Close())

	var count int64
	db.Model(&model.Scene{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestListenerQueuesOps_NoDB(t *testing.T) {
	p := New(Dependencies{
		Scene:      scene.NewContext("s", time.Now()),
		LogManager: logging.NewSlogManager(),
	})
	require.NoError(t, p.Init())
	defer func() { require.NoError(t, p.Close()) }()

	st := store.New()
	st.AddListener(p.Listener())

	w, err := st.CreateWaypoint(store.CreateWaypointRequest{Position: []float64{1, 2, 3}})
	require.NoError(t, err)
	g, err := st.CreateGroup(store.CreateGroupRequest{Name: "recon"})
	require.NoError(t, err)
	_, err = st.AddWaypointToGroups(w.ID, []string{g.ID})
	require.NoError(t, err)

	// insert waypoint + insert group + link
	assert.Equal(t, 3, p.QueueDepth())

	require.NoError(t, st.RemoveWaypoint(w.ID))
	assert.Equal(t, 4, p.QueueDepth())
}

func TestFlushInsertsRows(t *testing.T) {
	db := newTestDB(t)
	p, st := newTestPipeline(t, db)

	w, err := st.CreateWaypoint(store.CreateWaypointRequest{
		Position: []float64{100, 200, 10},
		Type:     string(core.TypeSpawnPoint),
		Name:     "alpha",
		Metadata: map[string]any{"k": "v"},
	})
	require.NoError(t, err)
	g, err := st.CreateGroup(store.CreateGroupRequest{Name: "recon"})
	require.NoError(t, err)
	_, err = st.AddWaypointToGroups(w.ID, []string{g.ID})
	require.NoError(t, err)

	p.flushOnce()
	assert.Equal(t, 0, p.QueueDepth())

	var wrow model.Waypoint
	require.NoError(t, db.First(&wrow).Error)
	assert.Equal(t, w.ID, wrow.WaypointID)
	assert.Equal(t, "alpha", wrow.Name)
	assert.Equal(t, string(core.TypeSpawnPoint), wrow.Type)
	assert.NotZero(t, wrow.SceneID)

	var grow model.Group
	require.NoError(t, db.First(&grow).Error)
	assert.Equal(t, g.ID, grow.GroupID)
	assert.Equal(t, wrow.SceneID, grow.SceneID)

	var mcount int64
	db.Model(&model.Membership{}).Count(&mcount)
	assert.Equal(t, int64(1), mcount)

	// Row ids are cached for later updates and deletes.
	rowID, ok := p.waypointRows.Get(w.ID)
	assert.True(t, ok)
	assert.Equal(t, wrow.ID, rowID)
	_, ok = p.groupRows.Get(g.ID)
	assert.True(t, ok)
	_, ok = p.edgeRows.Get(w.ID, g.ID)
	assert.True(t, ok)
}

func TestFlushAppliesUpdates(t *testing.T) {
	db := newTestDB(t)
	p, st := newTestPipeline(t, db)

	w, err := st.CreateWaypoint(store.CreateWaypointRequest{Position: []float64{1, 2, 3}, Name: "before"})
	require.NoError(t, err)
	p.flushOnce()

	name := "after"
	_, err = st.UpdateWaypoint(w.ID, store.UpdateWaypointRequest{
		Position: []float64{7, 8, 9},
		Name:     &name,
		Metadata: map[string]any{"edited": true},
	})
	require.NoError(t, err)
	p.flushOnce()

	var row model.Waypoint
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, "after", row.Name)
	assert.JSONEq(t, `{"edited": true}`, string(row.Metadata))

	var count int64
	db.Model(&model.Waypoint{}).Count(&count)
	assert.Equal(t, int64(1), count, "update must not insert a second row")
}

func TestFlushDeletesWaypointAndEdges(t *testing.T) {
	db := newTestDB(t)
	p, st := newTestPipeline(t, db)

	w, err := st.CreateWaypoint(store.CreateWaypointRequest{Position: []float64{1, 2, 3}})
	require.NoError(t, err)
	g, err := st.CreateGroup(store.CreateGroupRequest{Name: "recon"})
	require.NoError(t, err)
	_, err = st.AddWaypointToGroups(w.ID, []string{g.ID})
	require.NoError(t, err)
	p.flushOnce()

	require.NoError(t, st.RemoveWaypoint(w.ID))
	p.flushOnce()

	var wcount, mcount, gcount int64
	db.Model(&model.Waypoint{}).Count(&wcount)
	db.Model(&model.Membership{}).Count(&mcount)
	db.Model(&model.Group{}).Count(&gcount)
	assert.Equal(t, int64(0), wcount)
	assert.Equal(t, int64(0), mcount, "memberships go with their waypoint")
	assert.Equal(t, int64(1), gcount, "groups survive waypoint deletion")

	_, ok := p.waypointRows.Get(w.ID)
	assert.False(t, ok, "cache entry must be dropped")
}

func TestFlushGroupCascade(t *testing.T) {
	db := newTestDB(t)
	p, st := newTestPipeline(t, db)

	root, err := st.CreateGroup(store.CreateGroupRequest{Name: "root"})
	require.NoError(t, err)
	child, err := st.CreateGroup(store.CreateGroupRequest{Name: "child", ParentGroupID: root.ID})
	require.NoError(t, err)
	w, err := st.CreateWaypoint(store.CreateWaypointRequest{Position: []float64{1, 2, 3}})
	require.NoError(t, err)
	_, err = st.AddWaypointToGroups(w.ID, []string{child.ID})
	require.NoError(t, err)
	p.flushOnce()

	require.NoError(t, st.RemoveGroup(root.ID, true))
	p.flushOnce()

	var gcount, mcount, wcount int64
	db.Model(&model.Group{}).Count(&gcount)
	db.Model(&model.Membership{}).Count(&mcount)
	db.Model(&model.Waypoint{}).Count(&wcount)
	assert.Equal(t, int64(0), gcount, "cascade removes the whole subtree")
	assert.Equal(t, int64(0), mcount)
	assert.Equal(t, int64(1), wcount, "waypoints are never cascade-deleted")
}

func TestFlushClearAll(t *testing.T) {
	db := newTestDB(t)
	p, st := newTestPipeline(t, db)

	w, err := st.CreateWaypoint(store.CreateWaypointRequest{Position: []float64{1, 2, 3}})
	require.NoError(t, err)
	g, err := st.CreateGroup(store.CreateGroupRequest{Name: "kept"})
	require.NoError(t, err)
	_, err = st.AddWaypointToGroups(w.ID, []string{g.ID})
	require.NoError(t, err)
	p.flushOnce()

	n, err := st.ClearAllWaypoints(true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	p.flushOnce()

	var wcount, mcount, gcount int64
	db.Model(&model.Waypoint{}).Count(&wcount)
	db.Model(&model.Membership{}).Count(&mcount)
	db.Model(&model.Group{}).Count(&gcount)
	assert.Equal(t, int64(0), wcount)
	assert.Equal(t, int64(0), mcount)
	assert.Equal(t, int64(1), gcount, "clear_all leaves groups in place")
}

func TestFlushReplaceImport(t *testing.T) {
	db := newTestDB(t)
	p, st := newTestPipeline(t, db)

	_, err := st.CreateWaypoint(store.CreateWaypointRequest{Position: []float64{1, 1, 1}})
	require.NoError(t, err)
	_, err = st.CreateGroup(store.CreateGroupRequest{Name: "old"})
	require.NoError(t, err)
	p.flushOnce()

	st.ImportReplace(
		[]core.Waypoint{{ID: "wp_doc1", Name: "doc", Type: core.TypePointOfInterest, Position: core.Position3D{X: 5}}},
		[]core.Group{{ID: "grp_doc1", Name: "doc group", Color: core.DefaultGroupColor}},
		[]store.MembershipEdge{{WaypointID: "wp_doc1", GroupID: "grp_doc1"}},
	)
	p.flushOnce()

	// Only the document contents survive, under their verbatim ids.
	var wrows []model.Waypoint
	require.NoError(t, db.Find(&wrows).Error)
	require.Len(t, wrows, 1)
	assert.Equal(t, "wp_doc1", wrows[0].WaypointID)

	var grows []model.Group
	require.NoError(t, db.Find(&grows).Error)
	require.Len(t, grows, 1)
	assert.Equal(t, "grp_doc1", grows[0].GroupID)

	var mcount int64
	db.Model(&model.Membership{}).Count(&mcount)
	assert.Equal(t, int64(1), mcount)
}

func TestFlushFailureRequeues(t *testing.T) {
	db := newTestDB(t)
	p, st := newTestPipeline(t, db)

	// Drop the table so the insert fails.
	require.NoError(t, db.Migrator().DropTable(&model.Waypoint{}))

	_, err := st.CreateWaypoint(store.CreateWaypointRequest{Position: []float64{1, 2, 3}})
	require.NoError(t, err)
	p.flushOnce()

	assert.Equal(t, 1, p.QueueDepth(), "failed ops must be re-queued")

	// Once the table is back the retry succeeds.
	require.NoError(t, db.AutoMigrate(&model.Waypoint{}))
	p.flushOnce()
	assert.Equal(t, 0, p.QueueDepth())

	var count int64
	db.Model(&model.Waypoint{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestBackgroundWriterDrains(t *testing.T) {
	db := newTestDB(t)
	p := New(Dependencies{
		DB:         db,
		Scene:      scene.NewContext("bg", time.Now()),
		LogManager: logging.NewSlogManager(),
		FlushEvery: 50 * time.Millisecond,
	})
	require.NoError(t, p.Init())
	defer func() { require.NoError(t, p.Close()) }()

	st := store.New()
	st.AddListener(p.Listener())

	_, err := st.CreateWaypoint(store.CreateWaypointRequest{Position: []float64{1, 2, 3}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		var count int64
		db.Model(&model.Waypoint{}).Count(&count)
		return count == 1
	}, 5*time.Second, 25*time.Millisecond, "waypoint row should be written by the background writer")
}

func TestSceneSwitchMovesRows(t *testing.T) {
	db := newTestDB(t)
	sc := scene.NewContext("first", time.Now())
	p := New(Dependencies{
		DB:         db,
		Scene:      sc,
		LogManager: logging.NewSlogManager(),
		FlushEvery: time.Hour,
	})
	require.NoError(t, p.Init())
	t.Cleanup(func() { require.NoError(t, p.Close()) })

	st := store.New()
	st.AddListener(p.Listener())

	_, err := st.CreateWaypoint(store.CreateWaypointRequest{Position: []float64{1, 2, 3}})
	require.NoError(t, err)
	p.flushOnce()

	sc.SetScene("second", "editor")
	_, err = st.CreateWaypoint(store.CreateWaypointRequest{Position: []float64{4, 5, 6}})
	require.NoError(t, err)
	p.flushOnce()

	var scenes []model.Scene
	require.NoError(t, db.Order("id").Find(&scenes).Error)
	require.Len(t, scenes, 2)
	assert.Equal(t, "first", scenes[0].Name)
	assert.Equal(t, "second", scenes[1].Name)

	var count int64
	db.Model(&model.Waypoint{}).Where("scene_id = ?", scenes[1].ID).Count(&count)
	assert.Equal(t, int64(1), count, "rows written after the switch belong to the new scene")
}

func TestRestoreRebuildsStore(t *testing.T) {
	db := newTestDB(t)
	p, st := newTestPipeline(t, db)

	w, err := st.CreateWaypoint(store.CreateWaypointRequest{
		Position: []float64{10, 20, 3},
		Name:     "kept",
		Metadata: map[string]any{"k": "v"},
	})
	require.NoError(t, err)
	root, err := st.CreateGroup(store.CreateGroupRequest{Name: "root"})
	require.NoError(t, err)
	child, err := st.CreateGroup(store.CreateGroupRequest{Name: "child", ParentGroupID: root.ID})
	require.NoError(t, err)
	_, err = st.AddWaypointToGroups(w.ID, []string{child.ID})
	require.NoError(t, err)
	p.flushOnce()

	// A fresh process: new pipeline, new store, same database.
	p2 := New(Dependencies{
		DB:         db,
		Scene:      scene.NewContext("test-scene", time.Now()),
		LogManager: logging.NewSlogManager(),
		FlushEvery: time.Hour,
	})
	require.NoError(t, p2.Init())
	t.Cleanup(func() { require.NoError(t, p2.Close()) })

	st2 := store.New()
	nw, ng, err := p2.Restore(st2)
	require.NoError(t, err)
	assert.Equal(t, 1, nw)
	assert.Equal(t, 2, ng)

	got, err := st2.GetWaypoint(w.ID)
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Name)
	assert.Equal(t, w.Position, got.Position)
	assert.Equal(t, "v", got.Metadata["k"])

	kids, err := st2.ListChildGroups(root.ID)
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, child.ID, kids[0].ID)

	groups, err := st2.GroupsOfWaypoint(w.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, child.ID, groups[0].ID)

	// Row caches are primed, so a later update hits the existing row.
	rowID, ok := p2.waypointRows.Get(w.ID)
	assert.True(t, ok)
	assert.NotZero(t, rowID)
}

func TestRestoreSkipsDanglingEdges(t *testing.T) {
	db := newTestDB(t)
	p, st := newTestPipeline(t, db)

	w, err := st.CreateWaypoint(store.CreateWaypointRequest{Position: []float64{1, 2, 3}})
	require.NoError(t, err)
	p.flushOnce()

	// Simulate an unclean shutdown that left an orphaned membership row.
	sceneID := uint(p.sceneID.Load())
	require.NoError(t, db.Create(&model.Membership{
		SceneID:    sceneID,
		WaypointID: w.ID,
		GroupID:    "grp_never_written",
	}).Error)

	p2 := New(Dependencies{
		DB:         db,
		Scene:      scene.NewContext("test-scene", time.Now()),
		LogManager: logging.NewSlogManager(),
		FlushEvery: time.Hour,
	})
	require.NoError(t, p2.Init())
	t.Cleanup(func() { require.NoError(t, p2.Close()) })

	st2 := store.New()
	_, _, err = p2.Restore(st2)
	require.NoError(t, err)

	groups, err := st2.GroupsOfWaypoint(w.ID)
	require.NoError(t, err)
	assert.Empty(t, groups, "orphaned edge rows must not become memberships")
}

func TestCloseFlushesRemainingOps(t *testing.T) {
	db := newTestDB(t)
	p := New(Dependencies{
		DB:         db,
		Scene:      scene.NewContext("shutdown", time.Now()),
		LogManager: logging.NewSlogManager(),
		FlushEvery: time.Hour,
	})
	require.NoError(t, p.Init())

	st := store.New()
	st.AddListener(p.Listener())
	_, err := st.CreateWaypoint(store.CreateWaypointRequest{Position: []float64{1, 2, 3}})
	require.NoError(t, err)

	require.NoError(t, p.Close())

	var count int64
	db.Model(&model.Waypoint{}).Count(&count)
	assert.Equal(t, int64(1), count, "Close must drain the queue")
}
