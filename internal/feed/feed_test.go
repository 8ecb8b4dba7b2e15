package feed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waymark3d/waymark/internal/channel"
	"github.com/waymark3d/waymark/internal/logging"
	"github.com/waymark3d/waymark/internal/scene"
	"github.com/waymark3d/waymark/internal/store"
	"github.com/waymark3d/waymark/pkg/streaming"
)

// testServer creates an httptest server that upgrades to WebSocket,
// records received messages, and acks session_start.
func testServer(t *testing.T) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			if env.Type == streaming.TypeSessionStart {
				ack := streaming.AckMessage{Type: "ack", For: env.Type}
				data, _ := json.Marshal(ack)
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))

	return srv, ml
}

type messageLog struct {
	mu       sync.Mutex
	messages []streaming.Envelope
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestFeed(t *testing.T, srv *httptest.Server, sc *scene.Context) *Feed {
	t.Helper()
	f := New(Config{URL: wsURL(srv), Secret: "test"}, sc, logging.NewSlogManager())
	require.NoError(t, f.Start())
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestStartAnnouncesSession(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	start := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	newTestFeed(t, srv, scene.NewContext("harbor-scan", start))

	msgs := ml.all()
	require.NotEmpty(t, msgs)
	assert.Equal(t, streaming.TypeSessionStart, msgs[0].Type)

	var p streaming.SessionStartPayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &p))
	assert.Equal(t, "harbor-scan", p.Scene)
	assert.True(t, p.SessionStart.Equal(start))
}

func TestListenerStreamsStoreEvents(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	f := newTestFeed(t, srv, scene.NewContext("s", time.Now()))

	st := store.New()
	st.AddListener(f.Listener())

	w1, err := st.CreateWaypoint(store.CreateWaypointRequest{Position: []float64{1, 2, 3}, Name: "one"})
	require.NoError(t, err)
	w2, err := st.CreateWaypoint(store.CreateWaypointRequest{Position: []float64{4, 5, 6}})
	require.NoError(t, err)

	name := "renamed"
	_, err = st.UpdateWaypoint(w1.ID, store.UpdateWaypointRequest{Name: &name})
	require.NoError(t, err)

	g, err := st.CreateGroup(store.CreateGroupRequest{Name: "survey"})
	require.NoError(t, err)
	_, err = st.AddWaypointToGroups(w1.ID, []string{g.ID})
	require.NoError(t, err)
	_, err = st.RemoveWaypointFromGroups(w1.ID, []string{g.ID})
	require.NoError(t, err)

	st.SetAllVisible(false)
	_, err = st.GotoWaypoint(w1.ID)
	require.NoError(t, err)

	require.NoError(t, st.RemoveWaypoint(w2.ID))
	_, err = st.ClearAllWaypoints(true)
	require.NoError(t, err)

	// Give a moment for all messages to arrive at the server.
	time.Sleep(50 * time.Millisecond)

	types := make(map[string]int)
	for _, m := range ml.all() {
		types[m.Type]++
	}

	assert.Equal(t, 1, types[streaming.TypeSessionStart])
	assert.Equal(t, 2, types[streaming.TypeWaypointCreated])
	assert.Equal(t, 1, types[streaming.TypeWaypointUpdated])
	assert.Equal(t, 1, types[streaming.TypeGroupCreated])
	assert.Equal(t, 1, types[streaming.TypeMembershipAdded])
	assert.Equal(t, 1, types[streaming.TypeMembershipRemoved])
	assert.Equal(t, 1, types[streaming.TypeVisibilityChanged])
	assert.Equal(t, 1, types[streaming.TypeGotoWaypoint])
	assert.Equal(t, 1, types[streaming.TypeWaypointRemoved])
	assert.Equal(t, 1, types[streaming.TypeWaypointsCleared])
	assert.Zero(t, f.Dropped())
}

func TestSendCountsDropsWhenBufferFull(t *testing.T) {
	c := &connection{
		sendCh: channel.New[[]byte](1),
		done:   make(chan struct{}),
		logger: logging.NewSlogManager().Logger(),
	}

	// No write loop is draining, so only the first send fits.
	c.send([]byte("a"))
	c.send([]byte("b"))
	c.send([]byte("c"))

	assert.Equal(t, 2, c.dropped.Value())
}

func TestReannounceAfterSceneSwitch(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	sc := scene.NewContext("first", time.Now())
	f := newTestFeed(t, srv, sc)

	sc.SetScene("second", "editor")
	require.NoError(t, f.AnnounceSession())

	var scenes []string
	for _, m := range ml.all() {
		if m.Type != streaming.TypeSessionStart {
			continue
		}
		var p streaming.SessionStartPayload
		require.NoError(t, json.Unmarshal(m.Payload, &p))
		scenes = append(scenes, p.Scene)
	}
	assert.Equal(t, []string{"first", "second"}, scenes)
}

func TestEnvelopeSerialization(t *testing.T) {
	payload := streaming.GroupRemovedPayload{GroupIDs: []string{"grp_a", "grp_b"}}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	env := streaming.Envelope{Type: streaming.TypeGroupRemoved, Payload: raw}
	data, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded streaming.Envelope
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, streaming.TypeGroupRemoved, decoded.Type)

	var dp streaming.GroupRemovedPayload
	require.NoError(t, json.Unmarshal(decoded.Payload, &dp))
	assert.Equal(t, []string{"grp_a", "grp_b"}, dp.GroupIDs)
}
