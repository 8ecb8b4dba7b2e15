// Package feed streams annotation changes to the waymark web server over
// WebSocket so connected viewers follow edits live. Event messages are
// fire-and-forget; only session_start waits for a server ack.
package feed

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/waymark3d/waymark/internal/logging"
	"github.com/waymark3d/waymark/internal/scene"
	"github.com/waymark3d/waymark/internal/store"
	"github.com/waymark3d/waymark/pkg/streaming"
)

// Config holds feed connection settings.
type Config struct {
	URL    string
	Secret string
}

// Feed forwards store events to the annotation server.
type Feed struct {
	conn *connection
	cfg  Config
	sc   *scene.Context
	log  *slog.Logger
}

// New creates a feed. Call Start to connect.
func New(cfg Config, sc *scene.Context, lm *logging.SlogManager) *Feed {
	log := lm.Logger()
	return &Feed{
		conn: newConnection(log),
		cfg:  cfg,
		sc:   sc,
		log:  log,
	}
}

// Start connects to the feed server and announces the active scene.
func (f *Feed) Start() error {
	if err := f.conn.dial(f.cfg.URL, f.cfg.Secret); err != nil {
		return err
	}
	return f.AnnounceSession()
}

// AnnounceSession sends session_start for the active scene and waits for
// the server ack. The message is cached so reconnects replay it; call it
// again after a scene switch to re-announce.
func (f *Feed) AnnounceSession() error {
	data, err := marshalEnvelope(streaming.TypeSessionStart, streaming.SessionStartPayload{
		Scene:        f.sc.Name(),
		Source:       f.sc.Source(),
		SessionStart: f.sc.SessionStart(),
	})
	if err != nil {
		return err
	}

	// Cache for reconnect replay.
	f.conn.mu.Lock()
	f.conn.cachedSessionMsg = data
	f.conn.mu.Unlock()

	return f.conn.sendAndWait(data, streaming.TypeSessionStart, ackTimeout)
}

// Close disconnects from the feed server.
func (f *Feed) Close() error {
	return f.conn.close()
}

// Dropped returns how many messages were discarded because the send
// buffer was full.
func (f *Feed) Dropped() int {
	return f.conn.dropped.Value()
}

// Listener returns a store listener that forwards every change to the
// feed. It only marshals and enqueues, so it is cheap enough to run
// under the store lock.
func (f *Feed) Listener() store.Listener {
	return func(ev store.Event) {
		switch ev.Kind {
		case store.EventWaypointCreated:
			f.sendEnvelope(streaming.TypeWaypointCreated, streaming.WaypointPayload{Waypoint: ev.Waypoint})
		case store.EventWaypointUpdated:
			f.sendEnvelope(streaming.TypeWaypointUpdated, streaming.WaypointPayload{Waypoint: ev.Waypoint})
		case store.EventWaypointRemoved:
			f.sendEnvelope(streaming.TypeWaypointRemoved, streaming.WaypointRemovedPayload{WaypointID: ev.WaypointID})
		case store.EventGroupCreated:
			f.sendEnvelope(streaming.TypeGroupCreated, streaming.GroupPayload{Group: ev.Group})
		case store.EventGroupRemoved:
			f.sendEnvelope(streaming.TypeGroupRemoved, streaming.GroupRemovedPayload{GroupIDs: ev.IDs})
		case store.EventMembershipAdded:
			f.sendEnvelope(streaming.TypeMembershipAdded, streaming.MembershipPayload{WaypointID: ev.WaypointID, GroupIDs: ev.IDs})
		case store.EventMembershipRemoved:
			f.sendEnvelope(streaming.TypeMembershipRemoved, streaming.MembershipPayload{WaypointID: ev.WaypointID, GroupIDs: ev.IDs})
		case store.EventVisibilityChanged:
			f.sendEnvelope(streaming.TypeVisibilityChanged, streaming.VisibilityPayload{
				Mode:        string(ev.Mode),
				WaypointID:  ev.WaypointID,
				WaypointIDs: ev.IDs,
				Visible:     ev.Visible,
			})
		case store.EventWaypointsCleared:
			f.sendEnvelope(streaming.TypeWaypointsCleared, streaming.ClearedPayload{Count: ev.Count})
		case store.EventImported:
			f.sendEnvelope(streaming.TypeImported, streaming.ImportedPayload{Count: ev.Count})
		case store.EventGotoWaypoint:
			f.sendEnvelope(streaming.TypeGotoWaypoint, streaming.WaypointPayload{Waypoint: ev.Waypoint})
		}
	}
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it to the
// write loop (fire-and-forget).
func (f *Feed) sendEnvelope(msgType string, payload any) {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		f.log.Warn("Feed message dropped", "type", msgType, "error", err)
		return
	}
	f.conn.send(data)
}
