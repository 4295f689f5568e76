package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/creator-discovery-api/api"
	"github.com/linesmerrill/creator-discovery-api/config"
	"github.com/linesmerrill/creator-discovery-api/models"
	"github.com/linesmerrill/creator-discovery-api/pipeline"
)

const (
	// SnapshotEvent is the event name of every pushed snapshot
	SnapshotEvent = "creator_snapshot"
	writeWait     = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamClient serializes writes to one connection
type streamClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *streamClient) send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// SnapshotHub tracks connected clients per owner. An owner may hold several
// connections, one per open tab.
type SnapshotHub struct {
	mu      sync.Mutex
	clients map[string]map[*streamClient]struct{}
}

// NewSnapshotHub returns an empty hub
func NewSnapshotHub() *SnapshotHub {
	return &SnapshotHub{clients: make(map[string]map[*streamClient]struct{})}
}

// Publish pushes snap to every connection of owner. Connections that fail are dropped.
func (h *SnapshotHub) Publish(owner string, snap models.Snapshot) {
	h.mu.Lock()
	targets := make([]*streamClient, 0, len(h.clients[owner]))
	for c := range h.clients[owner] {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	event := models.StreamEvent{Event: SnapshotEvent, Data: models.NewSnapshotResponse(snap)}
	for _, c := range targets {
		if err := c.send(event); err != nil {
			zap.S().Warnw("failed to push creator snapshot", "owner", owner, "error", err)
			h.remove(owner, c)
		}
	}
}

// Count is the number of connections owner holds
func (h *SnapshotHub) Count(owner string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[owner])
}

func (h *SnapshotHub) add(owner string, c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[owner] == nil {
		h.clients[owner] = make(map[*streamClient]struct{})
	}
	h.clients[owner][c] = struct{}{}
}

func (h *SnapshotHub) remove(owner string, c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[owner][c]; !ok {
		return
	}
	delete(h.clients[owner], c)
	if len(h.clients[owner]) == 0 {
		delete(h.clients, owner)
	}
	_ = c.conn.Close()
}

// Stream exported for testing purposes
type Stream struct {
	Hub      *SnapshotHub
	Registry *pipeline.Registry
}

// StreamHandler upgrades to a WebSocket, sends the caller's current snapshot and
// then every snapshot their pipeline publishes
func (s Stream) StreamHandler(w http.ResponseWriter, r *http.Request) {
	owner, ok := api.OwnerFromContext(r.Context())
	if !ok {
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, errNoOwner)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Warnw("websocket upgrade failed", "owner", owner, "error", err)
		return
	}
	client := &streamClient{conn: conn}
	s.Hub.add(owner, client)
	zap.S().Infow("creator stream connected", "owner", owner, "connections", s.Hub.Count(owner))
	defer func() {
		s.Hub.remove(owner, client)
		zap.S().Infow("creator stream disconnected", "owner", owner)
	}()

	ctx, cancel := api.WithQueryTimeout(r.Context())
	snap := s.Registry.Get(ctx, owner).Snapshot()
	cancel()
	if err := client.send(models.StreamEvent{Event: SnapshotEvent, Data: models.NewSnapshotResponse(snap)}); err != nil {
		return
	}

	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}
