package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Pusher is a live delivery channel for one connected user. Push must not
// block the caller; implementations drop the payload when their buffer is
// full or the connection is gone.
type Pusher interface {
	Push(payload []byte) error
}

// Event is the envelope written to connected clients.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ConnectionMetrics receives connection lifecycle events.
type ConnectionMetrics interface {
	ConnectionOpened()
	ConnectionClosed()
}

// Hub tracks which users currently have a live connection. At most one
// connection is kept per user: registering again replaces the previous
// handle without closing it, the websocket layer owns connection teardown.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]Pusher
	logger  *zap.Logger
	metrics ConnectionMetrics
}

// NewHub creates an empty presence registry.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[int64]Pusher),
		logger:  logger,
	}
}

// SetMetrics wires an optional connection gauge.
func (h *Hub) SetMetrics(m ConnectionMetrics) {
	h.metrics = m
}

// Register associates a connection handle with a user. Invalid user ids are
// ignored with a log line so a bad token cannot poison the registry.
func (h *Hub) Register(userID int64, p Pusher) {
	if userID <= 0 {
		h.logger.Warn("realtime register ignored, invalid user id", zap.Int64("user_id", userID))
		return
	}
	if p == nil {
		h.logger.Warn("realtime register ignored, nil connection", zap.Int64("user_id", userID))
		return
	}

	h.mu.Lock()
	_, replaced := h.clients[userID]
	h.clients[userID] = p
	h.mu.Unlock()

	if h.metrics != nil && !replaced {
		h.metrics.ConnectionOpened()
	}
	h.logger.Info("realtime client registered",
		zap.Int64("user_id", userID),
		zap.Bool("replaced", replaced))
}

// Unregister removes the given handle from the registry. The handle, not the
// user id, identifies the entry: a stale connection that was already replaced
// by a newer one must not evict its successor.
func (h *Hub) Unregister(p Pusher) {
	if p == nil {
		return
	}

	h.mu.Lock()
	var removed int64
	for userID, registered := range h.clients {
		if registered == p {
			delete(h.clients, userID)
			removed = userID
			break
		}
	}
	h.mu.Unlock()

	if removed != 0 {
		if h.metrics != nil {
			h.metrics.ConnectionClosed()
		}
		h.logger.Info("realtime client unregistered", zap.Int64("user_id", removed))
	}
}

// Notify pushes an event to the user if they are online. Offline users are a
// silent no-op: durability lives in the notifications table, not here.
func (h *Hub) Notify(userID int64, event Event) {
	h.mu.RLock()
	p, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("realtime event marshal failed", zap.Error(err), zap.Int64("user_id", userID))
		return
	}
	if err := p.Push(payload); err != nil {
		h.logger.Warn("realtime push failed", zap.Error(err), zap.Int64("user_id", userID))
	}
}

// Online reports whether the user currently has a registered connection.
func (h *Hub) Online(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// OnlineUsers returns the ids of all currently connected users.
func (h *Hub) OnlineUsers() []int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]int64, 0, len(h.clients))
	for userID := range h.clients {
		ids = append(ids, userID)
	}
	return ids
}
