package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60

	sendBuffer = 64
)

// Event names pushed to thread subscribers.
const (
	EventMessage = "message"
	EventTyping  = "typing"
)

// Publisher fans an event out to every instance subscribed to a thread.
type Publisher interface {
	PublishThreadEvent(threadID uuid.UUID, event string, payload []byte) error
}

// Subscriber subscribes to a thread channel and invokes handler for incoming events.
type Subscriber interface {
	SubscribeThread(threadID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains thread_id -> set of connections.
// The Redis channel of a thread is subscribed while at least one local client is in the room.
type Hub struct {
	rooms   map[uuid.UUID]map[string]*Client
	subs    map[uuid.UUID]func()
	mu      sync.RWMutex
	logger  *zap.Logger
	pub     Publisher
	sub     Subscriber
	origins map[string]bool
}

// NewHub creates a thread hub. pub and sub may be nil for a single-instance hub.
// allowedOrigins restricts browser upgrades; empty or "*" allows any origin.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber, allowedOrigins []string) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		rooms:  make(map[uuid.UUID]map[string]*Client),
		subs:   make(map[uuid.UUID]func()),
		logger: logger,
		pub:    pub,
		sub:    sub,
	}
	for _, o := range allowedOrigins {
		if o == "*" {
			h.origins = nil
			break
		}
		if h.origins == nil {
			h.origins = make(map[string]bool)
		}
		h.origins[o] = true
	}
	return h
}

// Register adds a client to a thread room. Starts the Redis subscription for the first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.ThreadID] == nil {
		h.rooms[c.ThreadID] = make(map[string]*Client)
		if h.sub != nil {
			threadID := c.ThreadID
			cancel, err := h.sub.SubscribeThread(threadID, func(event string, payload []byte) {
				h.Broadcast(threadID, event, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("thread subscribe failed", zap.String("thread_id", threadID.String()), zap.Error(err))
			} else {
				h.subs[threadID] = cancel
			}
		}
	}
	h.rooms[c.ThreadID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined thread", zap.String("client_id", c.ID), zap.String("thread_id", c.ThreadID.String()))
}

// Unregister removes a client from its room and closes its send channel.
// The Redis subscription is cancelled when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.ThreadID]; ok {
		if _, present := m[c.ID]; present {
			delete(m, c.ID)
			close(c.send)
		}
		if len(m) == 0 {
			delete(h.rooms, c.ThreadID)
			if cancel, ok := h.subs[c.ThreadID]; ok {
				cancel()
				delete(h.subs, c.ThreadID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left thread", zap.String("client_id", c.ID), zap.String("thread_id", c.ThreadID.String()))
}

// Broadcast sends an event to the clients of a thread connected to this instance.
func (h *Hub) Broadcast(threadID uuid.UUID, event string, payload interface{}) {
	data, ok := encode(payload)
	if !ok {
		return
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[threadID] {
		select {
		case c.send <- msg:
		default:
			// slow reader, drop
		}
	}
}

// Publish delivers an event to every subscriber of a thread on every instance.
// With Redis configured the subscriber callback performs the broadcast, so local clients receive it once.
func (h *Hub) Publish(threadID uuid.UUID, event string, payload interface{}) {
	data, ok := encode(payload)
	if !ok {
		return
	}
	if h.pub != nil {
		if err := h.pub.PublishThreadEvent(threadID, event, data); err != nil {
			h.logger.Warn("thread publish failed", zap.String("thread_id", threadID.String()), zap.Error(err))
			h.Broadcast(threadID, event, data)
		}
		return
	}
	h.Broadcast(threadID, event, data)
}

// RoomSize returns the number of local connections in a thread.
func (h *Hub) RoomSize(threadID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[threadID])
}

func encode(payload interface{}) (json.RawMessage, bool) {
	switch v := payload.(type) {
	case json.RawMessage:
		return v, true
	case []byte:
		return v, true
	default:
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, false
		}
		return data, true
	}
}
