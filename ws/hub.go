package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"realtime-chat/bus"
)

const (
	opDeliver = "deliver"
	opEvict   = "evict"
)

// frame is what travels over the bus for one channel.
type frame struct {
	Op    string          `json:"op"`
	User  string          `json:"user,omitempty"`
	Event json.RawMessage `json:"event,omitempty"`
}

// Hub tracks which local connections listen on which channels. Events are
// published to the bus and delivered to local subscribers when the bus hands
// them back, so every instance sees every channel.
type Hub struct {
	bus bus.Bus
	log *zap.Logger

	mu       sync.RWMutex
	channels map[string]map[*Client]struct{} // channel -> clients
	clients  map[*Client]map[string]struct{} // client -> channels
	users    map[string]map[*Client]struct{} // user id -> clients
}

func NewHub(b bus.Bus, log *zap.Logger) *Hub {
	return &Hub{
		bus:      b,
		log:      log,
		channels: make(map[string]map[*Client]struct{}),
		clients:  make(map[*Client]map[string]struct{}),
		users:    make(map[string]map[*Client]struct{}),
	}
}

// Start subscribes the hub to the bus. Delivery stops when ctx ends.
func (h *Hub) Start(ctx context.Context) error {
	return h.bus.Subscribe(ctx, h.handle)
}

// Emit publishes {type: event, data: data} on channel.
func (h *Hub) Emit(ctx context.Context, channel, event string, data any) error {
	msg, err := encode(event, data)
	if err != nil {
		return err
	}
	return h.publish(ctx, channel, frame{Op: opDeliver, Event: msg})
}

// Evict unsubscribes userID's connections from channel on every instance.
// An empty userID evicts all connections.
func (h *Hub) Evict(ctx context.Context, channel, userID string) error {
	return h.publish(ctx, channel, frame{Op: opEvict, User: userID})
}

func (h *Hub) publish(ctx context.Context, channel string, f frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return h.bus.Publish(ctx, channel, payload)
}

func (h *Hub) handle(channel string, payload []byte) {
	var f frame
	if err := json.Unmarshal(payload, &f); err != nil {
		h.log.Warn("dropping malformed bus frame", zap.String("channel", channel), zap.Error(err))
		return
	}
	switch f.Op {
	case opDeliver:
		h.deliver(channel, f.Event)
	case opEvict:
		h.evict(channel, f.User)
	default:
		h.log.Warn("unknown bus op", zap.String("op", f.Op))
	}
}

func (h *Hub) deliver(channel string, msg []byte) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.channels[channel]))
	for c := range h.channels[channel] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(msg)
	}
}

func (h *Hub) evict(channel, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.channels[channel] {
		if userID == "" || c.UserID() == userID {
			h.unsubscribeLocked(c, channel)
		}
	}
}

// Bind records c as one of userID's connections. It reports whether c is the
// user's first connection on this instance.
func (h *Hub) Bind(c *Client, userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.users[userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.users[userID] = set
	}
	set[c] = struct{}{}
	return len(set) == 1
}

func (h *Hub) Subscribe(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.channels[channel] == nil {
		h.channels[channel] = make(map[*Client]struct{})
	}
	h.channels[channel][c] = struct{}{}
	if h.clients[c] == nil {
		h.clients[c] = make(map[string]struct{})
	}
	h.clients[c][channel] = struct{}{}
}

func (h *Hub) Unsubscribe(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(c, channel)
}

func (h *Hub) unsubscribeLocked(c *Client, channel string) {
	if set, ok := h.channels[channel]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.channels, channel)
		}
	}
	if set, ok := h.clients[c]; ok {
		delete(set, channel)
		if len(set) == 0 {
			delete(h.clients, c)
		}
	}
}

// Remove drops c from every channel. It reports whether c was the last local
// connection of its user.
func (h *Hub) Remove(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for channel := range h.clients[c] {
		if set, ok := h.channels[channel]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.channels, channel)
			}
		}
	}
	delete(h.clients, c)

	userID := c.UserID()
	if userID == "" {
		return false
	}
	set, ok := h.users[userID]
	if !ok {
		return false
	}
	delete(set, c)
	if len(set) > 0 {
		return false
	}
	delete(h.users, userID)
	return true
}

// IsSubscribed reports whether c listens on channel.
func (h *Hub) IsSubscribed(c *Client, channel string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.channels[channel][c]
	return ok
}

// Connections returns the number of local connections subscribed to channel.
func (h *Hub) Connections(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}
