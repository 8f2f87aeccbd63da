// Package ws is the WebSocket transport: it upgrades connections, performs
// the room handshake, routes typed client actions into the server, and
// implements the server's fan-out emitter over per-client send buffers.
package ws

import (
	"encoding/json"
	"sync"

	"github.com/decred/slog"
)

// Hub tracks connected clients and fans events out to them. It implements
// server.Emitter: emission happens on the caller's goroutine in commit order,
// with per-client buffering so one slow client cannot stall the room.
type Hub struct {
	log slog.Logger

	mu      sync.RWMutex
	clients map[string]*Client            // socket id -> client
	rooms   map[string]map[string]*Client // room id -> socket id -> client
	users   map[string]*Client            // user id -> active client
}

// NewHub creates an empty hub.
func NewHub(log slog.Logger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		users:   make(map[string]*Client),
	}
}

// add registers a handshaken client under all three indices.
func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	room := h.rooms[c.roomID]
	if room == nil {
		room = make(map[string]*Client)
		h.rooms[c.roomID] = room
	}
	room[c.id] = c
	h.users[c.userID] = c
}

// remove drops a client. The user index is only cleared if it still points at
// this client, so a superseding connection survives the old one's close.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c.id)
	if room, ok := h.rooms[c.roomID]; ok {
		delete(room, c.id)
		if len(room) == 0 {
			delete(h.rooms, c.roomID)
		}
	}
	if h.users[c.userID] == c {
		delete(h.users, c.userID)
	}
}

// client resolves a socket id.
func (h *Hub) client(socketID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[socketID]
}

// EmitToRoom implements server.Emitter.
func (h *Hub) EmitToRoom(roomID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Errorf("marshal %s payload: %v", event, err)
		return
	}

	h.mu.RLock()
	room := h.rooms[roomID]
	targets := make([]*Client, 0, len(room))
	for _, c := range room {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(data)
	}
}

// EmitToUser implements server.Emitter.
func (h *Hub) EmitToUser(userID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Errorf("marshal %s payload: %v", event, err)
		return
	}

	h.mu.RLock()
	c := h.users[userID]
	h.mu.RUnlock()

	if c != nil {
		c.enqueue(data)
	}
}
