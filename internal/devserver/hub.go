package devserver

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog"
)

// Conn is the subset of the websocket connection the hub needs.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// client is one websocket attendee of a room.
type client struct {
	userID string
	conn   Conn
	send   chan []byte
}

// writePump drains the send channel onto the wire. One pump per client; it
// exits when the channel closes or a write fails.
func (c *client) writePump() {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// Hub tracks which connections are in which room and fans frames out to
// them.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*client]bool
	log   zerolog.Logger
}

func newHub(log zerolog.Logger) *Hub {
	return &Hub{rooms: make(map[string]map[*client]bool), log: log}
}

func (h *Hub) join(roomID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*client]bool)
	}
	h.rooms[roomID][c] = true
}

func (h *Hub) leave(roomID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[roomID], c)
	if len(h.rooms[roomID]) == 0 {
		delete(h.rooms, roomID)
	}
}

// broadcast sends one frame to every connection in the room. Slow consumers
// lose frames rather than blocking the room.
func (h *Hub) broadcast(roomID string, frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal broadcast frame")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[roomID] {
		select {
		case c.send <- data:
		default:
		}
	}
}
