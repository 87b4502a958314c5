// Package devserver is an in-memory stand-in for the devLink chat backend.
// It speaks the same wire contract the production server does — history
// pages, seen acknowledgements, websocket tokens and the event stream — and
// exists for local development and the engine's integration tests. Nothing
// here survives a restart.
package devserver

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type storedMessage struct {
	ID        string     `json:"id"`
	RoomID    string     `json:"room_id"`
	SenderID  string     `json:"sender_id"`
	Content   string     `json:"content"`
	SeenAt    *time.Time `json:"seen_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type userRecord struct {
	Name   string `json:"name"`
	Avatar string `json:"profile_image,omitempty"`
}

// Server holds the in-memory chat state behind the HTTP and websocket
// handlers. The hub carries its own lock; the mu here guards everything
// else.
type Server struct {
	hub *Hub
	log zerolog.Logger

	mu       sync.Mutex
	messages map[string][]*storedMessage // room -> ascending by created_at
	tokens   map[string]string           // one-shot token -> user id
	users    map[string]userRecord
}

// New creates an empty server.
func New(log zerolog.Logger) *Server {
	return &Server{
		hub:      newHub(log),
		log:      log,
		messages: make(map[string][]*storedMessage),
		tokens:   make(map[string]string),
		users:    make(map[string]userRecord),
	}
}

// AddUser seeds display metadata served by /users/:id.
func (s *Server) AddUser(id, name, avatar string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = userRecord{Name: name, Avatar: avatar}
}

// SeedMessage plants a confirmed message into a room's history.
func (s *Server) SeedMessage(roomID, senderID, content string, createdAt time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(roomID, senderID, content, createdAt).ID
}

func (s *Server) appendLocked(roomID, senderID, content string, createdAt time.Time) *storedMessage {
	m := &storedMessage{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: createdAt,
	}
	s.messages[roomID] = append(s.messages[roomID], m)
	sort.SliceStable(s.messages[roomID], func(i, j int) bool {
		return s.messages[roomID][i].CreatedAt.Before(s.messages[roomID][j].CreatedAt)
	})
	return m
}

// App builds the fiber application with the chat wire contract mounted.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Get("/chat/rooms/:room_id/messages", s.historyHandler)
	app.Post("/chat/rooms/:room_id/seen", s.seenHandler)
	app.Get("/ws/token", s.tokenHandler)
	app.Get("/users/:id", s.userHandler)
	app.Get("/ws/chat/:room_id", websocket.New(s.chatSocket))

	return app
}

// historyHandler GET /chat/rooms/:room_id/messages?limit=N[&before=ts]
// Returns the newest limit messages (before the cursor, when given),
// ascending by created_at.
func (s *Server) historyHandler(c *fiber.Ctx) error {
	roomID := c.Params("room_id")
	limit := c.QueryInt("limit", 20)
	if limit <= 0 {
		limit = 20
	}
	var before time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid before cursor"})
		}
		before = t
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.messages[roomID]
	eligible := make([]*storedMessage, 0, len(all))
	for _, m := range all {
		if before.IsZero() || m.CreatedAt.Before(before) {
			eligible = append(eligible, m)
		}
	}
	if len(eligible) > limit {
		eligible = eligible[len(eligible)-limit:]
	}
	out := make([]storedMessage, 0, len(eligible))
	for _, m := range eligible {
		out = append(out, *m)
	}
	return c.JSON(out)
}

// seenHandler POST /chat/rooms/:room_id/seen
// Stamps seen_at on every unseen message not sent by the caller, then
// broadcasts the ack so connected peers update without a refetch.
func (s *Server) seenHandler(c *fiber.Ctx) error {
	roomID := c.Params("room_id")
	userID := s.callerID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unknown caller"})
	}
	now := time.Now()

	s.mu.Lock()
	changed := false
	for _, m := range s.messages[roomID] {
		if m.SenderID != userID && m.SeenAt == nil {
			t := now
			m.SeenAt = &t
			changed = true
		}
	}
	s.mu.Unlock()

	if changed {
		s.hub.broadcast(roomID, fiber.Map{
			"type":    "seen",
			"user_id": userID,
			"seen_at": now,
		})
	}
	return c.JSON(fiber.Map{"message": "Messages marked as seen"})
}

// tokenHandler GET /ws/token
// Issues a one-shot token bound to the caller. The real backend scopes these
// to the session cookie; here the caller identifies itself directly.
func (s *Server) tokenHandler(c *fiber.Ctx) error {
	userID := s.callerID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unknown caller"})
	}
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = userID
	s.mu.Unlock()
	return c.JSON(fiber.Map{"token": token})
}

// userHandler GET /users/:id
func (s *Server) userHandler(c *fiber.Ctx) error {
	id := c.Params("id")
	s.mu.Lock()
	u, ok := s.users[id]
	s.mu.Unlock()
	if !ok {
		u = userRecord{Name: "User " + shortID(id)}
	}
	return c.JSON(fiber.Map{"user": fiber.Map{
		"id":            id,
		"name":          u.Name,
		"profile_image": u.Avatar,
	}})
}

// chatSocket GET /ws/chat/:room_id?token=...
func (s *Server) chatSocket(conn *websocket.Conn) {
	roomID := conn.Params("room_id")
	token := conn.Query("token")

	s.mu.Lock()
	userID, ok := s.tokens[token]
	delete(s.tokens, token)
	s.mu.Unlock()
	if !ok || userID == "" {
		conn.Close()
		return
	}

	cl := &client{userID: userID, conn: conn, send: make(chan []byte, 16)}
	s.hub.join(roomID, cl)
	go cl.writePump()

	s.hub.broadcast(roomID, fiber.Map{"type": "user_online", "user_id": userID})
	s.log.Info().Str("room", roomID).Str("user", userID).Msg("peer connected")

	defer func() {
		s.hub.leave(roomID, cl)
		close(cl.send)
		now := time.Now()
		s.hub.broadcast(roomID, fiber.Map{
			"type":      "user_offline",
			"user_id":   userID,
			"last_seen": now,
		})
		s.log.Info().Str("room", roomID).Str("user", userID).Msg("peer disconnected")
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var payload struct {
			Type     string `json:"type"`
			Content  string `json:"content"`
			IsTyping bool   `json:"is_typing"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			continue
		}
		switch payload.Type {
		case "typing":
			s.hub.broadcast(roomID, fiber.Map{
				"type":      "typing",
				"user_id":   userID,
				"is_typing": payload.IsTyping,
			})
		case "message":
			if payload.Content == "" {
				continue
			}
			s.mu.Lock()
			m := s.appendLocked(roomID, userID, payload.Content, time.Now())
			s.mu.Unlock()
			s.hub.broadcast(roomID, fiber.Map{
				"type":       "message",
				"id":         m.ID,
				"room_id":    roomID,
				"sender_id":  userID,
				"content":    m.Content,
				"created_at": m.CreatedAt,
			})
		}
	}
}

// callerID identifies the requester. Header first, query as a convenience
// for curl.
func (s *Server) callerID(c *fiber.Ctx) string {
	if id := c.Get("X-User-ID"); id != "" {
		return id
	}
	return c.Query("user")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
