package chat

import "time"

// MessageState says whether the server has accepted a message yet.
type MessageState int

const (
	// StatePending marks a locally inserted message awaiting its echo.
	StatePending MessageState = iota
	// StateConfirmed marks a message the server assigned a durable id to.
	StateConfirmed
)

// Message is one entry in a conversation. A pending entry and the confirmed
// echo the server later streams back are the same logical message; the store
// collapses them into one entry keyed by the server id.
type Message struct {
	ID        string // server-assigned, empty while pending
	TempID    string // local correlation key, cleared on confirmation
	RoomID    string
	SenderID  string
	Content   string
	CreatedAt time.Time // server-authoritative once confirmed
	SeenAt    *time.Time
	State     MessageState
}

// Confirmed reports whether the server accepted the message.
func (m Message) Confirmed() bool { return m.State == StateConfirmed }
