package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Event is one item on a session's inbound stream: a decoded wire frame or a
// connection lifecycle notice.
type Event interface{ isEvent() }

// MessageEvent carries a confirmed message broadcast by the server.
type MessageEvent struct {
	Message Message
}

// TypingEvent signals a peer started or stopped typing.
type TypingEvent struct {
	UserID   string
	IsTyping bool
}

// OnlineEvent signals a peer connected to the room.
type OnlineEvent struct {
	UserID string
}

// OfflineEvent signals a peer disconnected. LastSeen is zero when the server
// omitted it.
type OfflineEvent struct {
	UserID   string
	LastSeen time.Time
}

// SeenEvent is the receipt acknowledgement: the peer marked the conversation
// seen up to SeenAt.
type SeenEvent struct {
	UserID string
	SeenAt time.Time
}

// ConnectedEvent is emitted after every successful handshake, including
// reconnects.
type ConnectedEvent struct{}

// DisconnectedEvent is emitted when an established connection drops. The
// session keeps retrying; peer presence is stale from this point on.
type DisconnectedEvent struct {
	Err error
}

func (MessageEvent) isEvent()      {}
func (TypingEvent) isEvent()       {}
func (OnlineEvent) isEvent()       {}
func (OfflineEvent) isEvent()      {}
func (SeenEvent) isEvent()         {}
func (ConnectedEvent) isEvent()    {}
func (DisconnectedEvent) isEvent() {}

// ErrUnknownEvent marks a frame whose type tag the client does not recognize.
// Such frames are dropped, not treated as failures.
var ErrUnknownEvent = errors.New("chat: unknown event type")

// wireFrame is the superset of every inbound frame shape, discriminated by
// Type.
type wireFrame struct {
	Type      string     `json:"type"`
	ID        string     `json:"id,omitempty"`
	RoomID    string     `json:"room_id,omitempty"`
	UserID    string     `json:"user_id,omitempty"`
	SenderID  string     `json:"sender_id,omitempty"`
	Content   string     `json:"content,omitempty"`
	IsTyping  bool       `json:"is_typing,omitempty"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
	SeenAt    *time.Time `json:"seen_at,omitempty"`
}

// DecodeEvent parses one inbound frame.
func DecodeEvent(data []byte) (Event, error) {
	var f wireFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("chat: decode frame: %w", err)
	}
	switch f.Type {
	case "message":
		return MessageEvent{Message: Message{
			ID:        f.ID,
			RoomID:    f.RoomID,
			SenderID:  f.SenderID,
			Content:   f.Content,
			CreatedAt: f.CreatedAt,
			SeenAt:    f.SeenAt,
			State:     StateConfirmed,
		}}, nil
	case "typing":
		return TypingEvent{UserID: f.UserID, IsTyping: f.IsTyping}, nil
	case "user_online":
		return OnlineEvent{UserID: f.UserID}, nil
	case "user_offline":
		ev := OfflineEvent{UserID: f.UserID}
		if f.LastSeen != nil {
			ev.LastSeen = *f.LastSeen
		}
		return ev, nil
	case "seen":
		ev := SeenEvent{UserID: f.UserID}
		if f.SeenAt != nil {
			ev.SeenAt = *f.SeenAt
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, f.Type)
	}
}

// Outbound is a frame the client writes to the server.
type Outbound interface {
	encode() ([]byte, error)
}

// OutboundMessage sends a chat message.
type OutboundMessage struct {
	Content string
}

func (o OutboundMessage) encode() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	}{"message", o.Content})
}

// OutboundTyping sends a typing indicator.
type OutboundTyping struct {
	IsTyping bool
}

func (o OutboundTyping) encode() ([]byte, error) {
	return json.Marshal(struct {
		Type     string `json:"type"`
		IsTyping bool   `json:"is_typing"`
	}{"typing", o.IsTyping})
}
