package chat

import (
	"sync"
	"time"
)

// Presence is a peer's ephemeral state. Known stays false until a signal
// arrives on the current connection; the UI treats unknown as "no badge".
type Presence struct {
	Known      bool
	Online     bool
	LastSeenAt *time.Time
	IsTyping   bool
}

// Tracker holds per-peer presence and typing state. Nothing here is
// persisted, and everything is wiped on reconnect: a peer may have gone
// offline and back while we were away, so stale state is never assumed.
type Tracker struct {
	mu    sync.RWMutex
	peers map[string]Presence
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{peers: make(map[string]Presence)}
}

// OnOnline records a user_online event.
func (t *Tracker) OnOnline(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.peers[userID]
	p.Known = true
	p.Online = true
	p.LastSeenAt = nil
	t.peers[userID] = p
}

// OnOffline records a user_offline event. A zero lastSeen means the server
// did not report one.
func (t *Tracker) OnOffline(userID string, lastSeen time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.peers[userID]
	p.Known = true
	p.Online = false
	p.IsTyping = false
	if !lastSeen.IsZero() {
		ls := lastSeen
		p.LastSeenAt = &ls
	}
	t.peers[userID] = p
}

// OnTyping records a typing event.
func (t *Tracker) OnTyping(userID string, isTyping bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.peers[userID]
	p.Known = true
	p.IsTyping = isTyping
	t.peers[userID] = p
}

// Peer returns a snapshot of one peer's state.
func (t *Tracker) Peer(userID string) Presence {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.peers[userID]
}

// Reset drops every peer back to unknown. Called whenever the transport
// reconnects.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peers = make(map[string]Presence)
}
