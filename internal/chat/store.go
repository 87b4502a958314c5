package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// HistoryPosition says where an ingested page lands relative to what is
// already loaded.
type HistoryPosition int

const (
	// Replace swaps the whole view; used for the initial page only.
	Replace HistoryPosition = iota
	// Prepend inserts the page before the current oldest message.
	Prepend
)

// Store is the single source of truth for one conversation's message
// sequence. It merges history pages, streamed events and local optimistic
// entries into one ordered, de-duplicated list.
//
// There is one logical writer, the host's event loop, but completion
// callbacks (receipt acks, history responses) may land on other goroutines,
// so the store carries its own lock. Reads hand out snapshot slices of the
// internal pointers; callers must not mutate the entries.
type Store struct {
	mu      sync.RWMutex
	roomID  string
	selfID  string
	msgs    []*Message
	hasMore bool
	version uint64

	now func() time.Time
}

// NewStore creates the view for a freshly opened conversation.
func NewStore(roomID, selfID string) *Store {
	return &Store{roomID: roomID, selfID: selfID, hasMore: true, now: time.Now}
}

// RoomID returns the conversation this store belongs to.
func (s *Store) RoomID() string { return s.roomID }

// SelfID returns the local user's id.
func (s *Store) SelfID() string { return s.selfID }

// Len returns the number of loaded messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}

// Version increments on every mutation. The receipt coordinator uses it to
// ack at most once per change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// HasMoreHistory reports whether older pages may still exist.
func (s *Store) HasMoreHistory() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasMore
}

// SetHasMore latches the pagination flag. Once history is exhausted it never
// reopens for this conversation.
func (s *Store) SetHasMore(more bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !more {
		s.hasMore = false
	}
}

// OldestLoaded returns the cursor for the next backward page.
func (s *Store) OldestLoaded() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.msgs) == 0 {
		return time.Time{}, false
	}
	return s.msgs[0].CreatedAt, true
}

// Messages returns the visible sequence. The slice is a copy; the entries
// are not.
func (s *Store) Messages() []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// IngestHistory merges a fetched page. Records whose server id is already
// loaded are dropped, except that a newer seen_at is adopted, so refetches
// and overlapping pages are harmless.
func (s *Store) IngestHistory(page []Message, pos HistoryPosition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.bump()
	if pos == Replace {
		s.msgs = nil
	}
	known := make(map[string]*Message, len(s.msgs))
	for _, m := range s.msgs {
		if m.ID != "" {
			known[m.ID] = m
		}
	}
	fresh := make([]*Message, 0, len(page))
	for i := range page {
		m := page[i]
		if have, ok := known[m.ID]; ok && m.ID != "" {
			if have.SeenAt == nil && m.SeenAt != nil {
				have.SeenAt = m.SeenAt
			}
			continue
		}
		m.State = StateConfirmed
		cp := m
		fresh = append(fresh, &cp)
	}
	// The loader already sorts pages, but a reversed page must never corrupt
	// display order.
	sortByTimestamp(fresh)
	if pos == Prepend {
		s.msgs = append(fresh, s.msgs...)
	} else {
		s.msgs = append(s.msgs, fresh...)
	}
}

// IngestStreamed applies one inbound message event. The transport delivers
// at least once, so duplicates by server id are discarded. The event is
// first correlated against the oldest pending entry with the same sender and
// content (the wire does not echo the client temp id back); a match is
// confirmed in place so the just-sent bubble does not jump.
func (s *Store) IngestStreamed(in Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.bump()
	if in.ID != "" {
		for _, m := range s.msgs {
			if m.State == StateConfirmed && m.ID == in.ID {
				return
			}
		}
	}
	for _, m := range s.msgs {
		if m.State == StatePending && m.SenderID == in.SenderID && m.Content == in.Content {
			m.ID = in.ID
			m.CreatedAt = in.CreatedAt
			m.SeenAt = in.SeenAt
			m.State = StateConfirmed
			m.TempID = ""
			return
		}
	}
	cp := in
	cp.State = StateConfirmed
	s.msgs = append(s.msgs, &cp)
	sortByTimestamp(s.msgs)
}

// InsertOptimistic appends a pending entry for a message the user just sent
// and returns its temp id. The caller fires the wire send separately; the
// two are independent and unordered.
func (s *Store) InsertOptimistic(content string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.bump()
	m := &Message{
		TempID:    "temp-" + uuid.NewString(),
		RoomID:    s.roomID,
		SenderID:  s.selfID,
		Content:   content,
		CreatedAt: s.now(),
		State:     StatePending,
	}
	s.msgs = append(s.msgs, m)
	return m.TempID
}

// MarkSeenUpTo stamps seen_at on the given confirmed messages. Already
// stamped entries keep their original timestamp.
func (s *Store) MarkSeenUpTo(ids []string, at time.Time) {
	if len(ids) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.bump()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for _, m := range s.msgs {
		if m.State == StateConfirmed && want[m.ID] && m.SeenAt == nil {
			t := at
			m.SeenAt = &t
		}
	}
}

// UnseenFromPeer lists confirmed peer messages we have not acknowledged.
func (s *Store) UnseenFromPeer() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for _, m := range s.msgs {
		if m.State == StateConfirmed && m.SenderID != s.selfID && m.SeenAt == nil {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// OwnUnseen lists our confirmed messages the peer has not seen. A peer ack
// applies to all of them.
func (s *Store) OwnUnseen() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for _, m := range s.msgs {
		if m.State == StateConfirmed && m.SenderID == s.selfID && m.SeenAt == nil {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// LastOwn returns the most recent message sent by the local user.
func (s *Store) LastOwn() (*Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.msgs) - 1; i >= 0; i-- {
		if s.msgs[i].SenderID == s.selfID {
			return s.msgs[i], true
		}
	}
	return nil, false
}

// bump must be called with the write lock held.
func (s *Store) bump() { s.version++ }

func sortByTimestamp(ms []*Message) {
	sort.SliceStable(ms, func(i, j int) bool {
		return ms[i].CreatedAt.Before(ms[j].CreatedAt)
	})
}
