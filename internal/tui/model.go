// Package tui is the terminal host for the chat engine. All store mutations
// happen inside Update, which is the single-threaded event loop the engine
// expects; I/O runs in commands and comes back as messages.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/ayushmehta03/devlink-chat/internal/api"
	"github.com/ayushmehta03/devlink-chat/internal/chat"
)

// Model is the bubbletea model for one open conversation.
type Model struct {
	client   *api.Client
	store    *chat.Store
	session  *chat.Session
	tracker  *chat.Tracker
	typing   *chat.TypingEmitter
	receipts *chat.Coordinator
	events   <-chan chat.Event
	log      zerolog.Logger

	pageSize int
	peerID   string
	peer     api.User

	viewport    viewport.Model
	input       textarea.Model
	width       int
	height      int
	ready       bool
	loadingMore bool
	status      string
}

// New assembles the host around an already-opened session event stream.
func New(client *api.Client, store *chat.Store, session *chat.Session, events <-chan chat.Event, pageSize int, log zerolog.Logger) Model {
	input := textarea.New()
	input.Placeholder = "Type a message..."
	input.ShowLineNumbers = false
	input.SetHeight(1)
	input.CharLimit = 2000
	input.KeyMap.InsertNewline.SetEnabled(false)
	input.Focus()

	tracker := chat.NewTracker()
	return Model{
		client:   client,
		store:    store,
		session:  session,
		tracker:  tracker,
		typing:   chat.NewTypingEmitter(func(b bool) { session.Send(chat.OutboundTyping{IsTyping: b}) }),
		receipts: chat.NewCoordinator(store, client, log),
		events:   events,
		log:      log,
		pageSize: pageSize,
		input:    input,
		status:   "connecting",
	}
}

// Init kicks off the initial history load and starts draining the session.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadInitial(), m.waitEvent(), textarea.Blink)
}

type historyMsg struct {
	room    string
	msgs    []chat.Message
	hasMore bool
	pos     chat.HistoryPosition
	err     error
}

type eventMsg struct{ ev chat.Event }

type streamClosedMsg struct{}

type peerMsg struct {
	user api.User
	err  error
}

type reconciledMsg struct{}

func (m Model) loadInitial() tea.Cmd {
	client, room, limit := m.client, m.store.RoomID(), m.pageSize
	return func() tea.Msg {
		msgs, more, err := client.Messages(context.Background(), room, limit, time.Time{})
		return historyMsg{room: room, msgs: msgs, hasMore: more, pos: chat.Replace, err: err}
	}
}

func (m Model) loadOlder(before time.Time) tea.Cmd {
	client, room, limit := m.client, m.store.RoomID(), m.pageSize
	return func() tea.Msg {
		msgs, more, err := client.Messages(context.Background(), room, limit, before)
		return historyMsg{room: room, msgs: msgs, hasMore: more, pos: chat.Prepend, err: err}
	}
}

// waitEvent blocks on the session stream and feeds one event back into
// Update, which re-arms it.
func (m Model) waitEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg{ev: ev}
	}
}

func (m Model) fetchPeer(id string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		u, err := client.User(context.Background(), id)
		return peerMsg{user: u, err: err}
	}
}

// reconcile runs the receipt coordinator off the event loop; the
// coordinator itself de-duplicates per store version.
func (m Model) reconcile() tea.Cmd {
	receipts := m.receipts
	return func() tea.Msg {
		receipts.Reconcile(context.Background())
		return reconciledMsg{}
	}
}
