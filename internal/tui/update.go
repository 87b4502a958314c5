package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ayushmehta03/devlink-chat/internal/chat"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)
	case historyMsg:
		return m.handleHistory(msg)
	case eventMsg:
		return m.handleEvent(msg.ev)
	case peerMsg:
		if msg.err == nil {
			m.peer = msg.user
		}
		return m, nil
	case streamClosedMsg:
		m.status = "session closed"
		return m, nil
	case reconciledMsg:
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width, m.height = msg.Width, msg.Height
	vpHeight := msg.Height - 5 // header, typing line, input, status
	if vpHeight < 1 {
		vpHeight = 1
	}
	if !m.ready {
		m.viewport = newViewport(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
	}
	m.input.SetWidth(msg.Width - 4)
	m.refresh()
	m.viewport.GotoBottom()
	return m, nil
}

func (m Model) handleHistory(msg historyMsg) (tea.Model, tea.Cmd) {
	m.loadingMore = false
	// Responses for a conversation that is no longer open are dropped, not
	// applied.
	if msg.room != m.store.RoomID() {
		return m, nil
	}
	if msg.err != nil {
		m.log.Warn().Err(msg.err).Msg("history load failed")
		m.status = "history load failed"
		return m, nil
	}
	m.store.IngestHistory(msg.msgs, msg.pos)
	m.store.SetHasMore(msg.hasMore)
	m.refresh()
	if msg.pos == chat.Replace {
		m.viewport.GotoBottom()
	}
	cmds := []tea.Cmd{m.reconcile()}
	if m.peerID == "" {
		if id := m.findPeerID(); id != "" {
			m.peerID = id
			cmds = append(cmds, m.fetchPeer(id))
		}
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleEvent(ev chat.Event) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.waitEvent()}
	switch ev := ev.(type) {
	case chat.MessageEvent:
		m.store.IngestStreamed(ev.Message)
		m.refresh()
		m.viewport.GotoBottom()
		cmds = append(cmds, m.reconcile())
		if m.peerID == "" && ev.Message.SenderID != m.store.SelfID() {
			m.peerID = ev.Message.SenderID
			cmds = append(cmds, m.fetchPeer(m.peerID))
		}
	case chat.TypingEvent:
		if ev.UserID != m.store.SelfID() {
			m.tracker.OnTyping(ev.UserID, ev.IsTyping)
		}
	case chat.OnlineEvent:
		if ev.UserID != m.store.SelfID() {
			m.tracker.OnOnline(ev.UserID)
		}
	case chat.OfflineEvent:
		if ev.UserID != m.store.SelfID() {
			m.tracker.OnOffline(ev.UserID, ev.LastSeen)
		}
	case chat.SeenEvent:
		if ev.UserID != m.store.SelfID() {
			m.store.MarkSeenUpTo(m.store.OwnUnseen(), ev.SeenAt)
			m.refresh()
		}
	case chat.ConnectedEvent:
		m.status = "connected"
	case chat.DisconnectedEvent:
		// Peer state is stale from here; show unknown until fresh signals.
		m.tracker.Reset()
		m.status = "reconnecting"
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.typing.Stop()
		m.session.Close()
		return m, tea.Quit
	case tea.KeyEnter:
		return m.sendCurrent()
	case tea.KeyPgUp:
		if m.viewport.AtTop() {
			if cmd := m.maybeLoadOlder(); cmd != nil {
				return m, cmd
			}
		}
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		m.typing.Keystroke()
	}
	return m, cmd
}

// sendCurrent inserts the optimistic entry and fires the wire send. The two
// are deliberately independent; the entry stays pending until the echo
// arrives.
func (m Model) sendCurrent() (tea.Model, tea.Cmd) {
	content := strings.TrimSpace(m.input.Value())
	if content == "" {
		return m, nil
	}
	m.store.InsertOptimistic(content)
	m.session.Send(chat.OutboundMessage{Content: content})
	m.typing.Stop()
	m.input.Reset()
	m.refresh()
	m.viewport.GotoBottom()
	return m, nil
}

func (m *Model) maybeLoadOlder() tea.Cmd {
	if m.loadingMore || !m.store.HasMoreHistory() {
		return nil
	}
	before, ok := m.store.OldestLoaded()
	if !ok {
		return nil
	}
	m.loadingMore = true
	return m.loadOlder(before)
}

// findPeerID picks the other participant out of the loaded messages.
func (m Model) findPeerID() string {
	for _, msg := range m.store.Messages() {
		if msg.SenderID != m.store.SelfID() && msg.SenderID != "" {
			return msg.SenderID
		}
	}
	return ""
}

func (m *Model) refresh() {
	if m.ready {
		m.viewport.SetContent(m.renderMessages())
	}
}
