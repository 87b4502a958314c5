package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	dayStyle      = lipgloss.NewStyle().Faint(true).Align(lipgloss.Center)
	ownStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Align(lipgloss.Right)
	peerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	metaStyle     = lipgloss.NewStyle().Faint(true)
	statusStyle   = lipgloss.NewStyle().Faint(true).Padding(0, 1)
	presenceStyle = lipgloss.NewStyle().Faint(true)
)

func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.MouseWheelEnabled = true
	return vp
}

func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}
	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.typingView())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(m.status + " · enter to send · pgup for older · esc to quit"))
	return b.String()
}

func (m Model) headerView() string {
	name := m.peer.Name
	if name == "" {
		name = "Chat"
	}
	return headerStyle.Render(name) + " " + presenceStyle.Render(m.presenceView())
}

func (m Model) presenceView() string {
	if m.peerID == "" {
		return ""
	}
	p := m.tracker.Peer(m.peerID)
	switch {
	case !p.Known:
		return ""
	case p.Online:
		return "online"
	case p.LastSeenAt != nil:
		return "last seen " + p.LastSeenAt.Local().Format("15:04")
	default:
		return "offline"
	}
}

func (m Model) typingView() string {
	if m.peerID != "" && m.tracker.Peer(m.peerID).IsTyping {
		name := m.peer.Name
		if name == "" {
			name = "Peer"
		}
		return metaStyle.Render(name + " is typing…")
	}
	return ""
}

func (m Model) renderMessages() string {
	width := m.viewport.Width
	lastOwn, hasLastOwn := m.store.LastOwn()

	var b strings.Builder
	for _, group := range m.store.GroupedByDay() {
		b.WriteString(dayStyle.Width(width).Render("— "+group.Label+" —") + "\n")
		for _, msg := range group.Messages {
			own := msg.SenderID == m.store.SelfID()
			line := fmt.Sprintf("%s  %s", msg.Content, metaStyle.Render(msg.CreatedAt.Local().Format("15:04")))
			if own {
				if !msg.Confirmed() {
					line += metaStyle.Render(" Sending…")
				} else if hasLastOwn && msg == lastOwn && msg.SeenAt != nil {
					line += metaStyle.Render(" Seen")
				}
				b.WriteString(ownStyle.Width(width).Render(line) + "\n")
			} else {
				b.WriteString(peerStyle.Render(line) + "\n")
			}
		}
	}
	return b.String()
}
