package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/ayushmehta03/devlink-chat/internal/api"
	"github.com/ayushmehta03/devlink-chat/internal/chat"
	"github.com/ayushmehta03/devlink-chat/internal/config"
	"github.com/ayushmehta03/devlink-chat/internal/tui"
)

func main() {
	cfg := config.Load()
	if cfg.RoomID == "" || cfg.UserID == "" {
		fmt.Fprintln(os.Stderr, "DEVLINK_ROOM and DEVLINK_USER must be set")
		os.Exit(1)
	}

	// The terminal belongs to the TUI; logs go to a file.
	logFile, err := os.OpenFile("devlink-chat.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open log file:", err)
		os.Exit(1)
	}
	defer logFile.Close()
	log := zerolog.New(logFile).With().Timestamp().Logger()

	client := api.NewClient(cfg.APIURL, cfg.UserID, log)
	store := chat.NewStore(cfg.RoomID, cfg.UserID)
	session := chat.NewSession(cfg.WSURL+"/ws/chat/"+cfg.RoomID, client.WSToken, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := session.Open(ctx)
	defer session.Close()

	model := tui.New(client, store, session, events, cfg.PageSize, log)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		log.Error().Err(err).Msg("tui exited")
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
