package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayushmehta03/devlink-chat/internal/config"
	"github.com/ayushmehta03/devlink-chat/internal/devserver"
)

func main() {
	cfg := config.Load()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	srv := devserver.New(log)

	// A small demo conversation so a fresh client has something to page
	// through.
	srv.AddUser("alice", "Alice", "")
	srv.AddUser("bob", "Bob", "")
	now := time.Now()
	srv.SeedMessage("demo", "alice", "hey, is this thing on?", now.Add(-26*time.Hour))
	srv.SeedMessage("demo", "bob", "loud and clear", now.Add(-25*time.Hour))
	srv.SeedMessage("demo", "alice", "morning!", now.Add(-2*time.Hour))

	log.Info().Str("port", cfg.Port).Msg("devserver listening")
	if err := srv.App().Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
