package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the chat client and the dev server.
type Config struct {
	APIURL   string // REST base URL
	WSURL    string // websocket base URL
	RoomID   string // conversation to open
	UserID   string // local user, for sender/self comparisons
	PageSize int    // history page size
	Port     string // devserver listen port
}

// Load reads configuration from environment variables. In development a
// .env file is picked up if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		APIURL:   getEnv("DEVLINK_API_URL", "http://localhost:8080"),
		WSURL:    getEnv("DEVLINK_WS_URL", "ws://localhost:8080"),
		RoomID:   os.Getenv("DEVLINK_ROOM"),
		UserID:   os.Getenv("DEVLINK_USER"),
		PageSize: getEnvInt("DEVLINK_PAGE_SIZE", 20),
		Port:     getEnv("PORT", "8080"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
