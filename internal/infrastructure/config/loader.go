// Package config reads process-level settings from the environment, with an
// optional .env file for development.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Deck side.
	DBPath     string
	OverlayURL string // ws base of the display host, e.g. ws://127.0.0.1:8422
	APIAddr    string // REST listen address for the deck UI

	// Overlay side.
	ListenAddr string

	// Platform bootstrap; the persisted profile overrides these once saved.
	TwitchUsername string
	TwitchToken    string
	TwitchClientID string
	TwitchChannel  string

	PollInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:         envOr("DECKPAIR_DB_PATH", "data/deckpair.db"),
		OverlayURL:     envOr("DECKPAIR_OVERLAY_URL", "ws://127.0.0.1:8422"),
		APIAddr:        envOr("DECKPAIR_API_ADDR", "127.0.0.1:8421"),
		ListenAddr:     envOr("DECKPAIR_LISTEN_ADDR", "127.0.0.1:8422"),
		TwitchUsername: os.Getenv("TWITCH_USERNAME"),
		TwitchToken:    os.Getenv("TWITCH_ACCESS_TOKEN"),
		TwitchClientID: os.Getenv("TWITCH_CLIENT_ID"),
		TwitchChannel:  os.Getenv("TWITCH_CHANNEL"),
		PollInterval:   30 * time.Second,
	}

	if raw := os.Getenv("DECKPAIR_POLL_INTERVAL_SECONDS"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("config: DECKPAIR_POLL_INTERVAL_SECONDS: invalid value %q", raw)
		}
		cfg.PollInterval = time.Duration(secs) * time.Second
	}

	if cfg.TwitchToken == "" || cfg.TwitchChannel == "" {
		log.Println("config: twitch credentials not set, chat stays offline until configured")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
