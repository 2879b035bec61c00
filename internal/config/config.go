package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	ListenAddr string

	RedisURL    string
	DatabaseURL string

	// Maximum rows in a pushed leaderboard snapshot.
	SnapshotLimit int

	// TTL on durable connection records; abandoned ids self-expire.
	ConnectionTTL time.Duration

	// Per-delivery write deadline on socket pushes.
	PushTimeout time.Duration

	// Optional webhook for achievement-unlock notifications. Empty disables.
	WebhookURL string

	// Rebuild the in-memory subscription registry from the durable
	// connection directory at startup.
	HydrateRegistry bool
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:      ":8080",
		SnapshotLimit:   100,
		ConnectionTTL:   24 * time.Hour,
		PushTimeout:     5 * time.Second,
		HydrateRegistry: true,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.WebhookURL = strings.TrimSpace(os.Getenv("WEBHOOK_URL"))

	if v := strings.TrimSpace(os.Getenv("SNAPSHOT_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SnapshotLimit = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("CONNECTION_TTL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ConnectionTTL = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("PUSH_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.PushTimeout = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("HYDRATE_REGISTRY")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.HydrateRegistry = b
		}
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	return cfg, nil
}
