package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all agent configuration.
type Config struct {
	// Backend endpoints.
	APIBaseURL string
	WSBaseURL  string
	// AuthToken is the opaque platform JWT issued at login. The agent never
	// verifies it; it only forwards it and reads the user id claim.
	AuthToken string

	// Local status API served to the UI on loopback.
	StatusPort string
	GinMode    string
	// AllowedOrigins controls CORS on the status API. Empty means all
	// origins are permitted (dev default).
	AllowedOrigins []string

	LogLevel  string
	LogFormat string

	HTTPTimeout      time.Duration
	TickInterval     time.Duration
	SnapshotInterval time.Duration

	SubmitRetryLimit int
	BackoffBase      time.Duration
	BackoffCap       time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // Ignore error — .env is optional

	return &Config{
		APIBaseURL:       getEnv("API_BASE_URL", "http://localhost:8080"),
		WSBaseURL:        getEnv("WS_BASE_URL", "ws://localhost:8080"),
		AuthToken:        getEnv("AUTH_TOKEN", ""),
		StatusPort:       getEnv("STATUS_PORT", "7070"),
		GinMode:          getEnv("GIN_MODE", "debug"),
		AllowedOrigins:   parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "pretty"),
		HTTPTimeout:      time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 15)) * time.Second,
		TickInterval:     time.Duration(getEnvInt("TICK_INTERVAL_MS", 1000)) * time.Millisecond,
		SnapshotInterval: time.Duration(getEnvInt("SNAPSHOT_INTERVAL_SECONDS", 60)) * time.Second,
		SubmitRetryLimit: getEnvInt("SUBMIT_RETRY_LIMIT", 8),
		BackoffBase:      time.Duration(getEnvInt("BACKOFF_BASE_MS", 1000)) * time.Millisecond,
		BackoffCap:       time.Duration(getEnvInt("BACKOFF_CAP_SECONDS", 30)) * time.Second,
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
	if err != nil {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
