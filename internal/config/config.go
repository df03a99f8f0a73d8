package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration for the proctor client and
// the stub backend.
type Config struct {
	// Client side.
	APIBaseURL  string
	HTTPTimeout time.Duration
	LogLevel    string
	LogFormat   string

	// Session tuning. AutoSubmitLead is how far before the true deadline
	// the auto-submit fires, absorbing network latency for the final call.
	AutoSubmitLead    time.Duration
	TickInterval      time.Duration
	ViolationDedupe   time.Duration
	ViolationCooldown time.Duration

	// Stub backend (cmd/stubd).
	ServerPort      string
	GinMode         string
	AttemptDuration time.Duration
	ViolationLimit  int
	// AllowedOrigins controls HTTP CORS on the stub backend.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // Ignore error — .env is optional

	return &Config{
		APIBaseURL:  getEnv("API_BASE_URL", "http://localhost:5000/api"),
		HTTPTimeout: getEnvDurationMS("HTTP_TIMEOUT_MS", 10_000),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "pretty"),

		AutoSubmitLead:    getEnvDurationMS("AUTO_SUBMIT_LEAD_MS", 500),
		TickInterval:      getEnvDurationMS("TICK_INTERVAL_MS", 200),
		ViolationDedupe:   getEnvDurationMS("VIOLATION_DEDUPE_MS", 400),
		ViolationCooldown: getEnvDurationMS("VIOLATION_COOLDOWN_MS", 1_000),

		ServerPort:      getEnv("SERVER_PORT", "5000"),
		GinMode:         getEnv("GIN_MODE", "debug"),
		AttemptDuration: time.Duration(getEnvInt("ATTEMPT_DURATION_MINUTES", 30)) * time.Minute,
		ViolationLimit:  getEnvInt("VIOLATION_LIMIT", 2),
		AllowedOrigins:  parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
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

func getEnvDurationMS(key string, fallbackMS int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackMS)) * time.Millisecond
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
