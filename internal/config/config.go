// Package config loads client configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values.
type Config struct {
	// Backend
	ServerURL string
	APIPrefix string
	SessionID string

	// Local state
	Profile   string
	StateFile string

	// Timing
	ClientTimeout  time.Duration
	StatusInterval time.Duration
	FrameInterval  time.Duration

	// Directory limits
	ChatLimit    int
	MessageLimit int

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
// Defaults match the reference web client.
func Load() Config {
	return Config{
		ServerURL: strings.TrimRight(getEnv("MOBILERAG_SERVER_URL", "http://127.0.0.1:8000"), "/"),
		APIPrefix: getEnv("MOBILERAG_API_PREFIX", "/v1"),
		SessionID: getEnv("MOBILERAG_SESSION_ID", "default"),

		Profile:   getEnv("MOBILERAG_PROFILE", "default"),
		StateFile: getEnv("MOBILERAG_STATE_FILE", defaultStateFile()),

		ClientTimeout:  getDuration("MOBILERAG_CLIENT_TIMEOUT", 30*time.Second),
		StatusInterval: getDuration("MOBILERAG_STATUS_INTERVAL", 5*time.Second),
		FrameInterval:  getDuration("MOBILERAG_FRAME_INTERVAL", 16*time.Millisecond),

		ChatLimit:    getInt("MOBILERAG_CHAT_LIMIT", 200),
		MessageLimit: getInt("MOBILERAG_MESSAGE_LIMIT", 2000),

		LogFile:  getEnv("MOBILERAG_LOG_FILE", "/tmp/mobilerag.log"),
		LogLevel: parseLogLevel(getEnv("MOBILERAG_LOG_LEVEL", "INFO")),
	}
}

func defaultStateFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "mobilerag", "state.yaml")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
