package config

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"MOBILERAG_SERVER_URL", "MOBILERAG_SESSION_ID", "MOBILERAG_PROFILE",
		"MOBILERAG_STATUS_INTERVAL", "MOBILERAG_CHAT_LIMIT", "MOBILERAG_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "http://127.0.0.1:8000", cfg.ServerURL)
	assert.Equal(t, "/v1", cfg.APIPrefix)
	assert.Equal(t, "default", cfg.SessionID)
	assert.Equal(t, "default", cfg.Profile)
	assert.Equal(t, 5*time.Second, cfg.StatusInterval)
	assert.Equal(t, 16*time.Millisecond, cfg.FrameInterval)
	assert.Equal(t, 200, cfg.ChatLimit)
	assert.Equal(t, 2000, cfg.MessageLimit)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MOBILERAG_SERVER_URL", "https://chat.example.com/")
	t.Setenv("MOBILERAG_STATUS_INTERVAL", "2s")
	t.Setenv("MOBILERAG_CHAT_LIMIT", "15")
	t.Setenv("MOBILERAG_LOG_LEVEL", "debug")

	cfg := Load()
	assert.Equal(t, "https://chat.example.com", cfg.ServerURL)
	assert.Equal(t, 2*time.Second, cfg.StatusInterval)
	assert.Equal(t, 15, cfg.ChatLimit)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("MOBILERAG_STATUS_INTERVAL", "soon")
	t.Setenv("MOBILERAG_MESSAGE_LIMIT", "-4")

	cfg := Load()
	assert.Equal(t, 5*time.Second, cfg.StatusInterval)
	assert.Equal(t, 2000, cfg.MessageLimit)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"Warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.in))
		})
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var console, file bytes.Buffer
	logger := SetupLoggerWithWriters(&console, &file, slog.LevelInfo)

	logger.Info("turn finished", "chat_id", "c1")
	logger.Debug("hidden")

	assert.Contains(t, console.String(), "turn finished")
	assert.Contains(t, file.String(), `"chat_id":"c1"`)
	assert.NotContains(t, console.String(), "hidden")
}

func TestSetupLoggerFileOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.log")
	logger, cleanup := SetupLogger(path, slog.LevelInfo, nil)
	require.NotNil(t, logger)
	logger.Info("hello")
	require.NoError(t, cleanup())
	assert.FileExists(t, path)
}
