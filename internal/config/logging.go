package config

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger creates a dual-output logger: text to console, JSON to file.
// A nil console writes to the file only, which keeps full-screen UIs clean.
// Returns the logger and a cleanup function to close the file.
func SetupLogger(logFile string, level slog.Level, console io.Writer) (*slog.Logger, func() error) {
	var consoleHandler slog.Handler
	if console != nil {
		consoleHandler = slog.NewTextHandler(console, &slog.HandlerOptions{
			Level: level,
		})
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		if consoleHandler == nil {
			return slog.New(slog.NewTextHandler(io.Discard, nil)), func() error { return nil }
		}
		slog.Error("failed to open log file, using console only", "error", err, "file", logFile)
		return slog.New(consoleHandler), func() error { return nil }
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: level,
	})

	cleanup := func() error {
		return file.Close()
	}

	if consoleHandler == nil {
		return slog.New(fileHandler), cleanup
	}
	return slog.New(slogmulti.Fanout(consoleHandler, fileHandler)), cleanup
}

// SetupLoggerWithWriters creates a logger with custom writers (for testing).
func SetupLoggerWithWriters(console, file io.Writer, level slog.Level) *slog.Logger {
	consoleHandler := slog.NewTextHandler(console, &slog.HandlerOptions{Level: level})
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(consoleHandler, fileHandler))
}
