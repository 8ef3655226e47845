package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures slog as the default logger on stdout at level ("debug",
// "info", "warn", "error"; anything else is info) and routes the stdlib log
// package through it.
func Init(level string) *slog.Logger {
	h := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: ParseLevel(level)})
	logger := slog.New(h)
	// After SetDefault the stdlib log package writes through h as well.
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a level name onto slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
