package internal

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// InitLogging installs a JSON slog handler on stdout as the default logger
// and returns it.
func InitLogging(level string) *slog.Logger {
	return initLogging(os.Stdout, level)
}

func initLogging(w io.Writer, level string) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a config level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
