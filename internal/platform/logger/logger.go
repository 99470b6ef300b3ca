package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/phrazzld/filequeue/internal/config"
)

// ParseLevel converts a configured level name (case-insensitive) to a
// slog.Level. It reports false for unknown names.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// New creates a JSON logger writing to out at the given level. Unknown
// levels fall back to info after a warning on the new logger.
func New(out io.Writer, levelName string) *slog.Logger {
	level, ok := ParseLevel(levelName)

	opts := &slog.HandlerOptions{
		Level: level,
	}
	logger := slog.New(slog.NewJSONHandler(out, opts))

	if !ok {
		logger.Warn("invalid log level configured, using default level",
			"configured_level", levelName,
			"default_level", "info")
	}
	return logger
}

// Setup initializes and configures the application's logging system based on
// the provided configuration. It creates a structured JSON logger on stderr,
// leaving stdout to worker progress output, and sets it as the default
// logger for the application.
func Setup(cfg config.LogConfig) (*slog.Logger, error) {
	logger := New(os.Stderr, cfg.Level)

	// This allows using the slog package functions directly (slog.Info, slog.Error, etc.)
	slog.SetDefault(logger)

	return logger, nil
}
