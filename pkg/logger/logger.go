// Package logger builds the process slog.Logger and a few attribute helpers
// shared by every package.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"go.uber.org/fx"
)

// Module provides *slog.Logger to the fx graph.
var Module = fx.Module("logger",
	fx.Provide(NewLogger),
)

// NewLogger creates the root logger.
// LOG_LEVEL selects the level (debug, info, warn/warning, error; default info).
// GO_ENV=production switches to the JSON handler.
func NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(os.Getenv("LOG_LEVEL"))}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("GO_ENV"), "production") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Scope tags log lines with the emitting component, e.g. "graph.store".
func Scope(name string) slog.Attr {
	return slog.String("scope", name)
}

// Error wraps err as an "error" attribute. A nil error is kept as-is.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// Query attaches query text to a log line.
func Query(q string) slog.Attr {
	return slog.String("query", q)
}
