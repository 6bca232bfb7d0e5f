// Package logging configures the process-wide slog default handler from
// resolved configuration, the one place log level policy lives.
package logging

import (
	"log/slog"
	"os"
)

// Setup installs a JSON slog handler at the level implied by verbose/level.
// verbose overrides level to debug when true.
func Setup(level string, verbose bool) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: resolveLevel(level, verbose),
	})))
}

func resolveLevel(level string, verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
