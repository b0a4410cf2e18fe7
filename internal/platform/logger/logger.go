package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. Text output on stdout;
// ship JSON by swapping the handler if an aggregator needs it.
func New() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
