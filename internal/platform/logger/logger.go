package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. Services receive it
// through their WithLogger option.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
