package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns the service's JSON logger. Debug output is only enabled
// in dev.
func NewLogger(env string) *slog.Logger {
	return newLogger(os.Stdout, env)
}

func newLogger(w io.Writer, env string) *slog.Logger {
	level := slog.LevelInfo

	if strings.EqualFold(env, "dev") {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(NewContextHandler(handler)).With("service", "accounts")
}
