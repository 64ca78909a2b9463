package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns JSON logger on stdout. Level comes from the argument, then
// LOG_LEVEL, default info.
func New(level string) *slog.Logger {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter returns JSON logger writing to w.
func NewWithWriter(w io.Writer, level string) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(h)
}

// ParseLevel maps "debug", "warn", "error" etc. to slog.Level.
func ParseLevel(level string) slog.Level {
	candidates := []string{strings.TrimSpace(level), os.Getenv("LOG_LEVEL")}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		var parsed slog.Level
		if err := parsed.UnmarshalText([]byte(c)); err == nil {
			return parsed
		}
	}
	return slog.LevelInfo
}
