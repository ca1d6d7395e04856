package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

func New(logLevel string, json bool) *slog.Logger {
	return NewWriter(os.Stdout, logLevel, json)
}

// NewWriter is New with an explicit destination.
func NewWriter(w io.Writer, logLevel string, json bool) *slog.Logger {
	return slog.New(newHandler(w, parseLevel(logLevel), json))
}

// NewWithFile logs to stdout as New does and, when path is set, also appends
// JSON records to path. The returned func closes the file.
func NewWithFile(logLevel string, json bool, path string) (*slog.Logger, func() error) {
	noop := func() error { return nil }
	if path == "" {
		return New(logLevel, json), noop
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l := New(logLevel, json)
		l.Error("open log file, using stdout only", "file", path, "err", err)
		return l, noop
	}
	return Fanout(os.Stdout, f, logLevel, json), f.Close
}

// Fanout writes human-facing records to console and JSON records to file.
func Fanout(console, file io.Writer, logLevel string, json bool) *slog.Logger {
	level := parseLevel(logLevel)
	return slog.New(slogmulti.Fanout(
		newHandler(console, level, json),
		newHandler(file, level, true),
	))
}

func newHandler(w io.Writer, level slog.Level, json bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: level, AddSource: true}
	if json {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func parseLevel(s string) slog.Level {
	s = strings.ToLower(s)
	switch s {
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
