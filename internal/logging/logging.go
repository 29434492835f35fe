// Package logging builds the slog loggers used across the service and the CLI.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	slogmulti "github.com/samber/slog-multi"

	"github.com/gcbaptista/go-titlematch/config"
)

// Options selects the level, the stderr format and an optional JSON log file.
type Options struct {
	Level  string    // debug, info, warn or error
	Format string    // text or json, for the stderr handler
	File   string    // JSON log file; empty disables it
	Stderr io.Writer // Defaults to os.Stderr
}

// OptionsFromSettings converts the logging section of the configuration.
func OptionsFromSettings(settings config.LoggingSettings) Options {
	return Options{Level: settings.Level, Format: settings.Format, File: settings.File}
}

// New creates a logger from opts. The returned cleanup closes the log file, if any.
// When the file cannot be opened the logger falls back to stderr only and reports it there.
func New(opts Options) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	stderrHandler, err := newHandler(stderr, opts.Format, level)
	if err != nil {
		return nil, nil, err
	}

	noop := func() error { return nil }
	if strings.TrimSpace(opts.File) == "" {
		return slog.New(stderrHandler), noop, nil
	}

	if dir := filepath.Dir(opts.File); dir != "." {
		_ = os.MkdirAll(dir, 0o750)
	}
	file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G304 -- path comes from configuration
	if err != nil {
		logger := slog.New(stderrHandler)
		logger.Error("failed to open log file, using stderr only", "error", err, "file", opts.File)
		return logger, noop, nil
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(stderrHandler, fileHandler)), file.Close, nil
}

// NewWithWriters creates a fan-out logger over custom writers (for testing).
func NewWithWriters(stderr, file io.Writer, level slog.Level) *slog.Logger {
	stderrHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(stderrHandler, fileHandler))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel converts a level name. An empty name means info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

func newHandler(w io.Writer, format string, level slog.Level) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
