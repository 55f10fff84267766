// Package logging builds the slog handler selected by configuration.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/zsiec/telx/internal/config"
)

// ParseLevel parses a level name such as "debug" or "warn+2".
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("logging: %w", err)
	}
	return lvl, nil
}

// New returns a logger writing to w and, when cfg.File is set, to a
// rotating log file. The returned closer releases the file.
func New(cfg config.Logging, w io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("logging: create log dir: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxAge:     cfg.MaxAgeDays,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
		}
		w = io.MultiWriter(w, rotator)
		closer = rotator
	}

	h, err := NewHandler(cfg.Format, w, level)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return slog.New(h), closer, nil
}

// NewHandler returns the handler for format: text, json or pretty.
func NewHandler(format string, w io.Writer, level slog.Level) (slog.Handler, error) {
	switch format {
	case "", "text":
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}), nil
	case "json":
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}), nil
	case "pretty":
		return charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(level),
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.000",
		}), nil
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
