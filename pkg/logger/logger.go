// Package logger builds the *slog.Logger instances used across portal.
//
// Interactive commands get the charmbracelet/log handler on stderr so log
// lines never interleave with streamed assistant text on stdout. The mock
// gateway can switch to JSON for machine consumption.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

type config struct {
	level   slog.Level
	pretty  bool
	json    bool
	source  bool
	prefix  string
	writers []io.Writer
}

// New creates a *slog.Logger. With no options it writes slog text records
// at Info level to stderr.
func New(opts ...Option) *slog.Logger {
	cfg := &config{
		level:   slog.LevelInfo,
		writers: []io.Writer{os.Stderr},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var w io.Writer
	switch len(cfg.writers) {
	case 0:
		w = os.Stderr
	case 1:
		w = cfg.writers[0]
	default:
		w = io.MultiWriter(cfg.writers...)
	}

	var handler slog.Handler
	switch {
	case cfg.json:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     cfg.level,
			AddSource: cfg.source,
		})
	case cfg.pretty:
		handler = charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(cfg.level),
			ReportTimestamp: true,
			ReportCaller:    cfg.source,
			Prefix:          cfg.prefix,
		})
	default:
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     cfg.level,
			AddSource: cfg.source,
		})
	}

	return slog.New(handler)
}

// Nop returns a logger that drops every record.
func Nop() *slog.Logger {
	return slog.New(nopHandler{})
}

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }
