package logger

import (
	"io"
	"log/slog"
	"strings"
)

// Option configures a Logger created with New.
type Option func(*config)

// WithDebug lowers the level to Debug when true.
func WithDebug(debug bool) Option {
	return func(c *config) {
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithLevel parses a level name (debug, info, warn, error). Unknown names
// leave the level unchanged.
func WithLevel(name string) Option {
	return func(c *config) {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(strings.TrimSpace(name))); err == nil {
			c.level = lvl
		}
	}
}

// WithPretty enables the charmbracelet/log handler.
func WithPretty(pretty bool) Option {
	return func(c *config) {
		c.pretty = pretty
	}
}

// WithJSON enables slog's JSON handler. It wins over WithPretty.
func WithJSON(json bool) Option {
	return func(c *config) {
		c.json = json
	}
}

// WithPrefix sets the pretty handler prefix, e.g. "mock".
func WithPrefix(prefix string) Option {
	return func(c *config) {
		c.prefix = prefix
	}
}

// WithWriter overrides the output writer.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.writers = []io.Writer{w}
	}
}

// WithWriters fans output out to several writers.
func WithWriters(w ...io.Writer) Option {
	return func(c *config) {
		c.writers = w
	}
}

// WithSource includes file:line in records.
func WithSource(source bool) Option {
	return func(c *config) {
		c.source = source
	}
}
