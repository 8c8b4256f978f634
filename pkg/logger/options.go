package logger

import (
	"io"
	"log/slog"
)

// Format selects the handler behind a Logger created with New.
type Format int

const (
	// FormatText is slog's plain text handler, the default.
	FormatText Format = iota

	// FormatPretty is the colorized charmbracelet/log handler. The
	// interactive commands (index, query, rollback, watch) use it.
	FormatPretty

	// FormatJSON is slog's JSON handler. The serve command uses it so
	// records can be shipped to a log file or collector.
	FormatJSON
)

// Option configures a Logger created with New.
type Option func(*config)

// WithFormat selects the output handler.
func WithFormat(f Format) Option {
	return func(c *config) {
		c.format = f
	}
}

// WithDebug lowers the level to Debug when true. Records below Info are
// dropped otherwise.
func WithDebug(debug bool) Option {
	return func(c *config) {
		if debug {
			c.level = slog.LevelDebug
		} else {
			c.level = slog.LevelInfo
		}
	}
}

// WithLevel sets the minimum level directly, overriding WithDebug.
func WithLevel(l slog.Level) Option {
	return func(c *config) {
		c.level = l
	}
}

// WithWriters routes output to the given writers, combined through
// io.MultiWriter when more than one is set. Defaults to os.Stdout.
func WithWriters(w ...io.Writer) Option {
	return func(c *config) {
		c.writers = w
	}
}

// WithSource annotates records with the emitting file:line.
func WithSource(source bool) Option {
	return func(c *config) {
		c.source = source
	}
}
