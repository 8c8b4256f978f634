package logger

import (
	"context"
	"errors"
	"log/slog"
)

// Multi returns a *slog.Logger that forwards every record to all of the
// given loggers. It lets a long-running process keep pretty terminal output
// while also appending JSON records to a file.
func Multi(loggers ...*slog.Logger) *slog.Logger {
	f := make(fanout, len(loggers))
	for i, l := range loggers {
		f[i] = l.Handler()
	}
	return slog.New(f)
}

// fanout dispatches records to a set of slog.Handlers. A record is delivered
// to every handler whose level admits it, even when an earlier handler fails.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = h.WithAttrs(attrs)
	}
	return next
}

func (f fanout) WithGroup(name string) slog.Handler {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = h.WithGroup(name)
	}
	return next
}
