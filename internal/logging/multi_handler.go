package logging

import (
	"context"
	"errors"
	"log/slog"
)

// MultiHandler sends each record to every handler that accepts its level.
// Nil handlers are skipped; with none left, records are dropped.
func MultiHandler(handlers ...slog.Handler) slog.Handler {
	tee := &teeHandler{}
	for _, handler := range handlers {
		if handler != nil {
			tee.handlers = append(tee.handlers, handler)
		}
	}
	return tee
}

type teeHandler struct {
	handlers []slog.Handler
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range t.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range t.handlers {
		if handler.Enabled(ctx, record.Level) {
			// Handlers may retain attrs, so each gets its own copy.
			errs = append(errs, handler.Handle(ctx, record.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return t
	}
	return t.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t *teeHandler) derive(fn func(slog.Handler) slog.Handler) *teeHandler {
	next := &teeHandler{handlers: make([]slog.Handler, len(t.handlers))}
	for i, handler := range t.handlers {
		next.handlers[i] = fn(handler)
	}
	return next
}
