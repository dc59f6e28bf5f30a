package logging

import (
	"context"
	"log/slog"
	"strings"

	"github.com/getsentry/sentry-go"
)

// SentryHandler reports records at or above its level to the Sentry hub found
// on the record's context. An "error" attribute holding an error is captured
// as an exception; everything else becomes a message event.
func SentryHandler(level slog.Leveler) slog.Handler {
	if level == nil {
		level = slog.LevelError
	}
	return &sentryHandler{level: level}
}

type sentryHandler struct {
	level  slog.Leveler
	attrs  []slog.Attr
	prefix string
}

func (h *sentryHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *sentryHandler) Handle(ctx context.Context, record slog.Record) error {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if hub.Client() == nil {
		return nil
	}

	fields := make(map[string]any, len(h.attrs)+record.NumAttrs())
	var captured error
	collect := func(prefix string, attr slog.Attr) {
		value := attr.Value.Resolve()
		if err, ok := value.Any().(error); ok && attr.Key == "error" && captured == nil {
			captured = err
		}
		fields[prefix+attr.Key] = value.String()
	}
	for _, attr := range h.attrs {
		collect("", attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		collect(h.prefix, attr)
		return true
	})

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentryLevel(record.Level))
		scope.SetContext("log", sentry.Context{
			"message": record.Message,
			"fields":  fields,
		})
		if component, ok := fields["component"].(string); ok {
			scope.SetTag("component", component)
		}
		if captured != nil {
			hub.CaptureException(captured)
			return
		}
		hub.CaptureMessage(record.Message)
	})
	return nil
}

func (h *sentryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &sentryHandler{level: h.level, prefix: h.prefix}
	next.attrs = append(next.attrs, h.attrs...)
	for _, attr := range attrs {
		attr.Key = h.prefix + attr.Key
		next.attrs = append(next.attrs, attr)
	}
	return next
}

func (h *sentryHandler) WithGroup(name string) slog.Handler {
	if strings.TrimSpace(name) == "" {
		return h
	}
	return &sentryHandler{level: h.level, attrs: h.attrs, prefix: h.prefix + name + "."}
}

func sentryLevel(level slog.Level) sentry.Level {
	switch {
	case level >= slog.LevelError:
		return sentry.LevelError
	case level >= slog.LevelWarn:
		return sentry.LevelWarning
	case level >= slog.LevelInfo:
		return sentry.LevelInfo
	default:
		return sentry.LevelDebug
	}
}
