package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/getsentry/sentry-go"
)

func TestFromContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	stored := slog.New(slog.NewTextHandler(&buf, nil))
	fallback := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	ctx := WithLogger(context.Background(), stored)
	if FromContext(ctx, fallback) != stored {
		t.Fatal("expected logger from context")
	}
	if FromContext(context.Background(), fallback) != fallback {
		t.Fatal("expected fallback logger")
	}
	if FromContext(context.Background(), nil) == nil {
		t.Fatal("expected a no-op logger")
	}
}

func TestWithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := WithLogger(context.Background(), base.With("request_id", "req-1"))
	ctx = WithAttrs(ctx, nil, "event_id", "evt_1")
	FromContext(ctx, nil).Info("webhook received")

	out := buf.String()
	if !strings.Contains(out, "request_id=req-1") || !strings.Contains(out, "event_id=evt_1") {
		t.Fatalf("expected both attributes, got %q", out)
	}
}

func TestMultiHandler_FansOut(t *testing.T) {
	t.Parallel()

	var info, errs bytes.Buffer
	logger := slog.New(MultiHandler(
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&errs, &slog.HandlerOptions{Level: slog.LevelError}),
		nil,
	)).With("component", "checkout_service")

	logger.Info("payment link created", "order_id", "o1")
	logger.Error("payment link failed", "order_id", "o2")

	if !strings.Contains(info.String(), "payment link created") || !strings.Contains(info.String(), "payment link failed") {
		t.Fatalf("info handler missing records: %s", info.String())
	}
	if strings.Contains(errs.String(), "payment link created") {
		t.Fatalf("error handler received info record: %s", errs.String())
	}
	if !strings.Contains(errs.String(), "component=checkout_service") {
		t.Fatalf("attrs not propagated: %s", errs.String())
	}
}

type capturedEvents struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (c *capturedEvents) add(event *sentry.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func newCapturingHub(t *testing.T) (*sentry.Hub, *capturedEvents) {
	t.Helper()

	captured := &capturedEvents{}
	client, err := sentry.NewClient(sentry.ClientOptions{
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			captured.add(event)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("failed to create sentry client: %v", err)
	}
	return sentry.NewHub(client, sentry.NewScope()), captured
}

func TestSentryHandler_CapturesErrors(t *testing.T) {
	t.Parallel()

	hub, captured := newCapturingHub(t)
	ctx := sentry.SetHubOnContext(context.Background(), hub)
	logger := slog.New(SentryHandler(slog.LevelError)).With("component", "settlement_service")

	logger.InfoContext(ctx, "order settled")
	logger.ErrorContext(ctx, "invoice issuance failed", "error", errors.New("asaas request failed (500)"))
	logger.ErrorContext(ctx, "email skipped")

	captured.mu.Lock()
	defer captured.mu.Unlock()
	if len(captured.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(captured.events))
	}
	if len(captured.events[0].Exception) == 0 {
		t.Fatalf("expected exception event, got %+v", captured.events[0])
	}
	if captured.events[0].Tags["component"] != "settlement_service" {
		t.Fatalf("missing component tag: %+v", captured.events[0].Tags)
	}
	if captured.events[1].Message != "email skipped" {
		t.Fatalf("unexpected message event: %+v", captured.events[1])
	}
}

func TestNew_JSONFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&buf, Options{Level: slog.LevelInfo, Format: "json"})
	logger.Debug("hidden")
	logger.Info("visible", "order_id", "o1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record should be filtered: %s", out)
	}
	if !strings.Contains(out, `"msg":"visible"`) || !strings.Contains(out, `"order_id":"o1"`) {
		t.Fatalf("unexpected json output: %s", out)
	}
}
