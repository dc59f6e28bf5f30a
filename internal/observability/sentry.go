package observability

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

type SentryConfig struct {
	DSN              string
	Environment      string
	Release          string
	TracesSampleRate float64
}

// InitSentry configures the global Sentry client. It is a no-op without a DSN;
// the returned flush function is always safe to call.
func InitSentry(cfg SentryConfig) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		AttachStacktrace: true,
	}); err != nil {
		return func() {}, fmt.Errorf("failed to initialize sentry: %w", err)
	}

	return func() {
		sentry.Flush(2 * time.Second)
	}, nil
}
