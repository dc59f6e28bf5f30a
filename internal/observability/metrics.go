package observability

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
)

type meterKey struct{}

// WithMeter stores meter, bound to ctx, for the rest of the request.
func WithMeter(ctx context.Context, meter sentry.Meter) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if meter == nil {
		meter = sentry.NewMeter(ctx)
	}
	return context.WithValue(ctx, meterKey{}, meter.WithCtx(ctx))
}

// MeterFromContext returns the request meter, or a fresh one outside a
// request (background settlement work, tests).
func MeterFromContext(ctx context.Context) sentry.Meter {
	if ctx == nil {
		ctx = context.Background()
	}
	meter, _ := ctx.Value(meterKey{}).(sentry.Meter)
	if meter == nil {
		meter = sentry.NewMeter(ctx)
	}
	return meter.WithCtx(ctx)
}

// CountReason counts one occurrence of name labelled with why it happened,
// e.g. a rejected checkout or a failed settlement step.
func CountReason(meter sentry.Meter, name, reason string) {
	meter.Count(name, 1, sentry.WithAttributes(attribute.String("reason", reason)))
}
