package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"

	"github.com/atacanet/storefront/internal/cache"
	"github.com/atacanet/storefront/internal/logging"
	"github.com/atacanet/storefront/internal/observability"
	"github.com/atacanet/storefront/internal/payments"
)

// webhookIdempotencyTTL is how long delivered event IDs are kept for deduplication.
const webhookIdempotencyTTL = 24 * time.Hour

type webhookResponse struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome,omitempty"`
}

// PaymentWebhook authenticates a gateway notification and hands settled
// payments to the settlement service. Unknown order references are
// acknowledged so the gateway stops retrying them.
func (h *Handlers) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	span := sentry.StartSpan(
		r.Context(),
		"handler.payment_webhook.handle",
		sentry.WithOpName("handler.payment_webhook"),
		sentry.WithDescription("Handlers.PaymentWebhook"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx := span.Context()

	logger := h.loggerFromContext(ctx)
	provider := h.webhooks.Provider()
	meter := observability.MeterFromContext(ctx)
	meter.SetAttributes(attribute.String("webhook.provider", provider))
	meter.Count("webhook.router.received", 1)
	recordFailed := func(reason string) {
		observability.CountReason(meter, "webhook.router.failed", reason)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	event, err := h.webhooks.ReadWebhookEvent(r.WithContext(ctx))
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrUnauthorized):
			recordFailed("unauthorized")
			logger.Warn("rejected unauthenticated payment webhook", "error", err)
			writeError(w, logger, http.StatusUnauthorized, "Webhook não autorizado.")
		default:
			recordFailed("malformed")
			logger.Error("failed to read payment webhook", "error", err)
			writeError(w, logger, http.StatusBadRequest, "Webhook inválido.")
		}
		return
	}

	meter.SetAttributes(attribute.String("webhook.event_type", event.RawType))
	ctx = logging.WithAttrs(ctx, h.logger, "event_id", event.ID, "event_type", event.RawType)
	logger = h.loggerFromContext(ctx)

	cacheKey := ""
	if event.ID != "" {
		cacheKey = cache.WebhookKey(provider, event.ID)
		claimed, err := h.cacheProvider.Claim(ctx, cacheKey, webhookIdempotencyTTL)
		switch {
		case err != nil:
			// Settlement stays idempotent on the order row without the cache.
			logger.Warn("failed to claim webhook event", "error", err)
			cacheKey = ""
		case !claimed:
			logger.Info("webhook already processed")
			meter.Count("webhook.router.duplicate", 1)
			span.Status = sentry.SpanStatusOK
			writeJSON(w, logger, http.StatusOK, webhookResponse{Received: true})
			return
		}
	}

	outcome, err := h.settlement.HandlePaymentEvent(ctx, event)
	if err != nil {
		recordFailed("settlement_failed")
		if cacheKey != "" {
			if releaseErr := h.cacheProvider.Release(ctx, cacheKey); releaseErr != nil {
				logger.Error("failed to release webhook claim", "error", releaseErr)
			}
		}
		logger.Error("failed to process payment webhook", "error", err)
		span.Status = sentry.SpanStatusInternalError
		writeError(w, logger, http.StatusInternalServerError, "Falha ao processar webhook.")
		return
	}

	if event.Kind == payments.EventIgnored {
		meter.Count("webhook.router.unhandled", 1)
	} else {
		meter.Count("webhook.router.processed", 1, sentry.WithAttributes(attribute.String("outcome", string(outcome))))
	}
	span.Status = sentry.SpanStatusOK
	writeJSON(w, logger, http.StatusOK, webhookResponse{Received: true, Outcome: string(outcome)})
}
