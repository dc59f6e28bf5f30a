package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/atacanet/storefront/internal/cache"
	"github.com/atacanet/storefront/internal/config"
	"github.com/atacanet/storefront/internal/fulfillment"
	"github.com/atacanet/storefront/internal/logging"
	"github.com/atacanet/storefront/internal/payments"
	"github.com/atacanet/storefront/internal/services"
)

const maxRequestBodyBytes = 1 << 20 // 1 MB

type pinger interface {
	Ping(ctx context.Context) error
}

type checkoutService interface {
	CreatePaymentLink(ctx context.Context, input services.CreatePaymentLinkInput) (*services.PaymentLinkResult, error)
}

type settlementService interface {
	HandlePaymentEvent(ctx context.Context, event *payments.Event) (services.SettlementOutcome, error)
}

type fulfillmentService interface {
	Advance(ctx context.Context, orderID uuid.UUID, actor string) (fulfillment.State, error)
	ChooseOutcome(ctx context.Context, orderID uuid.UUID, target fulfillment.State, actor string) (fulfillment.State, error)
	Status(ctx context.Context, orderID uuid.UUID) (*services.FulfillmentStatus, error)
	OrderDetail(ctx context.Context, orderID uuid.UUID) (*services.OrderDetail, error)
}

// WebhookReader authenticates a gateway webhook and reduces it to a payment event.
type WebhookReader interface {
	Provider() string
	ReadWebhookEvent(r *http.Request) (*payments.Event, error)
}

// Handlers provides the HTTP handlers of the storefront API.
type Handlers struct {
	config        *config.Config
	db            pinger
	cacheProvider cache.Provider
	checkout      checkoutService
	settlement    settlementService
	fulfillment   fulfillmentService
	webhooks      WebhookReader
	logger        *slog.Logger
}

type Dependencies struct {
	Config        *config.Config
	DB            pinger
	CacheProvider cache.Provider
	Checkout      checkoutService
	Settlement    settlementService
	Fulfillment   fulfillmentService
	Webhooks      WebhookReader
	Logger        *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("handlers dependencies: db is required")
	}
	if deps.CacheProvider == nil {
		return nil, fmt.Errorf("handlers dependencies: cacheProvider is required")
	}
	if deps.Checkout == nil {
		return nil, fmt.Errorf("handlers dependencies: checkout is required")
	}
	if deps.Settlement == nil {
		return nil, fmt.Errorf("handlers dependencies: settlement is required")
	}
	if deps.Fulfillment == nil {
		return nil, fmt.Errorf("handlers dependencies: fulfillment is required")
	}
	if deps.Webhooks == nil {
		return nil, fmt.Errorf("handlers dependencies: webhooks is required")
	}

	return &Handlers{
		config:        deps.Config,
		db:            deps.DB,
		cacheProvider: deps.CacheProvider,
		checkout:      deps.Checkout,
		settlement:    deps.Settlement,
		fulfillment:   deps.Fulfillment,
		webhooks:      deps.Webhooks,
		logger:        logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if err := h.db.Ping(ctx); err != nil {
		logger.Error("database health check failed", "error", err)
		writeJSON(w, logger, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}

	writeJSON(w, logger, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

