package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atacanet/storefront/internal/db"
	"github.com/atacanet/storefront/internal/logging"
	"github.com/atacanet/storefront/internal/models"
	"github.com/atacanet/storefront/internal/observability"
	"github.com/atacanet/storefront/internal/payments"
)

const (
	defaultGatewayTimeout = 15 * time.Second

	CancelReasonPaymentLinkFailed = "payment_link_failed"
)

type CheckoutConfig struct {
	StoreName      string
	SuccessURL     string
	GatewayTimeout time.Duration
}

type CheckoutService struct {
	products  productCatalog
	customers customerDirectory
	orders    checkoutOrders
	pricer    orderPricer
	gateway   PaymentGateway
	config    CheckoutConfig
	logger    *slog.Logger
}

func NewCheckoutService(products productCatalog, customers customerDirectory, orders checkoutOrders, pricer orderPricer, gateway PaymentGateway, config CheckoutConfig, logger *slog.Logger) *CheckoutService {
	if config.GatewayTimeout <= 0 {
		config.GatewayTimeout = defaultGatewayTimeout
	}
	if config.StoreName == "" {
		config.StoreName = "AtacaNet"
	}

	return &CheckoutService{
		products:  products,
		customers: customers,
		orders:    orders,
		pricer:    pricer,
		gateway:   gateway,
		config:    config,
		logger:    logger,
	}
}

func (s *CheckoutService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

type CheckoutItem struct {
	ProductID int64
	Quantity  int
}

type CreatePaymentLinkInput struct {
	CustomerID    uuid.UUID
	LineItems     []CheckoutItem
	PaymentMethod models.PaymentMethod
}

type PaymentLinkResult struct {
	OrderID        uuid.UUID
	PaymentLinkURL string
	Total          decimal.Decimal
}

// CreatePaymentLink prices the cart, records a PENDING order and asks the
// gateway for a hosted payment page. A gateway failure cancels the order.
func (s *CheckoutService) CreatePaymentLink(ctx context.Context, input CreatePaymentLinkInput) (*PaymentLinkResult, error) {
	span := sentry.StartSpan(
		ctx,
		"service.checkout.create_payment_link",
		sentry.WithOpName("service.checkout"),
		sentry.WithDescription("CreatePaymentLink"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	meter.SetAttributes(
		attribute.String("payment_method", string(input.PaymentMethod)),
		attribute.String("gateway", s.gateway.Provider()),
	)
	recordFailure := func(reason string) {
		observability.CountReason(meter, "checkout.payment_link.failed", reason)
	}
	meter.Count("checkout.payment_link.received", 1)

	if err := validateCheckoutInput(input); err != nil {
		recordFailure("invalid_request")
		return nil, err
	}

	customer, err := s.customers.GetByID(ctx, input.CustomerID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			recordFailure("unknown_customer")
			return nil, fmt.Errorf("%w: customer not found", ErrInvalidRequest)
		}
		recordFailure("customer_lookup_failed")
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	products, err := s.products.GetByIDs(ctx, productIDs(input.LineItems))
	if err != nil {
		recordFailure("product_lookup_failed")
		return nil, fmt.Errorf("failed to get products: %w", err)
	}

	lines := make([]models.LineItem, 0, len(input.LineItems))
	for _, item := range input.LineItems {
		lines = append(lines, models.LineItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	quote, err := s.pricer.Price(lines, products)
	if err != nil {
		if errors.Is(err, ErrUnknownProduct) {
			recordFailure("unknown_product")
			return nil, err
		}
		recordFailure("pricing_failed")
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	order := &models.Order{
		CustomerID:    input.CustomerID,
		LineItems:     quote.Lines,
		PaymentMethod: input.PaymentMethod,
		Total:         quote.Total,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		recordFailure("order_create_failed")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	logger = logger.With("order_id", order.ID)
	meter.Count("order.created", 1)

	number := OrderNumber(order.ID.String())
	linkCtx, cancel := context.WithTimeout(ctx, s.config.GatewayTimeout)
	link, err := s.gateway.CreatePaymentLink(linkCtx, payments.LinkRequest{
		OrderID:       order.ID.String(),
		Name:          fmt.Sprintf("%s – Pedido #%s", s.config.StoreName, number),
		Description:   fmt.Sprintf("Pedido #%s\n%s", number, quote.Description()),
		Amount:        quote.Total,
		Lines:         quote.Lines,
		PaymentMethod: input.PaymentMethod,
		CustomerEmail: customer.Email,
		SuccessURL:    s.config.SuccessURL,
	})
	cancel()
	if err != nil {
		recordFailure("gateway_failed")
		logger.Error("failed to create payment link", "error", err, "gateway", s.gateway.Provider())
		s.cancelOrder(ctx, order.ID)
		return nil, fmt.Errorf("%w: %w", ErrPaymentGateway, err)
	}

	if err := s.orders.SetExternalReference(ctx, order.ID, link.ID); err != nil {
		// Settlement correlates on the order id, so the link stays usable.
		if errors.Is(err, db.ErrInvalidStatusTransition) {
			logger.Warn("order left PENDING before its reference was stored", "error", err, "link_id", link.ID)
		} else {
			logger.Error("failed to store payment link reference", "error", err, "link_id", link.ID)
		}
	}

	meter.Count("checkout.payment_link.created", 1)
	logger.Info("payment link created", "link_id", link.ID, "total", quote.Total.StringFixed(2))

	return &PaymentLinkResult{
		OrderID:        order.ID,
		PaymentLinkURL: link.URL,
		Total:          quote.Total,
	}, nil
}

// cancelOrder compensates a failed gateway call. It runs even when the request
// context is already done.
func (s *CheckoutService) cancelOrder(ctx context.Context, orderID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.orders.MarkCancelled(ctx, orderID, CancelReasonPaymentLinkFailed); err != nil {
		s.loggerFromContext(ctx).Error("failed to cancel order after payment link failure", "error", err, "order_id", orderID)
		observability.MeterFromContext(ctx).Count("checkout.compensation.failed", 1)
	}
}

func validateCheckoutInput(input CreatePaymentLinkInput) error {
	if input.CustomerID == uuid.Nil {
		return fmt.Errorf("%w: customer is required", ErrInvalidRequest)
	}
	if len(input.LineItems) == 0 {
		return fmt.Errorf("%w: at least one line item is required", ErrInvalidRequest)
	}
	for _, item := range input.LineItems {
		if item.ProductID <= 0 {
			return fmt.Errorf("%w: invalid product id %d", ErrInvalidRequest, item.ProductID)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: quantity for product %d must be at least 1", ErrInvalidRequest, item.ProductID)
		}
	}
	if !input.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unsupported payment method %q", ErrInvalidRequest, input.PaymentMethod)
	}
	return nil
}

func productIDs(items []CheckoutItem) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if !slices.Contains(ids, item.ProductID) {
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}
