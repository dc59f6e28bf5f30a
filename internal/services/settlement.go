package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"

	"github.com/atacanet/storefront/internal/db"
	"github.com/atacanet/storefront/internal/logging"
	"github.com/atacanet/storefront/internal/models"
	"github.com/atacanet/storefront/internal/observability"
	"github.com/atacanet/storefront/internal/payments"
)

const defaultSideEffectTimeout = 10 * time.Second

type SettlementOutcome string

const (
	OutcomeSettled      SettlementOutcome = "settled"
	OutcomeDuplicate    SettlementOutcome = "duplicate"
	OutcomeIgnored      SettlementOutcome = "ignored"
	OutcomeUnknownOrder SettlementOutcome = "unknown_order"
	OutcomeOrderClosed  SettlementOutcome = "order_closed"
)

type SettlementService struct {
	orders            settlementOrders
	customers         customerDirectory
	gateway           PaymentGateway
	notifier          PaymentNotifier
	sideEffectTimeout time.Duration
	logger            *slog.Logger
}

func NewSettlementService(orders settlementOrders, customers customerDirectory, gateway PaymentGateway, notifier PaymentNotifier, sideEffectTimeout time.Duration, logger *slog.Logger) *SettlementService {
	if notifier == nil {
		notifier = noopPaymentNotifier{}
	}
	if sideEffectTimeout <= 0 {
		sideEffectTimeout = defaultSideEffectTimeout
	}

	return &SettlementService{
		orders:            orders,
		customers:         customers,
		gateway:           gateway,
		notifier:          notifier,
		sideEffectTimeout: sideEffectTimeout,
		logger:            logger,
	}
}

func (s *SettlementService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// HandlePaymentEvent settles the order a payment event refers to. Redelivered
// and late events are acknowledged without writes. The returned error is
// non-nil only when the store could not be read or written, so the gateway
// retries.
func (s *SettlementService) HandlePaymentEvent(ctx context.Context, event *payments.Event) (SettlementOutcome, error) {
	span := sentry.StartSpan(
		ctx,
		"service.settlement.handle_payment_event",
		sentry.WithOpName("service.settlement"),
		sentry.WithDescription("HandlePaymentEvent"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	if event == nil {
		return "", fmt.Errorf("payment event is required")
	}

	logger := s.loggerFromContext(ctx).With("event_id", event.ID, "event_type", event.RawType, "provider", event.Provider)
	meter := observability.MeterFromContext(ctx)
	meter.SetAttributes(attribute.String("provider", event.Provider))
	recordOutcome := func(outcome SettlementOutcome) {
		meter.Count("settlement.event.processed", 1, sentry.WithAttributes(
			attribute.String("outcome", string(outcome)),
		))
	}
	meter.Count("settlement.event.received", 1)

	if event.Kind != payments.EventPaymentSettled {
		logger.Debug("ignoring payment event")
		recordOutcome(OutcomeIgnored)
		return OutcomeIgnored, nil
	}

	order, err := s.resolveOrder(ctx, event)
	if err != nil {
		if errors.Is(err, ErrUnknownOrderReference) {
			logger.Warn("payment event does not match any order", "error", err, "order_ref", event.OrderRef, "link_ref", event.LinkRef)
			recordOutcome(OutcomeUnknownOrder)
			return OutcomeUnknownOrder, nil
		}
		observability.CountReason(meter, "settlement.event.failed", "order_lookup_failed")
		return "", fmt.Errorf("failed to get order: %w", err)
	}
	logger = logger.With("order_id", order.ID)

	switch order.Status {
	case models.StatusPaid:
		logger.Info("order already paid; acknowledging duplicate event")
		recordOutcome(OutcomeDuplicate)
		return OutcomeDuplicate, nil
	case models.StatusCancelled:
		logger.Error("payment received for cancelled order", "amount", event.Amount.StringFixed(2), "cancel_reason", order.CancelReason)
		recordOutcome(OutcomeOrderClosed)
		return OutcomeOrderClosed, nil
	}

	amount := event.Amount
	if amount.IsZero() {
		amount = order.Total
	} else if !amount.Equal(order.Total) {
		logger.Warn("settled amount differs from order total", "amount", amount.StringFixed(2), "total", order.Total.StringFixed(2))
	}

	if err := s.orders.MarkPaid(ctx, order.ID, amount, event.Provider); err != nil {
		if errors.Is(err, db.ErrInvalidStatusTransition) {
			logger.Info("order settled concurrently; acknowledging duplicate event", "error", err)
			recordOutcome(OutcomeDuplicate)
			return OutcomeDuplicate, nil
		}
		observability.CountReason(meter, "settlement.event.failed", "mark_paid_failed")
		return "", fmt.Errorf("failed to mark order as paid: %w", err)
	}
	order.Status = models.StatusPaid
	order.AmountPaid = amount
	logger.Info("order settled", "amount", amount.StringFixed(2))

	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sideEffectTimeout)
	defer cancel()
	s.runSideEffects(sideCtx, logger, event, order)

	recordOutcome(OutcomeSettled)
	return OutcomeSettled, nil
}

// resolveOrder correlates on the order id first and falls back to the gateway
// reference stored at checkout.
func (s *SettlementService) resolveOrder(ctx context.Context, event *payments.Event) (*models.Order, error) {
	if orderID, err := uuid.Parse(strings.TrimSpace(event.OrderRef)); err == nil {
		order, err := s.orders.GetByID(ctx, orderID)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
	}

	if event.LinkRef != "" {
		order, err := s.orders.GetByExternalReference(ctx, event.LinkRef)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownOrderReference, event.OrderRef)
}

// runSideEffects issues the invoice and emails the buyer. Failures are logged
// and never undo the settlement.
func (s *SettlementService) runSideEffects(ctx context.Context, logger *slog.Logger, event *payments.Event, order *models.Order) {
	meter := observability.MeterFromContext(ctx)
	recordSideEffectFailure := func(reason string) {
		observability.CountReason(meter, "settlement.side_effect.failed", reason)
	}

	invoice, err := s.gateway.IssueInvoice(ctx, payments.InvoiceRequest{
		OrderID:     order.ID.String(),
		PaymentID:   event.PaymentID,
		InvoiceRef:  event.InvoiceRef,
		CustomerRef: event.CustomerRef,
		Amount:      order.AmountPaid,
		DueDate:     event.DueDate,
		Description: fmt.Sprintf("Nota fiscal para o pedido %s", OrderNumber(order.ID.String())),
	})
	switch {
	case err != nil:
		recordSideEffectFailure("invoice_failed")
		logger.Error("failed to issue invoice", "error", err)
	case invoice != nil && invoice.URL != "":
		if err := s.orders.SetInvoiceURL(ctx, order.ID, invoice.URL); err != nil {
			recordSideEffectFailure("invoice_url_store_failed")
			logger.Error("failed to store invoice url", "error", err, "invoice_id", invoice.ID)
		}
		order.InvoiceURL = invoice.URL
	}

	customer, err := s.customers.GetByID(ctx, order.CustomerID)
	if err != nil {
		recordSideEffectFailure("customer_lookup_failed")
		logger.Error("failed to get customer for payment email", "error", err, "customer_id", order.CustomerID)
		return
	}

	if event.CustomerRef != "" && customer.GatewayCustomerID == "" {
		if err := s.customers.SetGatewayCustomerID(ctx, customer.ID, event.CustomerRef); err != nil {
			logger.Warn("failed to store gateway customer id", "error", err, "customer_id", customer.ID)
		}
	}

	if err := s.notifier.SendPaymentReceived(ctx, customer, order); err != nil {
		recordSideEffectFailure("payment_email_failed")
		logger.Error("failed to send payment email", "error", err, "customer_id", customer.ID)
		return
	}
	meter.Count("settlement.payment_email.sent", 1)
}
