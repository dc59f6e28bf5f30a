package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"

	"github.com/atacanet/storefront/internal/db"
	"github.com/atacanet/storefront/internal/fulfillment"
	"github.com/atacanet/storefront/internal/logging"
	"github.com/atacanet/storefront/internal/models"
	"github.com/atacanet/storefront/internal/observability"
)

type FulfillmentService struct {
	orders fulfillmentOrders
	logger *slog.Logger
}

func NewFulfillmentService(orders fulfillmentOrders, logger *slog.Logger) *FulfillmentService {
	return &FulfillmentService{
		orders: orders,
		logger: logger,
	}
}

func (s *FulfillmentService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

type FulfillmentStatus struct {
	OrderID  uuid.UUID                 `json:"orderId"`
	State    fulfillment.State         `json:"state"`
	Next     []fulfillment.State       `json:"next"`
	Terminal bool                      `json:"terminal"`
	History  []models.FulfillmentEntry `json:"history"`
}

type OrderDetail struct {
	Order   *models.Order             `json:"order"`
	History []models.FulfillmentEntry `json:"history"`
}

// Advance moves a paid order to the only successor of its current state.
func (s *FulfillmentService) Advance(ctx context.Context, orderID uuid.UUID, actor string) (fulfillment.State, error) {
	span := sentry.StartSpan(
		ctx,
		"service.fulfillment.advance",
		sentry.WithOpName("service.fulfillment"),
		sentry.WithDescription("Advance"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	return s.transition(ctx, orderID, actor, "advance", fulfillment.Next)
}

// ChooseOutcome resolves a branching state to one of its listed successors.
func (s *FulfillmentService) ChooseOutcome(ctx context.Context, orderID uuid.UUID, target fulfillment.State, actor string) (fulfillment.State, error) {
	span := sentry.StartSpan(
		ctx,
		"service.fulfillment.choose_outcome",
		sentry.WithOpName("service.fulfillment"),
		sentry.WithDescription("ChooseOutcome"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	return s.transition(ctx, orderID, actor, "choose_outcome", func(current fulfillment.State) (fulfillment.State, error) {
		return fulfillment.Choose(current, target)
	})
}

func (s *FulfillmentService) transition(ctx context.Context, orderID uuid.UUID, actor, action string, next func(fulfillment.State) (fulfillment.State, error)) (fulfillment.State, error) {
	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	meter.SetAttributes(attribute.String("action", action))
	recordFailure := func(reason string) {
		observability.CountReason(meter, "fulfillment.transition.failed", reason)
	}

	order, err := s.paidOrder(ctx, orderID)
	if err != nil {
		recordFailure("order_unavailable")
		return "", err
	}

	current := order.FulfillmentState
	target, err := next(current)
	if err != nil {
		recordFailure("invalid_transition")
		return "", err
	}

	if err := s.orders.TransitionFulfillment(ctx, orderID, current, target, actor); err != nil {
		if errors.Is(err, db.ErrStaleFulfillmentState) {
			recordFailure("conflict")
			return "", fmt.Errorf("%w: %w", ErrFulfillmentConflict, err)
		}
		recordFailure("store_failed")
		return "", fmt.Errorf("failed to update fulfillment state: %w", err)
	}

	meter.Count("fulfillment.transition.applied", 1, sentry.WithAttributes(
		attribute.String("to", string(target)),
	))
	logger.Info("fulfillment state changed", "order_id", orderID, "from", current, "to", target, "actor", actor)
	return target, nil
}

// Status reports the current state, the states an admin can move to next and
// the history so far.
func (s *FulfillmentService) Status(ctx context.Context, orderID uuid.UUID) (*FulfillmentStatus, error) {
	order, err := s.paidOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	history, err := s.orders.FulfillmentHistory(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get fulfillment history: %w", err)
	}

	next := fulfillment.Successors(order.FulfillmentState)
	if next == nil {
		next = []fulfillment.State{}
	}
	return &FulfillmentStatus{
		OrderID:  order.ID,
		State:    order.FulfillmentState,
		Next:     next,
		Terminal: fulfillment.IsTerminal(order.FulfillmentState),
		History:  history,
	}, nil
}

func (s *FulfillmentService) OrderDetail(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error) {
	order, err := s.order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	history, err := s.orders.FulfillmentHistory(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get fulfillment history: %w", err)
	}
	return &OrderDetail{Order: order, History: history}, nil
}

func (s *FulfillmentService) order(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, fmt.Errorf("%w: order id is required", ErrInvalidRequest)
	}
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

func (s *FulfillmentService) paidOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsPaid() {
		return nil, fmt.Errorf("%w: order %s is %s", ErrOrderNotPaid, orderID, order.Status)
	}
	return order, nil
}
