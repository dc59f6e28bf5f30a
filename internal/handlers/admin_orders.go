package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/atacanet/storefront/internal/fulfillment"
	"github.com/atacanet/storefront/internal/observability"
	"github.com/atacanet/storefront/internal/services"
)

type fulfillmentStateResponse struct {
	OrderID string            `json:"orderId"`
	State   fulfillment.State `json:"state"`
}

type chooseOutcomeRequest struct {
	State string `json:"state"`
}

// AdminAdvanceFulfillment moves a paid order to the only successor of its
// current fulfillment state.
func (h *Handlers) AdminAdvanceFulfillment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	orderID, ok := h.orderIDFromPath(w, r)
	if !ok {
		return
	}

	state, err := h.fulfillment.Advance(ctx, orderID, actorFromRequest(r))
	if err != nil {
		h.writeFulfillmentError(w, r, "advance", err)
		return
	}

	writeJSON(w, logger, http.StatusOK, fulfillmentStateResponse{OrderID: orderID.String(), State: state})
}

// AdminChooseFulfillmentOutcome resolves a branching fulfillment state to
// one of its listed successors.
func (h *Handlers) AdminChooseFulfillmentOutcome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	orderID, ok := h.orderIDFromPath(w, r)
	if !ok {
		return
	}

	var req chooseOutcomeRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.State) == "" {
		writeError(w, logger, http.StatusBadRequest, "Informe o próximo status do pedido.")
		return
	}

	target := fulfillment.State(strings.TrimSpace(req.State))
	state, err := h.fulfillment.ChooseOutcome(ctx, orderID, target, actorFromRequest(r))
	if err != nil {
		h.writeFulfillmentError(w, r, "outcome", err)
		return
	}

	writeJSON(w, logger, http.StatusOK, fulfillmentStateResponse{OrderID: orderID.String(), State: state})
}

func (h *Handlers) AdminFulfillmentStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	orderID, ok := h.orderIDFromPath(w, r)
	if !ok {
		return
	}

	status, err := h.fulfillment.Status(ctx, orderID)
	if err != nil {
		h.writeFulfillmentError(w, r, "status", err)
		return
	}

	writeJSON(w, logger, http.StatusOK, status)
}

func (h *Handlers) AdminOrderDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	orderID, ok := h.orderIDFromPath(w, r)
	if !ok {
		return
	}

	detail, err := h.fulfillment.OrderDetail(ctx, orderID)
	if err != nil {
		h.writeFulfillmentError(w, r, "detail", err)
		return
	}

	writeJSON(w, logger, http.StatusOK, detail)
}

func (h *Handlers) orderIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.loggerFromContext(r.Context()), http.StatusBadRequest, "Identificador de pedido inválido.")
		return uuid.Nil, false
	}
	return orderID, true
}

func (h *Handlers) writeFulfillmentError(w http.ResponseWriter, r *http.Request, action string, err error) {
	logger := h.loggerFromContext(r.Context())
	meter := observability.MeterFromContext(r.Context())

	status, message := fulfillmentErrorStatus(err)
	meter.Count("http.admin.fulfillment.rejected", 1, sentry.WithAttributes(
		attribute.String("action", action),
		attribute.Int("http.status_code", status),
	))

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.Log(r.Context(), level, "fulfillment request failed", "action", action, "error", err)
	writeError(w, logger, status, message)
}

func fulfillmentErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		return http.StatusNotFound, "Pedido não encontrado."
	case errors.Is(err, services.ErrOrderNotPaid):
		return http.StatusConflict, "Pedido ainda não foi pago."
	case errors.Is(err, fulfillment.ErrNoAutomaticTransition):
		return http.StatusConflict, "Este status exige uma escolha manual ou é final."
	case errors.Is(err, services.ErrFulfillmentConflict):
		return http.StatusConflict, "O status do pedido foi alterado por outra operação. Recarregue e tente novamente."
	case errors.Is(err, fulfillment.ErrInvalidTransition), errors.Is(err, fulfillment.ErrUnknownState):
		return http.StatusBadRequest, "Próximo status inválido para este pedido."
	case errors.Is(err, services.ErrInvalidRequest):
		return http.StatusBadRequest, "Requisição inválida."
	default:
		return http.StatusInternalServerError, "Erro interno ao atualizar o pedido."
	}
}

func actorFromRequest(r *http.Request) string {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		return ""
	}
	if claims.Email != "" {
		return claims.Email
	}
	return claims.CustomerID.String()
}
