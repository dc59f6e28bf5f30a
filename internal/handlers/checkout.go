package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/atacanet/storefront/internal/catalog"
	"github.com/atacanet/storefront/internal/models"
	"github.com/atacanet/storefront/internal/observability"
	"github.com/atacanet/storefront/internal/payments"
	"github.com/atacanet/storefront/internal/services"
)

type checkoutLineItem struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
}

type createPaymentLinkRequest struct {
	LineItems     []checkoutLineItem `json:"lineItems"`
	Products      []checkoutLineItem `json:"products"`
	PaymentMethod string             `json:"paymentMethod"`
}

func (req createPaymentLinkRequest) items() []services.CheckoutItem {
	lines := req.LineItems
	if len(lines) == 0 {
		lines = req.Products
	}
	items := make([]services.CheckoutItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, services.CheckoutItem{ProductID: line.ID, Quantity: line.Quantity})
	}
	return items
}

type createPaymentLinkResponse struct {
	PaymentLinkURL string `json:"paymentLinkUrl"`
	OrderID        string `json:"orderId"`
}

// CreatePaymentLink prices the cart of the authenticated customer, opens a
// PENDING order and answers with the gateway's hosted payment page.
func (h *Handlers) CreatePaymentLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	recordRejected := func(reason string) {
		observability.CountReason(meter, "http.checkout.rejected", reason)
	}

	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		writeError(w, logger, http.StatusUnauthorized, messageMissingToken)
		return
	}

	var req createPaymentLinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		recordRejected("invalid_body")
		writeError(w, logger, http.StatusBadRequest, "Corpo da requisição inválido.")
		return
	}

	result, err := h.checkout.CreatePaymentLink(ctx, services.CreatePaymentLinkInput{
		CustomerID:    claims.CustomerID,
		LineItems:     req.items(),
		PaymentMethod: models.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
	})
	if err != nil {
		var unknown *catalog.UnknownProductError
		switch {
		case errors.As(err, &unknown):
			recordRejected("unknown_product")
			writeError(w, logger, http.StatusBadRequest, fmt.Sprintf("Produto %d não encontrado.", unknown.ProductID))
		case errors.Is(err, services.ErrUnknownProduct):
			recordRejected("unknown_product")
			writeError(w, logger, http.StatusBadRequest, "Produto não encontrado.")
		case errors.Is(err, services.ErrInvalidRequest):
			recordRejected("invalid_request")
			writeError(w, logger, http.StatusBadRequest, "Dados do pedido inválidos.")
		case errors.Is(err, services.ErrPaymentGateway):
			recordRejected("gateway")
			logger.Error("payment gateway rejected payment link", "error", err)
			writeError(w, logger, http.StatusBadGateway, payments.UserMessage(err))
		default:
			logger.Error("failed to create payment link", "error", err)
			writeError(w, logger, http.StatusInternalServerError, "Erro interno ao criar payment link.")
		}
		return
	}

	writeJSON(w, logger, http.StatusOK, createPaymentLinkResponse{
		PaymentLinkURL: result.PaymentLinkURL,
		OrderID:        result.OrderID.String(),
	})
}
