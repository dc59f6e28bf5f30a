package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atacanet/storefront/internal/fulfillment"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusPaid      OrderStatus = "PAID"
	StatusCancelled OrderStatus = "CANCELLED"
)

type PaymentMethod string

const (
	PaymentMethodPix    PaymentMethod = "pix"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodBoleto PaymentMethod = "boleto"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodPix, PaymentMethodCard, PaymentMethodBoleto:
		return true
	default:
		return false
	}
}

// LineItem is a cart line. Name, UnitPrice and LineTotal are the priced
// snapshot stored with the order.
type LineItem struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Name      string          `json:"name,omitempty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type Order struct {
	ID                uuid.UUID         `json:"id"`
	CustomerID        uuid.UUID         `json:"customerId"`
	LineItems         []LineItem        `json:"lineItems"`
	PaymentMethod     PaymentMethod     `json:"paymentMethod"`
	Status            OrderStatus       `json:"status"`
	Total             decimal.Decimal   `json:"total"`
	AmountPaid        decimal.Decimal   `json:"amountPaid"`
	ExternalReference string            `json:"externalReference,omitempty"`
	InvoiceURL        string            `json:"invoiceUrl,omitempty"`
	CancelReason      string            `json:"cancelReason,omitempty"`
	FulfillmentState  fulfillment.State `json:"fulfillmentState,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	PaidAt            time.Time         `json:"paidAt,omitzero"`
	CancelledAt       time.Time         `json:"cancelledAt,omitzero"`
}

func (o *Order) IsPaid() bool {
	return o != nil && o.Status == StatusPaid
}

// FulfillmentEntry is one row of an order's append-only fulfillment history.
type FulfillmentEntry struct {
	State     fulfillment.State `json:"state"`
	EnteredAt time.Time         `json:"enteredAt"`
	Actor     string            `json:"actor,omitempty"`
}
