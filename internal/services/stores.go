package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atacanet/storefront/internal/catalog"
	"github.com/atacanet/storefront/internal/fulfillment"
	"github.com/atacanet/storefront/internal/models"
	"github.com/atacanet/storefront/internal/payments"
)

// PaymentGateway is the outbound side of a payment provider.
type PaymentGateway interface {
	Provider() string
	CreatePaymentLink(ctx context.Context, req payments.LinkRequest) (*payments.Link, error)
	IssueInvoice(ctx context.Context, req payments.InvoiceRequest) (*payments.Invoice, error)
}

type productCatalog interface {
	GetByIDs(ctx context.Context, ids []int64) (map[int64]models.Product, error)
}

type customerDirectory interface {
	GetByID(ctx context.Context, customerID uuid.UUID) (*models.Customer, error)
	SetGatewayCustomerID(ctx context.Context, customerID uuid.UUID, gatewayCustomerID string) error
}

type orderPricer interface {
	Price(items []models.LineItem, products map[int64]models.Product) (*catalog.Quote, error)
}

type checkoutOrders interface {
	Create(ctx context.Context, order *models.Order) error
	SetExternalReference(ctx context.Context, orderID uuid.UUID, reference string) error
	MarkCancelled(ctx context.Context, orderID uuid.UUID, reason string) error
}

type settlementOrders interface {
	GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetByExternalReference(ctx context.Context, reference string) (*models.Order, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, actor string) error
	SetInvoiceURL(ctx context.Context, orderID uuid.UUID, invoiceURL string) error
}

type fulfillmentOrders interface {
	GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	TransitionFulfillment(ctx context.Context, orderID uuid.UUID, from, to fulfillment.State, actor string) error
	FulfillmentHistory(ctx context.Context, orderID uuid.UUID) ([]models.FulfillmentEntry, error)
}
