// Package payments holds the gateway-neutral types exchanged between the
// checkout and settlement services and the Asaas and Stripe adapters.
package payments

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/atacanet/storefront/internal/models"
)

// ErrUnauthorized means a webhook failed its shared-secret or signature check.
var ErrUnauthorized = errors.New("webhook authentication failed")

// ErrMalformedEvent means a webhook was authenticated but could not be decoded.
var ErrMalformedEvent = errors.New("malformed webhook event")

// LinkRequest asks a gateway for a hosted payment page.
type LinkRequest struct {
	OrderID       string
	Name          string
	Description   string
	Amount        decimal.Decimal
	Lines         []models.LineItem
	PaymentMethod models.PaymentMethod
	CustomerEmail string
	SuccessURL    string
}

type Link struct {
	ID  string
	URL string
}

// InvoiceRequest asks a gateway to issue the fiscal invoice of a settled order.
type InvoiceRequest struct {
	OrderID     string
	PaymentID   string
	InvoiceRef  string
	CustomerRef string
	Amount      decimal.Decimal
	DueDate     string
	Description string
}

type Invoice struct {
	ID  string
	URL string
}

type EventKind string

const (
	EventPaymentSettled EventKind = "payment.settled"
	EventIgnored        EventKind = "ignored"
)

// Event is a gateway webhook reduced to what settlement needs. Every
// received/confirmed variant of a gateway's events maps to EventPaymentSettled.
type Event struct {
	ID          string
	Provider    string
	Kind        EventKind
	RawType     string
	OrderRef    string
	LinkRef     string
	PaymentID   string
	InvoiceRef  string
	CustomerRef string
	Amount      decimal.Decimal
	DueDate     string
}

// GatewayError carries the provider's human-readable rejection message.
type GatewayError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s request failed (%d): %s", e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s request failed: %s", e.Provider, msg)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// UserMessage returns the text safe to show to a buyer.
func UserMessage(err error) string {
	var gatewayErr *GatewayError
	if errors.As(err, &gatewayErr) && strings.TrimSpace(gatewayErr.Message) != "" {
		return gatewayErr.Message
	}
	return "Erro interno ao criar payment link."
}
