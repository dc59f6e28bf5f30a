package stripe

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/atacanet/storefront/internal/payments"
)

// ReadWebhookEvent verifies the Stripe-Signature header and reduces the event
// to a settlement event.
func (g *Gateway) ReadWebhookEvent(r *http.Request) (*payments.Event, error) {
	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		return nil, fmt.Errorf("%w: missing stripe signature header", payments.ErrUnauthorized)
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payments.ErrUnauthorized, err)
	}

	return settlementEvent(&event)
}

func settlementEvent(event *stripe.Event) (*payments.Event, error) {
	result := &payments.Event{
		ID:       event.ID,
		Provider: providerName,
		Kind:     payments.EventIgnored,
		RawType:  string(event.Type),
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
	default:
		return result, nil
	}
	if event.Data == nil {
		return nil, fmt.Errorf("%w: missing event data", payments.ErrMalformedEvent)
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", payments.ErrMalformedEvent, err)
	}
	// Boleto and pix sessions complete before the money arrives and settle
	// later through async_payment_succeeded.
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return result, nil
	}

	result.Kind = payments.EventPaymentSettled
	result.OrderRef = session.ClientReferenceID
	if result.OrderRef == "" {
		result.OrderRef = session.Metadata["order_id"]
	}
	result.LinkRef = session.ID
	result.Amount = decimal.New(session.AmountTotal, -2)
	if session.PaymentIntent != nil {
		result.PaymentID = session.PaymentIntent.ID
	}
	if session.Invoice != nil {
		result.InvoiceRef = session.Invoice.ID
	}
	if session.Customer != nil {
		result.CustomerRef = session.Customer.ID
	}
	return result, nil
}
