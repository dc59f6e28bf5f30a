package asaas

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/atacanet/storefront/internal/payments"
)

// TokenHeader carries the shared secret configured on the Asaas webhook.
const TokenHeader = "asaas-access-token"

type webhookPayment struct {
	ID                string      `json:"id"`
	Customer          string      `json:"customer"`
	ExternalReference string      `json:"externalReference"`
	PaymentLink       string      `json:"paymentLink"`
	Value             json.Number `json:"value"`
	DueDate           string      `json:"dueDate"`
}

type webhookEnvelope struct {
	ID      string          `json:"id"`
	Event   string          `json:"event"`
	Payment *webhookPayment `json:"payment"`
}

// ReadWebhookEvent authenticates and decodes an Asaas webhook delivery.
func (c *Client) ReadWebhookEvent(r *http.Request) (*payments.Event, error) {
	token := r.Header.Get(TokenHeader)
	if c.webhookToken == "" || token == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(c.webhookToken)) != 1 {
		return nil, payments.ErrUnauthorized
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", payments.ErrMalformedEvent, err)
	}
	if envelope.Event == "" {
		return nil, fmt.Errorf("%w: missing event type", payments.ErrMalformedEvent)
	}

	event := &payments.Event{
		ID:       envelope.ID,
		Provider: providerName,
		Kind:     payments.EventIgnored,
		RawType:  envelope.Event,
	}

	switch envelope.Event {
	case "PAYMENT_RECEIVED", "PAYMENT_CONFIRMED":
	default:
		return event, nil
	}

	if envelope.Payment == nil {
		return nil, fmt.Errorf("%w: missing payment object", payments.ErrMalformedEvent)
	}
	payment := envelope.Payment

	amount := decimal.Zero
	if payment.Value != "" {
		amount, err = decimal.NewFromString(payment.Value.String())
		if err != nil {
			return nil, fmt.Errorf("%w: invalid payment value %q", payments.ErrMalformedEvent, payment.Value)
		}
	}

	event.Kind = payments.EventPaymentSettled
	event.OrderRef = strings.TrimSpace(payment.ExternalReference)
	event.LinkRef = payment.PaymentLink
	event.PaymentID = payment.ID
	event.CustomerRef = payment.Customer
	event.Amount = amount
	event.DueDate = payment.DueDate
	if event.ID == "" {
		event.ID = envelope.Event + ":" + payment.ID
	}
	return event, nil
}
