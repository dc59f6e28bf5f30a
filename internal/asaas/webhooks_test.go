package asaas

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/atacanet/storefront/internal/payments"
)

const settledPayload = `{
	"id": "evt_05b708f961d739ea7eba7e4db318f621",
	"event": "PAYMENT_RECEIVED",
	"payment": {
		"object": "payment",
		"id": "pay_080225913252",
		"customer": "cus_G7Dvo4iphUNk",
		"paymentLink": "lnk_123",
		"value": 270.00,
		"dueDate": "2026-10-20",
		"externalReference": "3c8e4c6a-1e4e-4b8e-9a53-4c1f0f1f2d11"
	}
}`

func TestReadWebhookEvent_Authentication(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{name: "missing token", secret: "s3cret", token: ""},
		{name: "wrong token", secret: "s3cret", token: "guess"},
		{name: "unconfigured secret", secret: "", token: "anything"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := NewClient("key", "", tt.secret, nil)
			req := httptest.NewRequest("POST", "/webhooks/payments", bytes.NewBufferString(settledPayload))
			if tt.token != "" {
				req.Header.Set(TokenHeader, tt.token)
			}
			_, err := client.ReadWebhookEvent(req)
			if !errors.Is(err, payments.ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestReadWebhookEvent_Settled(t *testing.T) {
	t.Parallel()

	for _, kind := range []string{"PAYMENT_RECEIVED", "PAYMENT_CONFIRMED"} {
		payload := bytes.Replace([]byte(settledPayload), []byte("PAYMENT_RECEIVED"), []byte(kind), 1)
		req := httptest.NewRequest("POST", "/webhooks/payments", bytes.NewReader(payload))
		req.Header.Set(TokenHeader, "s3cret")

		event, err := NewClient("key", "", "s3cret", nil).ReadWebhookEvent(req)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
		if event.Kind != payments.EventPaymentSettled {
			t.Fatalf("%s: kind = %s", kind, event.Kind)
		}
		if event.OrderRef != "3c8e4c6a-1e4e-4b8e-9a53-4c1f0f1f2d11" || event.LinkRef != "lnk_123" {
			t.Fatalf("%s: unexpected refs: %+v", kind, event)
		}
		if event.Amount.StringFixed(2) != "270.00" {
			t.Fatalf("%s: amount = %s", kind, event.Amount)
		}
		if event.CustomerRef != "cus_G7Dvo4iphUNk" || event.DueDate != "2026-10-20" || event.PaymentID != "pay_080225913252" {
			t.Fatalf("%s: unexpected payment fields: %+v", kind, event)
		}
	}
}

func TestReadWebhookEvent_IgnoresOtherKinds(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("POST", "/webhooks/payments", bytes.NewBufferString(`{"id":"evt_1","event":"PAYMENT_OVERDUE","payment":{"id":"pay_1"}}`))
	req.Header.Set(TokenHeader, "s3cret")

	event, err := NewClient("key", "", "s3cret", nil).ReadWebhookEvent(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Kind != payments.EventIgnored || event.RawType != "PAYMENT_OVERDUE" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestReadWebhookEvent_Malformed(t *testing.T) {
	t.Parallel()

	tests := []string{
		`not json`,
		`{"id":"evt_1"}`,
		`{"id":"evt_1","event":"PAYMENT_RECEIVED"}`,
		`{"id":"evt_1","event":"PAYMENT_RECEIVED","payment":{"value":"abc"}}`,
	}

	for _, payload := range tests {
		req := httptest.NewRequest("POST", "/webhooks/payments", bytes.NewBufferString(payload))
		req.Header.Set(TokenHeader, "s3cret")
		_, err := NewClient("key", "", "s3cret", nil).ReadWebhookEvent(req)
		if !errors.Is(err, payments.ErrMalformedEvent) {
			t.Fatalf("payload %s: expected ErrMalformedEvent, got %v", payload, err)
		}
	}
}
