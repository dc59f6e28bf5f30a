// Package stripe provides the Stripe Checkout payment gateway.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/atacanet/storefront/internal/models"
	"github.com/atacanet/storefront/internal/payments"
)

const providerName = "stripe"

var paymentMethodTypes = map[models.PaymentMethod]string{
	models.PaymentMethodPix:    "pix",
	models.PaymentMethodCard:   "card",
	models.PaymentMethodBoleto: "boleto",
}

// Gateway creates Checkout Sessions as payment links and reads the invoices
// Checkout issues for them.
type Gateway struct {
	client        *stripe.Client
	webhookSecret string
	cancelURL     string
}

// NewGateway builds the gateway on httpClient so Stripe calls are traced
// like the other providers. A nil client uses stripe-go's default.
func NewGateway(secretKey, webhookSecret, cancelURL string, httpClient *http.Client) *Gateway {
	return newGateway(secretKey, webhookSecret, cancelURL, &stripe.BackendConfig{HTTPClient: httpClient})
}

func newGateway(secretKey, webhookSecret, cancelURL string, backend *stripe.BackendConfig) *Gateway {
	return &Gateway{
		client:        stripe.NewClient(secretKey, stripe.WithBackends(stripe.NewBackendsWithConfig(backend))),
		webhookSecret: webhookSecret,
		cancelURL:     cancelURL,
	}
}

func (g *Gateway) Provider() string {
	return providerName
}

func (g *Gateway) CreatePaymentLink(ctx context.Context, req payments.LinkRequest) (*payments.Link, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	methodType, ok := paymentMethodTypes[req.PaymentMethod]
	if !ok {
		return nil, fmt.Errorf("unsupported payment method: %q", req.PaymentMethod)
	}

	lineItems := make([]*stripe.CheckoutSessionCreateLineItemParams, 0, len(req.Lines))
	for _, line := range req.Lines {
		lineItems = append(lineItems, &stripe.CheckoutSessionCreateLineItemParams{
			PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				Currency: stripe.String("brl"),
				ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripe.String(line.Name),
				},
				UnitAmount: stripe.Int64(line.UnitPrice.Shift(2).Round(0).IntPart()),
			},
			Quantity: stripe.Int64(int64(line.Quantity)),
		})
	}

	params := &stripe.CheckoutSessionCreateParams{
		PaymentMethodTypes: stripe.StringSlice([]string{methodType}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(req.SuccessURL),
		ClientReferenceID:  stripe.String(req.OrderID),
		CustomerCreation:   stripe.String("always"),
		LineItems:          lineItems,
		InvoiceCreation: &stripe.CheckoutSessionCreateInvoiceCreationParams{
			Enabled: stripe.Bool(true),
			InvoiceData: &stripe.CheckoutSessionCreateInvoiceCreationInvoiceDataParams{
				Description: stripe.String(fmt.Sprintf("Nota fiscal para o pedido %s", req.OrderID)),
				Metadata:    map[string]string{"order_id": req.OrderID},
			},
		},
		Metadata: map[string]string{
			"order_id": req.OrderID,
		},
	}
	if g.cancelURL != "" {
		params.CancelURL = stripe.String(g.cancelURL)
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}

	sess, err := g.client.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, &payments.GatewayError{Provider: providerName, Message: stripeMessage(err), Err: err}
	}

	return &payments.Link{ID: sess.ID, URL: sess.URL}, nil
}

// IssueInvoice returns the invoice Checkout generated for the settled session.
func (g *Gateway) IssueInvoice(ctx context.Context, req payments.InvoiceRequest) (*payments.Invoice, error) {
	if req.InvoiceRef == "" {
		return nil, fmt.Errorf("checkout session for order %s has no invoice", req.OrderID)
	}

	invoice, err := g.client.V1Invoices.Retrieve(ctx, req.InvoiceRef, nil)
	if err != nil {
		return nil, &payments.GatewayError{Provider: providerName, Message: stripeMessage(err), Err: err}
	}

	url := invoice.HostedInvoiceURL
	if url == "" {
		url = invoice.InvoicePDF
	}
	return &payments.Invoice{ID: invoice.ID, URL: url}, nil
}

func stripeMessage(err error) string {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.Msg
	}
	return ""
}
