// Package asaas provides the Asaas payment gateway client.
package asaas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/atacanet/storefront/internal/models"
	"github.com/atacanet/storefront/internal/payments"
)

const (
	DefaultBaseURL = "https://api.asaas.com/v3"
	providerName   = "asaas"

	boletoDueDateLimitDays = 5
)

var billingTypes = map[models.PaymentMethod]string{
	models.PaymentMethodPix:    "PIX",
	models.PaymentMethodCard:   "CREDIT_CARD",
	models.PaymentMethodBoleto: "BOLETO",
}

// Client talks to the Asaas REST API and validates its webhooks.
type Client struct {
	apiKey       string
	baseURL      string
	webhookToken string
	httpClient   *http.Client
}

func NewClient(apiKey, baseURL, webhookToken string, httpClient *http.Client) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		webhookToken: webhookToken,
		httpClient:   httpClient,
	}
}

func (c *Client) Provider() string {
	return providerName
}

type paymentLinkCallback struct {
	SuccessURL   string `json:"successUrl"`
	AutoRedirect bool   `json:"autoRedirect"`
}

type paymentLinkRequest struct {
	Name              string               `json:"name"`
	Description       string               `json:"description"`
	Value             json.Number          `json:"value"`
	BillingType       string               `json:"billingType"`
	ChargeType        string               `json:"chargeType"`
	ExternalReference string               `json:"externalReference"`
	DueDateLimitDays  int                  `json:"dueDateLimitDays,omitempty"`
	Callback          *paymentLinkCallback `json:"callback,omitempty"`
}

type paymentLinkResponse struct {
	ID             string `json:"id"`
	URL            string `json:"url"`
	PaymentLinkURL string `json:"paymentLinkUrl"`
}

// CreatePaymentLink creates a DETACHED payment link whose payments carry the
// order id as externalReference.
func (c *Client) CreatePaymentLink(ctx context.Context, req payments.LinkRequest) (*payments.Link, error) {
	billingType, ok := billingTypes[req.PaymentMethod]
	if !ok {
		return nil, fmt.Errorf("unsupported payment method: %q", req.PaymentMethod)
	}

	payload := paymentLinkRequest{
		Name:              req.Name,
		Description:       req.Description,
		Value:             json.Number(req.Amount.StringFixed(2)),
		BillingType:       billingType,
		ChargeType:        "DETACHED",
		ExternalReference: req.OrderID,
	}
	if req.PaymentMethod == models.PaymentMethodBoleto {
		payload.DueDateLimitDays = boletoDueDateLimitDays
	}
	if req.SuccessURL != "" {
		payload.Callback = &paymentLinkCallback{SuccessURL: req.SuccessURL, AutoRedirect: true}
	}

	var resp paymentLinkResponse
	if err := c.post(ctx, "/paymentLinks", payload, &resp); err != nil {
		return nil, err
	}

	link := &payments.Link{ID: resp.ID, URL: resp.URL}
	if link.URL == "" {
		link.URL = resp.PaymentLinkURL
	}
	if link.ID == "" || link.URL == "" {
		return nil, &payments.GatewayError{Provider: providerName, Message: "resposta sem link de pagamento"}
	}
	return link, nil
}

type invoiceRequest struct {
	Payment            string      `json:"payment,omitempty"`
	Customer           string      `json:"customer,omitempty"`
	ServiceDescription string      `json:"serviceDescription"`
	Observations       string      `json:"observations"`
	Value              json.Number `json:"value"`
	EffectiveDate      string      `json:"effectiveDate,omitempty"`
	ExternalReference  string      `json:"externalReference"`
}

type invoiceResponse struct {
	ID         string `json:"id"`
	PDFURL     string `json:"pdfUrl"`
	PDF        string `json:"pdf"`
	InvoiceURL string `json:"invoiceUrl"`
}

// IssueInvoice schedules the fiscal invoice of a settled payment.
func (c *Client) IssueInvoice(ctx context.Context, req payments.InvoiceRequest) (*payments.Invoice, error) {
	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Nota fiscal para o pedido %s", req.OrderID)
	}

	payload := invoiceRequest{
		Payment:            req.PaymentID,
		Customer:           req.CustomerRef,
		ServiceDescription: description,
		Observations:       description,
		Value:              json.Number(req.Amount.StringFixed(2)),
		EffectiveDate:      req.DueDate,
		ExternalReference:  req.OrderID,
	}

	var resp invoiceResponse
	if err := c.post(ctx, "/invoices", payload, &resp); err != nil {
		return nil, err
	}

	invoice := &payments.Invoice{ID: resp.ID}
	for _, candidate := range []string{resp.PDFURL, resp.PDF, resp.InvoiceURL} {
		if candidate != "" {
			invoice.URL = candidate
			break
		}
	}
	return invoice, nil
}

type apiErrorResponse struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
	Message string `json:"message"`
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal asaas request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &payments.GatewayError{Provider: providerName, Err: err}
	}
	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	closeErr := resp.Body.Close()
	if readErr != nil {
		return &payments.GatewayError{Provider: providerName, StatusCode: resp.StatusCode, Err: readErr}
	}
	if closeErr != nil {
		return &payments.GatewayError{Provider: providerName, StatusCode: resp.StatusCode, Err: closeErr}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &payments.GatewayError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody),
		}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &payments.GatewayError{Provider: providerName, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return nil
}

func errorMessage(body []byte) string {
	var apiErr apiErrorResponse
	if json.Unmarshal(body, &apiErr) == nil {
		if len(apiErr.Errors) > 0 && apiErr.Errors[0].Description != "" {
			return apiErr.Errors[0].Description
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}
	return ""
}
