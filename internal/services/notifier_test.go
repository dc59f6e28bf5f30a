package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atacanet/storefront/internal/email"
	"github.com/atacanet/storefront/internal/models"
)

type capturingProvider struct {
	sent []*email.Email
}

func (p *capturingProvider) SendEmail(_ context.Context, msg *email.Email) error {
	p.sent = append(p.sent, msg)
	return nil
}

func (p *capturingProvider) ValidateAPIKey(context.Context) error {
	return nil
}

func TestEmailPaymentNotifier(t *testing.T) {
	t.Parallel()

	renderer, err := email.NewRenderer()
	require.NoError(t, err)
	provider := &capturingProvider{}
	notifier := NewEmailPaymentNotifier(provider, renderer, "AtacaNet")

	order := &models.Order{
		ID:         uuid.MustParse("3c8e4c6a-1e4e-4b8e-9a53-4c1f0f1f2d11"),
		Status:     models.StatusPaid,
		Total:      decimal.RequireFromString("270"),
		AmountPaid: decimal.RequireFromString("270"),
		InvoiceURL: "https://www.asaas.com/nf/inv_1.pdf",
		LineItems: []models.LineItem{
			{ProductID: 1, Quantity: 3, Name: "Arroz 5kg", LineTotal: decimal.RequireFromString("270")},
		},
	}

	require.NoError(t, notifier.SendPaymentReceived(context.Background(), &testCustomer, order))
	require.Len(t, provider.sent, 1)
	assert.Equal(t, "Sua nota fiscal - Pedido 3c8e4c6a", provider.sent[0].Subject)
	assert.Equal(t, "ana@example.com", provider.sent[0].To)
	assert.Contains(t, provider.sent[0].Text, "(valor R$ 270.00)")
}

func TestEmailPaymentNotifier_DisabledProvider(t *testing.T) {
	t.Parallel()

	renderer, err := email.NewRenderer()
	require.NoError(t, err)
	notifier := NewEmailPaymentNotifier(nil, renderer, "AtacaNet")

	err = notifier.SendPaymentReceived(context.Background(), &testCustomer, &models.Order{ID: uuid.New()})
	assert.NoError(t, err)
}

func TestOrderNumber(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "3c8e4c6a", OrderNumber("3c8e4c6a-1e4e-4b8e-9a53-4c1f0f1f2d11"))
	assert.Equal(t, "42", OrderNumber("42"))
}
