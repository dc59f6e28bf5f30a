package services

import (
	"context"
	"fmt"

	"github.com/atacanet/storefront/internal/email"
	"github.com/atacanet/storefront/internal/models"
)

type PaymentNotifier interface {
	SendPaymentReceived(ctx context.Context, customer *models.Customer, order *models.Order) error
}

// EmailPaymentNotifier sends the payment confirmation, with the invoice link
// when one was issued, through the configured email provider.
type EmailPaymentNotifier struct {
	provider  email.Provider
	renderer  *email.Renderer
	storeName string
}

func NewEmailPaymentNotifier(provider email.Provider, renderer *email.Renderer, storeName string) *EmailPaymentNotifier {
	return &EmailPaymentNotifier{
		provider:  provider,
		renderer:  renderer,
		storeName: storeName,
	}
}

func (n *EmailPaymentNotifier) SendPaymentReceived(ctx context.Context, customer *models.Customer, order *models.Order) error {
	if customer == nil || order == nil {
		return fmt.Errorf("customer and order are required")
	}
	if n == nil || n.provider == nil {
		return nil
	}

	return email.SendPaymentReceived(ctx, n.provider, n.renderer, BuildPaymentInfo(n.storeName, customer, order))
}

// BuildPaymentInfo maps a settled order to the email template data.
func BuildPaymentInfo(storeName string, customer *models.Customer, order *models.Order) *email.PaymentInfo {
	amount := order.AmountPaid
	if amount.IsZero() {
		amount = order.Total
	}

	items := make([]email.PaymentItem, 0, len(order.LineItems))
	for _, line := range order.LineItems {
		items = append(items, email.PaymentItem{
			Name:      line.Name,
			Quantity:  line.Quantity,
			LineTotal: line.LineTotal.StringFixed(2),
		})
	}

	return &email.PaymentInfo{
		OrderNumber:   OrderNumber(order.ID.String()),
		CustomerName:  customer.Name,
		CustomerEmail: customer.Email,
		StoreName:     storeName,
		Amount:        amount.StringFixed(2),
		InvoiceURL:    order.InvoiceURL,
		Items:         items,
	}
}

// OrderNumber is the short order reference shown to buyers.
func OrderNumber(orderID string) string {
	if len(orderID) > 8 {
		return orderID[:8]
	}
	return orderID
}

type noopPaymentNotifier struct{}

func (noopPaymentNotifier) SendPaymentReceived(context.Context, *models.Customer, *models.Order) error {
	return nil
}
