package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atacanet/storefront/internal/fulfillment"
	"github.com/atacanet/storefront/internal/models"
	"github.com/atacanet/storefront/internal/payments"
)

type settlementFixture struct {
	service   *SettlementService
	orders    *memoryOrders
	customers *memoryCustomers
	gateway   *fakeGateway
	notifier  *recordingNotifier
}

func newSettlementFixture() *settlementFixture {
	f := &settlementFixture{
		orders:    newMemoryOrders(),
		customers: newMemoryCustomers(testCustomer),
		gateway:   &fakeGateway{},
		notifier:  &recordingNotifier{},
	}
	f.service = NewSettlementService(f.orders, f.customers, f.gateway, f.notifier, time.Second, discardLogger())
	return f
}

func (f *settlementFixture) pendingOrder() *models.Order {
	return f.orders.put(models.Order{
		CustomerID:        testCustomer.ID,
		PaymentMethod:     models.PaymentMethodPix,
		Status:            models.StatusPending,
		Total:             decimal.RequireFromString("270.00"),
		ExternalReference: "lnk_123",
		LineItems: []models.LineItem{{
			ProductID: 1,
			Quantity:  3,
			Name:      "Arroz 5kg",
			UnitPrice: decimal.RequireFromString("90.00"),
			LineTotal: decimal.RequireFromString("270.00"),
		}},
	})
}

func settledEvent(orderRef string) *payments.Event {
	return &payments.Event{
		ID:          "evt_1",
		Provider:    "asaas",
		Kind:        payments.EventPaymentSettled,
		RawType:     "PAYMENT_RECEIVED",
		OrderRef:    orderRef,
		PaymentID:   "pay_1",
		CustomerRef: "cus_1",
		Amount:      decimal.RequireFromString("270.00"),
		DueDate:     "2026-10-20",
	}
}

func TestHandlePaymentEvent_SettlesOrder(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture()
	order := f.pendingOrder()

	outcome, err := f.service.HandlePaymentEvent(context.Background(), settledEvent(order.ID.String()))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, outcome)

	stored := f.orders.get(order.ID)
	assert.Equal(t, models.StatusPaid, stored.Status)
	assert.Equal(t, "270.00", stored.AmountPaid.StringFixed(2))
	assert.Equal(t, fulfillment.StatePedidoRealizado, stored.FulfillmentState)
	assert.Equal(t, "https://pay.example/nf/"+order.ID.String()+".pdf", stored.InvoiceURL)

	history, err := f.orders.FulfillmentHistory(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "asaas", history[0].Actor)

	require.Len(t, f.gateway.invoices, 1)
	assert.Equal(t, "pay_1", f.gateway.invoices[0].PaymentID)
	assert.Equal(t, "cus_1", f.gateway.invoices[0].CustomerRef)

	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, stored.InvoiceURL, sent[0].InvoiceURL)

	customer, err := f.customers.GetByID(context.Background(), testCustomer.ID)
	require.NoError(t, err)
	assert.Equal(t, "cus_1", customer.GatewayCustomerID)
}

func TestHandlePaymentEvent_RedeliveryIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture()
	order := f.pendingOrder()
	event := settledEvent(order.ID.String())

	first, err := f.service.HandlePaymentEvent(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, OutcomeSettled, first)
	paidAt := f.orders.get(order.ID).PaidAt

	confirmed := settledEvent(order.ID.String())
	confirmed.RawType = "PAYMENT_CONFIRMED"
	second, err := f.service.HandlePaymentEvent(context.Background(), confirmed)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, second)

	assert.Equal(t, 1, f.orders.markPaid)
	assert.Equal(t, paidAt, f.orders.get(order.ID).PaidAt)
	assert.Len(t, f.gateway.invoices, 1)
	assert.Len(t, f.notifier.sent(), 1)
}

func TestHandlePaymentEvent_ConcurrentDeliveriesSettleOnce(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture()
	order := f.pendingOrder()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes []SettlementOutcome
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := f.service.HandlePaymentEvent(context.Background(), settledEvent(order.ID.String()))
			assert.NoError(t, err)
			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
		}()
	}
	wg.Wait()

	settled := 0
	for _, outcome := range outcomes {
		if outcome == OutcomeSettled {
			settled++
		} else {
			assert.Equal(t, OutcomeDuplicate, outcome)
		}
	}
	assert.Equal(t, 1, settled)
	assert.Equal(t, 1, f.orders.markPaid)
	assert.Len(t, f.notifier.sent(), 1)
}

func TestHandlePaymentEvent_UnknownReferenceIsAcknowledged(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture()
	order := f.pendingOrder()

	for _, ref := range []string{"not-a-uuid", uuid.NewString(), ""} {
		outcome, err := f.service.HandlePaymentEvent(context.Background(), settledEvent(ref))
		require.NoError(t, err)
		assert.Equal(t, OutcomeUnknownOrder, outcome)
	}

	assert.Equal(t, models.StatusPending, f.orders.get(order.ID).Status)
	assert.Zero(t, f.orders.markPaid)
	assert.Empty(t, f.gateway.invoices)
	assert.Empty(t, f.notifier.sent())
}

func TestHandlePaymentEvent_FallsBackToLinkReference(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture()
	order := f.pendingOrder()

	event := settledEvent("")
	event.LinkRef = "lnk_123"
	outcome, err := f.service.HandlePaymentEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, outcome)
	assert.Equal(t, models.StatusPaid, f.orders.get(order.ID).Status)
}

func TestHandlePaymentEvent_IgnoresOtherKinds(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture()
	order := f.pendingOrder()

	event := settledEvent(order.ID.String())
	event.Kind = payments.EventIgnored
	event.RawType = "PAYMENT_OVERDUE"

	outcome, err := f.service.HandlePaymentEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Equal(t, models.StatusPending, f.orders.get(order.ID).Status)
}

func TestHandlePaymentEvent_CancelledOrderIsNotReopened(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture()
	order := f.pendingOrder()
	require.NoError(t, f.orders.MarkCancelled(context.Background(), order.ID, CancelReasonPaymentLinkFailed))

	outcome, err := f.service.HandlePaymentEvent(context.Background(), settledEvent(order.ID.String()))
	require.NoError(t, err)
	assert.Equal(t, OutcomeOrderClosed, outcome)
	assert.Equal(t, models.StatusCancelled, f.orders.get(order.ID).Status)
}

func TestHandlePaymentEvent_SideEffectFailuresKeepOrderPaid(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture()
	f.gateway.invoiceErr = errors.New("asaas request failed (500)")
	f.notifier.err = errors.New("smtp down")
	order := f.pendingOrder()

	outcome, err := f.service.HandlePaymentEvent(context.Background(), settledEvent(order.ID.String()))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, outcome)

	stored := f.orders.get(order.ID)
	assert.Equal(t, models.StatusPaid, stored.Status)
	assert.Empty(t, stored.InvoiceURL)

	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	assert.Empty(t, sent[0].InvoiceURL)
}

func TestHandlePaymentEvent_StoreReadFailureIsReturned(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture()
	order := f.pendingOrder()
	f.orders.getErr = errors.New("connection refused")

	_, err := f.service.HandlePaymentEvent(context.Background(), settledEvent(order.ID.String()))
	require.Error(t, err)
}

func TestHandlePaymentEvent_ZeroAmountFallsBackToTotal(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture()
	order := f.pendingOrder()

	event := settledEvent(order.ID.String())
	event.Amount = decimal.Zero
	_, err := f.service.HandlePaymentEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, "270.00", f.orders.get(order.ID).AmountPaid.StringFixed(2))
}
