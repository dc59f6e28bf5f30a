package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atacanet/storefront/internal/db"
	"github.com/atacanet/storefront/internal/fulfillment"
	"github.com/atacanet/storefront/internal/models"
	"github.com/atacanet/storefront/internal/payments"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memoryOrders mirrors the conditional updates of db.OrderStore.
type memoryOrders struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]*models.Order
	history   map[uuid.UUID][]models.FulfillmentEntry
	markPaid  int
	createErr error
	getErr    error
}

func newMemoryOrders() *memoryOrders {
	return &memoryOrders{
		orders:  map[uuid.UUID]*models.Order{},
		history: map[uuid.UUID][]models.FulfillmentEntry{},
	}
}

func (m *memoryOrders) Create(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	order.ID = uuid.New()
	order.Status = models.StatusPending
	order.AmountPaid = decimal.Zero
	order.CreatedAt = time.Now()
	stored := *order
	m.orders[order.ID] = &stored
	return nil
}

func (m *memoryOrders) put(order models.Order) *models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	m.orders[order.ID] = &order
	if order.FulfillmentState != "" {
		m.history[order.ID] = append(m.history[order.ID], models.FulfillmentEntry{State: order.FulfillmentState, EnteredAt: time.Now()})
	}
	return &order
}

func (m *memoryOrders) get(id uuid.UUID) models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.orders[id]
}

func (m *memoryOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memoryOrders) GetByID(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	order, ok := m.orders[orderID]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *order
	return &copied, nil
}

func (m *memoryOrders) GetByExternalReference(_ context.Context, reference string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, order := range m.orders {
		if order.ExternalReference == reference {
			copied := *order
			return &copied, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memoryOrders) SetExternalReference(_ context.Context, orderID uuid.UUID, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok || order.Status != models.StatusPending || order.ExternalReference != "" {
		return db.ErrInvalidStatusTransition
	}
	order.ExternalReference = reference
	return nil
}

func (m *memoryOrders) MarkCancelled(_ context.Context, orderID uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok || order.Status != models.StatusPending {
		return db.ErrInvalidStatusTransition
	}
	order.Status = models.StatusCancelled
	order.CancelReason = reason
	order.CancelledAt = time.Now()
	return nil
}

func (m *memoryOrders) MarkPaid(_ context.Context, orderID uuid.UUID, amount decimal.Decimal, actor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok || order.Status != models.StatusPending {
		return db.ErrInvalidStatusTransition
	}
	m.markPaid++
	order.Status = models.StatusPaid
	order.AmountPaid = amount
	order.PaidAt = time.Now()
	order.FulfillmentState = fulfillment.Initial
	m.history[orderID] = append(m.history[orderID], models.FulfillmentEntry{State: fulfillment.Initial, EnteredAt: time.Now(), Actor: actor})
	return nil
}

func (m *memoryOrders) SetInvoiceURL(_ context.Context, orderID uuid.UUID, invoiceURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok || order.Status != models.StatusPaid {
		return db.ErrInvalidStatusTransition
	}
	order.InvoiceURL = invoiceURL
	return nil
}

func (m *memoryOrders) TransitionFulfillment(_ context.Context, orderID uuid.UUID, from, to fulfillment.State, actor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok || order.Status != models.StatusPaid || order.FulfillmentState != from {
		return fmt.Errorf("%w: expected %q", db.ErrStaleFulfillmentState, from)
	}
	order.FulfillmentState = to
	m.history[orderID] = append(m.history[orderID], models.FulfillmentEntry{State: to, EnteredAt: time.Now(), Actor: actor})
	return nil
}

func (m *memoryOrders) FulfillmentHistory(_ context.Context, orderID uuid.UUID) ([]models.FulfillmentEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.FulfillmentEntry{}, m.history[orderID]...), nil
}

type memoryProducts map[int64]models.Product

func (m memoryProducts) GetByIDs(_ context.Context, ids []int64) (map[int64]models.Product, error) {
	found := make(map[int64]models.Product, len(ids))
	for _, id := range ids {
		if product, ok := m[id]; ok {
			found[id] = product
		}
	}
	return found, nil
}

type memoryCustomers struct {
	mu        sync.Mutex
	customers map[uuid.UUID]*models.Customer
}

func newMemoryCustomers(customers ...models.Customer) *memoryCustomers {
	m := &memoryCustomers{customers: map[uuid.UUID]*models.Customer{}}
	for _, customer := range customers {
		c := customer
		m.customers[c.ID] = &c
	}
	return m
}

func (m *memoryCustomers) GetByID(_ context.Context, customerID uuid.UUID) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	customer, ok := m.customers[customerID]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *customer
	return &copied, nil
}

func (m *memoryCustomers) SetGatewayCustomerID(_ context.Context, customerID uuid.UUID, gatewayCustomerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	customer, ok := m.customers[customerID]
	if !ok {
		return db.ErrNotFound
	}
	customer.GatewayCustomerID = gatewayCustomerID
	return nil
}

type fakeGateway struct {
	mu         sync.Mutex
	linkErr    error
	invoiceErr error
	block      bool
	links      []payments.LinkRequest
	invoices   []payments.InvoiceRequest
}

func (g *fakeGateway) Provider() string {
	return "fake"
}

func (g *fakeGateway) CreatePaymentLink(ctx context.Context, req payments.LinkRequest) (*payments.Link, error) {
	g.mu.Lock()
	g.links = append(g.links, req)
	block, linkErr := g.block, g.linkErr
	g.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, &payments.GatewayError{Provider: "fake", Err: ctx.Err()}
	}
	if linkErr != nil {
		return nil, linkErr
	}
	return &payments.Link{ID: "lnk_" + req.OrderID[:8], URL: "https://pay.example/" + req.OrderID}, nil
}

func (g *fakeGateway) IssueInvoice(_ context.Context, req payments.InvoiceRequest) (*payments.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.invoices = append(g.invoices, req)
	if g.invoiceErr != nil {
		return nil, g.invoiceErr
	}
	return &payments.Invoice{ID: "inv_1", URL: "https://pay.example/nf/" + req.OrderID + ".pdf"}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	err    error
	orders []models.Order
}

func (n *recordingNotifier) SendPaymentReceived(_ context.Context, _ *models.Customer, order *models.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, *order)
	return n.err
}

func (n *recordingNotifier) sent() []models.Order {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Order{}, n.orders...)
}
