package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/atacanet/storefront/internal/auth"
	"github.com/atacanet/storefront/internal/cache"
	"github.com/atacanet/storefront/internal/config"
	"github.com/atacanet/storefront/internal/fulfillment"
	"github.com/atacanet/storefront/internal/payments"
	"github.com/atacanet/storefront/internal/services"
)

const testJWTSecret = "test-secret-with-enough-bytes"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error {
	return p.err
}

type fakeCheckout struct {
	got    services.CreatePaymentLinkInput
	result *services.PaymentLinkResult
	err    error
}

func (f *fakeCheckout) CreatePaymentLink(_ context.Context, input services.CreatePaymentLinkInput) (*services.PaymentLinkResult, error) {
	f.got = input
	return f.result, f.err
}

type fakeSettlement struct {
	mu      sync.Mutex
	calls   int
	outcome services.SettlementOutcome
	errs    []error
}

func (f *fakeSettlement) HandlePaymentEvent(context.Context, *payments.Event) (services.SettlementOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return f.outcome, nil
}

func (f *fakeSettlement) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeFulfillment struct {
	gotTarget fulfillment.State
	gotActor  string
	state     fulfillment.State
	status    *services.FulfillmentStatus
	detail    *services.OrderDetail
	err       error
}

func (f *fakeFulfillment) Advance(_ context.Context, _ uuid.UUID, actor string) (fulfillment.State, error) {
	f.gotActor = actor
	return f.state, f.err
}

func (f *fakeFulfillment) ChooseOutcome(_ context.Context, _ uuid.UUID, target fulfillment.State, actor string) (fulfillment.State, error) {
	f.gotTarget = target
	f.gotActor = actor
	return f.state, f.err
}

func (f *fakeFulfillment) Status(context.Context, uuid.UUID) (*services.FulfillmentStatus, error) {
	return f.status, f.err
}

func (f *fakeFulfillment) OrderDetail(context.Context, uuid.UUID) (*services.OrderDetail, error) {
	return f.detail, f.err
}

type fakeWebhooks struct {
	event *payments.Event
	err   error
}

func (f *fakeWebhooks) Provider() string {
	return "asaas"
}

func (f *fakeWebhooks) ReadWebhookEvent(*http.Request) (*payments.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	event := *f.event
	return &event, nil
}

type testDeps struct {
	checkout    *fakeCheckout
	settlement  *fakeSettlement
	fulfillment *fakeFulfillment
	webhooks    *fakeWebhooks
	db          fakePinger
}

func newTestHandlers(t *testing.T, deps testDeps) *Handlers {
	t.Helper()

	if deps.checkout == nil {
		deps.checkout = &fakeCheckout{}
	}
	if deps.settlement == nil {
		deps.settlement = &fakeSettlement{}
	}
	if deps.fulfillment == nil {
		deps.fulfillment = &fakeFulfillment{}
	}
	if deps.webhooks == nil {
		deps.webhooks = &fakeWebhooks{}
	}

	cacheProvider, err := cache.NewMemoryProvider()
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	h, err := New(Dependencies{
		Config:        &config.Config{JWTSecret: testJWTSecret, FrontendURL: "https://loja.example"},
		DB:            deps.db,
		CacheProvider: cacheProvider,
		Checkout:      deps.checkout,
		Settlement:    deps.settlement,
		Fulfillment:   deps.fulfillment,
		Webhooks:      deps.webhooks,
		Logger:        discardLogger(),
	})
	if err != nil {
		t.Fatalf("failed to create handlers: %v", err)
	}
	return h
}

func testToken(t *testing.T, customerID uuid.UUID, role string) string {
	t.Helper()

	token, err := auth.GenerateToken(testJWTSecret, customerID, "cliente@example.com", role, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}
