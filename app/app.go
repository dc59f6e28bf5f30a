package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atacanet/storefront/internal/asaas"
	"github.com/atacanet/storefront/internal/cache"
	"github.com/atacanet/storefront/internal/catalog"
	"github.com/atacanet/storefront/internal/config"
	"github.com/atacanet/storefront/internal/db"
	"github.com/atacanet/storefront/internal/email"
	"github.com/atacanet/storefront/internal/handlers"
	"github.com/atacanet/storefront/internal/logging"
	"github.com/atacanet/storefront/internal/observability"
	"github.com/atacanet/storefront/internal/services"
	"github.com/atacanet/storefront/internal/stripe"
)

// Release is stamped at build time with -ldflags "-X .../app.Release=...".
var Release = "dev"

// gateway is what a payment provider adapter must offer: outbound payment
// links and invoices plus inbound webhook verification.
type gateway interface {
	services.PaymentGateway
	handlers.WebhookReader
}

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *pgxpool.Pool
	CacheProvider cache.Provider
	Handlers      *handlers.Handlers

	flushSentry func()
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	flushSentry, err := observability.InitSentry(observability.SentryConfig{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		Release:          Release,
		TracesSampleRate: cfg.SentryTracesSampleRate,
	})
	if err != nil {
		return nil, err
	}

	logger := logging.New(os.Stdout, logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Sentry: cfg.SentryDSN != "",
	})

	if cfg.RunMigrations {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			flushSentry()
			return nil, err
		}
		logger.Info("database migrations applied")
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	database, err := db.Connect(startupCtx, cfg.DatabaseURL)
	if err != nil {
		flushSentry()
		return nil, err
	}

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		database.Close()
		flushSentry()
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}

	httpClient := observability.NewHTTPClient(cfg.GatewayTimeout)
	paymentGateway := newGateway(cfg, httpClient)

	emailProvider, err := email.NewProvider(email.Config{
		Provider:   cfg.EmailProvider,
		APIKey:     cfg.EmailAPIKey,
		From:       cfg.EmailFrom,
		HTTPClient: httpClient,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		flushSentry()
		return nil, fmt.Errorf("failed to initialize email provider: %w", err)
	}
	if emailProvider == nil {
		logger.Warn("email provider disabled; payment confirmations will not be sent")
	} else if err := emailProvider.ValidateAPIKey(startupCtx); err != nil {
		logger.Warn("email provider rejected its API key", "provider", cfg.EmailProvider, "error", err)
	}
	renderer, err := email.NewRenderer()
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		flushSentry()
		return nil, fmt.Errorf("failed to initialize email templates: %w", err)
	}

	orderStore := db.NewOrderStore(database)
	productStore := db.NewProductStore(database)
	customerStore := db.NewCustomerStore(database)

	checkoutService := services.NewCheckoutService(
		productStore,
		customerStore,
		orderStore,
		catalog.NewPricer(),
		paymentGateway,
		services.CheckoutConfig{
			StoreName:      cfg.StoreName,
			SuccessURL:     cfg.SuccessURL(),
			GatewayTimeout: cfg.GatewayTimeout,
		},
		logger.With("component", "checkout_service"),
	)
	settlementService := services.NewSettlementService(
		orderStore,
		customerStore,
		paymentGateway,
		services.NewEmailPaymentNotifier(emailProvider, renderer, cfg.StoreName),
		cfg.SideEffectTimeout,
		logger.With("component", "settlement_service"),
	)
	fulfillmentService := services.NewFulfillmentService(orderStore, logger.With("component", "fulfillment_service"))

	h, err := handlers.New(handlers.Dependencies{
		Config:        cfg,
		DB:            database,
		CacheProvider: cacheProvider,
		Checkout:      checkoutService,
		Settlement:    settlementService,
		Fulfillment:   fulfillmentService,
		Webhooks:      paymentGateway,
		Logger:        logger,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		flushSentry()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	logger.Info("application initialized",
		"gateway", paymentGateway.Provider(),
		"email_provider", cfg.EmailProvider,
		"cache_provider", cfg.CacheProvider,
		"environment", cfg.Environment,
	)

	return &App{
		Config:        cfg,
		Logger:        logger,
		DB:            database,
		CacheProvider: cacheProvider,
		Handlers:      h,
		flushSentry:   flushSentry,
	}, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
	if a.flushSentry != nil {
		a.flushSentry()
	}
}

func newGateway(cfg *config.Config, httpClient *http.Client) gateway {
	if cfg.PaymentGateway == config.GatewayStripe {
		return stripe.NewGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.CancelURL(), httpClient)
	}
	return asaas.NewClient(cfg.AsaasAPIKey, cfg.AsaasBaseURL, cfg.AsaasWebhookToken, httpClient)
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
