package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/atacanet/storefront/internal/config"
	"github.com/atacanet/storefront/internal/handlers"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handlers   *handlers.Handlers
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: h,
	}

	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Router(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout(),
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

func (s *Server) Run() error {
	s.logger.Info("server starting", "port", s.cfg.Port, "gateway", s.cfg.PaymentGateway)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// Router builds the route table. Exposed so tests can drive the full
// middleware chain with httptest.
func (s *Server) Router() *mux.Router {
	h := s.handlers

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.MetricsContext)
	r.Use(h.SecurityHeaders)
	r.HandleFunc("/health", h.Health).Methods("GET").Name("health")
	r.HandleFunc("/webhooks/payments", h.PaymentWebhook).Methods("POST").Name("webhooks.payments")

	r.NotFoundHandler = http.HandlerFunc(h.NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(h.MethodNotAllowed)

	checkout := h.RequireSameOrigin(h.RequireCustomer(http.HandlerFunc(h.CreatePaymentLink)))
	r.Handle("/payment-links", checkout).Methods("POST").Name("checkout.payment_links")

	adminRouter := r.PathPrefix("/admin").Subrouter()
	adminRouter.Use(h.RequireSameOrigin)
	adminRouter.Use(h.RequireAdmin)
	adminRouter.HandleFunc("/orders/{id}", h.AdminOrderDetail).Methods("GET").Name("admin.orders.detail")
	adminRouter.HandleFunc("/orders/{id}/fulfillment", h.AdminFulfillmentStatus).Methods("GET").Name("admin.orders.fulfillment")
	adminRouter.HandleFunc("/orders/{id}/fulfillment/advance", h.AdminAdvanceFulfillment).Methods("PUT").Name("admin.orders.fulfillment.advance")
	adminRouter.HandleFunc("/orders/{id}/fulfillment/outcome", h.AdminChooseFulfillmentOutcome).Methods("PUT").Name("admin.orders.fulfillment.outcome")

	return r
}
