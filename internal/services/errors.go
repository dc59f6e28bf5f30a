package services

import (
	"errors"

	"github.com/atacanet/storefront/internal/catalog"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnknownProduct = catalog.ErrUnknownProduct
	ErrPaymentGateway = errors.New("payment gateway failure")

	ErrUnknownOrderReference = errors.New("unknown order reference")

	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotPaid        = errors.New("order is not paid")
	ErrFulfillmentConflict = errors.New("fulfillment state changed concurrently")
)
