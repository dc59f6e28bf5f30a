package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID                 int64           `json:"id"`
	Name               string          `json:"name"`
	ListPrice          decimal.Decimal `json:"listPrice"`
	WholesalePrice     decimal.Decimal `json:"wholesalePrice"`
	WholesaleThreshold int             `json:"wholesaleThreshold"`
	Active             bool            `json:"active"`
}

type Customer struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	GatewayCustomerID string    `json:"gatewayCustomerId,omitempty"`
}
