package catalog

// Package catalog provides price calculation functionality.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/atacanet/storefront/internal/models"
)

var ErrUnknownProduct = errors.New("unknown product")

// UnknownProductError names the product id that could not be resolved.
type UnknownProductError struct {
	ProductID int64
}

func (e *UnknownProductError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

func (e *UnknownProductError) Is(target error) bool {
	return target == ErrUnknownProduct
}

type Pricer struct{}

func NewPricer() *Pricer {
	return &Pricer{}
}

// Quote is the priced form of a cart.
type Quote struct {
	Lines []models.LineItem
	Total decimal.Decimal
}

// Price resolves every line against products and applies the wholesale rule.
// It has no side effects.
func (p *Pricer) Price(items []models.LineItem, products map[int64]models.Product) (*Quote, error) {
	quote := &Quote{
		Lines: make([]models.LineItem, 0, len(items)),
		Total: decimal.Zero,
	}

	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok || !product.Active {
			return nil, &UnknownProductError{ProductID: item.ProductID}
		}
		if item.Quantity < 1 {
			return nil, fmt.Errorf("quantity for product %d must be at least 1", item.ProductID)
		}

		unit := UnitPrice(product, item.Quantity)
		lineTotal := unit.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)

		quote.Lines = append(quote.Lines, models.LineItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Name:      product.Name,
			UnitPrice: unit,
			LineTotal: lineTotal,
		})
		quote.Total = quote.Total.Add(lineTotal)
	}

	return quote, nil
}

// UnitPrice returns the wholesale price once quantity reaches the product's
// threshold. A threshold of zero or less disables the discount.
func UnitPrice(product models.Product, quantity int) decimal.Decimal {
	if product.WholesaleThreshold > 0 && quantity >= product.WholesaleThreshold && product.WholesalePrice.IsPositive() {
		return product.WholesalePrice
	}
	return product.ListPrice
}

// Description renders one "<name> (x<qty>) → R$ <total>" line per item.
func (q *Quote) Description() string {
	lines := make([]string, 0, len(q.Lines))
	for _, line := range q.Lines {
		lines = append(lines, fmt.Sprintf("%s (x%d) → R$ %s", line.Name, line.Quantity, line.LineTotal.StringFixed(2)))
	}
	return strings.Join(lines, "\n")
}
