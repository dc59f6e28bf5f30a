package catalog

// Package catalog provides seed file validation.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/atacanet/storefront/internal/models"
)

// Validator checks field presence with struct tags, then the pricing rules
// tags cannot express.
type Validator struct {
	fields *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{fields: validator.New(validator.WithRequiredStructEnabled())}
}

func (v *Validator) Validate(file *SeedFile) error {
	if file == nil {
		return fmt.Errorf("seed file is required")
	}
	if err := v.fields.Struct(file); err != nil {
		return fieldError(err)
	}
	if err := v.validateStore(&file.Store); err != nil {
		return fmt.Errorf("store validation failed: %w", err)
	}

	ids := make(map[int64]bool)
	for i, product := range file.Products {
		if err := v.validateProduct(&product); err != nil {
			return fmt.Errorf("product %d validation failed: %w", i, err)
		}

		if ids[product.ID] {
			return fmt.Errorf("duplicate product id: %d", product.ID)
		}
		ids[product.ID] = true
	}

	return nil
}

func (v *Validator) validateStore(store *StoreConfig) error {
	if strings.TrimSpace(store.Name) == "" {
		return fmt.Errorf("store name is required")
	}

	if !strings.EqualFold(store.Currency, "brl") {
		return fmt.Errorf("only BRL currency is supported")
	}

	return nil
}

func (v *Validator) validateProduct(product *ProductConfig) error {
	if strings.TrimSpace(product.Name) == "" {
		return fmt.Errorf("product name is required")
	}

	list, err := parsePrice(product.ListPrice)
	if err != nil {
		return fmt.Errorf("list price: %w", err)
	}
	if !list.IsPositive() {
		return fmt.Errorf("list price must be positive")
	}

	if product.WholesaleThreshold == 0 {
		return nil
	}

	wholesale, err := parsePrice(product.WholesalePrice)
	if err != nil {
		return fmt.Errorf("wholesale price: %w", err)
	}
	if !wholesale.IsPositive() || wholesale.GreaterThan(list) {
		return fmt.Errorf("wholesale price must be positive and not above list price")
	}

	return nil
}

// fieldError reports the first failing field by its path in the seed file.
func fieldError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("invalid seed file: %w", err)
	}
	first := fieldErrs[0]
	if first.Param() != "" {
		return fmt.Errorf("%s failed %s=%s", first.Namespace(), first.Tag(), first.Param())
	}
	return fmt.Errorf("%s failed %s", first.Namespace(), first.Tag())
}

// Products converts a validated seed file into catalog products.
func (v *Validator) Products(file *SeedFile) ([]models.Product, error) {
	products := make([]models.Product, 0, len(file.Products))
	for _, cfg := range file.Products {
		list, err := parsePrice(cfg.ListPrice)
		if err != nil {
			return nil, fmt.Errorf("product %d list price: %w", cfg.ID, err)
		}
		wholesale := decimal.Zero
		if strings.TrimSpace(cfg.WholesalePrice) != "" {
			if wholesale, err = parsePrice(cfg.WholesalePrice); err != nil {
				return nil, fmt.Errorf("product %d wholesale price: %w", cfg.ID, err)
			}
		}
		products = append(products, models.Product{
			ID:                 cfg.ID,
			Name:               strings.TrimSpace(cfg.Name),
			ListPrice:          list,
			WholesalePrice:     wholesale,
			WholesaleThreshold: cfg.WholesaleThreshold,
			Active:             cfg.Active,
		})
	}
	return products, nil
}

func parsePrice(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("price is required")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q", raw)
	}
	if d.Exponent() < -2 {
		return decimal.Zero, fmt.Errorf("price %q has more than two decimal places", raw)
	}
	return d, nil
}
