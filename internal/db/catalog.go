package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atacanet/storefront/internal/models"
)

// ProductStore reads the catalog owned by the catalog admin service.
type ProductStore struct {
	pool *pgxpool.Pool
}

func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

// GetByIDs resolves all ids in a single query. Missing ids are absent from
// the returned map.
func (s *ProductStore) GetByIDs(ctx context.Context, ids []int64) (map[int64]models.Product, error) {
	products := make(map[int64]models.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	query := `
		SELECT id, name, list_price, wholesale_price, wholesale_threshold, active
		FROM products
		WHERE id = ANY($1)
	`
	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			product   models.Product
			list      pgtype.Numeric
			wholesale pgtype.Numeric
			threshold int32
		)
		if err := rows.Scan(&product.ID, &product.Name, &list, &wholesale, &threshold, &product.Active); err != nil {
			return nil, err
		}
		if product.ListPrice, err = numericToDecimal(list); err != nil {
			return nil, fmt.Errorf("failed to decode list price of product %d: %w", product.ID, err)
		}
		if product.WholesalePrice, err = numericToDecimal(wholesale); err != nil {
			return nil, fmt.Errorf("failed to decode wholesale price of product %d: %w", product.ID, err)
		}
		product.WholesaleThreshold = int(threshold)
		products[product.ID] = product
	}
	return products, rows.Err()
}

// Upsert is used by the seed tool.
func (s *ProductStore) Upsert(ctx context.Context, product models.Product) error {
	list, err := decimalToNumeric(product.ListPrice)
	if err != nil {
		return err
	}
	wholesale, err := decimalToNumeric(product.WholesalePrice)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO products (id, name, list_price, wholesale_price, wholesale_threshold, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    list_price = EXCLUDED.list_price,
		    wholesale_price = EXCLUDED.wholesale_price,
		    wholesale_threshold = EXCLUDED.wholesale_threshold,
		    active = EXCLUDED.active,
		    updated_at = NOW()
	`
	_, err = s.pool.Exec(ctx, query, product.ID, product.Name, list, wholesale, int32(product.WholesaleThreshold), product.Active) //nolint:gosec
	return err
}

// CustomerStore reads customers owned by the registration service.
type CustomerStore struct {
	pool *pgxpool.Pool
}

func NewCustomerStore(pool *pgxpool.Pool) *CustomerStore {
	return &CustomerStore{pool: pool}
}

func (s *CustomerStore) GetByID(ctx context.Context, customerID uuid.UUID) (*models.Customer, error) {
	var (
		customer          models.Customer
		gatewayCustomerID pgtype.Text
	)
	err := s.pool.QueryRow(ctx,
		"SELECT id, name, email, gateway_customer_id FROM customers WHERE id = $1",
		customerID,
	).Scan(&customer.ID, &customer.Name, &customer.Email, &gatewayCustomerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if gatewayCustomerID.Valid {
		customer.GatewayCustomerID = gatewayCustomerID.String
	}
	return &customer, nil
}

// SetGatewayCustomerID stores the gateway's customer reference the first time
// it is learned from a settlement event.
func (s *CustomerStore) SetGatewayCustomerID(ctx context.Context, customerID uuid.UUID, gatewayCustomerID string) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE customers SET gateway_customer_id = $2 WHERE id = $1 AND gateway_customer_id IS NULL",
		customerID, gatewayCustomerID,
	)
	return err
}
