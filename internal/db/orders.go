package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atacanet/storefront/internal/fulfillment"
	"github.com/atacanet/storefront/internal/models"
)

type OrderStore struct {
	pool *pgxpool.Pool
}

var (
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrStaleFulfillmentState   = errors.New("fulfillment state changed concurrently")
)

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderColumns = `
	id, customer_id, line_items, payment_method, status, total, amount_paid,
	external_reference, invoice_url, cancel_reason, fulfillment_state,
	created_at, paid_at, cancelled_at`

// Create inserts a PENDING order without an external reference and fills in
// the server-assigned id and creation time.
func (s *OrderStore) Create(ctx context.Context, order *models.Order) error {
	lineItemsJSON, err := json.Marshal(order.LineItems)
	if err != nil {
		return fmt.Errorf("failed to encode line items: %w", err)
	}
	total, err := decimalToNumeric(order.Total)
	if err != nil {
		return fmt.Errorf("failed to encode total: %w", err)
	}

	query := `
		INSERT INTO orders (customer_id, line_items, payment_method, status, total)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	if err := s.pool.QueryRow(ctx, query, order.CustomerID, lineItemsJSON, string(order.PaymentMethod), string(models.StatusPending), total).
		Scan(&order.ID, &order.CreatedAt); err != nil {
		return err
	}

	order.Status = models.StatusPending
	order.AmountPaid = decimal.Zero
	order.ExternalReference = ""
	return nil
}

func (s *OrderStore) GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	row := s.pool.QueryRow(ctx, "SELECT"+orderColumns+" FROM orders WHERE id = $1", orderID)
	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetByExternalReference resolves an order from the gateway reference stored
// when its payment link was created.
func (s *OrderStore) GetByExternalReference(ctx context.Context, reference string) (*models.Order, error) {
	row := s.pool.QueryRow(ctx, "SELECT"+orderColumns+" FROM orders WHERE external_reference = $1", reference)
	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// SetExternalReference records the gateway reference exactly once while the
// order is still PENDING.
func (s *OrderStore) SetExternalReference(ctx context.Context, orderID uuid.UUID, reference string) error {
	query := `
		UPDATE orders
		SET external_reference = $2
		WHERE id = $1 AND status = 'PENDING' AND external_reference IS NULL
	`
	cmdTag, err := s.pool.Exec(ctx, query, orderID, reference)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected PENDING without external reference", ErrInvalidStatusTransition)
	}
	return nil
}

func (s *OrderStore) MarkCancelled(ctx context.Context, orderID uuid.UUID, reason string) error {
	query := `
		UPDATE orders
		SET status = 'CANCELLED', cancel_reason = $2, cancelled_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
	`
	cmdTag, err := s.pool.Exec(ctx, query, orderID, reason)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected PENDING", ErrInvalidStatusTransition)
	}
	return nil
}

// MarkPaid settles a PENDING order and opens its fulfillment history in the
// same transaction. amount_paid is written only here.
func (s *OrderStore) MarkPaid(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, actor string) error {
	amountPaid, err := decimalToNumeric(amount)
	if err != nil {
		return fmt.Errorf("failed to encode amount: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `
		UPDATE orders
		SET status = 'PAID', amount_paid = $2, paid_at = NOW(), fulfillment_state = $3
		WHERE id = $1 AND status = 'PENDING'
	`
	cmdTag, err := tx.Exec(ctx, query, orderID, amountPaid, string(fulfillment.Initial))
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected PENDING", ErrInvalidStatusTransition)
	}

	if err := insertHistory(ctx, tx, orderID, fulfillment.Initial, actor); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *OrderStore) SetInvoiceURL(ctx context.Context, orderID uuid.UUID, invoiceURL string) error {
	query := `
		UPDATE orders
		SET invoice_url = $2
		WHERE id = $1 AND status = 'PAID'
	`
	cmdTag, err := s.pool.Exec(ctx, query, orderID, invoiceURL)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected PAID", ErrInvalidStatusTransition)
	}
	return nil
}

// TransitionFulfillment moves a PAID order from one fulfillment state to the
// next, failing with ErrStaleFulfillmentState if another writer got there first.
func (s *OrderStore) TransitionFulfillment(ctx context.Context, orderID uuid.UUID, from, to fulfillment.State, actor string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `
		UPDATE orders
		SET fulfillment_state = $3
		WHERE id = $1 AND status = 'PAID' AND fulfillment_state = $2
	`
	cmdTag, err := tx.Exec(ctx, query, orderID, string(from), string(to))
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected %q", ErrStaleFulfillmentState, from)
	}

	if err := insertHistory(ctx, tx, orderID, to, actor); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *OrderStore) FulfillmentHistory(ctx context.Context, orderID uuid.UUID) ([]models.FulfillmentEntry, error) {
	query := `
		SELECT state, entered_at, COALESCE(actor, '')
		FROM fulfillment_history
		WHERE order_id = $1
		ORDER BY entered_at, id
	`
	rows, err := s.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.FulfillmentEntry{}
	for rows.Next() {
		var (
			entry models.FulfillmentEntry
			state string
		)
		if err := rows.Scan(&state, &entry.EnteredAt, &entry.Actor); err != nil {
			return nil, err
		}
		entry.State = fulfillment.State(state)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func insertHistory(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, state fulfillment.State, actor string) error {
	_, err := tx.Exec(ctx,
		"INSERT INTO fulfillment_history (order_id, state, actor) VALUES ($1, $2, $3)",
		orderID, string(state), pgtype.Text{String: actor, Valid: actor != ""},
	)
	if err != nil {
		return fmt.Errorf("failed to record fulfillment history: %w", err)
	}
	return nil
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		order             models.Order
		lineItems         []byte
		paymentMethod     string
		status            string
		total             pgtype.Numeric
		amountPaid        pgtype.Numeric
		externalReference pgtype.Text
		invoiceURL        pgtype.Text
		cancelReason      pgtype.Text
		fulfillmentState  pgtype.Text
		paidAt            pgtype.Timestamptz
		cancelledAt       pgtype.Timestamptz
	)

	if err := row.Scan(
		&order.ID,
		&order.CustomerID,
		&lineItems,
		&paymentMethod,
		&status,
		&total,
		&amountPaid,
		&externalReference,
		&invoiceURL,
		&cancelReason,
		&fulfillmentState,
		&order.CreatedAt,
		&paidAt,
		&cancelledAt,
	); err != nil {
		return nil, err
	}

	order.PaymentMethod = models.PaymentMethod(paymentMethod)
	order.Status = models.OrderStatus(status)

	var err error
	if order.Total, err = numericToDecimal(total); err != nil {
		return nil, fmt.Errorf("failed to decode total: %w", err)
	}
	if order.AmountPaid, err = numericToDecimal(amountPaid); err != nil {
		return nil, fmt.Errorf("failed to decode amount paid: %w", err)
	}
	if externalReference.Valid {
		order.ExternalReference = externalReference.String
	}
	if invoiceURL.Valid {
		order.InvoiceURL = invoiceURL.String
	}
	if cancelReason.Valid {
		order.CancelReason = cancelReason.String
	}
	if fulfillmentState.Valid {
		order.FulfillmentState = fulfillment.State(fulfillmentState.String)
	}
	if paidAt.Valid {
		order.PaidAt = paidAt.Time
	}
	if cancelledAt.Valid {
		order.CancelledAt = cancelledAt.Time
	}
	if lineItems != nil {
		if err := json.Unmarshal(lineItems, &order.LineItems); err != nil {
			return nil, fmt.Errorf("failed to decode line items: %w", err)
		}
	}

	return &order, nil
}
