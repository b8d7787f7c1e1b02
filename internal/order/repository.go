package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"quickpay-bridge/internal/quickpay"
)

type Repository interface {
	GetByNumber(ctx context.Context, number string) (*Order, error)
	Save(ctx context.Context, o *Order) error
	EnterPayment(ctx context.Context, entry *PaymentEntry) error
	RecordPayment(ctx context.Context, o *Order, entry *PaymentEntry) error
	ListPayments(ctx context.Context, number string) ([]PaymentEntry, error)
	GetPaymentMethodSettings(ctx context.Context, method string) (*quickpay.Settings, error)
}

type repository struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByNumber(ctx context.Context, number string) (*Order, error) {
	if number == "" {
		return nil, ErrInvalidNumber
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, number, status, payment_method, total, currency, data, created_at, updated_at
		FROM orders WHERE number = $1
	`, number)

	var o Order
	err := row.Scan(
		&o.ID, &o.Number, &o.Status, &o.PaymentMethod, &o.Total,
		&o.Currency, &o.Data, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

// Save writes the mutable parts of an order: status and data. Data keys are
// merged into the stored object, so keys written concurrently by the shop
// survive.
func (r *repository) Save(ctx context.Context, o *Order) error {
	return saveOrder(ctx, r.db, o)
}

func (r *repository) EnterPayment(ctx context.Context, entry *PaymentEntry) error {
	return insertPayment(ctx, r.db, entry)
}

// RecordPayment saves the order and enters the payment in one transaction.
func (r *repository) RecordPayment(ctx context.Context, o *Order, entry *PaymentEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin payment transaction for order %s: %w", o.Number, err)
	}
	defer tx.Rollback()

	if err := saveOrder(ctx, tx, o); err != nil {
		return err
	}
	if err := insertPayment(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit payment for order %s: %w", o.Number, err)
	}
	return nil
}

func saveOrder(ctx context.Context, q querier, o *Order) error {
	res, err := q.ExecContext(ctx, `
		UPDATE orders SET status = $1, data = orders.data || $2::jsonb, updated_at = now() WHERE id = $3
	`, o.Status, o.Data, o.ID)
	if err != nil {
		return fmt.Errorf("failed to save order %s: %w", o.Number, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save order %s: %w", o.Number, err)
	}
	if rows == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func insertPayment(ctx context.Context, q querier, entry *PaymentEntry) error {
	const stmt = `
	INSERT INTO order_payments (
		order_number,
		method,
		amount,
		user_id,
		data,
		comment
	)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id, received_at;
	`

	data := []byte(entry.Data)
	if len(data) == 0 {
		data = []byte(`{}`)
	}

	err := q.QueryRowContext(
		ctx,
		stmt,
		entry.OrderNumber,
		entry.Method,
		entry.Amount,
		entry.UserID,
		data,
		entry.Comment,
	).Scan(&entry.ID, &entry.ReceivedAt)
	if err != nil {
		return fmt.Errorf("failed to enter payment for order %s: %w", entry.OrderNumber, err)
	}
	return nil
}

func (r *repository) ListPayments(ctx context.Context, number string) ([]PaymentEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_number, method, amount, user_id, data, comment, received_at
		FROM order_payments WHERE order_number = $1 ORDER BY received_at, id
	`, number)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []PaymentEntry{}
	for rows.Next() {
		var e PaymentEntry
		var data []byte
		if err := rows.Scan(
			&e.ID, &e.OrderNumber, &e.Method, &e.Amount, &e.UserID,
			&data, &e.Comment, &e.ReceivedAt,
		); err != nil {
			return nil, err
		}
		e.Data = json.RawMessage(data)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetPaymentMethodSettings loads the QuickPay settings configured on a
// payment method instance.
func (r *repository) GetPaymentMethodSettings(ctx context.Context, method string) (*quickpay.Settings, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT settings FROM payment_methods WHERE id = $1
	`, method).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	var s quickpay.Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode settings for payment method %s: %w", method, err)
	}
	return &s, nil
}
