package quickpay

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

type Repository interface {
	TransactionStore

	SaveCallback(
		ctx context.Context,
		integration string,
		eventID string,
		eventType string,
		orderNumber string,
		payload json.RawMessage,
		checksumValid bool,
	) (callbackID int64, isDuplicate bool, err error)

	MarkCallbackProcessed(ctx context.Context, callbackID int64) error
	MarkCallbackFailed(ctx context.Context, callbackID int64, reason string) error
}

// callbackClaimTTL bounds how long one delivery may hold an event before a
// redelivery may take it over.
const callbackClaimTTL = "5 minutes"

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// Store keeps one row per QuickPay payment. A later snapshot of the same
// payment replaces the stored one and keeps its id, so a retried callback
// hands the order the same txn id.
func (r *repository) Store(ctx context.Context, txn Transaction) (string, error) {
	payload, err := json.Marshal(txn)
	if err != nil {
		return "", fmt.Errorf("encode transaction: %w", err)
	}

	const q = `
	INSERT INTO quickpay_transactions (
		payment_id,
		order_number,
		accepted,
		state,
		currency,
		amount,
		test_mode,
		payload
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (payment_id)
	DO UPDATE SET
		accepted = EXCLUDED.accepted,
		state = EXCLUDED.state,
		amount = EXCLUDED.amount,
		payload = EXCLUDED.payload,
		updated_at = now()
	RETURNING id;
	`

	var id int64
	err = r.db.QueryRowContext(
		ctx,
		q,
		txn.ID,
		txn.OrderID,
		txn.Accepted,
		txn.State,
		txn.Currency,
		txn.AuthorizedAmount(),
		txn.TestMode,
		payload,
	).Scan(&id)
	if err != nil {
		return "", err
	}

	return strconv.FormatInt(id, 10), nil
}

// SaveCallback records a delivery and claims it for dispatch. A redelivery of
// an event that was already processed is reported as a duplicate. While
// another delivery of the same event holds the claim, ErrCallbackInFlight is
// returned. Claims older than callbackClaimTTL are treated as abandoned.
func (r *repository) SaveCallback(
	ctx context.Context,
	integration string,
	eventID string,
	eventType string,
	orderNumber string,
	payload json.RawMessage,
	checksumValid bool,
) (int64, bool, error) {

	const q = `
	INSERT INTO quickpay_callbacks (
		integration,
		event_id,
		event_type,
		order_number,
		checksum_valid,
		payload,
		processing_started_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, now())
	ON CONFLICT (integration, event_id)
	DO UPDATE SET
		payload = EXCLUDED.payload,
		process_error = NULL,
		processing_started_at = now()
	WHERE quickpay_callbacks.processed_at IS NULL
		AND (quickpay_callbacks.processing_started_at IS NULL
			OR quickpay_callbacks.processing_started_at < now() - $7::interval)
	RETURNING id;
	`

	var id int64
	err := r.db.QueryRowContext(
		ctx,
		q,
		integration,
		eventID,
		eventType,
		orderNumber,
		checksumValid,
		payload,
		callbackClaimTTL,
	).Scan(&id)

	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, err
	}

	// The conflict row was left alone: either done, or claimed by someone else.
	var processed bool
	err = r.db.QueryRowContext(ctx, `
		SELECT processed_at IS NOT NULL
		FROM quickpay_callbacks
		WHERE integration = $1 AND event_id = $2
	`, integration, eventID).Scan(&processed)
	if err != nil {
		return 0, false, fmt.Errorf("load callback state: %w", err)
	}
	if !processed {
		return 0, false, ErrCallbackInFlight
	}
	return 0, true, nil
}

func (r *repository) MarkCallbackProcessed(ctx context.Context, callbackID int64) error {
	const q = `
	UPDATE quickpay_callbacks
	SET processed_at = now()
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, callbackID)
	return err
}

func (r *repository) MarkCallbackFailed(ctx context.Context, callbackID int64, reason string) error {
	const q = `
	UPDATE quickpay_callbacks
	SET process_error = $2, processing_started_at = NULL
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, callbackID, reason)
	return err
}
