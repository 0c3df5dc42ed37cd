package donation

import (
	"context"
	"database/sql"
	"errors"

	"kaluma-be/internal/fault"
)

// ErrNotFound is returned when no committed transaction matches a lookup.
var ErrNotFound = errors.New("transaction not found")

type Repository interface {
	UpsertTransaction(ctx context.Context, t *Transaction) error
	GetByReference(ctx context.Context, reference string) (*Transaction, error)
	GetByTrackingID(ctx context.Context, trackingID string) (*Transaction, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// UpsertTransaction commits a settlement record. The write replaces any
// previous record for the same tracking id, so the IPN push and the return
// redirect can both commit without duplicating rows.
func (r *repository) UpsertTransaction(ctx context.Context, t *Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (
			order_tracking_id,
			merchant_reference,
			status_code,
			status_description,
			payment_method,
			confirmation_code,
			amount,
			currency,
			committed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (order_tracking_id)
		DO UPDATE SET
			merchant_reference = EXCLUDED.merchant_reference,
			status_code = EXCLUDED.status_code,
			status_description = EXCLUDED.status_description,
			payment_method = EXCLUDED.payment_method,
			confirmation_code = EXCLUDED.confirmation_code,
			amount = EXCLUDED.amount,
			currency = EXCLUDED.currency,
			committed_at = now()
	`,
		t.OrderTrackingID,
		t.MerchantReference,
		t.StatusCode,
		t.StatusDescription,
		t.PaymentMethod,
		t.ConfirmationCode,
		t.Amount,
		t.Currency,
	)
	if err != nil {
		return fault.Storef(err, "failed to commit transaction %s", t.OrderTrackingID)
	}
	return nil
}

const selectColumns = `
	SELECT id, order_tracking_id, merchant_reference, status_code,
	       status_description, payment_method, confirmation_code,
	       amount, currency, committed_at
	FROM transactions
`

func (r *repository) GetByReference(ctx context.Context, reference string) (*Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE merchant_reference = $1`, reference)
	return scanTransaction(row)
}

func (r *repository) GetByTrackingID(ctx context.Context, trackingID string) (*Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE order_tracking_id = $1`, trackingID)
	return scanTransaction(row)
}

func scanTransaction(row *sql.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(
		&t.ID, &t.OrderTrackingID, &t.MerchantReference, &t.StatusCode,
		&t.StatusDescription, &t.PaymentMethod, &t.ConfirmationCode,
		&t.Amount, &t.Currency, &t.CommittedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fault.Storef(err, "failed to read transaction")
	}
	return &t, nil
}
