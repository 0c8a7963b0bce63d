package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abdulaziz-python/giftme/internal/domain/enums"
	"github.com/abdulaziz-python/giftme/internal/domain/model"
)

var (
	ErrPaymentNotFound          = errors.New("payment not found")
	ErrDuplicatePaymentRef      = errors.New("payment reference already recorded")
	ErrInvalidPaymentTransition = errors.New("payment is in a terminal state")
)

type PaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

const paymentColumns = `
	id,
	user_id,
	transaction_id,
	amount,
	status,
	payment_method,
	created_at,
	completed_at`

// CreatePending records a payment attempt keyed by the provider
// reference. A second attempt with the same reference returns
// ErrDuplicatePaymentRef; the caller echoes the stored row instead.
func (r *PaymentRepo) CreatePending(ctx context.Context, userID int64, amount int, externalRef, method string) (model.Payment, error) {
	if r.pool == nil {
		return model.Payment{}, fmt.Errorf("postgres pool is nil")
	}

	externalRef = strings.TrimSpace(externalRef)
	if userID <= 0 || amount <= 0 || externalRef == "" {
		return model.Payment{}, fmt.Errorf("invalid payment payload")
	}

	record, err := scanPaymentRow(r.pool.QueryRow(ctx, `
INSERT INTO transactions (
	user_id,
	transaction_id,
	amount,
	status,
	payment_method,
	created_at
) VALUES ($1, $2, $3, 'pending', $4, NOW())
RETURNING`+paymentColumns,
		userID, externalRef, amount, method))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.Payment{}, ErrDuplicatePaymentRef
		}
		return model.Payment{}, fmt.Errorf("create pending payment: %w", err)
	}

	return record, nil
}

func (r *PaymentRepo) FindByRef(ctx context.Context, externalRef string) (model.Payment, error) {
	if r.pool == nil {
		return model.Payment{}, fmt.Errorf("postgres pool is nil")
	}

	externalRef = strings.TrimSpace(externalRef)
	if externalRef == "" {
		return model.Payment{}, ErrPaymentNotFound
	}

	record, err := scanPaymentRow(r.pool.QueryRow(ctx, `
SELECT`+paymentColumns+`
FROM transactions
WHERE transaction_id = $1
`, externalRef))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Payment{}, ErrPaymentNotFound
	}
	if err != nil {
		return model.Payment{}, fmt.Errorf("find payment by ref: %w", err)
	}

	return record, nil
}

// MarkFailed moves a pending payment to failed. Terminal rows are left
// untouched and reported as ErrInvalidPaymentTransition.
func (r *PaymentRepo) MarkFailed(ctx context.Context, externalRef string, now time.Time) (model.Payment, error) {
	return r.markTerminal(ctx, externalRef, enums.PaymentStatusFailed, now)
}

// MarkRefunded moves a pending payment to refunded. The settle path
// calls this when the catalog was empty at draw time.
func (r *PaymentRepo) MarkRefunded(ctx context.Context, externalRef string, now time.Time) (model.Payment, error) {
	return r.markTerminal(ctx, externalRef, enums.PaymentStatusRefunded, now)
}

func (r *PaymentRepo) markTerminal(ctx context.Context, externalRef string, status enums.PaymentStatus, now time.Time) (model.Payment, error) {
	if r.pool == nil {
		return model.Payment{}, fmt.Errorf("postgres pool is nil")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	externalRef = strings.TrimSpace(externalRef)
	if externalRef == "" {
		return model.Payment{}, ErrPaymentNotFound
	}

	var out model.Payment
	err := WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		rec, err := lockPaymentByRef(txCtx, tx, externalRef)
		if err != nil {
			return err
		}

		if rec.Status == status {
			out = rec
			return nil
		}
		if rec.Status.IsTerminal() {
			return ErrInvalidPaymentTransition
		}

		updated, err := scanPaymentRow(tx.QueryRow(txCtx, `
UPDATE transactions
SET status = $2,
	completed_at = $3
WHERE transaction_id = $1
RETURNING`+paymentColumns,
			externalRef, status, now.UTC()))
		if err != nil {
			return fmt.Errorf("mark payment %s: %w", status, err)
		}
		out = updated
		return nil
	})
	if err != nil {
		return model.Payment{}, err
	}

	return out, nil
}

func lockPaymentByRef(ctx context.Context, tx pgx.Tx, externalRef string) (model.Payment, error) {
	record, err := scanPaymentRow(tx.QueryRow(ctx, `
SELECT`+paymentColumns+`
FROM transactions
WHERE transaction_id = $1
FOR UPDATE
`, externalRef))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Payment{}, ErrPaymentNotFound
	}
	if err != nil {
		return model.Payment{}, fmt.Errorf("lock payment: %w", err)
	}
	return record, nil
}

func scanPaymentRow(row pgx.Row) (model.Payment, error) {
	var p model.Payment
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.ExternalRef,
		&p.Amount,
		&p.Status,
		&p.PaymentMethod,
		&p.CreatedAt,
		&p.CompletedAt,
	)
	if err != nil {
		return model.Payment{}, err
	}
	return p, nil
}
