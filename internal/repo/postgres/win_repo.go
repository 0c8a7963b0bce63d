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
	ErrWinNotFound       = errors.New("win not found")
	ErrWinAlreadyClaimed = errors.New("win already claimed")
)

type WinRepo struct {
	pool *pgxpool.Pool
}

func NewWinRepo(pool *pgxpool.Pool) *WinRepo {
	return &WinRepo{pool: pool}
}

// DrawFunc selects one prize from a non-empty eligible set. ok=false
// means nothing was drawable (for example, all weights were zero); a
// non-nil error aborts the whole settle transaction.
type DrawFunc func(prizes []model.Prize) (prize model.Prize, ok bool, err error)

// SettleResult reports what a settle attempt did. Exactly one of the
// shapes holds: a fresh or echoed win (Win and Prize set), or an empty
// catalog outcome (NoPrize set, payment still completed).
type SettleResult struct {
	Payment        model.Payment
	Win            *model.Win
	Prize          *model.Prize
	Session        *model.SpinSession
	AlreadySettled bool
	NoPrize        bool
}

const winColumns = `
	id,
	user_id,
	gift_id,
	transaction_id,
	won_at,
	is_claimed,
	claimed_at`

// Settle runs the entire payment-to-win transition in one transaction:
// lock the payment row, complete it, draw from the eligible catalog,
// record the win, bump the prize counter, and resolve the user's newest
// pending spin session. Holding the row lock for the duration is what
// makes a duplicate provider notification an echo rather than a second
// draw; the unique index on transaction_id backs that up at the schema
// level.
func (r *WinRepo) Settle(ctx context.Context, externalRef string, maxCost int, now time.Time, draw DrawFunc) (SettleResult, error) {
	if r.pool == nil {
		return SettleResult{}, fmt.Errorf("postgres pool is nil")
	}
	if draw == nil {
		return SettleResult{}, fmt.Errorf("draw func is nil")
	}

	externalRef = strings.TrimSpace(externalRef)
	if externalRef == "" {
		return SettleResult{}, ErrPaymentNotFound
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	now = now.UTC()

	var out SettleResult
	err := WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		payment, err := lockPaymentByRef(txCtx, tx, externalRef)
		if err != nil {
			return err
		}

		switch payment.Status {
		case enums.PaymentStatusCompleted:
			return r.echoSettledTx(txCtx, tx, payment, &out)
		case enums.PaymentStatusFailed, enums.PaymentStatusRefunded:
			return ErrInvalidPaymentTransition
		}

		completed, err := scanPaymentRow(tx.QueryRow(txCtx, `
UPDATE transactions
SET status = 'completed',
	completed_at = $2
WHERE transaction_id = $1
RETURNING`+paymentColumns,
			externalRef, now))
		if err != nil {
			return fmt.Errorf("complete payment: %w", err)
		}
		out.Payment = completed

		prizes, err := listActivePrizesTx(txCtx, tx, maxCost)
		if err != nil {
			return err
		}
		if len(prizes) == 0 {
			out.NoPrize = true
			return nil
		}

		prize, ok, err := draw(prizes)
		if err != nil {
			return fmt.Errorf("draw prize: %w", err)
		}
		if !ok {
			out.NoPrize = true
			return nil
		}

		win, err := insertWinTx(txCtx, tx, completed.UserID, prize.ID, completed.ID, now)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(txCtx, `
UPDATE gifts SET total_won = total_won + 1 WHERE id = $1
`, prize.ID); err != nil {
			return fmt.Errorf("bump prize counter: %w", err)
		}
		prize.TotalWon++

		session, err := completeNewestSessionTx(txCtx, tx, completed.UserID, prize.ID, now)
		if err != nil {
			return err
		}

		out.Win = &win
		out.Prize = &prize
		out.Session = session
		return nil
	})
	if err != nil {
		return SettleResult{}, err
	}

	return out, nil
}

// echoSettledTx reproduces the result of an earlier settle for a payment
// that is already completed. A completed payment with no win row means
// the earlier settle hit an empty catalog.
func (r *WinRepo) echoSettledTx(ctx context.Context, tx pgx.Tx, payment model.Payment, out *SettleResult) error {
	out.Payment = payment
	out.AlreadySettled = true

	win, err := scanWinRow(tx.QueryRow(ctx, `
SELECT`+winColumns+`
FROM won_gifts
WHERE transaction_id = $1
`, payment.ID))
	if errors.Is(err, pgx.ErrNoRows) {
		out.NoPrize = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("load settled win: %w", err)
	}

	prize, err := scanPrizeRow(tx.QueryRow(ctx, `
SELECT`+prizeColumns+`
FROM gifts
WHERE id = $1
`, win.PrizeID))
	if err != nil {
		return fmt.Errorf("load settled prize: %w", err)
	}

	out.Win = &win
	out.Prize = &prize
	return nil
}

func listActivePrizesTx(ctx context.Context, tx pgx.Tx, maxCost int) ([]model.Prize, error) {
	query := `
SELECT` + prizeColumns + `
FROM gifts
WHERE is_active = TRUE
ORDER BY star_cost ASC, id ASC`
	args := []any{}
	if maxCost > 0 {
		query = `
SELECT` + prizeColumns + `
FROM gifts
WHERE is_active = TRUE AND star_cost <= $1
ORDER BY star_cost ASC, id ASC`
		args = append(args, maxCost)
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list eligible prizes: %w", err)
	}
	defer rows.Close()

	return collectPrizes(rows)
}

func insertWinTx(ctx context.Context, tx pgx.Tx, userID, prizeID, paymentID int64, now time.Time) (model.Win, error) {
	win, err := scanWinRow(tx.QueryRow(ctx, `
INSERT INTO won_gifts (
	user_id,
	gift_id,
	transaction_id,
	won_at,
	is_claimed
) VALUES ($1, $2, $3, $4, FALSE)
RETURNING`+winColumns,
		userID, prizeID, paymentID, now))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.Win{}, fmt.Errorf("win already recorded for payment %d: %w", paymentID, ErrInvalidPaymentTransition)
		}
		return model.Win{}, fmt.Errorf("insert win: %w", err)
	}
	return win, nil
}

func completeNewestSessionTx(ctx context.Context, tx pgx.Tx, userID, prizeID int64, now time.Time) (*model.SpinSession, error) {
	session, err := scanSpinSessionRow(tx.QueryRow(ctx, `
UPDATE spin_sessions
SET status = 'completed',
	result_gift_id = $2,
	completed_at = $3
WHERE id = (
	SELECT id FROM spin_sessions
	WHERE user_id = $1 AND status = 'pending' AND expires_at > $3
	ORDER BY created_at DESC
	LIMIT 1
)
RETURNING`+spinSessionColumns,
		userID, prizeID, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("complete spin session: %w", err)
	}
	return &session, nil
}

// WonPrize pairs a win with the prize it awarded for history views.
type WonPrize struct {
	Win   model.Win
	Prize model.Prize
}

func (r *WinRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]WonPrize, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
SELECT
	w.id,
	w.user_id,
	w.gift_id,
	w.transaction_id,
	w.won_at,
	w.is_claimed,
	w.claimed_at,
	g.id,
	g.gift_id,
	g.name,
	g.description,
	g.star_cost,
	g.image_url,
	g.rarity,
	g.weight,
	g.is_active,
	g.total_won,
	g.created_at
FROM won_gifts w
JOIN gifts g ON g.id = w.gift_id
WHERE w.user_id = $1
ORDER BY w.won_at DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list wins by user: %w", err)
	}
	defer rows.Close()

	var items []WonPrize
	for rows.Next() {
		var item WonPrize
		err := rows.Scan(
			&item.Win.ID,
			&item.Win.UserID,
			&item.Win.PrizeID,
			&item.Win.PaymentID,
			&item.Win.WonAt,
			&item.Win.IsClaimed,
			&item.Win.ClaimedAt,
			&item.Prize.ID,
			&item.Prize.GiftID,
			&item.Prize.Name,
			&item.Prize.Description,
			&item.Prize.StarCost,
			&item.Prize.ImageURL,
			&item.Prize.Rarity,
			&item.Prize.Weight,
			&item.Prize.IsActive,
			&item.Prize.TotalWon,
			&item.Prize.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan won prize: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wins: %w", err)
	}

	return items, nil
}

func (r *WinRepo) MarkClaimed(ctx context.Context, winID, userID int64, now time.Time) (model.Win, error) {
	if r.pool == nil {
		return model.Win{}, fmt.Errorf("postgres pool is nil")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var out model.Win
	err := WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		win, err := scanWinRow(tx.QueryRow(txCtx, `
SELECT`+winColumns+`
FROM won_gifts
WHERE id = $1 AND user_id = $2
FOR UPDATE
`, winID, userID))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrWinNotFound
		}
		if err != nil {
			return fmt.Errorf("lock win: %w", err)
		}

		if win.IsClaimed {
			return ErrWinAlreadyClaimed
		}

		updated, err := scanWinRow(tx.QueryRow(txCtx, `
UPDATE won_gifts
SET is_claimed = TRUE,
	claimed_at = $2
WHERE id = $1
RETURNING`+winColumns,
			winID, now.UTC()))
		if err != nil {
			return fmt.Errorf("mark win claimed: %w", err)
		}
		out = updated
		return nil
	})
	if err != nil {
		return model.Win{}, err
	}

	return out, nil
}

func scanWinRow(row pgx.Row) (model.Win, error) {
	var w model.Win
	err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.PrizeID,
		&w.PaymentID,
		&w.WonAt,
		&w.IsClaimed,
		&w.ClaimedAt,
	)
	if err != nil {
		return model.Win{}, err
	}
	return w, nil
}
