package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abdulaziz-python/giftme/internal/domain/enums"
	"github.com/abdulaziz-python/giftme/internal/domain/model"
)

var (
	ErrSessionNotFound         = errors.New("spin session not found")
	ErrSessionExpired          = errors.New("spin session expired")
	ErrSessionAlreadyCompleted = errors.New("spin session already completed")
)

type SpinSessionRepo struct {
	pool *pgxpool.Pool
}

func NewSpinSessionRepo(pool *pgxpool.Pool) *SpinSessionRepo {
	return &SpinSessionRepo{pool: pool}
}

const spinSessionColumns = `
	id,
	user_id,
	session_token,
	status,
	result_gift_id,
	created_at,
	expires_at,
	completed_at`

func (r *SpinSessionRepo) Create(ctx context.Context, userID int64, ttl time.Duration, now time.Time) (model.SpinSession, error) {
	if r.pool == nil {
		return model.SpinSession{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return model.SpinSession{}, fmt.Errorf("invalid user id")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	now = now.UTC()

	record, err := scanSpinSessionRow(r.pool.QueryRow(ctx, `
INSERT INTO spin_sessions (
	user_id,
	session_token,
	status,
	created_at,
	expires_at
) VALUES ($1, $2, 'pending', $3, $4)
RETURNING`+spinSessionColumns,
		userID, uuid.NewString(), now, now.Add(ttl)))
	if err != nil {
		return model.SpinSession{}, fmt.Errorf("create spin session: %w", err)
	}

	return record, nil
}

func (r *SpinSessionRepo) FindByToken(ctx context.Context, token string) (model.SpinSession, error) {
	if r.pool == nil {
		return model.SpinSession{}, fmt.Errorf("postgres pool is nil")
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return model.SpinSession{}, ErrSessionNotFound
	}

	record, err := scanSpinSessionRow(r.pool.QueryRow(ctx, `
SELECT`+spinSessionColumns+`
FROM spin_sessions
WHERE session_token = $1
`, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SpinSession{}, ErrSessionNotFound
	}
	if err != nil {
		return model.SpinSession{}, fmt.Errorf("find spin session: %w", err)
	}

	return record, nil
}

// Complete marks a pending session with its draw result. Expired or
// already-resolved sessions are rejected without modification.
func (r *SpinSessionRepo) Complete(ctx context.Context, token string, prizeID int64, now time.Time) (model.SpinSession, error) {
	if r.pool == nil {
		return model.SpinSession{}, fmt.Errorf("postgres pool is nil")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	now = now.UTC()

	var out model.SpinSession
	err := WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		session, err := scanSpinSessionRow(tx.QueryRow(txCtx, `
SELECT`+spinSessionColumns+`
FROM spin_sessions
WHERE session_token = $1
FOR UPDATE
`, token))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("lock spin session: %w", err)
		}

		if session.Status != enums.SessionStatusPending {
			return ErrSessionAlreadyCompleted
		}
		if session.Expired(now) {
			return ErrSessionExpired
		}

		updated, err := scanSpinSessionRow(tx.QueryRow(txCtx, `
UPDATE spin_sessions
SET status = 'completed',
	result_gift_id = $2,
	completed_at = $3
WHERE session_token = $1
RETURNING`+spinSessionColumns,
			token, prizeID, now))
		if err != nil {
			return fmt.Errorf("complete spin session: %w", err)
		}
		out = updated
		return nil
	})
	if err != nil {
		return model.SpinSession{}, err
	}

	return out, nil
}

// DeleteExpiredBefore removes pending sessions whose deadline passed
// before the cutoff and returns how many rows went away.
func (r *SpinSessionRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
DELETE FROM spin_sessions
WHERE status = 'pending' AND expires_at < $1
`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}

	return tag.RowsAffected(), nil
}

func scanSpinSessionRow(row pgx.Row) (model.SpinSession, error) {
	var s model.SpinSession
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Token,
		&s.Status,
		&s.ResultPrizeID,
		&s.CreatedAt,
		&s.ExpiresAt,
		&s.CompletedAt,
	)
	if err != nil {
		return model.SpinSession{}, err
	}
	return s, nil
}
