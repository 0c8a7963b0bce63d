package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abdulaziz-python/giftme/internal/domain/model"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `
	id,
	telegram_id,
	username,
	first_name,
	last_name,
	language_code,
	is_premium,
	is_blocked,
	last_activity,
	reminder_sent_at,
	created_at,
	updated_at`

// GetOrCreate upserts by telegram id and refreshes the profile fields
// that Telegram sends on every interaction. Touching last_activity here
// keeps the inactivity reminder honest without a separate write.
func (r *UserRepo) GetOrCreate(ctx context.Context, u model.User) (model.User, error) {
	if r.pool == nil {
		return model.User{}, fmt.Errorf("postgres pool is nil")
	}
	if u.TelegramID <= 0 {
		return model.User{}, fmt.Errorf("invalid telegram id")
	}

	u.Username = strings.TrimSpace(u.Username)

	record, err := scanUserRow(r.pool.QueryRow(ctx, `
INSERT INTO users (
	telegram_id,
	username,
	first_name,
	last_name,
	language_code,
	is_premium,
	is_blocked,
	last_activity,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, FALSE, NOW(), NOW(), NOW())
ON CONFLICT (telegram_id) DO UPDATE
SET username = EXCLUDED.username,
	first_name = EXCLUDED.first_name,
	last_name = EXCLUDED.last_name,
	language_code = EXCLUDED.language_code,
	is_premium = EXCLUDED.is_premium,
	last_activity = NOW(),
	reminder_sent_at = NULL,
	updated_at = NOW()
RETURNING`+userColumns,
		u.TelegramID, u.Username, u.FirstName, u.LastName, u.LanguageCode, u.IsPremium))
	if err != nil {
		return model.User{}, fmt.Errorf("get or create user: %w", err)
	}

	return record, nil
}

func (r *UserRepo) FindByTelegramID(ctx context.Context, telegramID int64) (model.User, error) {
	if r.pool == nil {
		return model.User{}, fmt.Errorf("postgres pool is nil")
	}

	record, err := scanUserRow(r.pool.QueryRow(ctx, `
SELECT`+userColumns+`
FROM users
WHERE telegram_id = $1
`, telegramID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by telegram id: %w", err)
	}

	return record, nil
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (model.User, error) {
	if r.pool == nil {
		return model.User{}, fmt.Errorf("postgres pool is nil")
	}

	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return model.User{}, ErrUserNotFound
	}

	record, err := scanUserRow(r.pool.QueryRow(ctx, `
SELECT`+userColumns+`
FROM users
WHERE LOWER(username) = LOWER($1)
`, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by username: %w", err)
	}

	return record, nil
}

func (r *UserRepo) TouchActivity(ctx context.Context, telegramID int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE users
SET last_activity = NOW(),
	reminder_sent_at = NULL,
	updated_at = NOW()
WHERE telegram_id = $1
`, telegramID)
	if err != nil {
		return fmt.Errorf("touch user activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *UserRepo) SetBlocked(ctx context.Context, telegramID int64, blocked bool) (model.User, error) {
	if r.pool == nil {
		return model.User{}, fmt.Errorf("postgres pool is nil")
	}

	record, err := scanUserRow(r.pool.QueryRow(ctx, `
UPDATE users
SET is_blocked = $2,
	updated_at = NOW()
WHERE telegram_id = $1
RETURNING`+userColumns,
		telegramID, blocked))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("set user blocked: %w", err)
	}

	return record, nil
}

// ListInactiveSince returns unblocked users whose last activity predates
// the cutoff and who have not been nudged since that activity.
func (r *UserRepo) ListInactiveSince(ctx context.Context, cutoff time.Time, limit int) ([]model.User, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
SELECT`+userColumns+`
FROM users
WHERE is_blocked = FALSE
  AND last_activity < $1
  AND reminder_sent_at IS NULL
ORDER BY last_activity ASC
LIMIT $2
`, cutoff.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list inactive users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		record, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inactive user: %w", err)
		}
		users = append(users, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inactive users: %w", err)
	}

	return users, nil
}

func (r *UserRepo) MarkReminderSent(ctx context.Context, telegramID int64, at time.Time) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE users
SET reminder_sent_at = $2,
	updated_at = NOW()
WHERE telegram_id = $1
`, telegramID, at.UTC())
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *UserRepo) ListTelegramIDs(ctx context.Context, includeBlocked bool) ([]int64, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	query := `SELECT telegram_id FROM users WHERE is_blocked = FALSE ORDER BY id`
	if includeBlocked {
		query = `SELECT telegram_id FROM users ORDER BY id`
	}

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list telegram ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan telegram id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate telegram ids: %w", err)
	}

	return ids, nil
}

func scanUserRow(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.TelegramID,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.LanguageCode,
		&u.IsPremium,
		&u.IsBlocked,
		&u.LastActivity,
		&u.ReminderSentAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}
