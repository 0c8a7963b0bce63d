package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abdulaziz-python/giftme/internal/domain/model"
)

var (
	ErrAdminNotFound = errors.New("admin not found")
	ErrAdminExists   = errors.New("admin already exists")
)

type AdminRepo struct {
	pool *pgxpool.Pool
}

func NewAdminRepo(pool *pgxpool.Pool) *AdminRepo {
	return &AdminRepo{pool: pool}
}

const adminColumns = `
	id,
	telegram_id,
	username,
	added_by,
	is_active,
	created_at`

// Add grants admin rights. A previously revoked admin is reactivated;
// an already-active one is reported as ErrAdminExists.
func (r *AdminRepo) Add(ctx context.Context, telegramID int64, username string, addedBy int64) (model.Admin, error) {
	if r.pool == nil {
		return model.Admin{}, fmt.Errorf("postgres pool is nil")
	}
	if telegramID <= 0 {
		return model.Admin{}, fmt.Errorf("invalid telegram id")
	}

	username = strings.TrimPrefix(strings.TrimSpace(username), "@")

	var out model.Admin
	err := WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		existing, err := scanAdminRow(tx.QueryRow(txCtx, `
SELECT`+adminColumns+`
FROM admins
WHERE telegram_id = $1
FOR UPDATE
`, telegramID))
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("lock admin: %w", err)
		}

		if err == nil {
			if existing.IsActive {
				return ErrAdminExists
			}
			reactivated, err := scanAdminRow(tx.QueryRow(txCtx, `
UPDATE admins
SET is_active = TRUE,
	username = $2,
	added_by = $3
WHERE telegram_id = $1
RETURNING`+adminColumns,
				telegramID, username, addedBy))
			if err != nil {
				return fmt.Errorf("reactivate admin: %w", err)
			}
			out = reactivated
			return nil
		}

		created, err := scanAdminRow(tx.QueryRow(txCtx, `
INSERT INTO admins (
	telegram_id,
	username,
	added_by,
	is_active,
	created_at
) VALUES ($1, $2, $3, TRUE, NOW())
RETURNING`+adminColumns,
			telegramID, username, addedBy))
		if err != nil {
			return fmt.Errorf("insert admin: %w", err)
		}
		out = created
		return nil
	})
	if err != nil {
		return model.Admin{}, err
	}

	return out, nil
}

func (r *AdminRepo) Deactivate(ctx context.Context, telegramID int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE admins
SET is_active = FALSE
WHERE telegram_id = $1 AND is_active = TRUE
`, telegramID)
	if err != nil {
		return fmt.Errorf("deactivate admin: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAdminNotFound
	}

	return nil
}

func (r *AdminRepo) ListActive(ctx context.Context) ([]model.Admin, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT`+adminColumns+`
FROM admins
WHERE is_active = TRUE
ORDER BY created_at ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list active admins: %w", err)
	}
	defer rows.Close()

	var admins []model.Admin
	for rows.Next() {
		record, err := scanAdminRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		admins = append(admins, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admins: %w", err)
	}

	return admins, nil
}

func (r *AdminRepo) IsActiveAdmin(ctx context.Context, telegramID int64) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM admins WHERE telegram_id = $1 AND is_active = TRUE
)
`, telegramID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}

	return exists, nil
}

func scanAdminRow(row pgx.Row) (model.Admin, error) {
	var a model.Admin
	err := row.Scan(
		&a.ID,
		&a.TelegramID,
		&a.Username,
		&a.AddedBy,
		&a.IsActive,
		&a.CreatedAt,
	)
	if err != nil {
		return model.Admin{}, err
	}
	return a, nil
}
