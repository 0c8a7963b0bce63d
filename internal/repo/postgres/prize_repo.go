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

var ErrPrizeNotFound = errors.New("prize not found")

type PrizeRepo struct {
	pool *pgxpool.Pool
}

func NewPrizeRepo(pool *pgxpool.Pool) *PrizeRepo {
	return &PrizeRepo{pool: pool}
}

const prizeColumns = `
	id,
	gift_id,
	name,
	description,
	star_cost,
	image_url,
	rarity,
	weight,
	is_active,
	total_won,
	created_at`

// ListActive returns the drawable catalog: active prizes at or under the
// cost ceiling, cheapest first. maxCost <= 0 disables the ceiling.
func (r *PrizeRepo) ListActive(ctx context.Context, maxCost int) ([]model.Prize, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

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

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active prizes: %w", err)
	}
	defer rows.Close()

	return collectPrizes(rows)
}

func (r *PrizeRepo) ListAll(ctx context.Context) ([]model.Prize, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT`+prizeColumns+`
FROM gifts
ORDER BY star_cost ASC, id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list prizes: %w", err)
	}
	defer rows.Close()

	return collectPrizes(rows)
}

func (r *PrizeRepo) FindByID(ctx context.Context, id int64) (model.Prize, error) {
	if r.pool == nil {
		return model.Prize{}, fmt.Errorf("postgres pool is nil")
	}

	record, err := scanPrizeRow(r.pool.QueryRow(ctx, `
SELECT`+prizeColumns+`
FROM gifts
WHERE id = $1
`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Prize{}, ErrPrizeNotFound
	}
	if err != nil {
		return model.Prize{}, fmt.Errorf("find prize by id: %w", err)
	}

	return record, nil
}

func (r *PrizeRepo) FindByGiftID(ctx context.Context, giftID string) (model.Prize, error) {
	if r.pool == nil {
		return model.Prize{}, fmt.Errorf("postgres pool is nil")
	}

	giftID = strings.TrimSpace(giftID)
	if giftID == "" {
		return model.Prize{}, ErrPrizeNotFound
	}

	record, err := scanPrizeRow(r.pool.QueryRow(ctx, `
SELECT`+prizeColumns+`
FROM gifts
WHERE gift_id = $1
`, giftID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Prize{}, ErrPrizeNotFound
	}
	if err != nil {
		return model.Prize{}, fmt.Errorf("find prize by gift id: %w", err)
	}

	return record, nil
}

// SeedIfEmpty installs the bootstrap catalog exactly once. A non-empty
// gifts table makes this a no-op so operator edits survive restarts.
func (r *PrizeRepo) SeedIfEmpty(ctx context.Context, prizes []model.Prize) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	if len(prizes) == 0 {
		return false, nil
	}

	seeded := false
	err := WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		var count int
		if err := tx.QueryRow(txCtx, `SELECT COUNT(*) FROM gifts`).Scan(&count); err != nil {
			return fmt.Errorf("count gifts: %w", err)
		}
		if count > 0 {
			return nil
		}

		for _, p := range prizes {
			_, err := tx.Exec(txCtx, `
INSERT INTO gifts (
	gift_id,
	name,
	description,
	star_cost,
	image_url,
	rarity,
	weight,
	is_active,
	total_won,
	created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, 0, NOW())
`, p.GiftID, p.Name, p.Description, p.StarCost, p.ImageURL, p.Rarity, p.Weight)
			if err != nil {
				return fmt.Errorf("seed gift %s: %w", p.GiftID, err)
			}
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return seeded, nil
}

func (r *PrizeRepo) SetActive(ctx context.Context, id int64, active bool) (model.Prize, error) {
	if r.pool == nil {
		return model.Prize{}, fmt.Errorf("postgres pool is nil")
	}

	record, err := scanPrizeRow(r.pool.QueryRow(ctx, `
UPDATE gifts
SET is_active = $2
WHERE id = $1
RETURNING`+prizeColumns,
		id, active))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Prize{}, ErrPrizeNotFound
	}
	if err != nil {
		return model.Prize{}, fmt.Errorf("set prize active: %w", err)
	}

	return record, nil
}

func collectPrizes(rows pgx.Rows) ([]model.Prize, error) {
	var prizes []model.Prize
	for rows.Next() {
		record, err := scanPrizeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prize: %w", err)
		}
		prizes = append(prizes, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prizes: %w", err)
	}
	return prizes, nil
}

func scanPrizeRow(row pgx.Row) (model.Prize, error) {
	var p model.Prize
	err := row.Scan(
		&p.ID,
		&p.GiftID,
		&p.Name,
		&p.Description,
		&p.StarCost,
		&p.ImageURL,
		&p.Rarity,
		&p.Weight,
		&p.IsActive,
		&p.TotalWon,
		&p.CreatedAt,
	)
	if err != nil {
		return model.Prize{}, err
	}
	return p, nil
}
