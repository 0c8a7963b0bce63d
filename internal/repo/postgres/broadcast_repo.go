package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abdulaziz-python/giftme/internal/domain/enums"
	"github.com/abdulaziz-python/giftme/internal/domain/model"
)

var (
	ErrBroadcastNotFound = errors.New("broadcast not found")
	ErrBroadcastNotDraft = errors.New("broadcast is not a draft")
)

type BroadcastRepo struct {
	pool *pgxpool.Pool
}

func NewBroadcastRepo(pool *pgxpool.Pool) *BroadcastRepo {
	return &BroadcastRepo{pool: pool}
}

const broadcastColumns = `
	id,
	title,
	message_text,
	image_url,
	status,
	target_users,
	sent_count,
	failed_count,
	created_by,
	created_at,
	started_at,
	completed_at`

func (r *BroadcastRepo) CreateDraft(ctx context.Context, title, text, imageURL string, createdBy, targetUsers int64) (model.Broadcast, error) {
	if r.pool == nil {
		return model.Broadcast{}, fmt.Errorf("postgres pool is nil")
	}

	title = strings.TrimSpace(title)
	text = strings.TrimSpace(text)
	if title == "" || text == "" {
		return model.Broadcast{}, fmt.Errorf("broadcast title and text are required")
	}

	record, err := scanBroadcastRow(r.pool.QueryRow(ctx, `
INSERT INTO broadcasts (
	title,
	message_text,
	image_url,
	status,
	target_users,
	sent_count,
	failed_count,
	created_by,
	created_at
) VALUES ($1, $2, $3, 'draft', $4, 0, 0, $5, NOW())
RETURNING`+broadcastColumns,
		title, text, imageURL, targetUsers, createdBy))
	if err != nil {
		return model.Broadcast{}, fmt.Errorf("create broadcast draft: %w", err)
	}

	return record, nil
}

func (r *BroadcastRepo) Find(ctx context.Context, id int64) (model.Broadcast, error) {
	if r.pool == nil {
		return model.Broadcast{}, fmt.Errorf("postgres pool is nil")
	}

	record, err := scanBroadcastRow(r.pool.QueryRow(ctx, `
SELECT`+broadcastColumns+`
FROM broadcasts
WHERE id = $1
`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Broadcast{}, ErrBroadcastNotFound
	}
	if err != nil {
		return model.Broadcast{}, fmt.Errorf("find broadcast: %w", err)
	}

	return record, nil
}

func (r *BroadcastRepo) List(ctx context.Context, limit int) ([]model.Broadcast, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
SELECT`+broadcastColumns+`
FROM broadcasts
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list broadcasts: %w", err)
	}
	defer rows.Close()

	var items []model.Broadcast
	for rows.Next() {
		record, err := scanBroadcastRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan broadcast: %w", err)
		}
		items = append(items, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate broadcasts: %w", err)
	}

	return items, nil
}

// MarkSending claims a draft for delivery. Only one worker can win the
// draft-to-sending transition, so a double launch is a no-op for the
// loser.
func (r *BroadcastRepo) MarkSending(ctx context.Context, id, targetUsers int64, at time.Time) (model.Broadcast, error) {
	if r.pool == nil {
		return model.Broadcast{}, fmt.Errorf("postgres pool is nil")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	record, err := scanBroadcastRow(r.pool.QueryRow(ctx, `
UPDATE broadcasts
SET status = 'sending',
	target_users = $2,
	started_at = $3
WHERE id = $1 AND status = 'draft'
RETURNING`+broadcastColumns,
		id, targetUsers, at.UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, findErr := r.Find(ctx, id); findErr != nil {
			return model.Broadcast{}, findErr
		}
		return model.Broadcast{}, ErrBroadcastNotDraft
	}
	if err != nil {
		return model.Broadcast{}, fmt.Errorf("mark broadcast sending: %w", err)
	}

	return record, nil
}

func (r *BroadcastRepo) UpdateProgress(ctx context.Context, id, sent, failed int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE broadcasts
SET sent_count = $2,
	failed_count = $3
WHERE id = $1
`, id, sent, failed)
	if err != nil {
		return fmt.Errorf("update broadcast progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBroadcastNotFound
	}

	return nil
}

func (r *BroadcastRepo) Finish(ctx context.Context, id int64, status enums.BroadcastStatus, sent, failed int64, at time.Time) (model.Broadcast, error) {
	if r.pool == nil {
		return model.Broadcast{}, fmt.Errorf("postgres pool is nil")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	record, err := scanBroadcastRow(r.pool.QueryRow(ctx, `
UPDATE broadcasts
SET status = $2,
	sent_count = $3,
	failed_count = $4,
	completed_at = $5
WHERE id = $1
RETURNING`+broadcastColumns,
		id, status, sent, failed, at.UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Broadcast{}, ErrBroadcastNotFound
	}
	if err != nil {
		return model.Broadcast{}, fmt.Errorf("finish broadcast: %w", err)
	}

	return record, nil
}

func (r *BroadcastRepo) InsertLog(ctx context.Context, broadcastID, userID int64, delivered bool, errText string, at time.Time) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, `
INSERT INTO broadcast_logs (
	broadcast_id,
	user_id,
	delivered,
	error_text,
	sent_at
) VALUES ($1, $2, $3, $4, $5)
`, broadcastID, userID, delivered, errText, at.UTC())
	if err != nil {
		return fmt.Errorf("insert broadcast log: %w", err)
	}

	return nil
}

func scanBroadcastRow(row pgx.Row) (model.Broadcast, error) {
	var b model.Broadcast
	err := row.Scan(
		&b.ID,
		&b.Title,
		&b.Text,
		&b.ImageURL,
		&b.Status,
		&b.TargetUsers,
		&b.SentCount,
		&b.FailedCount,
		&b.CreatedBy,
		&b.CreatedAt,
		&b.StartedAt,
		&b.CompletedAt,
	)
	if err != nil {
		return model.Broadcast{}, err
	}
	return b, nil
}
