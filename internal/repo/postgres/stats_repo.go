package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type StatsRepo struct {
	pool *pgxpool.Pool
}

func NewStatsRepo(pool *pgxpool.Pool) *StatsRepo {
	return &StatsRepo{pool: pool}
}

type UserStats struct {
	Total       int64
	ActiveToday int64
	ActiveWeek  int64
	Premium     int64
	Blocked     int64
}

type RevenueStats struct {
	TotalStars      int64
	CompletedCount  int64
	PendingCount    int64
	RefundedCount   int64
	FailedCount     int64
	RevenueToday    int64
	RevenueThisWeek int64
}

type PrizeStats struct {
	PrizeID  int64
	Name     string
	Rarity   string
	TotalWon int64
	StarCost int
	IsActive bool
}

func (r *StatsRepo) Users(ctx context.Context, now time.Time) (UserStats, error) {
	if r.pool == nil {
		return UserStats{}, fmt.Errorf("postgres pool is nil")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	dayAgo := now.UTC().Add(-24 * time.Hour)
	weekAgo := now.UTC().Add(-7 * 24 * time.Hour)

	var s UserStats
	err := r.pool.QueryRow(ctx, `
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE last_activity >= $1),
	COUNT(*) FILTER (WHERE last_activity >= $2),
	COUNT(*) FILTER (WHERE is_premium),
	COUNT(*) FILTER (WHERE is_blocked)
FROM users
`, dayAgo, weekAgo).Scan(&s.Total, &s.ActiveToday, &s.ActiveWeek, &s.Premium, &s.Blocked)
	if err != nil {
		return UserStats{}, fmt.Errorf("query user stats: %w", err)
	}

	return s, nil
}

func (r *StatsRepo) Revenue(ctx context.Context, now time.Time) (RevenueStats, error) {
	if r.pool == nil {
		return RevenueStats{}, fmt.Errorf("postgres pool is nil")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	dayAgo := now.UTC().Add(-24 * time.Hour)
	weekAgo := now.UTC().Add(-7 * 24 * time.Hour)

	var s RevenueStats
	err := r.pool.QueryRow(ctx, `
SELECT
	COALESCE(SUM(amount) FILTER (WHERE status = 'completed'), 0),
	COUNT(*) FILTER (WHERE status = 'completed'),
	COUNT(*) FILTER (WHERE status = 'pending'),
	COUNT(*) FILTER (WHERE status = 'refunded'),
	COUNT(*) FILTER (WHERE status = 'failed'),
	COALESCE(SUM(amount) FILTER (WHERE status = 'completed' AND completed_at >= $1), 0),
	COALESCE(SUM(amount) FILTER (WHERE status = 'completed' AND completed_at >= $2), 0)
FROM transactions
`, dayAgo, weekAgo).Scan(
		&s.TotalStars,
		&s.CompletedCount,
		&s.PendingCount,
		&s.RefundedCount,
		&s.FailedCount,
		&s.RevenueToday,
		&s.RevenueThisWeek,
	)
	if err != nil {
		return RevenueStats{}, fmt.Errorf("query revenue stats: %w", err)
	}

	return s, nil
}

func (r *StatsRepo) Prizes(ctx context.Context) ([]PrizeStats, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, name, rarity, total_won, star_cost, is_active
FROM gifts
ORDER BY total_won DESC, id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("query prize stats: %w", err)
	}
	defer rows.Close()

	var stats []PrizeStats
	for rows.Next() {
		var s PrizeStats
		if err := rows.Scan(&s.PrizeID, &s.Name, &s.Rarity, &s.TotalWon, &s.StarCost, &s.IsActive); err != nil {
			return nil, fmt.Errorf("scan prize stats: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prize stats: %w", err)
	}

	return stats, nil
}
