package dto

import "time"

type StatsOverviewResponse struct {
	Users   UserStatsResponse    `json:"users"`
	Revenue RevenueStatsResponse `json:"revenue"`
	Prizes  []PrizeStatsResponse `json:"prizes"`
}

type UserStatsResponse struct {
	Total       int64 `json:"total"`
	ActiveToday int64 `json:"active_today"`
	ActiveWeek  int64 `json:"active_week"`
	Premium     int64 `json:"premium"`
	Blocked     int64 `json:"blocked"`
}

type RevenueStatsResponse struct {
	TotalStars      int64 `json:"total_stars"`
	CompletedCount  int64 `json:"completed_count"`
	PendingCount    int64 `json:"pending_count"`
	RefundedCount   int64 `json:"refunded_count"`
	FailedCount     int64 `json:"failed_count"`
	RevenueToday    int64 `json:"revenue_today"`
	RevenueThisWeek int64 `json:"revenue_this_week"`
}

type PrizeStatsResponse struct {
	PrizeID  int64  `json:"prize_id"`
	Name     string `json:"name"`
	Rarity   string `json:"rarity"`
	TotalWon int64  `json:"total_won"`
	StarCost int    `json:"star_cost"`
	IsActive bool   `json:"is_active"`
}

type BroadcastCreateRequest struct {
	Title    string `json:"title"`
	Text     string `json:"text"`
	ImageURL string `json:"image_url"`
}

type BroadcastResponse struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	TargetUsers int64      `json:"target_users"`
	SentCount   int64      `json:"sent_count"`
	FailedCount int64      `json:"failed_count"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type BroadcastListResponse struct {
	Broadcasts []BroadcastResponse `json:"broadcasts"`
}

type AdminGrantRequest struct {
	Username string `json:"username"`
}

type AdminResponse struct {
	TelegramID int64     `json:"telegram_id"`
	Username   string    `json:"username"`
	AddedBy    int64     `json:"added_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type AdminListResponse struct {
	Admins []AdminResponse `json:"admins"`
}

type UserBlockResponse struct {
	TelegramID int64 `json:"telegram_id"`
	IsBlocked  bool  `json:"is_blocked"`
}

type PrizeActiveRequest struct {
	IsActive bool `json:"is_active"`
}
