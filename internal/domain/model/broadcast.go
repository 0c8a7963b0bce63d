package model

import (
	"time"

	"github.com/abdulaziz-python/giftme/internal/domain/enums"
)

type Broadcast struct {
	ID          int64                 `json:"id"`
	Title       string                `json:"title"`
	Text        string                `json:"text"`
	ImageURL    string                `json:"image_url"`
	Status      enums.BroadcastStatus `json:"status"`
	TargetUsers int64                 `json:"target_users"`
	SentCount   int64                 `json:"sent_count"`
	FailedCount int64                 `json:"failed_count"`
	CreatedBy   int64                 `json:"created_by"`
	CreatedAt   time.Time             `json:"created_at"`
	StartedAt   *time.Time            `json:"started_at,omitempty"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
}

type BroadcastLog struct {
	ID          int64     `json:"id"`
	BroadcastID int64     `json:"broadcast_id"`
	UserID      int64     `json:"user_id"`
	Delivered   bool      `json:"delivered"`
	ErrorText   string    `json:"error_text,omitempty"`
	SentAt      time.Time `json:"sent_at"`
}
