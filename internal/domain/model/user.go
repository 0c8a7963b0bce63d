package model

import "time"

type User struct {
	ID             int64      `json:"id"`
	TelegramID     int64      `json:"telegram_id"`
	Username       string     `json:"username"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	LanguageCode   string     `json:"language_code"`
	IsPremium      bool       `json:"is_premium"`
	IsBlocked      bool       `json:"is_blocked"`
	LastActivity   time.Time  `json:"last_activity"`
	ReminderSentAt *time.Time `json:"reminder_sent_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
