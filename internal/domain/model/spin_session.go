package model

import (
	"time"

	"github.com/abdulaziz-python/giftme/internal/domain/enums"
)

// SpinSession is a short-lived token that lets a client poll the outcome
// of a spin without resubmitting proof of payment. It is a polling
// convenience, not an integrity boundary; that is the payment ledger.
type SpinSession struct {
	ID            int64               `json:"id"`
	UserID        int64               `json:"user_id"`
	Token         string              `json:"token"`
	Status        enums.SessionStatus `json:"status"`
	ResultPrizeID *int64              `json:"result_prize_id,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	ExpiresAt     time.Time           `json:"expires_at"`
	CompletedAt   *time.Time          `json:"completed_at,omitempty"`
}

// Expired reports whether the session's absolute deadline has passed.
// Expiry is checked lazily on read; nothing actively reaps sessions.
func (s SpinSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
