package model

import "time"

// Win records that a specific payment produced a specific prize for a
// specific user. PaymentID is nil only in seed/test data; the production
// settle path always links exactly one completed payment.
type Win struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	PrizeID   int64      `json:"prize_id"`
	PaymentID *int64     `json:"payment_id,omitempty"`
	WonAt     time.Time  `json:"won_at"`
	IsClaimed bool       `json:"is_claimed"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
}
