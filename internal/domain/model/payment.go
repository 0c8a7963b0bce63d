package model

import (
	"time"

	"github.com/abdulaziz-python/giftme/internal/domain/enums"
)

// Payment is one ledger row keyed by the provider-supplied external
// reference. The reference is the idempotency boundary for duplicate
// provider notifications.
type Payment struct {
	ID            int64               `json:"id"`
	UserID        int64               `json:"user_id"`
	ExternalRef   string              `json:"external_ref"`
	Amount        int                 `json:"amount"`
	Status        enums.PaymentStatus `json:"status"`
	PaymentMethod string              `json:"payment_method"`
	CreatedAt     time.Time           `json:"created_at"`
	CompletedAt   *time.Time          `json:"completed_at,omitempty"`
}
