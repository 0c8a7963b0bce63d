package dto

type PaymentWebhookRequest struct {
	ExternalRef string `json:"external_ref"`
	TelegramID  int64  `json:"telegram_id"`
	Amount      int    `json:"amount"`
}

// PaymentWebhookResponse reports the settle outcome. Status is one of
// win, refund_needed; AlreadySettled marks a replayed notification.
type PaymentWebhookResponse struct {
	Status         string         `json:"status"`
	AlreadySettled bool           `json:"already_settled"`
	Prize          *PrizeResponse `json:"prize,omitempty"`
	SessionToken   string         `json:"session_token,omitempty"`
}
