package dto

import "time"

type PrizeResponse struct {
	ID          int64   `json:"id"`
	GiftID      string  `json:"gift_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	StarCost    int     `json:"star_cost"`
	ImageURL    string  `json:"image_url,omitempty"`
	Rarity      string  `json:"rarity"`
	Weight      float64 `json:"weight"`
	TotalWon    int64   `json:"total_won"`
}

type PrizeListResponse struct {
	Prizes   []PrizeResponse `json:"prizes"`
	SpinCost int             `json:"spin_cost"`
}

type SpinSessionResponse struct {
	Token     string         `json:"token"`
	Status    string         `json:"status"`
	ExpiresAt time.Time      `json:"expires_at"`
	Prize     *PrizeResponse `json:"prize,omitempty"`
}

type WonPrizeResponse struct {
	ID        int64         `json:"id"`
	Prize     PrizeResponse `json:"prize"`
	WonAt     time.Time     `json:"won_at"`
	IsClaimed bool          `json:"is_claimed"`
}

type ProfileResponse struct {
	TelegramID int64              `json:"telegram_id"`
	Username   string             `json:"username,omitempty"`
	FirstName  string             `json:"first_name,omitempty"`
	IsPremium  bool               `json:"is_premium"`
	MemberFor  int64              `json:"member_for_days"`
	Wins       []WonPrizeResponse `json:"wins"`
}

type ClaimResponse struct {
	ID        int64     `json:"id"`
	IsClaimed bool      `json:"is_claimed"`
	ClaimedAt time.Time `json:"claimed_at"`
}
