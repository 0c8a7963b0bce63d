package model

import (
	"time"

	"github.com/abdulaziz-python/giftme/internal/domain/enums"
)

// Prize is one catalog entry the roulette can award. Weight is an
// unnormalized probability mass in (0, 1]; the draw engine normalizes
// across whatever active set it is handed.
type Prize struct {
	ID          int64        `json:"id"`
	GiftID      string       `json:"gift_id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	StarCost    int          `json:"star_cost"`
	ImageURL    string       `json:"image_url"`
	Rarity      enums.Rarity `json:"rarity"`
	Weight      float64      `json:"weight"`
	IsActive    bool         `json:"is_active"`
	TotalWon    int64        `json:"total_won"`
	CreatedAt   time.Time    `json:"created_at"`
}
