package catalog

import (
	"context"
	"fmt"

	"github.com/abdulaziz-python/giftme/internal/domain/enums"
	"github.com/abdulaziz-python/giftme/internal/domain/model"
)

type PrizeStore interface {
	ListActive(ctx context.Context, maxCost int) ([]model.Prize, error)
	ListAll(ctx context.Context) ([]model.Prize, error)
	FindByID(ctx context.Context, id int64) (model.Prize, error)
	SeedIfEmpty(ctx context.Context, prizes []model.Prize) (bool, error)
	SetActive(ctx context.Context, id int64, active bool) (model.Prize, error)
}

// Service exposes the prize catalog with the cost ceiling applied. The
// ceiling is a config guard against expensive prizes leaking into the
// drawable set.
type Service struct {
	prizes      PrizeStore
	maxGiftCost int
}

func NewService(prizes PrizeStore, maxGiftCost int) *Service {
	return &Service{prizes: prizes, maxGiftCost: maxGiftCost}
}

// ListEligible returns the drawable catalog, cheapest prize first.
func (s *Service) ListEligible(ctx context.Context) ([]model.Prize, error) {
	prizes, err := s.prizes.ListActive(ctx, s.maxGiftCost)
	if err != nil {
		return nil, fmt.Errorf("list eligible prizes: %w", err)
	}
	return prizes, nil
}

func (s *Service) ListAll(ctx context.Context) ([]model.Prize, error) {
	prizes, err := s.prizes.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list all prizes: %w", err)
	}
	return prizes, nil
}

func (s *Service) Find(ctx context.Context, id int64) (model.Prize, error) {
	return s.prizes.FindByID(ctx, id)
}

func (s *Service) SetActive(ctx context.Context, id int64, active bool) (model.Prize, error) {
	return s.prizes.SetActive(ctx, id, active)
}

// EnsureSeeded installs the bootstrap catalog on first boot only.
func (s *Service) EnsureSeeded(ctx context.Context) (bool, error) {
	return s.prizes.SeedIfEmpty(ctx, DefaultCatalog())
}

// DefaultCatalog is the stock prize set. Weights are unnormalized; the
// draw engine scales over whatever subset is active.
func DefaultCatalog() []model.Prize {
	return []model.Prize{
		{
			GiftID:      "premium_sticker_pack_1",
			Name:        "🎨 Premium Sticker Pack",
			Description: "Exclusive animated stickers",
			StarCost:    75,
			Rarity:      enums.RarityCommon,
			Weight:      0.25,
		},
		{
			GiftID:      "exclusive_emoji_1",
			Name:        "😎 Exclusive Emoji Pack",
			Description: "Rare emoji collection",
			StarCost:    100,
			Rarity:      enums.RarityUncommon,
			Weight:      0.20,
		},
		{
			GiftID:      "channel_boost_1",
			Name:        "🚀 Channel Boost",
			Description: "Boost your favorite channel",
			StarCost:    125,
			Rarity:      enums.RarityUncommon,
			Weight:      0.15,
		},
		{
			GiftID:      "premium_month_1",
			Name:        "👑 Premium Month",
			Description: "One month of Telegram Premium",
			StarCost:    150,
			Rarity:      enums.RarityRare,
			Weight:      0.10,
		},
		{
			GiftID:      "special_badge_1",
			Name:        "🏆 Special Badge",
			Description: "Exclusive profile badge",
			StarCost:    175,
			Rarity:      enums.RarityRare,
			Weight:      0.08,
		},
		{
			GiftID:      "mega_prize_1",
			Name:        "💎 Mega Prize",
			Description: "Ultimate reward package",
			StarCost:    200,
			Rarity:      enums.RarityLegendary,
			Weight:      0.05,
		},
	}
}
