package stats

import (
	"context"
	"fmt"
	"time"

	pgrepo "github.com/abdulaziz-python/giftme/internal/repo/postgres"
)

type Store interface {
	Users(ctx context.Context, now time.Time) (pgrepo.UserStats, error)
	Revenue(ctx context.Context, now time.Time) (pgrepo.RevenueStats, error)
	Prizes(ctx context.Context) ([]pgrepo.PrizeStats, error)
}

type Overview struct {
	Users   pgrepo.UserStats
	Revenue pgrepo.RevenueStats
	Prizes  []pgrepo.PrizeStats
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) Overview(ctx context.Context) (Overview, error) {
	now := s.now().UTC()

	users, err := s.store.Users(ctx, now)
	if err != nil {
		return Overview{}, fmt.Errorf("user stats: %w", err)
	}

	revenue, err := s.store.Revenue(ctx, now)
	if err != nil {
		return Overview{}, fmt.Errorf("revenue stats: %w", err)
	}

	prizes, err := s.store.Prizes(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("prize stats: %w", err)
	}

	return Overview{Users: users, Revenue: revenue, Prizes: prizes}, nil
}
