package users

import (
	"context"
	"fmt"
	"time"

	"github.com/abdulaziz-python/giftme/internal/domain/model"
	pgrepo "github.com/abdulaziz-python/giftme/internal/repo/postgres"
)

type Store interface {
	GetOrCreate(ctx context.Context, u model.User) (model.User, error)
	FindByTelegramID(ctx context.Context, telegramID int64) (model.User, error)
	FindByUsername(ctx context.Context, username string) (model.User, error)
	TouchActivity(ctx context.Context, telegramID int64) error
	SetBlocked(ctx context.Context, telegramID int64, blocked bool) (model.User, error)
}

type WinStore interface {
	ListByUser(ctx context.Context, userID int64, limit int) ([]pgrepo.WonPrize, error)
	MarkClaimed(ctx context.Context, winID, userID int64, now time.Time) (model.Win, error)
}

type Service struct {
	store Store
	wins  WinStore
	now   func() time.Time
}

func NewService(store Store, wins WinStore) *Service {
	return &Service{store: store, wins: wins, now: time.Now}
}

// Register upserts the profile Telegram sent with the interaction and
// refreshes activity as a side effect.
func (s *Service) Register(ctx context.Context, u model.User) (model.User, error) {
	return s.store.GetOrCreate(ctx, u)
}

func (s *Service) Find(ctx context.Context, telegramID int64) (model.User, error) {
	return s.store.FindByTelegramID(ctx, telegramID)
}

func (s *Service) FindByUsername(ctx context.Context, username string) (model.User, error) {
	return s.store.FindByUsername(ctx, username)
}

func (s *Service) Touch(ctx context.Context, telegramID int64) error {
	return s.store.TouchActivity(ctx, telegramID)
}

// Profile returns the user plus their win history for the miniapp
// profile screen.
func (s *Service) Profile(ctx context.Context, telegramID int64) (model.User, []pgrepo.WonPrize, error) {
	user, err := s.store.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return model.User{}, nil, err
	}

	wins, err := s.wins.ListByUser(ctx, telegramID, 50)
	if err != nil {
		return model.User{}, nil, fmt.Errorf("load win history: %w", err)
	}

	return user, wins, nil
}

// Claim marks a won prize as claimed. Only the winner can claim, and
// only once.
func (s *Service) Claim(ctx context.Context, telegramID, winID int64) (model.Win, error) {
	return s.wins.MarkClaimed(ctx, winID, telegramID, s.now().UTC())
}

func (s *Service) Block(ctx context.Context, telegramID int64) (model.User, error) {
	return s.store.SetBlocked(ctx, telegramID, true)
}

func (s *Service) Unblock(ctx context.Context, telegramID int64) (model.User, error) {
	return s.store.SetBlocked(ctx, telegramID, false)
}
