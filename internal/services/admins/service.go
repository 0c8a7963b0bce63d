package admins

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/abdulaziz-python/giftme/internal/domain/model"
	pgrepo "github.com/abdulaziz-python/giftme/internal/repo/postgres"
)

var (
	ErrNotAdmin    = errors.New("not an admin")
	ErrUnknownUser = errors.New("user has not started the bot")
	ErrSelfRevoke  = errors.New("cannot revoke own admin rights")
)

type Store interface {
	Add(ctx context.Context, telegramID int64, username string, addedBy int64) (model.Admin, error)
	Deactivate(ctx context.Context, telegramID int64) error
	ListActive(ctx context.Context) ([]model.Admin, error)
	IsActiveAdmin(ctx context.Context, telegramID int64) (bool, error)
}

type UserFinder interface {
	FindByUsername(ctx context.Context, username string) (model.User, error)
}

// Service manages the admin roster. The admins table is the single
// source of truth; the configured initial usernames only seed it.
type Service struct {
	store  Store
	users  UserFinder
	logger *zap.Logger
}

func NewService(store Store, users UserFinder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, users: users, logger: logger}
}

// SeedInitial grants admin rights to the configured usernames. Users
// who have never started the bot are skipped and picked up on a later
// boot; already-granted admins are left alone.
func (s *Service) SeedInitial(ctx context.Context, usernames []string) error {
	for _, username := range usernames {
		username = strings.TrimPrefix(strings.TrimSpace(username), "@")
		if username == "" {
			continue
		}

		user, err := s.users.FindByUsername(ctx, username)
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			s.logger.Info("initial admin has not started the bot yet", zap.String("username", username))
			continue
		}
		if err != nil {
			return fmt.Errorf("resolve initial admin %s: %w", username, err)
		}

		_, err = s.store.Add(ctx, user.TelegramID, user.Username, 0)
		if errors.Is(err, pgrepo.ErrAdminExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seed initial admin %s: %w", username, err)
		}
		s.logger.Info("seeded initial admin", zap.String("username", username), zap.Int64("telegram_id", user.TelegramID))
	}

	return nil
}

// Grant makes the named user an admin. The user must have started the
// bot at least once so their telegram id is known.
func (s *Service) Grant(ctx context.Context, actorID int64, username string) (model.Admin, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, pgrepo.ErrUserNotFound) {
		return model.Admin{}, ErrUnknownUser
	}
	if err != nil {
		return model.Admin{}, fmt.Errorf("resolve user %s: %w", username, err)
	}

	admin, err := s.store.Add(ctx, user.TelegramID, user.Username, actorID)
	if err != nil {
		return model.Admin{}, err
	}

	return admin, nil
}

func (s *Service) Revoke(ctx context.Context, actorID, telegramID int64) error {
	if actorID == telegramID {
		return ErrSelfRevoke
	}

	err := s.store.Deactivate(ctx, telegramID)
	if errors.Is(err, pgrepo.ErrAdminNotFound) {
		return ErrNotAdmin
	}
	return err
}

func (s *Service) List(ctx context.Context) ([]model.Admin, error) {
	return s.store.ListActive(ctx)
}

func (s *Service) IsAdmin(ctx context.Context, telegramID int64) (bool, error) {
	return s.store.IsActiveAdmin(ctx, telegramID)
}
