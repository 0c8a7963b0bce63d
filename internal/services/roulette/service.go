package roulette

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abdulaziz-python/giftme/internal/domain/model"
	pgrepo "github.com/abdulaziz-python/giftme/internal/repo/postgres"
	drawsvc "github.com/abdulaziz-python/giftme/internal/services/draw"
)

type Settler interface {
	Settle(ctx context.Context, externalRef string, maxCost int, now time.Time, draw pgrepo.DrawFunc) (pgrepo.SettleResult, error)
}

type Engine interface {
	DrawOne(prizes []model.Prize) (model.Prize, error)
}

// Notifier delivers the prize to the winner. Delivery is best effort;
// the win is durable before any notification is attempted.
type Notifier interface {
	NotifyWin(ctx context.Context, telegramID int64, prize model.Prize) error
}

// Result describes one settle attempt. Exactly one of the outcome
// shapes holds: a win (Prize set), or RefundNeeded when the catalog was
// empty at draw time.
type Result struct {
	Payment        model.Payment
	Win            *model.Win
	Prize          *model.Prize
	Session        *model.SpinSession
	AlreadySettled bool
	RefundNeeded   bool
	DeliveryFailed bool
}

type Dependencies struct {
	Settler  Settler
	Engine   Engine
	Notifier Notifier
	Logger   *zap.Logger
}

// Service is the settle orchestrator: one confirmed payment becomes at
// most one recorded win.
type Service struct {
	settler     Settler
	engine      Engine
	notifier    Notifier
	logger      *zap.Logger
	maxGiftCost int
	now         func() time.Time
}

func NewService(deps Dependencies, maxGiftCost int) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		settler:     deps.Settler,
		engine:      deps.Engine,
		notifier:    deps.Notifier,
		logger:      logger,
		maxGiftCost: maxGiftCost,
		now:         time.Now,
	}
}

// SettlePayment turns a confirmed provider payment into a recorded win.
// The draw and the win insert run inside the store's transaction, so a
// replayed reference echoes the original outcome instead of drawing
// again. When the catalog is empty the payment still completes and the
// result asks the caller to refund; a failed delivery never unwinds
// anything.
func (s *Service) SettlePayment(ctx context.Context, externalRef string) (Result, error) {
	now := s.now().UTC()

	drawFn := func(prizes []model.Prize) (model.Prize, bool, error) {
		prize, err := s.engine.DrawOne(prizes)
		if errors.Is(err, drawsvc.ErrNoEligiblePrizes) {
			return model.Prize{}, false, nil
		}
		if err != nil {
			return model.Prize{}, false, err
		}
		return prize, true, nil
	}

	settled, err := s.settler.Settle(ctx, externalRef, s.maxGiftCost, now, drawFn)
	if err != nil {
		return Result{}, fmt.Errorf("settle payment %s: %w", externalRef, err)
	}

	result := Result{
		Payment:        settled.Payment,
		Win:            settled.Win,
		Prize:          settled.Prize,
		Session:        settled.Session,
		AlreadySettled: settled.AlreadySettled,
	}

	if settled.NoPrize {
		result.RefundNeeded = !settled.AlreadySettled
		s.logger.Warn("settled payment with empty catalog",
			zap.String("external_ref", externalRef),
			zap.Int64("user_id", settled.Payment.UserID),
			zap.Bool("already_settled", settled.AlreadySettled),
		)
		return result, nil
	}

	if settled.AlreadySettled {
		s.logger.Info("duplicate settle echoed",
			zap.String("external_ref", externalRef),
			zap.Int64("user_id", settled.Payment.UserID),
		)
		return result, nil
	}

	if s.notifier != nil && settled.Prize != nil {
		if err := s.notifier.NotifyWin(ctx, settled.Payment.UserID, *settled.Prize); err != nil {
			result.DeliveryFailed = true
			s.logger.Warn("prize delivery failed",
				zap.String("external_ref", externalRef),
				zap.Int64("user_id", settled.Payment.UserID),
				zap.Int64("prize_id", settled.Prize.ID),
				zap.Error(err),
			)
		}
	}

	return result, nil
}
