package reminder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abdulaziz-python/giftme/internal/domain/model"
)

const sweepBatchSize = 200

type userSource interface {
	ListInactiveSince(ctx context.Context, cutoff time.Time, limit int) ([]model.User, error)
	MarkReminderSent(ctx context.Context, telegramID int64, at time.Time) error
}

type sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Job nudges users who have gone quiet. Each user gets at most one
// reminder per inactivity stretch; any activity clears the mark and
// re-arms it.
type Job struct {
	users         userSource
	sender        sender
	inactiveAfter time.Duration
	interval      time.Duration
	message       string
	now           func() time.Time
	logger        *zap.Logger
}

func New(users userSource, sender sender, inactiveAfter, interval time.Duration, logger *zap.Logger) *Job {
	if inactiveAfter <= 0 {
		inactiveAfter = 72 * time.Hour
	}
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		users:         users,
		sender:        sender,
		inactiveAfter: inactiveAfter,
		interval:      interval,
		message:       "🎁 The gift roulette misses you! Come back and spin for a prize.",
		now:           time.Now,
		logger:        logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.inactiveAfter)

	users, err := j.users.ListInactiveSince(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return fmt.Errorf("list inactive users: %w", err)
	}
	if len(users) == 0 {
		return nil
	}

	var sent int
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := j.sender.SendText(ctx, user.TelegramID, j.message); err != nil {
			j.logger.Warn("send reminder failed",
				zap.Int64("telegram_id", user.TelegramID),
				zap.Error(err),
			)
			continue
		}

		// Mark even before the user reacts so the next sweep skips them.
		if err := j.users.MarkReminderSent(ctx, user.TelegramID, j.now().UTC()); err != nil {
			j.logger.Warn("mark reminder sent failed",
				zap.Int64("telegram_id", user.TelegramID),
				zap.Error(err),
			)
			continue
		}
		sent++
	}

	j.logger.Info("reminder sweep completed", zap.Int("candidates", len(users)), zap.Int("sent", sent))
	return nil
}

func (j *Job) Loop(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("reminder sweep failed", zap.Error(err))
			}
		}
	}
}
