package broadcast

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abdulaziz-python/giftme/internal/domain/enums"
	"github.com/abdulaziz-python/giftme/internal/domain/model"
)

type Store interface {
	CreateDraft(ctx context.Context, title, text, imageURL string, createdBy, targetUsers int64) (model.Broadcast, error)
	Find(ctx context.Context, id int64) (model.Broadcast, error)
	List(ctx context.Context, limit int) ([]model.Broadcast, error)
	MarkSending(ctx context.Context, id, targetUsers int64, at time.Time) (model.Broadcast, error)
	UpdateProgress(ctx context.Context, id, sent, failed int64) error
	Finish(ctx context.Context, id int64, status enums.BroadcastStatus, sent, failed int64, at time.Time) (model.Broadcast, error)
	InsertLog(ctx context.Context, broadcastID, userID int64, delivered bool, errText string, at time.Time) error
}

type UserSource interface {
	ListTelegramIDs(ctx context.Context, includeBlocked bool) ([]int64, error)
}

// Sender pushes one broadcast message to one chat.
type Sender interface {
	SendBroadcast(ctx context.Context, telegramID int64, text, imageURL string) error
}

type Dependencies struct {
	Store  Store
	Users  UserSource
	Sender Sender
	Logger *zap.Logger

	// RetryAfter reads a flood-wait hint out of a send error. Optional;
	// without it only the fixed batch pause paces the run.
	RetryAfter func(error) time.Duration
}

// Service fans a message out to every unblocked user in paced batches
// so the bot stays under Telegram's send limits.
type Service struct {
	store      Store
	users      UserSource
	sender     Sender
	logger     *zap.Logger
	retryAfter func(error) time.Duration
	batchSize  int
	batchPause time.Duration
	now        func() time.Time
}

func NewService(deps Dependencies, batchSize int, batchPause time.Duration) *Service {
	if batchSize <= 0 {
		batchSize = 25
	}
	if batchPause <= 0 {
		batchPause = time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      deps.Store,
		users:      deps.Users,
		sender:     deps.Sender,
		logger:     logger,
		retryAfter: deps.RetryAfter,
		batchSize:  batchSize,
		batchPause: batchPause,
		now:        time.Now,
	}
}

func (s *Service) CreateDraft(ctx context.Context, title, text, imageURL string, createdBy int64) (model.Broadcast, error) {
	return s.store.CreateDraft(ctx, title, text, imageURL, createdBy, 0)
}

func (s *Service) Find(ctx context.Context, id int64) (model.Broadcast, error) {
	return s.store.Find(ctx, id)
}

func (s *Service) List(ctx context.Context, limit int) ([]model.Broadcast, error) {
	return s.store.List(ctx, limit)
}

// Launch claims a draft and delivers it synchronously. Callers that
// want fire-and-forget run it in a goroutine with a detached context;
// only one launcher can win the draft-to-sending transition.
func (s *Service) Launch(ctx context.Context, id int64) (model.Broadcast, error) {
	recipients, err := s.users.ListTelegramIDs(ctx, false)
	if err != nil {
		return model.Broadcast{}, fmt.Errorf("list broadcast recipients: %w", err)
	}

	claimed, err := s.store.MarkSending(ctx, id, int64(len(recipients)), s.now().UTC())
	if err != nil {
		return model.Broadcast{}, err
	}

	return s.deliver(ctx, claimed, recipients)
}

func (s *Service) deliver(ctx context.Context, b model.Broadcast, recipients []int64) (model.Broadcast, error) {
	var sent, failed int64

	for i, telegramID := range recipients {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("broadcast interrupted",
				zap.Int64("broadcast_id", b.ID),
				zap.Int64("sent", sent),
				zap.Int64("failed", failed),
			)
			return s.store.Finish(ctx, b.ID, enums.BroadcastStatusFailed, sent, failed, s.now().UTC())
		}

		sendErr := s.sender.SendBroadcast(ctx, telegramID, b.Text, b.ImageURL)
		if sendErr != nil {
			failed++
			if logErr := s.store.InsertLog(ctx, b.ID, telegramID, false, sendErr.Error(), s.now().UTC()); logErr != nil {
				s.logger.Warn("write broadcast log", zap.Error(logErr))
			}
			if wait := s.floodWait(sendErr); wait > 0 {
				s.logger.Warn("broadcast flood wait",
					zap.Int64("broadcast_id", b.ID),
					zap.Duration("wait", wait),
				)
				select {
				case <-ctx.Done():
				case <-time.After(wait):
				}
			}
		} else {
			sent++
			if logErr := s.store.InsertLog(ctx, b.ID, telegramID, true, "", s.now().UTC()); logErr != nil {
				s.logger.Warn("write broadcast log", zap.Error(logErr))
			}
		}

		if (i+1)%s.batchSize == 0 && i+1 < len(recipients) {
			if err := s.store.UpdateProgress(ctx, b.ID, sent, failed); err != nil {
				s.logger.Warn("update broadcast progress", zap.Error(err))
			}
			select {
			case <-ctx.Done():
			case <-time.After(s.batchPause):
			}
		}
	}

	status := enums.BroadcastStatusCompleted
	if len(recipients) > 0 && sent == 0 {
		status = enums.BroadcastStatusFailed
	}

	finished, err := s.store.Finish(ctx, b.ID, status, sent, failed, s.now().UTC())
	if err != nil {
		return model.Broadcast{}, fmt.Errorf("finish broadcast: %w", err)
	}

	s.logger.Info("broadcast finished",
		zap.Int64("broadcast_id", finished.ID),
		zap.String("status", string(finished.Status)),
		zap.Int64("sent", sent),
		zap.Int64("failed", failed),
	)

	return finished, nil
}

func (s *Service) floodWait(err error) time.Duration {
	if s.retryAfter == nil {
		return 0
	}
	return s.retryAfter(err)
}
