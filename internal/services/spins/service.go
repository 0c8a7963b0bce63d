package spins

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/abdulaziz-python/giftme/internal/domain/enums"
	"github.com/abdulaziz-python/giftme/internal/domain/model"
	pgrepo "github.com/abdulaziz-python/giftme/internal/repo/postgres"
)

var ErrRateLimited = errors.New("spin session rate limit exceeded")

type SessionStore interface {
	Create(ctx context.Context, userID int64, ttl time.Duration, now time.Time) (model.SpinSession, error)
	FindByToken(ctx context.Context, token string) (model.SpinSession, error)
	Complete(ctx context.Context, token string, prizeID int64, now time.Time) (model.SpinSession, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type RateLimiter interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Service hands out short-lived spin sessions. A session is a polling
// token for the client animation; payment settlement works without one.
type Service struct {
	sessions  SessionStore
	rate      RateLimiter
	ttl       time.Duration
	perMinute int
	now       func() time.Time
}

func NewService(sessions SessionStore, rate RateLimiter, ttl time.Duration, perMinute int) *Service {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Service{
		sessions:  sessions,
		rate:      rate,
		ttl:       ttl,
		perMinute: perMinute,
		now:       time.Now,
	}
}

func (s *Service) CreateSession(ctx context.Context, telegramID int64) (model.SpinSession, error) {
	if telegramID <= 0 {
		return model.SpinSession{}, fmt.Errorf("invalid telegram id")
	}

	if s.rate != nil && s.perMinute > 0 {
		count, _, err := s.rate.IncrementWindow(ctx, rateKey(telegramID), time.Minute)
		if err != nil {
			return model.SpinSession{}, fmt.Errorf("check spin rate: %w", err)
		}
		if count > int64(s.perMinute) {
			return model.SpinSession{}, ErrRateLimited
		}
	}

	session, err := s.sessions.Create(ctx, telegramID, s.ttl, s.now().UTC())
	if err != nil {
		return model.SpinSession{}, fmt.Errorf("create spin session: %w", err)
	}

	return session, nil
}

// GetSession reads a session by token. Expiry is applied lazily: a
// pending session past its deadline is reported as expired without a
// write.
func (s *Service) GetSession(ctx context.Context, token string) (model.SpinSession, error) {
	session, err := s.sessions.FindByToken(ctx, token)
	if err != nil {
		return model.SpinSession{}, err
	}

	if session.Status == enums.SessionStatusPending && session.Expired(s.now().UTC()) {
		session.Status = enums.SessionStatusExpired
	}

	return session, nil
}

// CompleteSession resolves a pending session with its drawn prize. The
// settle transaction normally does this in-line; this path serves
// callers that resolve a session outside of it. An expired session is
// rejected untouched, even while still pending.
func (s *Service) CompleteSession(ctx context.Context, token string, prizeID int64) (model.SpinSession, error) {
	session, err := s.sessions.FindByToken(ctx, token)
	if err != nil {
		return model.SpinSession{}, err
	}

	if session.Status != enums.SessionStatusPending {
		return model.SpinSession{}, pgrepo.ErrSessionAlreadyCompleted
	}
	if session.Expired(s.now().UTC()) {
		return model.SpinSession{}, pgrepo.ErrSessionExpired
	}

	return s.sessions.Complete(ctx, token, prizeID, s.now().UTC())
}

// CleanupExpired drops pending sessions past their deadline and returns
// how many were removed.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpiredBefore(ctx, s.now().UTC())
}

func rateKey(telegramID int64) string {
	return "spin_rate:" + strconv.FormatInt(telegramID, 10)
}
