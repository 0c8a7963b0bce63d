package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abdulaziz-python/giftme/internal/domain/model"
	pgrepo "github.com/abdulaziz-python/giftme/internal/repo/postgres"
)

var (
	ErrValidation  = errors.New("validation error")
	ErrWrongAmount = errors.New("payment amount does not match spin cost")
)

type PaymentStore interface {
	CreatePending(ctx context.Context, userID int64, amount int, externalRef, method string) (model.Payment, error)
	FindByRef(ctx context.Context, externalRef string) (model.Payment, error)
	MarkFailed(ctx context.Context, externalRef string, now time.Time) (model.Payment, error)
	MarkRefunded(ctx context.Context, externalRef string, now time.Time) (model.Payment, error)
}

// Service owns the payment ledger. Settling a completed payment into a
// win lives in the roulette service; this one records attempts and
// terminal failures.
type Service struct {
	store    PaymentStore
	spinCost int
	method   string
	now      func() time.Time
}

func NewService(store PaymentStore, spinCost int, method string) *Service {
	if spinCost <= 0 {
		spinCost = 10
	}
	if method == "" {
		method = "telegram_stars"
	}
	return &Service{
		store:    store,
		spinCost: spinCost,
		method:   method,
		now:      time.Now,
	}
}

func (s *Service) SpinCost() int {
	return s.spinCost
}

// PreCheck gates the provider's pre-checkout callback. Only exact spin
// price invoices are approved.
func (s *Service) PreCheck(_ context.Context, userID int64, amount int) error {
	if userID <= 0 {
		return ErrValidation
	}
	if amount != s.spinCost {
		return fmt.Errorf("got %d, want %d: %w", amount, s.spinCost, ErrWrongAmount)
	}
	return nil
}

// RecordAttempt writes a pending ledger row for a provider reference.
// A duplicate reference echoes the stored row with created=false so a
// replayed notification cannot double-book.
func (s *Service) RecordAttempt(ctx context.Context, userID int64, amount int, externalRef string) (model.Payment, bool, error) {
	externalRef = strings.TrimSpace(externalRef)
	if userID <= 0 || amount <= 0 || externalRef == "" {
		return model.Payment{}, false, ErrValidation
	}

	payment, err := s.store.CreatePending(ctx, userID, amount, externalRef, s.method)
	if errors.Is(err, pgrepo.ErrDuplicatePaymentRef) {
		existing, findErr := s.store.FindByRef(ctx, externalRef)
		if findErr != nil {
			return model.Payment{}, false, fmt.Errorf("load duplicate payment: %w", findErr)
		}
		return existing, false, nil
	}
	if err != nil {
		return model.Payment{}, false, fmt.Errorf("record payment attempt: %w", err)
	}

	return payment, true, nil
}

func (s *Service) Find(ctx context.Context, externalRef string) (model.Payment, error) {
	return s.store.FindByRef(ctx, externalRef)
}

func (s *Service) Fail(ctx context.Context, externalRef string) (model.Payment, error) {
	payment, err := s.store.MarkFailed(ctx, externalRef, s.now().UTC())
	if err != nil {
		return model.Payment{}, err
	}
	return payment, nil
}

func (s *Service) Refund(ctx context.Context, externalRef string) (model.Payment, error) {
	payment, err := s.store.MarkRefunded(ctx, externalRef, s.now().UTC())
	if err != nil {
		return model.Payment{}, err
	}
	return payment, nil
}
