package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/abdulaziz-python/giftme/internal/domain/enums"
	"github.com/abdulaziz-python/giftme/internal/domain/model"
	pgrepo "github.com/abdulaziz-python/giftme/internal/repo/postgres"
)

type paymentStoreStub struct {
	nextID int64
	byRef  map[string]model.Payment
}

func newPaymentStoreStub() *paymentStoreStub {
	return &paymentStoreStub{nextID: 1, byRef: make(map[string]model.Payment)}
}

func (s *paymentStoreStub) CreatePending(_ context.Context, userID int64, amount int, ref, method string) (model.Payment, error) {
	if _, exists := s.byRef[ref]; exists {
		return model.Payment{}, pgrepo.ErrDuplicatePaymentRef
	}

	payment := model.Payment{
		ID:            s.nextID,
		UserID:        userID,
		ExternalRef:   ref,
		Amount:        amount,
		Status:        enums.PaymentStatusPending,
		PaymentMethod: method,
		CreatedAt:     time.Now().UTC(),
	}
	s.nextID++
	s.byRef[ref] = payment
	return payment, nil
}

func (s *paymentStoreStub) FindByRef(_ context.Context, ref string) (model.Payment, error) {
	payment, ok := s.byRef[ref]
	if !ok {
		return model.Payment{}, pgrepo.ErrPaymentNotFound
	}
	return payment, nil
}

func (s *paymentStoreStub) MarkFailed(_ context.Context, ref string, now time.Time) (model.Payment, error) {
	return s.markTerminal(ref, enums.PaymentStatusFailed, now)
}

func (s *paymentStoreStub) MarkRefunded(_ context.Context, ref string, now time.Time) (model.Payment, error) {
	return s.markTerminal(ref, enums.PaymentStatusRefunded, now)
}

func (s *paymentStoreStub) markTerminal(ref string, status enums.PaymentStatus, now time.Time) (model.Payment, error) {
	payment, ok := s.byRef[ref]
	if !ok {
		return model.Payment{}, pgrepo.ErrPaymentNotFound
	}
	if payment.Status == status {
		return payment, nil
	}
	if payment.Status.IsTerminal() {
		return model.Payment{}, pgrepo.ErrInvalidPaymentTransition
	}
	payment.Status = status
	payment.CompletedAt = &now
	s.byRef[ref] = payment
	return payment, nil
}

func TestPreCheckRejectsWrongAmount(t *testing.T) {
	svc := NewService(newPaymentStoreStub(), 10, "telegram_stars")

	if err := svc.PreCheck(context.Background(), 1001, 10); err != nil {
		t.Fatalf("exact amount rejected: %v", err)
	}
	if err := svc.PreCheck(context.Background(), 1001, 25); !errors.Is(err, ErrWrongAmount) {
		t.Fatalf("expected ErrWrongAmount, got %v", err)
	}
	if err := svc.PreCheck(context.Background(), 0, 10); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRecordAttemptIsIdempotentOnRef(t *testing.T) {
	store := newPaymentStoreStub()
	svc := NewService(store, 10, "telegram_stars")

	first, created, err := svc.RecordAttempt(context.Background(), 1001, 10, "ref-1")
	if err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	if !created {
		t.Fatal("first attempt should create a row")
	}

	second, created, err := svc.RecordAttempt(context.Background(), 1001, 10, "ref-1")
	if err != nil {
		t.Fatalf("duplicate attempt: %v", err)
	}
	if created {
		t.Fatal("duplicate attempt must not create a second row")
	}
	if second.ID != first.ID {
		t.Fatalf("duplicate attempt returned a different row: %d vs %d", second.ID, first.ID)
	}
	if len(store.byRef) != 1 {
		t.Fatalf("expected one ledger row, got %d", len(store.byRef))
	}
}

func TestRecordAttemptValidation(t *testing.T) {
	svc := NewService(newPaymentStoreStub(), 10, "telegram_stars")

	if _, _, err := svc.RecordAttempt(context.Background(), 0, 10, "ref"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for bad user, got %v", err)
	}
	if _, _, err := svc.RecordAttempt(context.Background(), 1, 0, "ref"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for bad amount, got %v", err)
	}
	if _, _, err := svc.RecordAttempt(context.Background(), 1, 10, "  "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for empty ref, got %v", err)
	}
}

func TestFailAndRefundTransitions(t *testing.T) {
	store := newPaymentStoreStub()
	svc := NewService(store, 10, "telegram_stars")

	if _, _, err := svc.RecordAttempt(context.Background(), 1001, 10, "ref-1"); err != nil {
		t.Fatalf("record attempt: %v", err)
	}

	failed, err := svc.Fail(context.Background(), "ref-1")
	if err != nil {
		t.Fatalf("fail payment: %v", err)
	}
	if failed.Status != enums.PaymentStatusFailed {
		t.Fatalf("unexpected status: %s", failed.Status)
	}

	// Failed is terminal; a refund now is an invalid transition.
	if _, err := svc.Refund(context.Background(), "ref-1"); !errors.Is(err, pgrepo.ErrInvalidPaymentTransition) {
		t.Fatalf("expected ErrInvalidPaymentTransition, got %v", err)
	}

	// Repeating the same terminal transition echoes.
	again, err := svc.Fail(context.Background(), "ref-1")
	if err != nil {
		t.Fatalf("repeat fail: %v", err)
	}
	if again.Status != enums.PaymentStatusFailed {
		t.Fatalf("unexpected status on echo: %s", again.Status)
	}
}
