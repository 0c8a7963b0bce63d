package roulette

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/abdulaziz-python/giftme/internal/domain/enums"
	"github.com/abdulaziz-python/giftme/internal/domain/model"
	pgrepo "github.com/abdulaziz-python/giftme/internal/repo/postgres"
	drawsvc "github.com/abdulaziz-python/giftme/internal/services/draw"
)

type settlerStub struct {
	payments map[string]*model.Payment
	prizes   []model.Prize
	wins     map[int64]model.Win
	nextWin  int64
}

func newSettlerStub(prizes []model.Prize) *settlerStub {
	return &settlerStub{
		payments: make(map[string]*model.Payment),
		prizes:   prizes,
		wins:     make(map[int64]model.Win),
		nextWin:  1,
	}
}

func (s *settlerStub) addPayment(ref string, userID int64, status enums.PaymentStatus) {
	s.payments[ref] = &model.Payment{
		ID:          int64(len(s.payments) + 1),
		UserID:      userID,
		ExternalRef: ref,
		Amount:      10,
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	}
}

func (s *settlerStub) Settle(_ context.Context, ref string, maxCost int, now time.Time, draw pgrepo.DrawFunc) (pgrepo.SettleResult, error) {
	payment, ok := s.payments[ref]
	if !ok {
		return pgrepo.SettleResult{}, pgrepo.ErrPaymentNotFound
	}

	switch payment.Status {
	case enums.PaymentStatusCompleted:
		out := pgrepo.SettleResult{Payment: *payment, AlreadySettled: true}
		if win, exists := s.wins[payment.ID]; exists {
			prize := s.findPrize(win.PrizeID)
			out.Win = &win
			out.Prize = &prize
		} else {
			out.NoPrize = true
		}
		return out, nil
	case enums.PaymentStatusFailed, enums.PaymentStatusRefunded:
		return pgrepo.SettleResult{}, pgrepo.ErrInvalidPaymentTransition
	}

	payment.Status = enums.PaymentStatusCompleted
	payment.CompletedAt = &now

	var eligible []model.Prize
	for _, p := range s.prizes {
		if p.IsActive && (maxCost <= 0 || p.StarCost <= maxCost) {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) == 0 {
		return pgrepo.SettleResult{Payment: *payment, NoPrize: true}, nil
	}

	prize, ok2, err := draw(eligible)
	if err != nil {
		return pgrepo.SettleResult{}, err
	}
	if !ok2 {
		return pgrepo.SettleResult{Payment: *payment, NoPrize: true}, nil
	}

	paymentID := payment.ID
	win := model.Win{
		ID:        s.nextWin,
		UserID:    payment.UserID,
		PrizeID:   prize.ID,
		PaymentID: &paymentID,
		WonAt:     now,
	}
	s.nextWin++
	s.wins[payment.ID] = win

	return pgrepo.SettleResult{Payment: *payment, Win: &win, Prize: &prize}, nil
}

func (s *settlerStub) findPrize(id int64) model.Prize {
	for _, p := range s.prizes {
		if p.ID == id {
			return p
		}
	}
	return model.Prize{}
}

type notifierStub struct {
	calls int
	err   error
}

func (n *notifierStub) NotifyWin(context.Context, int64, model.Prize) error {
	n.calls++
	return n.err
}

func testPrizes() []model.Prize {
	return []model.Prize{
		{ID: 1, GiftID: "sticker", StarCost: 75, Weight: 0.6, IsActive: true},
		{ID: 2, GiftID: "emoji", StarCost: 100, Weight: 0.4, IsActive: true},
	}
}

func newTestService(settler Settler, notifier Notifier) *Service {
	return NewService(Dependencies{
		Settler:  settler,
		Engine:   drawsvc.NewEngine(1),
		Notifier: notifier,
	}, 100)
}

func TestSettlePaymentDrawsAndDelivers(t *testing.T) {
	settler := newSettlerStub(testPrizes())
	settler.addPayment("pay-1", 1001, enums.PaymentStatusPending)
	notifier := &notifierStub{}
	svc := newTestService(settler, notifier)

	result, err := svc.SettlePayment(context.Background(), "pay-1")
	if err != nil {
		t.Fatalf("settle payment: %v", err)
	}

	if result.Payment.Status != enums.PaymentStatusCompleted {
		t.Fatalf("payment not completed: %s", result.Payment.Status)
	}
	if result.Win == nil || result.Prize == nil {
		t.Fatalf("expected a win and a prize, got %+v", result)
	}
	if result.AlreadySettled || result.RefundNeeded || result.DeliveryFailed {
		t.Fatalf("unexpected outcome flags: %+v", result)
	}
	if notifier.calls != 1 {
		t.Fatalf("expected one delivery, got %d", notifier.calls)
	}
}

func TestSettlePaymentDuplicateEchoesWithoutSecondDraw(t *testing.T) {
	settler := newSettlerStub(testPrizes())
	settler.addPayment("pay-1", 1001, enums.PaymentStatusPending)
	notifier := &notifierStub{}
	svc := newTestService(settler, notifier)

	first, err := svc.SettlePayment(context.Background(), "pay-1")
	if err != nil {
		t.Fatalf("first settle: %v", err)
	}

	second, err := svc.SettlePayment(context.Background(), "pay-1")
	if err != nil {
		t.Fatalf("second settle: %v", err)
	}

	if !second.AlreadySettled {
		t.Fatal("second settle should be an echo")
	}
	if second.Win == nil || second.Win.ID != first.Win.ID {
		t.Fatalf("echo returned a different win: %+v vs %+v", second.Win, first.Win)
	}
	if second.Prize.ID != first.Prize.ID {
		t.Fatalf("echo returned a different prize: %d vs %d", second.Prize.ID, first.Prize.ID)
	}
	if notifier.calls != 1 {
		t.Fatalf("duplicate settle must not redeliver, got %d calls", notifier.calls)
	}
	if len(settler.wins) != 1 {
		t.Fatalf("expected exactly one win recorded, got %d", len(settler.wins))
	}
}

func TestSettlePaymentEmptyCatalogAsksForRefund(t *testing.T) {
	settler := newSettlerStub(nil)
	settler.addPayment("pay-1", 1001, enums.PaymentStatusPending)
	notifier := &notifierStub{}
	svc := newTestService(settler, notifier)

	result, err := svc.SettlePayment(context.Background(), "pay-1")
	if err != nil {
		t.Fatalf("settle payment: %v", err)
	}

	if !result.RefundNeeded {
		t.Fatal("empty catalog must request a refund")
	}
	if result.Payment.Status != enums.PaymentStatusCompleted {
		t.Fatalf("payment must still complete, got %s", result.Payment.Status)
	}
	if result.Win != nil {
		t.Fatal("no win should be recorded for an empty catalog")
	}
	if notifier.calls != 0 {
		t.Fatalf("nothing to deliver, got %d calls", notifier.calls)
	}

	// The duplicate echo of an empty-catalog settle must not ask for a
	// second refund.
	echo, err := svc.SettlePayment(context.Background(), "pay-1")
	if err != nil {
		t.Fatalf("echo settle: %v", err)
	}
	if !echo.AlreadySettled || echo.RefundNeeded {
		t.Fatalf("unexpected echo flags: %+v", echo)
	}
}

func TestSettlePaymentDeliveryFailureKeepsWin(t *testing.T) {
	settler := newSettlerStub(testPrizes())
	settler.addPayment("pay-1", 1001, enums.PaymentStatusPending)
	notifier := &notifierStub{err: errors.New("chat not found")}
	svc := newTestService(settler, notifier)

	result, err := svc.SettlePayment(context.Background(), "pay-1")
	if err != nil {
		t.Fatalf("settle payment: %v", err)
	}

	if !result.DeliveryFailed {
		t.Fatal("expected delivery failure flag")
	}
	if result.Win == nil {
		t.Fatal("win must survive a failed delivery")
	}
	if len(settler.wins) != 1 {
		t.Fatalf("expected the win to stay recorded, got %d", len(settler.wins))
	}
}

func TestSettlePaymentTerminalStateRejected(t *testing.T) {
	settler := newSettlerStub(testPrizes())
	settler.addPayment("pay-1", 1001, enums.PaymentStatusRefunded)
	svc := newTestService(settler, &notifierStub{})

	_, err := svc.SettlePayment(context.Background(), "pay-1")
	if !errors.Is(err, pgrepo.ErrInvalidPaymentTransition) {
		t.Fatalf("expected ErrInvalidPaymentTransition, got %v", err)
	}
}

func TestSettlePaymentUnknownRef(t *testing.T) {
	svc := newTestService(newSettlerStub(testPrizes()), &notifierStub{})

	_, err := svc.SettlePayment(context.Background(), "missing")
	if !errors.Is(err, pgrepo.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}
