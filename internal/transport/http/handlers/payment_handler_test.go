package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/abdulaziz-python/giftme/internal/domain/enums"
	"github.com/abdulaziz-python/giftme/internal/domain/model"
	pgrepo "github.com/abdulaziz-python/giftme/internal/repo/postgres"
	drawsvc "github.com/abdulaziz-python/giftme/internal/services/draw"
	paysvc "github.com/abdulaziz-python/giftme/internal/services/payments"
	roulettesvc "github.com/abdulaziz-python/giftme/internal/services/roulette"
)

// ledgerStub backs both the payment service and the settler so the
// webhook flow runs against one shared in-memory ledger.
type ledgerStub struct {
	payments map[string]*model.Payment
	wins     map[string]*model.Win
	prizes   []model.Prize
	session  *model.SpinSession
	draws    int
	nextID   int64
}

func newLedgerStub(prizes []model.Prize) *ledgerStub {
	return &ledgerStub{
		payments: make(map[string]*model.Payment),
		wins:     make(map[string]*model.Win),
		prizes:   prizes,
	}
}

func (s *ledgerStub) CreatePending(_ context.Context, userID int64, amount int, externalRef, method string) (model.Payment, error) {
	if _, ok := s.payments[externalRef]; ok {
		return model.Payment{}, pgrepo.ErrDuplicatePaymentRef
	}
	s.nextID++
	p := model.Payment{
		ID:            s.nextID,
		UserID:        userID,
		ExternalRef:   externalRef,
		Amount:        amount,
		Status:        enums.PaymentStatusPending,
		PaymentMethod: method,
	}
	s.payments[externalRef] = &p
	return p, nil
}

func (s *ledgerStub) FindByRef(_ context.Context, externalRef string) (model.Payment, error) {
	p, ok := s.payments[externalRef]
	if !ok {
		return model.Payment{}, pgrepo.ErrPaymentNotFound
	}
	return *p, nil
}

func (s *ledgerStub) MarkFailed(_ context.Context, externalRef string, _ time.Time) (model.Payment, error) {
	p, ok := s.payments[externalRef]
	if !ok {
		return model.Payment{}, pgrepo.ErrPaymentNotFound
	}
	p.Status = enums.PaymentStatusFailed
	return *p, nil
}

func (s *ledgerStub) MarkRefunded(_ context.Context, externalRef string, _ time.Time) (model.Payment, error) {
	p, ok := s.payments[externalRef]
	if !ok {
		return model.Payment{}, pgrepo.ErrPaymentNotFound
	}
	p.Status = enums.PaymentStatusRefunded
	return *p, nil
}

func (s *ledgerStub) Settle(_ context.Context, externalRef string, _ int, now time.Time, draw pgrepo.DrawFunc) (pgrepo.SettleResult, error) {
	p, ok := s.payments[externalRef]
	if !ok {
		return pgrepo.SettleResult{}, pgrepo.ErrPaymentNotFound
	}

	if p.Status == enums.PaymentStatusCompleted {
		result := pgrepo.SettleResult{Payment: *p, AlreadySettled: true}
		if win, ok := s.wins[externalRef]; ok {
			result.Win = win
			prize := s.prizes[0]
			result.Prize = &prize
		} else {
			result.NoPrize = true
		}
		return result, nil
	}
	if p.Status.IsTerminal() {
		return pgrepo.SettleResult{}, pgrepo.ErrInvalidPaymentTransition
	}

	p.Status = enums.PaymentStatusCompleted
	s.draws++

	prize, ok, err := draw(s.prizes)
	if err != nil {
		return pgrepo.SettleResult{}, err
	}
	if !ok {
		return pgrepo.SettleResult{Payment: *p, NoPrize: true}, nil
	}

	win := &model.Win{ID: int64(len(s.wins) + 1), UserID: p.UserID, PrizeID: prize.ID, WonAt: now}
	s.wins[externalRef] = win

	result := pgrepo.SettleResult{Payment: *p, Win: win, Prize: &prize}
	// Pending unexpired sessions pick up the result; an expired one is
	// left alone exactly like the settle transaction leaves it.
	if s.session != nil && s.session.UserID == p.UserID &&
		s.session.Status == enums.SessionStatusPending && s.session.ExpiresAt.After(now) {
		s.session.Status = enums.SessionStatusCompleted
		s.session.ResultPrizeID = &win.PrizeID
		result.Session = s.session
	}
	return result, nil
}

func newWebhookHandler(ledger *ledgerStub) *PaymentHandler {
	paymentService := paysvc.NewService(ledger, 10, "telegram_stars")
	rouletteService := roulettesvc.NewService(roulettesvc.Dependencies{
		Settler: ledger,
		Engine:  drawsvc.NewEngine(42),
	}, 100)
	return NewPaymentHandler(paymentService, rouletteService, zap.NewNop())
}

func TestPaymentWebhookSettlesOnce(t *testing.T) {
	ledger := newLedgerStub([]model.Prize{
		{ID: 7, GiftID: "premium_month_1", Name: "Premium Month", StarCost: 150, Weight: 1, IsActive: true},
	})
	h := newWebhookHandler(ledger)

	first := performWebhook(t, h, `{"external_ref":"charge-1","telegram_id":42,"amount":10}`)
	if first.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d, body %s", first.Code, http.StatusOK, first.Body.String())
	}

	var payload struct {
		Status         string `json:"status"`
		AlreadySettled bool   `json:"already_settled"`
		Prize          *struct {
			ID int64 `json:"id"`
		} `json:"prize"`
	}
	if err := json.Unmarshal(first.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "win" || payload.AlreadySettled {
		t.Fatalf("unexpected first outcome: %+v", payload)
	}
	if payload.Prize == nil || payload.Prize.ID != 7 {
		t.Fatalf("expected prize 7 in response, got %+v", payload.Prize)
	}

	replay := performWebhook(t, h, `{"external_ref":"charge-1","telegram_id":42,"amount":10}`)
	if replay.Code != http.StatusOK {
		t.Fatalf("unexpected replay status: got %d", replay.Code)
	}
	if err := json.Unmarshal(replay.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode replay: %v", err)
	}
	if !payload.AlreadySettled {
		t.Fatalf("expected replay to be marked already settled")
	}
	if ledger.draws != 1 {
		t.Fatalf("expected exactly one draw, got %d", ledger.draws)
	}
}

func TestPaymentWebhookSkipsExpiredSession(t *testing.T) {
	ledger := newLedgerStub([]model.Prize{
		{ID: 7, GiftID: "premium_month_1", Name: "Premium Month", StarCost: 150, Weight: 1, IsActive: true},
	})
	ledger.session = &model.SpinSession{
		ID:        1,
		UserID:    42,
		Token:     "stale-token",
		Status:    enums.SessionStatusPending,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
		ExpiresAt: time.Now().UTC().Add(-30 * time.Minute),
	}
	h := newWebhookHandler(ledger)

	resp := performWebhook(t, h, `{"external_ref":"charge-3","telegram_id":42,"amount":10}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d, body %s", resp.Code, resp.Body.String())
	}

	var payload struct {
		Status       string `json:"status"`
		SessionToken string `json:"session_token"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "win" {
		t.Fatalf("unexpected status field: %q", payload.Status)
	}
	if payload.SessionToken != "" {
		t.Fatalf("expired session leaked into response: %q", payload.SessionToken)
	}
	if ledger.session.Status != enums.SessionStatusPending {
		t.Fatalf("expired session mutated to %s", ledger.session.Status)
	}
	if ledger.session.ResultPrizeID != nil {
		t.Fatalf("expired session got a prize: %d", *ledger.session.ResultPrizeID)
	}
}

func TestPaymentWebhookCompletesFreshSession(t *testing.T) {
	ledger := newLedgerStub([]model.Prize{
		{ID: 7, GiftID: "premium_month_1", Name: "Premium Month", StarCost: 150, Weight: 1, IsActive: true},
	})
	ledger.session = &model.SpinSession{
		ID:        1,
		UserID:    42,
		Token:     "fresh-token",
		Status:    enums.SessionStatusPending,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(10 * time.Minute),
	}
	h := newWebhookHandler(ledger)

	resp := performWebhook(t, h, `{"external_ref":"charge-4","telegram_id":42,"amount":10}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d, body %s", resp.Code, resp.Body.String())
	}

	var payload struct {
		SessionToken string `json:"session_token"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.SessionToken != "fresh-token" {
		t.Fatalf("unexpected session token: %q", payload.SessionToken)
	}
	if ledger.session.Status != enums.SessionStatusCompleted {
		t.Fatalf("fresh session not completed, status %s", ledger.session.Status)
	}
}

func TestPaymentWebhookEmptyCatalogAsksForRefund(t *testing.T) {
	ledger := newLedgerStub(nil)
	h := newWebhookHandler(ledger)

	resp := performWebhook(t, h, `{"external_ref":"charge-2","telegram_id":42,"amount":10}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d, body %s", resp.Code, resp.Body.String())
	}

	var payload struct {
		Status         string `json:"status"`
		AlreadySettled bool   `json:"already_settled"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "refund_needed" || payload.AlreadySettled {
		t.Fatalf("unexpected first outcome: %+v", payload)
	}

	if got := ledger.payments["charge-2"].Status; got != enums.PaymentStatusCompleted {
		t.Fatalf("payment must still complete on empty catalog, got %s", got)
	}

	// A replayed notification repeats refund_needed but flags itself so
	// the caller does not queue a second refund.
	replay := performWebhook(t, h, `{"external_ref":"charge-2","telegram_id":42,"amount":10}`)
	if err := json.Unmarshal(replay.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode replay: %v", err)
	}
	if payload.Status != "refund_needed" || !payload.AlreadySettled {
		t.Fatalf("unexpected replay outcome: %+v", payload)
	}
}

func TestPaymentWebhookRejectsBadBody(t *testing.T) {
	h := newWebhookHandler(newLedgerStub(nil))

	resp := performWebhook(t, h, `{"external_ref":""}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", resp.Code, http.StatusBadRequest)
	}
}

func performWebhook(t *testing.T, h *PaymentHandler, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	h.Webhook(rec, req)
	return rec
}
