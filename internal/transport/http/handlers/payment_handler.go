package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	pgrepo "github.com/abdulaziz-python/giftme/internal/repo/postgres"
	paysvc "github.com/abdulaziz-python/giftme/internal/services/payments"
	roulettesvc "github.com/abdulaziz-python/giftme/internal/services/roulette"
	"github.com/abdulaziz-python/giftme/internal/transport/http/dto"
	httperrors "github.com/abdulaziz-python/giftme/internal/transport/http/errors"
)

type PaymentHandler struct {
	payments *paysvc.Service
	roulette *roulettesvc.Service
	logger   *zap.Logger
}

func NewPaymentHandler(payments *paysvc.Service, roulette *roulettesvc.Service, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, roulette: roulette, logger: logger}
}

// Webhook settles a provider-confirmed payment into a win. The external
// reference is the idempotency key: a replayed notification echoes the
// original outcome and never draws a second prize.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var req dto.PaymentWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ExternalRef) == "" || req.TelegramID <= 0 || req.Amount <= 0 {
		writeBadRequest(w, "external_ref, telegram_id and amount are required")
		return
	}

	if _, _, err := h.payments.RecordAttempt(r.Context(), req.TelegramID, req.Amount, req.ExternalRef); err != nil {
		if errors.Is(err, paysvc.ErrValidation) {
			writeBadRequest(w, "invalid payment attempt")
			return
		}
		h.logger.Error("record payment attempt", zap.String("external_ref", req.ExternalRef), zap.Error(err))
		writeInternal(w)
		return
	}

	result, err := h.roulette.SettlePayment(r.Context(), req.ExternalRef)
	switch {
	case errors.Is(err, pgrepo.ErrPaymentNotFound):
		writeNotFound(w, "payment not found")
		return
	case errors.Is(err, pgrepo.ErrInvalidPaymentTransition):
		writeConflict(w, "payment is not settleable")
		return
	case err != nil:
		h.logger.Error("settle payment", zap.String("external_ref", req.ExternalRef), zap.Error(err))
		writeInternal(w)
		return
	}

	resp := dto.PaymentWebhookResponse{
		Status:         "win",
		AlreadySettled: result.AlreadySettled,
	}
	if result.RefundNeeded || (result.Prize == nil && result.Win == nil) {
		resp.Status = "refund_needed"
	}
	if result.Prize != nil {
		p := toPrizeDTO(*result.Prize)
		resp.Prize = &p
	}
	if result.Session != nil {
		resp.SessionToken = result.Session.Token
	}

	httperrors.Write(w, http.StatusOK, resp)
}
