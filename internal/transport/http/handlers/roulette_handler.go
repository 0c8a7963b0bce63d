package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/abdulaziz-python/giftme/internal/domain/model"
	pgrepo "github.com/abdulaziz-python/giftme/internal/repo/postgres"
	authsvc "github.com/abdulaziz-python/giftme/internal/services/auth"
	catalogsvc "github.com/abdulaziz-python/giftme/internal/services/catalog"
	paysvc "github.com/abdulaziz-python/giftme/internal/services/payments"
	spinsvc "github.com/abdulaziz-python/giftme/internal/services/spins"
	userssvc "github.com/abdulaziz-python/giftme/internal/services/users"
	"github.com/abdulaziz-python/giftme/internal/transport/http/dto"
	httperrors "github.com/abdulaziz-python/giftme/internal/transport/http/errors"
)

type RouletteHandler struct {
	catalog  *catalogsvc.Service
	spins    *spinsvc.Service
	payments *paysvc.Service
	users    *userssvc.Service
	logger   *zap.Logger
}

func NewRouletteHandler(
	catalog *catalogsvc.Service,
	spins *spinsvc.Service,
	payments *paysvc.Service,
	users *userssvc.Service,
	logger *zap.Logger,
) *RouletteHandler {
	return &RouletteHandler{
		catalog:  catalog,
		spins:    spins,
		payments: payments,
		users:    users,
		logger:   logger,
	}
}

// Gifts lists the drawable catalog plus the spin price so the client
// can render the wheel and the invoice button from one call.
func (h *RouletteHandler) Gifts(w http.ResponseWriter, r *http.Request) {
	prizes, err := h.catalog.ListEligible(r.Context())
	if err != nil {
		h.logger.Error("list gifts", zap.Error(err))
		writeInternal(w)
		return
	}

	resp := dto.PrizeListResponse{
		Prizes:   make([]dto.PrizeResponse, 0, len(prizes)),
		SpinCost: h.payments.SpinCost(),
	}
	for _, prize := range prizes {
		resp.Prizes = append(resp.Prizes, toPrizeDTO(prize))
	}

	httperrors.Write(w, http.StatusOK, resp)
}

// CreateSpinSession hands out a polling token for the spin animation.
func (h *RouletteHandler) CreateSpinSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	session, err := h.spins.CreateSession(r.Context(), identity.TelegramID)
	if errors.Is(err, spinsvc.ErrRateLimited) {
		httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
			Code:          "RATE_LIMITED",
			Message:       "too many spin sessions, slow down",
			RetryAfterSec: 60,
		})
		return
	}
	if err != nil {
		h.logger.Error("create spin session", zap.Error(err))
		writeInternal(w)
		return
	}

	httperrors.Write(w, http.StatusCreated, h.toSessionDTO(r, session))
}

// GetSpinSession polls a session by token. Tokens are unguessable but
// still scoped to their owner.
func (h *RouletteHandler) GetSpinSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	token := chi.URLParam(r, "token")
	session, err := h.spins.GetSession(r.Context(), token)
	if errors.Is(err, pgrepo.ErrSessionNotFound) {
		writeNotFound(w, "spin session not found")
		return
	}
	if err != nil {
		h.logger.Error("get spin session", zap.Error(err))
		writeInternal(w)
		return
	}
	if session.UserID != identity.TelegramID {
		writeNotFound(w, "spin session not found")
		return
	}

	httperrors.Write(w, http.StatusOK, h.toSessionDTO(r, session))
}

// Profile returns the caller's profile and win history.
func (h *RouletteHandler) Profile(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	user, wins, err := h.users.Profile(r.Context(), identity.TelegramID)
	if errors.Is(err, pgrepo.ErrUserNotFound) {
		writeNotFound(w, "user not found")
		return
	}
	if err != nil {
		h.logger.Error("load profile", zap.Error(err))
		writeInternal(w)
		return
	}

	resp := dto.ProfileResponse{
		TelegramID: user.TelegramID,
		Username:   user.Username,
		FirstName:  user.FirstName,
		IsPremium:  user.IsPremium,
		MemberFor:  int64(time.Since(user.CreatedAt).Hours() / 24),
		Wins:       make([]dto.WonPrizeResponse, 0, len(wins)),
	}
	for _, win := range wins {
		resp.Wins = append(resp.Wins, toWonPrizeDTO(win))
	}

	httperrors.Write(w, http.StatusOK, resp)
}

// Claim marks one of the caller's wins as claimed.
func (h *RouletteHandler) Claim(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	winID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || winID <= 0 {
		writeBadRequest(w, "invalid win id")
		return
	}

	win, err := h.users.Claim(r.Context(), identity.TelegramID, winID)
	switch {
	case errors.Is(err, pgrepo.ErrWinNotFound):
		writeNotFound(w, "win not found")
		return
	case errors.Is(err, pgrepo.ErrWinAlreadyClaimed):
		writeConflict(w, "win already claimed")
		return
	case err != nil:
		h.logger.Error("claim win", zap.Error(err))
		writeInternal(w)
		return
	}

	resp := dto.ClaimResponse{ID: win.ID, IsClaimed: win.IsClaimed}
	if win.ClaimedAt != nil {
		resp.ClaimedAt = *win.ClaimedAt
	}
	httperrors.Write(w, http.StatusOK, resp)
}

func (h *RouletteHandler) toSessionDTO(r *http.Request, session model.SpinSession) dto.SpinSessionResponse {
	resp := dto.SpinSessionResponse{
		Token:     session.Token,
		Status:    string(session.Status),
		ExpiresAt: session.ExpiresAt,
	}

	if session.ResultPrizeID != nil {
		prize, err := h.catalog.Find(r.Context(), *session.ResultPrizeID)
		if err != nil {
			h.logger.Warn("load session prize",
				zap.Int64("prize_id", *session.ResultPrizeID),
				zap.Error(err),
			)
		} else {
			p := toPrizeDTO(prize)
			resp.Prize = &p
		}
	}

	return resp
}

func toPrizeDTO(prize model.Prize) dto.PrizeResponse {
	return dto.PrizeResponse{
		ID:          prize.ID,
		GiftID:      prize.GiftID,
		Name:        prize.Name,
		Description: prize.Description,
		StarCost:    prize.StarCost,
		ImageURL:    prize.ImageURL,
		Rarity:      string(prize.Rarity),
		Weight:      prize.Weight,
		TotalWon:    prize.TotalWon,
	}
}

func toWonPrizeDTO(won pgrepo.WonPrize) dto.WonPrizeResponse {
	return dto.WonPrizeResponse{
		ID:        won.Win.ID,
		Prize:     toPrizeDTO(won.Prize),
		WonAt:     won.Win.WonAt,
		IsClaimed: won.Win.IsClaimed,
	}
}
