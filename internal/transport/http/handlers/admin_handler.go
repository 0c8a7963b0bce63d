package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/abdulaziz-python/giftme/internal/domain/enums"
	"github.com/abdulaziz-python/giftme/internal/domain/model"
	pgrepo "github.com/abdulaziz-python/giftme/internal/repo/postgres"
	adminsvc "github.com/abdulaziz-python/giftme/internal/services/admins"
	authsvc "github.com/abdulaziz-python/giftme/internal/services/auth"
	broadcastsvc "github.com/abdulaziz-python/giftme/internal/services/broadcast"
	catalogsvc "github.com/abdulaziz-python/giftme/internal/services/catalog"
	paysvc "github.com/abdulaziz-python/giftme/internal/services/payments"
	statssvc "github.com/abdulaziz-python/giftme/internal/services/stats"
	userssvc "github.com/abdulaziz-python/giftme/internal/services/users"
	"github.com/abdulaziz-python/giftme/internal/transport/http/dto"
	httperrors "github.com/abdulaziz-python/giftme/internal/transport/http/errors"
)

const broadcastListLimit = 20

type AdminHandler struct {
	stats      *statssvc.Service
	broadcasts *broadcastsvc.Service
	admins     *adminsvc.Service
	users      *userssvc.Service
	catalog    *catalogsvc.Service
	payments   *paysvc.Service
	logger     *zap.Logger
}

func NewAdminHandler(
	stats *statssvc.Service,
	broadcasts *broadcastsvc.Service,
	admins *adminsvc.Service,
	users *userssvc.Service,
	catalog *catalogsvc.Service,
	payments *paysvc.Service,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		stats:      stats,
		broadcasts: broadcasts,
		admins:     admins,
		users:      users,
		catalog:    catalog,
		payments:   payments,
		logger:     logger,
	}
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	overview, err := h.stats.Overview(r.Context())
	if err != nil {
		h.logger.Error("load stats overview", zap.Error(err))
		writeInternal(w)
		return
	}

	resp := dto.StatsOverviewResponse{
		Users: dto.UserStatsResponse{
			Total:       overview.Users.Total,
			ActiveToday: overview.Users.ActiveToday,
			ActiveWeek:  overview.Users.ActiveWeek,
			Premium:     overview.Users.Premium,
			Blocked:     overview.Users.Blocked,
		},
		Revenue: dto.RevenueStatsResponse{
			TotalStars:      overview.Revenue.TotalStars,
			CompletedCount:  overview.Revenue.CompletedCount,
			PendingCount:    overview.Revenue.PendingCount,
			RefundedCount:   overview.Revenue.RefundedCount,
			FailedCount:     overview.Revenue.FailedCount,
			RevenueToday:    overview.Revenue.RevenueToday,
			RevenueThisWeek: overview.Revenue.RevenueThisWeek,
		},
		Prizes: make([]dto.PrizeStatsResponse, 0, len(overview.Prizes)),
	}
	for _, prize := range overview.Prizes {
		resp.Prizes = append(resp.Prizes, dto.PrizeStatsResponse{
			PrizeID:  prize.PrizeID,
			Name:     prize.Name,
			Rarity:   prize.Rarity,
			TotalWon: prize.TotalWon,
			StarCost: prize.StarCost,
			IsActive: prize.IsActive,
		})
	}

	httperrors.Write(w, http.StatusOK, resp)
}

func (h *AdminHandler) CreateBroadcast(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req dto.BroadcastCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeBadRequest(w, "text is required")
		return
	}

	broadcast, err := h.broadcasts.CreateDraft(r.Context(), req.Title, req.Text, req.ImageURL, identity.TelegramID)
	if err != nil {
		h.logger.Error("create broadcast draft", zap.Error(err))
		writeInternal(w)
		return
	}

	httperrors.Write(w, http.StatusCreated, toBroadcastDTO(broadcast))
}

// LaunchBroadcast starts delivery in the background. The draft-to-sending
// transition in the store guarantees only one launcher wins even if the
// pre-check here races.
func (h *AdminHandler) LaunchBroadcast(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "invalid broadcast id")
		return
	}

	broadcast, err := h.broadcasts.Find(r.Context(), id)
	if errors.Is(err, pgrepo.ErrBroadcastNotFound) {
		writeNotFound(w, "broadcast not found")
		return
	}
	if err != nil {
		h.logger.Error("load broadcast", zap.Error(err))
		writeInternal(w)
		return
	}
	if broadcast.Status != enums.BroadcastStatusDraft {
		writeConflict(w, "broadcast already launched")
		return
	}

	go func() {
		ctx := context.WithoutCancel(r.Context())
		if _, err := h.broadcasts.Launch(ctx, id); err != nil && !errors.Is(err, pgrepo.ErrBroadcastNotDraft) {
			h.logger.Error("broadcast delivery failed", zap.Int64("broadcast_id", id), zap.Error(err))
		}
	}()

	httperrors.Write(w, http.StatusAccepted, toBroadcastDTO(broadcast))
}

func (h *AdminHandler) ListBroadcasts(w http.ResponseWriter, r *http.Request) {
	broadcasts, err := h.broadcasts.List(r.Context(), broadcastListLimit)
	if err != nil {
		h.logger.Error("list broadcasts", zap.Error(err))
		writeInternal(w)
		return
	}

	resp := dto.BroadcastListResponse{Broadcasts: make([]dto.BroadcastResponse, 0, len(broadcasts))}
	for _, b := range broadcasts {
		resp.Broadcasts = append(resp.Broadcasts, toBroadcastDTO(b))
	}

	httperrors.Write(w, http.StatusOK, resp)
}

func (h *AdminHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.admins.List(r.Context())
	if err != nil {
		h.logger.Error("list admins", zap.Error(err))
		writeInternal(w)
		return
	}

	resp := dto.AdminListResponse{Admins: make([]dto.AdminResponse, 0, len(admins))}
	for _, a := range admins {
		resp.Admins = append(resp.Admins, dto.AdminResponse{
			TelegramID: a.TelegramID,
			Username:   a.Username,
			AddedBy:    a.AddedBy,
			CreatedAt:  a.CreatedAt,
		})
	}

	httperrors.Write(w, http.StatusOK, resp)
}

func (h *AdminHandler) GrantAdmin(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req dto.AdminGrantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		writeBadRequest(w, "username is required")
		return
	}

	admin, err := h.admins.Grant(r.Context(), identity.TelegramID, req.Username)
	switch {
	case errors.Is(err, adminsvc.ErrUnknownUser):
		writeNotFound(w, "user has not started the bot")
		return
	case errors.Is(err, pgrepo.ErrAdminExists):
		writeConflict(w, "user is already an admin")
		return
	case err != nil:
		h.logger.Error("grant admin", zap.Error(err))
		writeInternal(w)
		return
	}

	httperrors.Write(w, http.StatusCreated, dto.AdminResponse{
		TelegramID: admin.TelegramID,
		Username:   admin.Username,
		AddedBy:    admin.AddedBy,
		CreatedAt:  admin.CreatedAt,
	})
}

func (h *AdminHandler) RevokeAdmin(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	telegramID, err := strconv.ParseInt(chi.URLParam(r, "telegram_id"), 10, 64)
	if err != nil || telegramID <= 0 {
		writeBadRequest(w, "invalid telegram id")
		return
	}

	err = h.admins.Revoke(r.Context(), identity.TelegramID, telegramID)
	switch {
	case errors.Is(err, adminsvc.ErrSelfRevoke):
		writeConflict(w, "cannot revoke own admin rights")
		return
	case errors.Is(err, adminsvc.ErrNotAdmin):
		writeNotFound(w, "admin not found")
		return
	case err != nil:
		h.logger.Error("revoke admin", zap.Error(err))
		writeInternal(w)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.LogoutResponse{OK: true})
}

func (h *AdminHandler) BlockUser(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, true)
}

func (h *AdminHandler) UnblockUser(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, false)
}

func (h *AdminHandler) setBlocked(w http.ResponseWriter, r *http.Request, blocked bool) {
	telegramID, err := strconv.ParseInt(chi.URLParam(r, "telegram_id"), 10, 64)
	if err != nil || telegramID <= 0 {
		writeBadRequest(w, "invalid telegram id")
		return
	}

	var user model.User
	if blocked {
		user, err = h.users.Block(r.Context(), telegramID)
	} else {
		user, err = h.users.Unblock(r.Context(), telegramID)
	}
	if errors.Is(err, pgrepo.ErrUserNotFound) {
		writeNotFound(w, "user not found")
		return
	}
	if err != nil {
		h.logger.Error("set user blocked", zap.Bool("blocked", blocked), zap.Error(err))
		writeInternal(w)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.UserBlockResponse{
		TelegramID: user.TelegramID,
		IsBlocked:  user.IsBlocked,
	})
}

// SetPrizeActive flips a catalog entry in or out of the drawable set.
func (h *AdminHandler) SetPrizeActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "invalid prize id")
		return
	}

	var req dto.PrizeActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	prize, err := h.catalog.SetActive(r.Context(), id, req.IsActive)
	if errors.Is(err, pgrepo.ErrPrizeNotFound) {
		writeNotFound(w, "prize not found")
		return
	}
	if err != nil {
		h.logger.Error("set prize active", zap.Error(err))
		writeInternal(w)
		return
	}

	httperrors.Write(w, http.StatusOK, toPrizeDTO(prize))
}

// RefundPayment marks a ledger row refunded after the operator moved
// the stars back out of band. Only pending payments accept it.
func (h *AdminHandler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	h.terminatePayment(w, r, h.payments.Refund)
}

// FailPayment marks a pending payment as failed.
func (h *AdminHandler) FailPayment(w http.ResponseWriter, r *http.Request) {
	h.terminatePayment(w, r, h.payments.Fail)
}

func (h *AdminHandler) terminatePayment(w http.ResponseWriter, r *http.Request, transition func(context.Context, string) (model.Payment, error)) {
	externalRef := strings.TrimSpace(chi.URLParam(r, "external_ref"))
	if externalRef == "" {
		writeBadRequest(w, "invalid payment reference")
		return
	}

	payment, err := transition(r.Context(), externalRef)
	switch {
	case errors.Is(err, pgrepo.ErrPaymentNotFound):
		writeNotFound(w, "payment not found")
		return
	case errors.Is(err, pgrepo.ErrInvalidPaymentTransition):
		writeConflict(w, "payment is already terminal")
		return
	case err != nil:
		h.logger.Error("terminate payment", zap.String("external_ref", externalRef), zap.Error(err))
		writeInternal(w)
		return
	}

	httperrors.Write(w, http.StatusOK, payment)
}

func toBroadcastDTO(b model.Broadcast) dto.BroadcastResponse {
	return dto.BroadcastResponse{
		ID:          b.ID,
		Title:       b.Title,
		Status:      string(b.Status),
		TargetUsers: b.TargetUsers,
		SentCount:   b.SentCount,
		FailedCount: b.FailedCount,
		CreatedAt:   b.CreatedAt,
		StartedAt:   b.StartedAt,
		CompletedAt: b.CompletedAt,
	}
}
