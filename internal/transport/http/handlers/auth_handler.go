package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	authsvc "github.com/abdulaziz-python/giftme/internal/services/auth"
	"github.com/abdulaziz-python/giftme/internal/transport/http/dto"
	httperrors "github.com/abdulaziz-python/giftme/internal/transport/http/errors"
)

type AuthHandler struct {
	auth   *authsvc.Service
	logger *zap.Logger
}

func NewAuthHandler(auth *authsvc.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// Telegram exchanges signed WebApp init data for a token pair.
func (h *AuthHandler) Telegram(w http.ResponseWriter, r *http.Request) {
	var req dto.TelegramAuthRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if strings.TrimSpace(req.InitData) == "" {
		writeBadRequest(w, "init_data is required")
		return
	}

	result, err := h.auth.LoginTelegram(r.Context(), req.InitData)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, toAuthTokens(result))
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	result, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, toAuthTokens(result))
}

// Logout closes the calling session only.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	if err := h.auth.Logout(r.Context(), identity.SID); err != nil {
		h.handleAuthError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.LogoutResponse{OK: true})
}

// LogoutAll closes every session of the calling user.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	if err := h.auth.LogoutAll(r.Context(), identity.TelegramID); err != nil {
		h.handleAuthError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.LogoutResponse{OK: true})
}

func (h *AuthHandler) handleAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authsvc.ErrInvalidInput):
		writeBadRequest(w, "invalid input")
	case errors.Is(err, authsvc.ErrInvalidAuthData):
		writeUnauthorized(w)
	case errors.Is(err, authsvc.ErrUserBlocked):
		httperrors.Write(w, http.StatusForbidden, httperrors.APIError{
			Code:    "USER_BLOCKED",
			Message: "user is blocked",
		})
	case errors.Is(err, authsvc.ErrUnauthorized):
		writeUnauthorized(w)
	default:
		h.logger.Error("auth request failed", zap.Error(err))
		writeInternal(w)
	}
}

func toAuthTokens(result authsvc.AuthResult) dto.AuthTokensResponse {
	return dto.AuthTokensResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresInSec: maxInt64(0, int64(time.Until(result.AccessExpires).Seconds())),
		Me: dto.AuthMeResponse{
			TelegramID: result.Me.TelegramID,
			Username:   result.Me.Username,
			FirstName:  result.Me.FirstName,
			Role:       result.Me.Role,
			IsPremium:  result.Me.IsPremium,
		},
	}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{
		Code:    "BAD_REQUEST",
		Message: message,
	})
}

func writeUnauthorized(w http.ResponseWriter) {
	httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{
		Code:    "UNAUTHORIZED",
		Message: "authentication required",
	})
}

func writeNotFound(w http.ResponseWriter, message string) {
	httperrors.Write(w, http.StatusNotFound, httperrors.APIError{
		Code:    "NOT_FOUND",
		Message: message,
	})
}

func writeConflict(w http.ResponseWriter, message string) {
	httperrors.Write(w, http.StatusConflict, httperrors.APIError{
		Code:    "CONFLICT",
		Message: message,
	})
}

func writeInternal(w http.ResponseWriter) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "internal server error",
	})
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
