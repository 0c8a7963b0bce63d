package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abdulaziz-python/giftme/internal/domain/enums"
	"github.com/abdulaziz-python/giftme/internal/domain/model"
)

const (
	MinRefreshTTL = 24 * time.Hour
	MaxRefreshTTL = 90 * 24 * time.Hour

	// DefaultInitDataMaxAge bounds how stale a signed init data payload
	// may be before login rejects it.
	DefaultInitDataMaxAge = 24 * time.Hour
)

type SessionStore interface {
	Create(ctx context.Context, session SessionRecord, refreshToken string) error
	GetSession(ctx context.Context, sid string) (SessionRecord, error)
	GetByRefreshToken(ctx context.Context, refreshToken string) (SessionRecord, error)
	RotateRefresh(ctx context.Context, sid, oldRefreshToken, newRefreshToken string, expiresAt time.Time) error
	DeleteSession(ctx context.Context, sid string) error
	DeleteAllForUser(ctx context.Context, telegramID int64) error
}

type UserStore interface {
	GetOrCreate(ctx context.Context, u model.User) (model.User, error)
}

type AdminChecker interface {
	IsActiveAdmin(ctx context.Context, telegramID int64) (bool, error)
}

type Dependencies struct {
	JWT      *JWTManager
	Sessions SessionStore
	Users    UserStore
	Admins   AdminChecker
}

type Service struct {
	jwt            *JWTManager
	sessions       SessionStore
	users          UserStore
	admins         AdminChecker
	botToken       string
	refreshTTL     time.Duration
	initDataMaxAge time.Duration
	now            func() time.Time
}

func NewService(deps Dependencies, botToken string, refreshTTL time.Duration) *Service {
	if refreshTTL < MinRefreshTTL {
		refreshTTL = MinRefreshTTL
	}
	if refreshTTL > MaxRefreshTTL {
		refreshTTL = MaxRefreshTTL
	}

	return &Service{
		jwt:            deps.JWT,
		sessions:       deps.Sessions,
		users:          deps.Users,
		admins:         deps.Admins,
		botToken:       botToken,
		refreshTTL:     refreshTTL,
		initDataMaxAge: DefaultInitDataMaxAge,
		now:            time.Now,
	}
}

// LoginTelegram verifies signed WebApp init data, upserts the user's
// profile, and opens a session. Blocked users authenticate successfully
// at the crypto level but are still refused.
func (s *Service) LoginTelegram(ctx context.Context, initData string) (AuthResult, error) {
	tgUser, err := VerifyInitData(initData, s.botToken, s.initDataMaxAge, s.now().UTC())
	if err != nil {
		return AuthResult{}, err
	}

	user, err := s.users.GetOrCreate(ctx, model.User{
		TelegramID:   tgUser.ID,
		Username:     tgUser.Username,
		FirstName:    tgUser.FirstName,
		LastName:     tgUser.LastName,
		LanguageCode: tgUser.LanguageCode,
		IsPremium:    tgUser.IsPremium,
	})
	if err != nil {
		return AuthResult{}, fmt.Errorf("upsert user: %w", err)
	}
	if user.IsBlocked {
		return AuthResult{}, ErrUserBlocked
	}

	role := enums.RoleUser
	if s.admins != nil {
		isAdmin, err := s.admins.IsActiveAdmin(ctx, user.TelegramID)
		if err != nil {
			return AuthResult{}, fmt.Errorf("resolve role: %w", err)
		}
		if isAdmin {
			role = enums.RoleAdmin
		}
	}

	result, err := s.issueForUser(ctx, user.TelegramID, string(role))
	if err != nil {
		return AuthResult{}, err
	}

	result.Me.Username = user.Username
	result.Me.FirstName = user.FirstName
	result.Me.IsPremium = user.IsPremium
	return result, nil
}

func (s *Service) issueForUser(ctx context.Context, telegramID int64, role string) (AuthResult, error) {
	sid, err := NewSessionID()
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate session id: %w", err)
	}

	refreshToken, err := NewRefreshToken()
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate refresh token: %w", err)
	}

	expiresAt := s.now().UTC().Add(s.refreshTTL)
	session := SessionRecord{
		SID:        sid,
		TelegramID: telegramID,
		Role:       role,
		ExpiresAt:  expiresAt,
	}
	if err := s.sessions.Create(ctx, session, refreshToken); err != nil {
		return AuthResult{}, fmt.Errorf("create session: %w", err)
	}

	accessToken, accessExpires, err := s.jwt.GenerateAccessToken(telegramID, sid, role)
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate access token: %w", err)
	}

	return AuthResult{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		AccessExpires: accessExpires,
		Me: Me{
			TelegramID: telegramID,
			Role:       role,
		},
	}, nil
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return AuthResult{}, ErrInvalidInput
	}

	session, err := s.sessions.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshNotFound) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, fmt.Errorf("get refresh token session: %w", err)
	}
	if s.now().After(session.ExpiresAt) {
		return AuthResult{}, ErrUnauthorized
	}

	newRefreshToken, err := NewRefreshToken()
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate refresh token: %w", err)
	}

	newExpiresAt := s.now().UTC().Add(s.refreshTTL)
	if err := s.sessions.RotateRefresh(ctx, session.SID, refreshToken, newRefreshToken, newExpiresAt); err != nil {
		if errors.Is(err, ErrRefreshNotFound) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	accessToken, accessExpires, err := s.jwt.GenerateAccessToken(session.TelegramID, session.SID, session.Role)
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate access token: %w", err)
	}

	return AuthResult{
		AccessToken:   accessToken,
		RefreshToken:  newRefreshToken,
		AccessExpires: accessExpires,
		Me: Me{
			TelegramID: session.TelegramID,
			Role:       session.Role,
		},
	}, nil
}

func (s *Service) Logout(ctx context.Context, sid string) error {
	if strings.TrimSpace(sid) == "" {
		return ErrInvalidInput
	}
	if err := s.sessions.DeleteSession(ctx, sid); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Service) LogoutAll(ctx context.Context, telegramID int64) error {
	if telegramID <= 0 {
		return ErrInvalidInput
	}
	if err := s.sessions.DeleteAllForUser(ctx, telegramID); err != nil {
		return fmt.Errorf("delete all sessions: %w", err)
	}
	return nil
}

// ValidateAccessToken checks the token signature and that the backing
// session is still alive, so a logout invalidates outstanding tokens.
func (s *Service) ValidateAccessToken(ctx context.Context, accessToken string) (AccessClaims, error) {
	claims, err := s.jwt.ParseAccessToken(accessToken)
	if err != nil {
		return AccessClaims{}, ErrUnauthorized
	}

	session, err := s.sessions.GetSession(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return AccessClaims{}, ErrUnauthorized
		}
		return AccessClaims{}, fmt.Errorf("get session: %w", err)
	}
	if session.TelegramID != claims.TelegramID {
		return AccessClaims{}, ErrUnauthorized
	}
	if s.now().After(session.ExpiresAt) {
		return AccessClaims{}, ErrUnauthorized
	}

	claims.Role = session.Role
	return claims, nil
}
