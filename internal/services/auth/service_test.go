package auth

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/abdulaziz-python/giftme/internal/domain/model"
)

const testBotToken = "12345:test-bot-token"

type sessionStoreStub struct {
	sessions map[string]SessionRecord
	refresh  map[string]string
}

func newSessionStoreStub() *sessionStoreStub {
	return &sessionStoreStub{
		sessions: make(map[string]SessionRecord),
		refresh:  make(map[string]string),
	}
}

func (s *sessionStoreStub) Create(_ context.Context, session SessionRecord, refreshToken string) error {
	s.sessions[session.SID] = session
	s.refresh[refreshToken] = session.SID
	return nil
}

func (s *sessionStoreStub) GetSession(_ context.Context, sid string) (SessionRecord, error) {
	session, ok := s.sessions[sid]
	if !ok {
		return SessionRecord{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *sessionStoreStub) GetByRefreshToken(_ context.Context, refreshToken string) (SessionRecord, error) {
	sid, ok := s.refresh[refreshToken]
	if !ok {
		return SessionRecord{}, ErrRefreshNotFound
	}
	return s.GetSession(context.Background(), sid)
}

func (s *sessionStoreStub) RotateRefresh(_ context.Context, sid, oldToken, newToken string, expiresAt time.Time) error {
	storedSID, ok := s.refresh[oldToken]
	if !ok || storedSID != sid {
		return ErrRefreshNotFound
	}
	delete(s.refresh, oldToken)
	s.refresh[newToken] = sid
	session := s.sessions[sid]
	session.ExpiresAt = expiresAt
	s.sessions[sid] = session
	return nil
}

func (s *sessionStoreStub) DeleteSession(_ context.Context, sid string) error {
	delete(s.sessions, sid)
	for token, storedSID := range s.refresh {
		if storedSID == sid {
			delete(s.refresh, token)
		}
	}
	return nil
}

func (s *sessionStoreStub) DeleteAllForUser(_ context.Context, telegramID int64) error {
	for sid, session := range s.sessions {
		if session.TelegramID == telegramID {
			_ = s.DeleteSession(context.Background(), sid)
		}
	}
	return nil
}

type userStoreStub struct {
	blocked map[int64]bool
}

func (s *userStoreStub) GetOrCreate(_ context.Context, u model.User) (model.User, error) {
	u.ID = u.TelegramID
	u.IsBlocked = s.blocked[u.TelegramID]
	return u, nil
}

type adminCheckerStub struct {
	admins map[int64]bool
}

func (s *adminCheckerStub) IsActiveAdmin(_ context.Context, telegramID int64) (bool, error) {
	return s.admins[telegramID], nil
}

func signedInitData(t *testing.T, telegramID int64, authDate time.Time) string {
	t.Helper()

	values := url.Values{}
	values.Set("user", `{"id":`+strconv.FormatInt(telegramID, 10)+`,"username":"spinner","first_name":"Spin","is_premium":true}`)
	values.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	values.Set("query_id", "AAE-test")
	values.Set("hash", SignInitData(values, testBotToken))

	return values.Encode()
}

func newTestService(sessions SessionStore, users UserStore, admins AdminChecker) *Service {
	return NewService(Dependencies{
		JWT:      NewJWTManager("test-secret", 15*time.Minute),
		Sessions: sessions,
		Users:    users,
		Admins:   admins,
	}, testBotToken, 30*24*time.Hour)
}

func TestLoginTelegramHappyPath(t *testing.T) {
	sessions := newSessionStoreStub()
	svc := newTestService(sessions, &userStoreStub{blocked: map[int64]bool{}}, &adminCheckerStub{admins: map[int64]bool{}})

	result, err := svc.LoginTelegram(context.Background(), signedInitData(t, 1001, time.Now()))
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("tokens missing from auth result")
	}
	if result.Me.TelegramID != 1001 {
		t.Fatalf("unexpected telegram id: %d", result.Me.TelegramID)
	}
	if result.Me.Role != "user" {
		t.Fatalf("unexpected role: %s", result.Me.Role)
	}
	if len(sessions.sessions) != 1 {
		t.Fatalf("expected one session, got %d", len(sessions.sessions))
	}

	claims, err := svc.ValidateAccessToken(context.Background(), result.AccessToken)
	if err != nil {
		t.Fatalf("validate access token: %v", err)
	}
	if claims.TelegramID != 1001 {
		t.Fatalf("unexpected claims telegram id: %d", claims.TelegramID)
	}
}

func TestLoginTelegramAdminRole(t *testing.T) {
	svc := newTestService(newSessionStoreStub(), &userStoreStub{blocked: map[int64]bool{}}, &adminCheckerStub{admins: map[int64]bool{1001: true}})

	result, err := svc.LoginTelegram(context.Background(), signedInitData(t, 1001, time.Now()))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Me.Role != "admin" {
		t.Fatalf("expected admin role, got %s", result.Me.Role)
	}
}

func TestLoginTelegramRejectsTamperedHash(t *testing.T) {
	svc := newTestService(newSessionStoreStub(), &userStoreStub{blocked: map[int64]bool{}}, &adminCheckerStub{admins: map[int64]bool{}})

	values, err := url.ParseQuery(signedInitData(t, 1001, time.Now()))
	if err != nil {
		t.Fatalf("parse init data: %v", err)
	}
	values.Set("user", `{"id":9999,"username":"attacker","first_name":"X"}`)

	_, loginErr := svc.LoginTelegram(context.Background(), values.Encode())
	if !errors.Is(loginErr, ErrInvalidAuthData) {
		t.Fatalf("expected ErrInvalidAuthData, got %v", loginErr)
	}
}

func TestLoginTelegramRejectsStaleAuthDate(t *testing.T) {
	svc := newTestService(newSessionStoreStub(), &userStoreStub{blocked: map[int64]bool{}}, &adminCheckerStub{admins: map[int64]bool{}})

	_, err := svc.LoginTelegram(context.Background(), signedInitData(t, 1001, time.Now().Add(-48*time.Hour)))
	if !errors.Is(err, ErrInvalidAuthData) {
		t.Fatalf("expected ErrInvalidAuthData for stale payload, got %v", err)
	}
}

func TestLoginTelegramBlockedUser(t *testing.T) {
	svc := newTestService(newSessionStoreStub(), &userStoreStub{blocked: map[int64]bool{1001: true}}, &adminCheckerStub{admins: map[int64]bool{}})

	_, err := svc.LoginTelegram(context.Background(), signedInitData(t, 1001, time.Now()))
	if !errors.Is(err, ErrUserBlocked) {
		t.Fatalf("expected ErrUserBlocked, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	sessions := newSessionStoreStub()
	svc := newTestService(sessions, &userStoreStub{blocked: map[int64]bool{}}, &adminCheckerStub{admins: map[int64]bool{}})

	login, err := svc.LoginTelegram(context.Background(), signedInitData(t, 1001, time.Now()))
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	refreshed, err := svc.Refresh(context.Background(), login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.RefreshToken == login.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// The old token is dead after rotation.
	if _, err := svc.Refresh(context.Background(), login.RefreshToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for spent token, got %v", err)
	}
}

func TestLogoutInvalidatesAccessToken(t *testing.T) {
	sessions := newSessionStoreStub()
	svc := newTestService(sessions, &userStoreStub{blocked: map[int64]bool{}}, &adminCheckerStub{admins: map[int64]bool{}})

	login, err := svc.LoginTelegram(context.Background(), signedInitData(t, 1001, time.Now()))
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := svc.ValidateAccessToken(context.Background(), login.AccessToken)
	if err != nil {
		t.Fatalf("validate before logout: %v", err)
	}

	if err := svc.Logout(context.Background(), claims.SID); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if _, err := svc.ValidateAccessToken(context.Background(), login.AccessToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after logout, got %v", err)
	}
}
