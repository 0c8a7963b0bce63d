package auth

import (
	"errors"
	"time"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidAuthData = errors.New("telegram init data failed verification")
	ErrUserBlocked     = errors.New("user is blocked")
	ErrSessionNotFound = errors.New("session not found")
	ErrRefreshNotFound = errors.New("refresh token not found")
)

type SessionRecord struct {
	SID        string
	TelegramID int64
	Role       string
	ExpiresAt  time.Time
}

type AccessClaims struct {
	TelegramID int64
	SID        string
	Role       string
	ExpiresAt  time.Time
}

type Me struct {
	TelegramID int64
	Username   string
	FirstName  string
	Role       string
	IsPremium  bool
}

type AuthResult struct {
	AccessToken   string
	RefreshToken  string
	AccessExpires time.Time
	Me            Me
}
