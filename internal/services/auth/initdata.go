package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// initDataKeyPhrase is the fixed HMAC key Telegram prescribes for
// deriving the per-bot secret from the bot token.
const initDataKeyPhrase = "WebAppData"

// InitDataUser is the user payload embedded in verified init data.
type InitDataUser struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	LanguageCode string `json:"language_code"`
	IsPremium    bool   `json:"is_premium"`
}

// VerifyInitData checks the Telegram WebApp init data signature and
// freshness, then extracts the user. The signature covers every field
// except hash itself: fields are sorted, joined as key=value lines, and
// HMAC'd with a secret derived from the bot token. Anything that does
// not verify byte for byte is rejected; there is no permissive fallback
// for malformed payloads.
func VerifyInitData(initData, botToken string, maxAge time.Duration, now time.Time) (InitDataUser, error) {
	initData = strings.TrimSpace(initData)
	if initData == "" || botToken == "" {
		return InitDataUser{}, ErrInvalidAuthData
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	values, err := url.ParseQuery(initData)
	if err != nil {
		return InitDataUser{}, ErrInvalidAuthData
	}

	gotHash := values.Get("hash")
	if gotHash == "" {
		return InitDataUser{}, ErrInvalidAuthData
	}
	values.Del("hash")

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, key := range keys {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(key)
		sb.WriteByte('=')
		sb.WriteString(values.Get(key))
	}

	secret := hmac.New(sha256.New, []byte(initDataKeyPhrase))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(sb.String()))
	want := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(want), []byte(gotHash)) {
		return InitDataUser{}, ErrInvalidAuthData
	}

	if maxAge > 0 {
		authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
		if err != nil {
			return InitDataUser{}, ErrInvalidAuthData
		}
		issued := time.Unix(authDate, 0)
		if now.Sub(issued) > maxAge {
			return InitDataUser{}, fmt.Errorf("init data older than %s: %w", maxAge, ErrInvalidAuthData)
		}
	}

	rawUser := values.Get("user")
	if rawUser == "" {
		return InitDataUser{}, ErrInvalidAuthData
	}

	var user InitDataUser
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil || user.ID <= 0 {
		return InitDataUser{}, ErrInvalidAuthData
	}

	return user, nil
}

// SignInitData produces a valid hash for the given fields. Test helper
// and local tooling only; production verification never signs.
func SignInitData(values url.Values, botToken string) string {
	values.Del("hash")

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, key := range keys {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(key)
		sb.WriteByte('=')
		sb.WriteString(values.Get(key))
	}

	secret := hmac.New(sha256.New, []byte(initDataKeyPhrase))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(sb.String()))
	return hex.EncodeToString(mac.Sum(nil))
}
