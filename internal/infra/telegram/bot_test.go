package telegram

import (
	"errors"
	"fmt"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestRetryAfterReadsFloodWaitHint(t *testing.T) {
	apiErr := &tgbotapi.Error{
		Code:    429,
		Message: "Too Many Requests: retry after 3",
		ResponseParameters: tgbotapi.ResponseParameters{
			RetryAfter: 3,
		},
	}

	wrapped := fmt.Errorf("send broadcast photo: %w", apiErr)
	if got := RetryAfter(wrapped); got != 3*time.Second {
		t.Fatalf("unexpected pause: got %v want %v", got, 3*time.Second)
	}
}

func TestRetryAfterZeroWithoutHint(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{name: "nil", err: nil},
		{name: "plain", err: errors.New("blocked by user")},
		{name: "api error without hint", err: &tgbotapi.Error{Code: 403, Message: "Forbidden"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RetryAfter(tc.err); got != 0 {
				t.Fatalf("expected zero pause, got %v", got)
			}
		})
	}
}
