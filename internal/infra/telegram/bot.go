package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/abdulaziz-python/giftme/internal/domain/model"
)

// starsCurrency is Telegram's digital goods currency. Stars invoices
// carry no provider token.
const starsCurrency = "XTR"

type Bot struct {
	api        *tgbotapi.BotAPI
	miniAppURL string
}

type CommandUpdate struct {
	ChatID   int64
	UserID   int64
	Username string
	User     model.User
	Command  string
	Args     string
}

type TextUpdate struct {
	ChatID   int64
	UserID   int64
	Username string
	Text     string
}

type CallbackUpdate struct {
	CallbackID string
	ChatID     int64
	UserID     int64
	Username   string
	Data       string
}

// PreCheckoutUpdate is the provider's last call before charging the
// user. Answering false cancels the charge.
type PreCheckoutUpdate struct {
	QueryID string
	UserID  int64
	Amount  int
	Payload string
}

// PaymentUpdate is the provider's confirmation that stars moved. The
// charge id is the idempotency reference for settlement.
type PaymentUpdate struct {
	ChatID   int64
	UserID   int64
	Username string
	User     model.User
	Amount   int
	ChargeID string
	Payload  string
}

type Handlers struct {
	OnCommand     func(context.Context, CommandUpdate) error
	OnText        func(context.Context, TextUpdate) error
	OnCallback    func(context.Context, CallbackUpdate) error
	OnPreCheckout func(context.Context, PreCheckoutUpdate) error
	OnPayment     func(context.Context, PaymentUpdate) error
}

func NewBot(token, miniAppURL string) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}

	api, err := tgbotapi.NewBotAPI(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}

	return &Bot{api: api, miniAppURL: miniAppURL}, nil
}

func (b *Bot) Listen(ctx context.Context, handlers Handlers) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := b.api.GetUpdatesChan(updateCfg)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-updates:
			if update.PreCheckoutQuery != nil && handlers.OnPreCheckout != nil {
				err := handlers.OnPreCheckout(ctx, PreCheckoutUpdate{
					QueryID: update.PreCheckoutQuery.ID,
					UserID:  update.PreCheckoutQuery.From.ID,
					Amount:  update.PreCheckoutQuery.TotalAmount,
					Payload: update.PreCheckoutQuery.InvoicePayload,
				})
				if err != nil {
					return err
				}
				continue
			}

			if update.Message != nil && update.Message.From != nil {
				from := update.Message.From

				if update.Message.SuccessfulPayment != nil && handlers.OnPayment != nil {
					payment := update.Message.SuccessfulPayment
					err := handlers.OnPayment(ctx, PaymentUpdate{
						ChatID:   update.Message.Chat.ID,
						UserID:   from.ID,
						Username: from.UserName,
						User:     profileFrom(from),
						Amount:   payment.TotalAmount,
						ChargeID: payment.TelegramPaymentChargeID,
						Payload:  payment.InvoicePayload,
					})
					if err != nil {
						return err
					}
					continue
				}

				if update.Message.IsCommand() && handlers.OnCommand != nil {
					err := handlers.OnCommand(ctx, CommandUpdate{
						ChatID:   update.Message.Chat.ID,
						UserID:   from.ID,
						Username: from.UserName,
						User:     profileFrom(from),
						Command:  update.Message.Command(),
						Args:     update.Message.CommandArguments(),
					})
					if err != nil {
						return err
					}
					continue
				}

				text := strings.TrimSpace(update.Message.Text)
				if text != "" && handlers.OnText != nil {
					err := handlers.OnText(ctx, TextUpdate{
						ChatID:   update.Message.Chat.ID,
						UserID:   from.ID,
						Username: from.UserName,
						Text:     text,
					})
					if err != nil {
						return err
					}
				}
			}

			if update.CallbackQuery != nil && update.CallbackQuery.From != nil && handlers.OnCallback != nil {
				chatID := int64(0)
				if update.CallbackQuery.Message != nil {
					chatID = update.CallbackQuery.Message.Chat.ID
				}
				err := handlers.OnCallback(ctx, CallbackUpdate{
					CallbackID: update.CallbackQuery.ID,
					ChatID:     chatID,
					UserID:     update.CallbackQuery.From.ID,
					Username:   update.CallbackQuery.From.UserName,
					Data:       update.CallbackQuery.Data,
				})
				if err != nil {
					return err
				}
			}
		}
	}
}

func (b *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if chatID == 0 {
		return fmt.Errorf("chat id is required")
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	_ = ctx
	return nil
}

// SendMiniAppButton sends a message with a single button opening the
// roulette miniapp.
func (b *Bot) SendMiniAppButton(ctx context.Context, chatID int64, text, buttonLabel string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(buttonLabel, b.miniAppURL),
		),
	)

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send miniapp button: %w", err)
	}

	_ = ctx
	return nil
}

// SendSpinInvoice issues a stars invoice for one spin. The payload
// travels back on the successful payment update.
func (b *Bot) SendSpinInvoice(ctx context.Context, chatID int64, title, description, payload string, amount int) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if amount <= 0 {
		return fmt.Errorf("invoice amount must be positive")
	}

	invoice := tgbotapi.NewInvoice(
		chatID,
		title,
		description,
		payload,
		"", // stars invoices carry no provider token
		"spin",
		starsCurrency,
		[]tgbotapi.LabeledPrice{{Label: title, Amount: amount}},
	)
	invoice.SuggestedTipAmounts = []int{}

	if _, err := b.api.Request(invoice); err != nil {
		return fmt.Errorf("send spin invoice: %w", err)
	}

	_ = ctx
	return nil
}

func (b *Bot) AnswerPreCheckout(ctx context.Context, queryID string, ok bool, errorMessage string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}

	answer := tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: queryID,
		OK:                 ok,
		ErrorMessage:       errorMessage,
	}
	if _, err := b.api.Request(answer); err != nil {
		return fmt.Errorf("answer pre-checkout query: %w", err)
	}

	_ = ctx
	return nil
}

func (b *Bot) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if strings.TrimSpace(callbackID) == "" {
		return nil
	}

	cfg := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.api.Request(cfg); err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}

	_ = ctx
	return nil
}

// NotifyWin tells the winner what they got. Satisfies the roulette
// service's notifier.
func (b *Bot) NotifyWin(ctx context.Context, telegramID int64, prize model.Prize) error {
	text := fmt.Sprintf("🎉 You won %s!\n\n%s\n\nWorth %d ⭐. It will arrive in your profile shortly.",
		prize.Name, prize.Description, prize.StarCost)
	return b.SendText(ctx, telegramID, text)
}

// SendBroadcast delivers one broadcast message. Satisfies the broadcast
// service's sender.
func (b *Bot) SendBroadcast(ctx context.Context, telegramID int64, text, imageURL string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}

	if strings.TrimSpace(imageURL) != "" {
		photo := tgbotapi.NewPhoto(telegramID, tgbotapi.FileURL(imageURL))
		photo.Caption = text
		if _, err := b.api.Send(photo); err != nil {
			return fmt.Errorf("send broadcast photo: %w", err)
		}
		_ = ctx
		return nil
	}

	return b.SendText(ctx, telegramID, text)
}

func profileFrom(from *tgbotapi.User) model.User {
	return model.User{
		TelegramID:   from.ID,
		Username:     from.UserName,
		FirstName:    from.FirstName,
		LastName:     from.LastName,
		LanguageCode: from.LanguageCode,
	}
}

// RetryAfter extracts the pause Telegram asked for on a 429, zero when
// the error carries none. The broadcast pacer stretches its batch pause
// by this much.
func RetryAfter(err error) time.Duration {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return time.Duration(apiErr.RetryAfter) * time.Second
	}
	return 0
}
