package botapp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/abdulaziz-python/giftme/internal/config"
	tginfra "github.com/abdulaziz-python/giftme/internal/infra/telegram"
	"github.com/abdulaziz-python/giftme/internal/jobs/cleanup"
	"github.com/abdulaziz-python/giftme/internal/jobs/reminder"
	pgrepo "github.com/abdulaziz-python/giftme/internal/repo/postgres"
	adminsvc "github.com/abdulaziz-python/giftme/internal/services/admins"
	catalogsvc "github.com/abdulaziz-python/giftme/internal/services/catalog"
	drawsvc "github.com/abdulaziz-python/giftme/internal/services/draw"
	paysvc "github.com/abdulaziz-python/giftme/internal/services/payments"
	roulettesvc "github.com/abdulaziz-python/giftme/internal/services/roulette"
	spinsvc "github.com/abdulaziz-python/giftme/internal/services/spins"
	statssvc "github.com/abdulaziz-python/giftme/internal/services/stats"
	userssvc "github.com/abdulaziz-python/giftme/internal/services/users"
)

const (
	welcomeText = "🎰 Welcome to Gift Roulette!\n\nPay %d ⭐ per spin and win Telegram gifts. Open the app to see the prizes, or send /spin to get an invoice right here."
	refundText  = "😔 The prize shelf is empty right now, so your payment will be refunded. Please try again later."
	helpText    = "Commands:\n/start - open the roulette\n/spin - get a spin invoice\n/help - this message"
)

type App struct {
	cfg      config.Config
	logger   *zap.Logger
	postgres *pgxpool.Pool
	bot      *tginfra.Bot

	userService     *userssvc.Service
	paymentService  *paysvc.Service
	rouletteService *roulettesvc.Service
	adminService    *adminsvc.Service
	statsService    *statssvc.Service

	cleanupJob  *cleanup.Job
	reminderJob *reminder.Job
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("init postgres for bot app: %w", err)
	}

	var bot *tginfra.Bot
	if strings.TrimSpace(cfg.Bot.Token) != "" {
		bot, err = tginfra.NewBot(cfg.Bot.Token, cfg.Bot.MiniAppURL)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("init telegram bot: %w", err)
		}
	} else {
		logger.Warn("BOT_TOKEN is empty, update listener disabled")
	}

	userRepo := pgrepo.NewUserRepo(pool)
	prizeRepo := pgrepo.NewPrizeRepo(pool)
	paymentRepo := pgrepo.NewPaymentRepo(pool)
	winRepo := pgrepo.NewWinRepo(pool)
	spinSessionRepo := pgrepo.NewSpinSessionRepo(pool)
	adminRepo := pgrepo.NewAdminRepo(pool)
	statsRepo := pgrepo.NewStatsRepo(pool)

	userService := userssvc.NewService(userRepo, winRepo)
	catalogService := catalogsvc.NewService(prizeRepo, cfg.Roulette.MaxGiftCost)
	paymentService := paysvc.NewService(paymentRepo, cfg.Roulette.SpinCost, cfg.Roulette.PaymentMethod)
	spinService := spinsvc.NewService(spinSessionRepo, nil, cfg.Roulette.SessionTTL, cfg.Roulette.SpinsPerMinute)
	adminService := adminsvc.NewService(adminRepo, userService, logger)
	statsService := statssvc.NewService(statsRepo)

	var notifier roulettesvc.Notifier
	if bot != nil {
		notifier = bot
	}
	rouletteService := roulettesvc.NewService(roulettesvc.Dependencies{
		Settler:  winRepo,
		Engine:   drawsvc.NewEngine(0),
		Notifier: notifier,
		Logger:   logger,
	}, cfg.Roulette.MaxGiftCost)

	if seeded, err := catalogService.EnsureSeeded(ctx); err != nil {
		logger.Warn("seed prize catalog", zap.Error(err))
	} else if seeded {
		logger.Info("seeded default prize catalog")
	}
	if err := adminService.SeedInitial(ctx, cfg.Admin.InitialUsernames); err != nil {
		logger.Warn("seed initial admins", zap.Error(err))
	}

	cleanupJob := cleanup.New(spinService, cfg.Roulette.CleanupInterval, logger)
	var reminderJob *reminder.Job
	if bot != nil {
		reminderJob = reminder.New(userRepo, bot, cfg.Reminder.InactiveAfter, cfg.Reminder.SweepInterval, logger)
	}

	return &App{
		cfg:             cfg,
		logger:          logger,
		postgres:        pool,
		bot:             bot,
		userService:     userService,
		paymentService:  paymentService,
		rouletteService: rouletteService,
		adminService:    adminService,
		statsService:    statsService,
		cleanupJob:      cleanupJob,
		reminderJob:     reminderJob,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("bot app started")

	go a.cleanupJob.Loop(ctx)
	if a.reminderJob != nil {
		go a.reminderJob.Loop(ctx)
	}

	errCh := make(chan error, 1)
	if a.bot != nil {
		go func() {
			errCh <- a.bot.Listen(ctx, tginfra.Handlers{
				OnCommand:     a.handleCommand,
				OnCallback:    a.handleCallback,
				OnPreCheckout: a.handlePreCheckout,
				OnPayment:     a.handlePayment,
			})
		}()
	}

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("bot app stopped")
			return nil
		case err := <-errCh:
			if err == nil || errors.Is(err, context.Canceled) {
				continue
			}
			return err
		}
	}
}

func (a *App) handleCommand(ctx context.Context, update tginfra.CommandUpdate) error {
	if _, err := a.userService.Register(ctx, update.User); err != nil {
		a.logger.Warn("register user from command", zap.Int64("telegram_id", update.UserID), zap.Error(err))
	}

	switch strings.ToLower(strings.TrimSpace(update.Command)) {
	case "start":
		text := fmt.Sprintf(welcomeText, a.paymentService.SpinCost())
		return a.bot.SendMiniAppButton(ctx, update.ChatID, text, "🎰 Open Gift Roulette")
	case "spin":
		return a.sendSpinInvoice(ctx, update.ChatID)
	case "stats":
		return a.sendStats(ctx, update.ChatID, update.UserID)
	case "help":
		return a.bot.SendText(ctx, update.ChatID, helpText)
	default:
		return nil
	}
}

func (a *App) handleCallback(ctx context.Context, update tginfra.CallbackUpdate) error {
	if strings.TrimSpace(update.Data) != "spin" {
		return a.bot.AnswerCallback(ctx, update.CallbackID, "Unknown action")
	}

	if err := a.bot.AnswerCallback(ctx, update.CallbackID, ""); err != nil {
		return err
	}
	return a.sendSpinInvoice(ctx, update.ChatID)
}

// handlePreCheckout is the last gate before Telegram charges stars.
// Only exact spin price invoices pass.
func (a *App) handlePreCheckout(ctx context.Context, update tginfra.PreCheckoutUpdate) error {
	if err := a.paymentService.PreCheck(ctx, update.UserID, update.Amount); err != nil {
		a.logger.Warn("pre-checkout rejected",
			zap.Int64("telegram_id", update.UserID),
			zap.Int("amount", update.Amount),
			zap.Error(err),
		)
		return a.bot.AnswerPreCheckout(ctx, update.QueryID, false, "This invoice is no longer valid, please request a new one.")
	}

	return a.bot.AnswerPreCheckout(ctx, update.QueryID, true, "")
}

// handlePayment settles a confirmed stars charge into a prize. The
// charge id from Telegram is the idempotency reference, so a replayed
// update cannot award twice.
func (a *App) handlePayment(ctx context.Context, update tginfra.PaymentUpdate) error {
	if _, err := a.userService.Register(ctx, update.User); err != nil {
		a.logger.Warn("register paying user", zap.Int64("telegram_id", update.UserID), zap.Error(err))
	}

	if _, _, err := a.paymentService.RecordAttempt(ctx, update.UserID, update.Amount, update.ChargeID); err != nil {
		a.logger.Error("record payment", zap.String("charge_id", update.ChargeID), zap.Error(err))
		return nil
	}

	result, err := a.rouletteService.SettlePayment(ctx, update.ChargeID)
	if err != nil {
		a.logger.Error("settle payment", zap.String("charge_id", update.ChargeID), zap.Error(err))
		return nil
	}

	if result.RefundNeeded {
		if err := a.bot.SendText(ctx, update.ChatID, refundText); err != nil {
			a.logger.Warn("send refund notice", zap.Int64("chat_id", update.ChatID), zap.Error(err))
		}
	}

	return nil
}

func (a *App) sendSpinInvoice(ctx context.Context, chatID int64) error {
	return a.bot.SendSpinInvoice(
		ctx,
		chatID,
		a.cfg.Roulette.InvoiceTitle,
		a.cfg.Roulette.InvoiceDescription,
		"spin",
		a.paymentService.SpinCost(),
	)
}

func (a *App) sendStats(ctx context.Context, chatID, userID int64) error {
	isAdmin, err := a.adminService.IsAdmin(ctx, userID)
	if err != nil {
		return err
	}
	if !isAdmin {
		return nil
	}

	overview, err := a.statsService.Overview(ctx)
	if err != nil {
		return err
	}

	return a.bot.SendText(ctx, chatID, formatStats(overview))
}

func formatStats(overview statssvc.Overview) string {
	lines := []string{
		"📊 Gift Roulette stats",
		"",
		fmt.Sprintf("Users: %d total, %d active today, %d active this week", overview.Users.Total, overview.Users.ActiveToday, overview.Users.ActiveWeek),
		fmt.Sprintf("Premium: %d, blocked: %d", overview.Users.Premium, overview.Users.Blocked),
		"",
		fmt.Sprintf("Revenue: %d ⭐ total, %d ⭐ today, %d ⭐ this week", overview.Revenue.TotalStars, overview.Revenue.RevenueToday, overview.Revenue.RevenueThisWeek),
		fmt.Sprintf("Payments: %d completed, %d pending, %d refunded, %d failed", overview.Revenue.CompletedCount, overview.Revenue.PendingCount, overview.Revenue.RefundedCount, overview.Revenue.FailedCount),
		"",
		"Prizes won:",
	}
	for _, prize := range overview.Prizes {
		lines = append(lines, fmt.Sprintf("- %s (%s): %d", prize.Name, prize.Rarity, prize.TotalWon))
	}
	return strings.Join(lines, "\n")
}

func (a *App) Close() {
	if a.postgres != nil {
		a.postgres.Close()
	}
}
