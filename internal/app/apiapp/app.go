package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/abdulaziz-python/giftme/internal/config"
	tginfra "github.com/abdulaziz-python/giftme/internal/infra/telegram"
	pgrepo "github.com/abdulaziz-python/giftme/internal/repo/postgres"
	redrepo "github.com/abdulaziz-python/giftme/internal/repo/redis"
	adminsvc "github.com/abdulaziz-python/giftme/internal/services/admins"
	authsvc "github.com/abdulaziz-python/giftme/internal/services/auth"
	broadcastsvc "github.com/abdulaziz-python/giftme/internal/services/broadcast"
	catalogsvc "github.com/abdulaziz-python/giftme/internal/services/catalog"
	drawsvc "github.com/abdulaziz-python/giftme/internal/services/draw"
	paysvc "github.com/abdulaziz-python/giftme/internal/services/payments"
	roulettesvc "github.com/abdulaziz-python/giftme/internal/services/roulette"
	spinsvc "github.com/abdulaziz-python/giftme/internal/services/spins"
	statssvc "github.com/abdulaziz-python/giftme/internal/services/stats"
	userssvc "github.com/abdulaziz-python/giftme/internal/services/users"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	bot        *tginfra.Bot
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	var redisClient *goredis.Client
	if c, err := redrepo.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		log.Warn("redis init failed, continuing in degraded mode", zap.Error(err))
	} else {
		redisClient = c
	}

	sessionRepo := redrepo.NewSessionRepo(redisClient)
	rateRepo := redrepo.NewRateRepo(redisClient)
	userRepo := pgrepo.NewUserRepo(pool)
	prizeRepo := pgrepo.NewPrizeRepo(pool)
	paymentRepo := pgrepo.NewPaymentRepo(pool)
	winRepo := pgrepo.NewWinRepo(pool)
	spinSessionRepo := pgrepo.NewSpinSessionRepo(pool)
	adminRepo := pgrepo.NewAdminRepo(pool)
	broadcastRepo := pgrepo.NewBroadcastRepo(pool)
	statsRepo := pgrepo.NewStatsRepo(pool)

	var bot *tginfra.Bot
	if strings.TrimSpace(cfg.Bot.Token) != "" {
		b, err := tginfra.NewBot(cfg.Bot.Token, cfg.Bot.MiniAppURL)
		if err != nil {
			log.Warn("telegram bot init failed, prize delivery disabled", zap.Error(err))
		} else {
			bot = b
		}
	} else {
		log.Warn("BOT_TOKEN is empty, prize delivery disabled")
	}

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	authService := authsvc.NewService(authsvc.Dependencies{
		JWT:      jwtManager,
		Sessions: sessionRepo,
		Users:    userRepo,
		Admins:   adminRepo,
	}, cfg.Bot.Token, cfg.Auth.RefreshTTL)
	catalogService := catalogsvc.NewService(prizeRepo, cfg.Roulette.MaxGiftCost)
	spinService := spinsvc.NewService(spinSessionRepo, rateRepo, cfg.Roulette.SessionTTL, cfg.Roulette.SpinsPerMinute)
	paymentService := paysvc.NewService(paymentRepo, cfg.Roulette.SpinCost, cfg.Roulette.PaymentMethod)

	var notifier roulettesvc.Notifier
	if bot != nil {
		notifier = bot
	}
	rouletteService := roulettesvc.NewService(roulettesvc.Dependencies{
		Settler:  winRepo,
		Engine:   drawsvc.NewEngine(0),
		Notifier: notifier,
		Logger:   log,
	}, cfg.Roulette.MaxGiftCost)

	userService := userssvc.NewService(userRepo, winRepo)
	statsService := statssvc.NewService(statsRepo)
	adminService := adminsvc.NewService(adminRepo, userService, log)

	var sender broadcastsvc.Sender
	if bot != nil {
		sender = bot
	}
	broadcastService := broadcastsvc.NewService(broadcastsvc.Dependencies{
		Store:      broadcastRepo,
		Users:      userRepo,
		Sender:     sender,
		Logger:     log,
		RetryAfter: tginfra.RetryAfter,
	}, cfg.Broadcast.BatchSize, cfg.Broadcast.BatchPause)

	if pool != nil {
		if seeded, err := catalogService.EnsureSeeded(ctx); err != nil {
			log.Warn("seed prize catalog", zap.Error(err))
		} else if seeded {
			log.Info("seeded default prize catalog")
		}
		if err := adminService.SeedInitial(ctx, cfg.Admin.InitialUsernames); err != nil {
			log.Warn("seed initial admins", zap.Error(err))
		}
	}

	RegisterRoutes(r, Dependencies{
		AuthService:      authService,
		CatalogService:   catalogService,
		SpinService:      spinService,
		PaymentService:   paymentService,
		RouletteService:  rouletteService,
		UserService:      userService,
		StatsService:     statsService,
		BroadcastService: broadcastService,
		AdminService:     adminService,
		Logger:           log,
		Config:           cfg,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		bot:        bot,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
