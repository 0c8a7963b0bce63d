package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/abdulaziz-python/giftme/internal/config"
	adminsvc "github.com/abdulaziz-python/giftme/internal/services/admins"
	authsvc "github.com/abdulaziz-python/giftme/internal/services/auth"
	broadcastsvc "github.com/abdulaziz-python/giftme/internal/services/broadcast"
	catalogsvc "github.com/abdulaziz-python/giftme/internal/services/catalog"
	paysvc "github.com/abdulaziz-python/giftme/internal/services/payments"
	roulettesvc "github.com/abdulaziz-python/giftme/internal/services/roulette"
	spinsvc "github.com/abdulaziz-python/giftme/internal/services/spins"
	statssvc "github.com/abdulaziz-python/giftme/internal/services/stats"
	userssvc "github.com/abdulaziz-python/giftme/internal/services/users"
	"github.com/abdulaziz-python/giftme/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService      *authsvc.Service
	CatalogService   *catalogsvc.Service
	SpinService      *spinsvc.Service
	PaymentService   *paysvc.Service
	RouletteService  *roulettesvc.Service
	UserService      *userssvc.Service
	StatsService     *statssvc.Service
	BroadcastService *broadcastsvc.Service
	AdminService     *adminsvc.Service
	Logger           *zap.Logger
	Config           config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(deps.AuthService, deps.Logger)
	rouletteHandler := handlers.NewRouletteHandler(
		deps.CatalogService,
		deps.SpinService,
		deps.PaymentService,
		deps.UserService,
		deps.Logger,
	)
	paymentHandler := handlers.NewPaymentHandler(deps.PaymentService, deps.RouletteService, deps.Logger)
	adminHandler := handlers.NewAdminHandler(
		deps.StatsService,
		deps.BroadcastService,
		deps.AdminService,
		deps.UserService,
		deps.CatalogService,
		deps.PaymentService,
		deps.Logger,
	)
	authMW := AuthMiddleware(deps.AuthService, deps.Logger)
	adminRoleMW := RequireRole("admin", "owner")

	r.Get("/healthz", healthHandler.Get)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/telegram", authHandler.Telegram)
		r.Post("/refresh", authHandler.Refresh)
		r.With(authMW).Post("/logout", authHandler.Logout)
		r.With(authMW).Post("/logout_all", authHandler.LogoutAll)
	})

	r.With(authMW).Get("/gifts", rouletteHandler.Gifts)
	r.With(authMW).Post("/spin/session", rouletteHandler.CreateSpinSession)
	r.With(authMW).Get("/spin/session/{token}", rouletteHandler.GetSpinSession)
	r.With(authMW).Get("/profile", rouletteHandler.Profile)
	r.With(authMW).Post("/wins/{id}/claim", rouletteHandler.Claim)

	r.Post("/payments/webhook", paymentHandler.Webhook)

	r.Route("/admin", func(r chi.Router) {
		r.Use(authMW, adminRoleMW)
		r.Get("/stats", adminHandler.Stats)
		r.Get("/broadcasts", adminHandler.ListBroadcasts)
		r.Post("/broadcasts", adminHandler.CreateBroadcast)
		r.Post("/broadcasts/{id}/launch", adminHandler.LaunchBroadcast)
		r.Get("/admins", adminHandler.ListAdmins)
		r.Post("/admins", adminHandler.GrantAdmin)
		r.Delete("/admins/{telegram_id}", adminHandler.RevokeAdmin)
		r.Post("/users/{telegram_id}/block", adminHandler.BlockUser)
		r.Post("/users/{telegram_id}/unblock", adminHandler.UnblockUser)
		r.Patch("/prizes/{id}/active", adminHandler.SetPrizeActive)
		r.Post("/payments/{external_ref}/refund", adminHandler.RefundPayment)
		r.Post("/payments/{external_ref}/fail", adminHandler.FailPayment)
	})
}
