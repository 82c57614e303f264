package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	accountapp "github.com/bandhan-app/bandhan-api/internal/application/account"
	blockapp "github.com/bandhan-app/bandhan-api/internal/application/block"
	lifecycleapp "github.com/bandhan-app/bandhan-api/internal/application/lifecycle"
	notificationapp "github.com/bandhan-app/bandhan-api/internal/application/notification"
	otpapp "github.com/bandhan-app/bandhan-api/internal/application/otp"
	"github.com/bandhan-app/bandhan-api/internal/config"
	"github.com/bandhan-app/bandhan-api/internal/transport/http/handler"
	appmiddleware "github.com/bandhan-app/bandhan-api/internal/transport/http/middleware"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// A nil provider must stay a nil interface so the downstream nil checks
	// fire; a typed nil pointer would slip past them.
	var verifier appmiddleware.TokenVerifier
	var accountSigner accountapp.TokenSigner
	var otpSigner otpapp.TokenSigner
	if deps.JWTProvider != nil {
		verifier = deps.JWTProvider
		accountSigner = deps.JWTProvider
		otpSigner = deps.JWTProvider
	}

	// One fixed-window limiter per route class. Only the literal health path
	// escapes the api class.
	authRL := appmiddleware.NewThrottle(cfg.Throttle.AuthWindow, cfg.Throttle.AuthMax)
	otpRL := appmiddleware.NewThrottle(cfg.Throttle.OTPWindow, cfg.Throttle.OTPMax)
	apiRL := appmiddleware.NewThrottle(cfg.Throttle.APIWindow, cfg.Throttle.APIMax).
		WithBypass("/v1/health-check/ping")

	accountSvc := accountapp.NewService(accountapp.Deps{
		Accounts: deps.AccountRepo,
		Resets:   deps.OTPStore,
		Tokens:   accountSigner,
	})
	otpSvc := otpapp.NewService(otpapp.Deps{
		Accounts:         deps.AccountRepo,
		Codes:            deps.OTPStore,
		Resend:           deps.ResendCounter,
		Notifications:    deps.NotificationRepo,
		Provider:         deps.VerifyClient,
		Mailer:           deps.Mailer,
		SMSSender:        deps.SMSSender,
		Tokens:           otpSigner,
		ResendDailyLimit: cfg.ResendDailyLimit,
		EmailOTPTTL:      cfg.EmailOTPTTL,
		DegradeOpen:      cfg.DegradeOpen,
	})
	lifecycleSvc := lifecycleapp.NewService(lifecycleapp.Deps{
		Accounts:      deps.AccountRepo,
		Cooldowns:     deps.Cooldowns,
		Notifications: deps.NotificationRepo,
		Mailer:        deps.Mailer,
		DegradeOpen:   cfg.DegradeOpen,
	})
	blockSvc := blockapp.NewService(blockapp.Deps{
		Accounts:    deps.AccountRepo,
		Cooldowns:   deps.Cooldowns,
		DegradeOpen: cfg.DegradeOpen,
	})
	notificationSvc := notificationapp.NewService(deps.NotificationRepo)

	healthH := handler.NewHealthHandler()
	accountH := handler.NewAccountHandler(accountSvc)
	otpH := handler.NewOTPHandler(otpSvc)
	lifecycleH := handler.NewLifecycleHandler(lifecycleSvc)
	blockH := handler.NewBlockHandler(blockSvc)
	notificationH := handler.NewNotificationHandler(notificationSvc)

	authMw := appmiddleware.Auth(verifier, deps.AccountRepo)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.With(apiRL.Limit).Get("/health-check/ping", healthH.Ping)
		r.With(authRL.Limit).Post("/accounts", accountH.Signup)
		r.With(authRL.Limit).Post("/sessions/login", accountH.Login)
		r.With(otpRL.Limit).Post("/otp/request", otpH.Request)
		r.With(otpRL.Limit).Post("/otp/verify", otpH.Verify)
		r.With(otpRL.Limit).Post("/password-recovery/reset", accountH.ResetPassword)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(apiRL.Limit)
			r.Use(authMw)

			r.Get("/accounts/status", lifecycleH.Status)
			r.Post("/accounts/deactivate", lifecycleH.Deactivate)
			r.Post("/accounts/activate", lifecycleH.Activate)
			r.Post("/accounts/delete", lifecycleH.Delete)

			r.Get("/blocks", blockH.List)
			r.Post("/blocks/{customId}", blockH.Block)
			r.Delete("/blocks/{customId}", blockH.Unblock)

			r.Get("/notifications", notificationH.ListUnread)
			r.Put("/notifications/{id}", notificationH.MarkAsRead)
		})
	})

	return r
}
