package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-email-otp/internal/application/auth"
	"github.com/go-email-otp/internal/application/otp"
	"github.com/go-email-otp/internal/application/session"
	"github.com/go-email-otp/internal/application/user"
	"github.com/go-email-otp/internal/config"
	"github.com/go-email-otp/internal/transport/http/handler"
	appmiddleware "github.com/go-email-otp/internal/transport/http/middleware"
	"github.com/sirupsen/logrus"
)

// NewRouter builds and returns the application router.
// ctx controls the lifetime of background goroutines (e.g. rate-limiter cleanup).
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps, logger logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(appmiddleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider, deps.SessionRepo)

	// RATE_LIMIT_MAX requests per RATE_LIMIT_WINDOW per client IP, counted separately for each route.
	limited := func() func(http.Handler) http.Handler {
		return appmiddleware.NewWindowLimiter(ctx, cfg.RateLimitMax, cfg.RateLimitWindow).Limit
	}

	otpSvc := otp.NewService(otp.ServiceDeps{
		Store:  deps.OTPStore,
		Config: cfg.OTP,
		Logger: logger.WithField("component", "otp"),
	})
	sessionSvc := session.NewService(session.ServiceDeps{
		UserRepo:        deps.UserRepo,
		SessionRepo:     deps.SessionRepo,
		JWTProvider:     deps.JWTProvider,
		Publisher:       deps.Publisher,
		Logger:          logger.WithField("component", "session"),
		RefreshTokenDur: cfg.RefreshTokenExpiry,
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		OTP:         otpSvc,
		UserRepo:    deps.UserRepo,
		SessionRepo: deps.SessionRepo,
		Sessions:    sessionSvc,
		Mailer:      deps.Mailer,
		Publisher:   deps.Publisher,
		Logger:      logger.WithField("component", "auth"),
		Config:      cfg.OTP,
		AppName:     cfg.AppName,
	})
	userSvc := user.NewService(user.ServiceDeps{
		UserRepo:                 deps.UserRepo,
		Sessions:                 sessionSvc,
		OTP:                      authSvc,
		Publisher:                deps.Publisher,
		Logger:                   logger.WithField("component", "user"),
		SendVerificationOnSignUp: cfg.OTP.SendVerificationOnSignUp,
	})

	healthH := handler.NewHealthHandler()
	emailOTPH := handler.NewEmailOTPHandler(authSvc, logger)
	sessionH := handler.NewSessionHandler(sessionSvc, logger)
	userH := handler.NewUserHandler(userSvc, logger)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/sessions/refresh", sessionH.Refresh)

		r.With(limited()).Post("/email-otp/send-verification-otp", emailOTPH.SendVerificationOTP)
		r.With(limited()).Post("/email-otp/verify-email", emailOTPH.VerifyEmail)
		r.With(limited()).Post("/email-otp/check-verification-otp", emailOTPH.CheckVerificationOTP)
		r.With(limited()).Post("/email-otp/reset-password", emailOTPH.ResetPassword)
		r.With(limited()).Post("/sign-in/email-otp", emailOTPH.SignIn)
		r.With(limited()).Post("/forget-password/email-otp", emailOTPH.ForgetPassword)
		r.With(limited()).Post("/users", userH.Register)
		r.With(limited()).Post("/sessions/login", sessionH.Login)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)
			r.Get("/users/me", userH.Me)
		})
	})

	return r
}
