package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/mobilebackend/pkg/health"
	"github.com/utafrali/mobilebackend/pkg/middleware"
)

// serviceName labels HTTP metrics and spans.
const serviceName = "mobile-backend"

// RouterConfig holds the middleware settings of the router.
type RouterConfig struct {
	CORS      middleware.CORSConfig
	RateLimit middleware.RateLimitConfig
	// Limiter backs the login and code routes. Nil disables limiting.
	Limiter        middleware.Limiter
	PprofCIDRs     []string
	TrustedProxies []string
}

// NewRouter creates a chi router with all routes registered.
func NewRouter(
	accounts AccountService,
	payments PaymentService,
	validateToken middleware.TokenValidator,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// RealIP runs first so every later stage sees the forwarded client.
	// Tracing runs before logging so request loggers carry the trace id.
	r.Use(middleware.RealIP(cfg.TrustedProxies, logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	if len(cfg.PprofCIDRs) > 0 {
		middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)
	}

	authHandler := NewAuthHandler(accounts, logger)
	userHandler := NewUserHandler(accounts, logger)
	paymentHandler := NewPaymentHandler(payments, logger)
	limit := middleware.RateLimit(cfg.Limiter, cfg.RateLimit, logger)
	limitIdentifier := func(scope string) func(http.Handler) http.Handler {
		return middleware.RateLimitBy(cfg.Limiter, cfg.RateLimit, logger, identifierKey(scope))
	}
	requireAuth := middleware.Auth(validateToken)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Auth endpoints (public)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authHandler.Signup)

			// Each route has its own per-address budget. Per account, login
			// and code issuing are budgeted apart from redemption, which
			// shares one budget across its three routes.
			r.Group(func(r chi.Router) {
				r.Use(limit)
				r.With(limitIdentifier("login")).Post("/login", authHandler.Login)

				r.Group(func(r chi.Router) {
					r.Use(limitIdentifier("issue"))
					r.Post("/forget-password", authHandler.ForgetPassword)
					r.Post("/verification/resend", authHandler.ResendVerification)
				})

				r.Group(func(r chi.Router) {
					r.Use(limitIdentifier("redeem"))
					r.Post("/forget-password/confirm", authHandler.ConfirmForgetPassword)
					r.Post("/account/verify", authHandler.VerifyAccount)
					r.Post("/otp/check", authHandler.CheckCode)
				})
			})

			r.With(requireAuth).Post("/change-password", authHandler.ChangePassword)
		})

		r.With(middleware.CacheControl(3600)).Get("/countries", userHandler.Countries)

		r.Post("/payments", paymentHandler.CreatePayment)
		r.Get("/payments/{uid}", paymentHandler.GetPayment)

		// Account endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/profile", userHandler.GetProfile)
			r.Post("/profile", userHandler.UpdateProfile)
			r.Delete("/account", userHandler.DeleteAccount)
			r.Get("/login-history", userHandler.LoginHistory)
		})
	})

	// Gateway confirmations are signed by the provider and carry no bearer
	// token. The callback body is form encoded.
	r.Route("/payment", func(r chi.Router) {
		r.Get("/billplz/redirect", paymentHandler.BillplzRedirect)
		r.Post("/billplz/callback", paymentHandler.BillplzCallback)
		r.Post("/paypal/webhook", paymentHandler.PaypalWebhook)
	})

	return r
}
