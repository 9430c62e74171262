package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vyapar-labs/b2b-platform/internal/infra/config"
	"github.com/vyapar-labs/b2b-platform/internal/transport/http/handlers"
	"github.com/vyapar-labs/b2b-platform/internal/transport/http/middleware"
	"github.com/vyapar-labs/b2b-platform/internal/usecase"
)

// ServiceSet bundles the application services the routes depend on.
type ServiceSet struct {
	Auth         *usecase.AuthService
	Registration *usecase.RegistrationService
	OTP          *usecase.OTPService
	Referrals    *usecase.ReferralService
}

// DatabaseChecker reports whether the primary store is reachable.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker reports whether the cache/rate-limit store is reachable.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies carries everything needed to assemble the HTTP router.
type Dependencies struct {
	Logger   *zap.Logger
	Config   *config.AppConfig
	Services ServiceSet
	Limiter  *middleware.RateLimiter
	Metrics  *middleware.HTTPMetrics
	Database DatabaseChecker
	Cache    CacheChecker
}

// Register assembles the full router: middleware chain, operational
// endpoints, and the versioned API surface.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.EnrichContext(),
		middleware.RequestID(),
		middleware.Logger(deps.Logger),
		middleware.CORS(deps.Config.CORS.AllowedOrigins),
	)
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Handler())
	}

	healthOpts := []handlers.HealthOption{}
	if deps.Database != nil {
		healthOpts = append(healthOpts, handlers.WithReadinessCheck("postgres", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOpts = append(healthOpts, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	health := handlers.NewHealthHandler(deps.Logger, healthOpts...)

	router.GET("/healthz", health.Status)
	router.GET("/readyz", health.Readiness)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	registration := handlers.NewRegistrationHandler(deps.Services.Registration, deps.Services.OTP, deps.Services.Auth, deps.Logger)
	auth := handlers.NewAuthHandler(deps.Services.Auth, deps.Logger)
	referrals := handlers.NewReferralHandler(deps.Services.Referrals, deps.Logger)

	limits := deps.Config.RateLimit
	limit := func(name string, maxAttempts int) gin.HandlerFunc {
		if deps.Limiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return deps.Limiter.Limit(middleware.RateLimitRule{
			Name:        name,
			MaxAttempts: maxAttempts,
			Window:      limits.WindowDuration,
			Identifier:  middleware.ClientIPIdentifier(name),
		})
	}

	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", limit("register", limits.RegisterMaxAttempts), registration.Register)
			authGroup.POST("/request-otp", limit("otp_request", limits.OTPRequestMaxAttempts), registration.RequestOTP)
			authGroup.POST("/verify-otp", limit("otp_verify", limits.OTPVerifyMaxAttempts), registration.VerifyOTP)
			authGroup.POST("/login", limit("login", limits.LoginMaxAttempts), auth.Login)
		}

		users := v1.Group("/users", middleware.RequireAuth(deps.Services.Auth))
		{
			users.GET("/me", auth.Me)
		}

		referralGroup := v1.Group("/referrals", middleware.RequireAuth(deps.Services.Auth))
		{
			referralGroup.POST("", referrals.Create)
			referralGroup.GET("", referrals.List)
			referralGroup.GET("/:code/stats", referrals.Stats)
			referralGroup.PATCH("/:id/status", referrals.SetStatus)
		}
	}

	return router
}
