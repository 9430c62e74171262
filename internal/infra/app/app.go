// Package app wires configuration, infrastructure, services and transport
// into a runnable HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vyapar-labs/b2b-platform/internal/core/port"
	"github.com/vyapar-labs/b2b-platform/internal/infra/captcha"
	"github.com/vyapar-labs/b2b-platform/internal/infra/config"
	"github.com/vyapar-labs/b2b-platform/internal/infra/database"
	"github.com/vyapar-labs/b2b-platform/internal/infra/email"
	"github.com/vyapar-labs/b2b-platform/internal/infra/kafka"
	infraRedis "github.com/vyapar-labs/b2b-platform/internal/infra/redis"
	"github.com/vyapar-labs/b2b-platform/internal/infra/security"
	"github.com/vyapar-labs/b2b-platform/internal/infra/telemetry"
	"github.com/vyapar-labs/b2b-platform/internal/repository/postgres"
	redisrepo "github.com/vyapar-labs/b2b-platform/internal/repository/redis"
	"github.com/vyapar-labs/b2b-platform/internal/transport/http/middleware"
	"github.com/vyapar-labs/b2b-platform/internal/transport/http/routes"
	"github.com/vyapar-labs/b2b-platform/internal/usecase"
)

const rateLimitKeyPrefix = "b2b:ratelimit"

// Run starts the application and blocks until the context is cancelled or
// the server fails.
func Run(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) error {
	shutdownTracing, err := telemetry.Attach(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("attach telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	redisClient, err := infraRedis.NewClient(cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Warn("redis close failed", zap.Error(err))
		}
	}()

	if err := security.ConfigureArgon2(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}); err != nil {
		return fmt.Errorf("configure argon2: %w", err)
	}

	tokens, err := security.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TokenTTL)
	if err != nil {
		return fmt.Errorf("configure token manager: %w", err)
	}

	var events port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka, log)
		if err != nil {
			return fmt.Errorf("start kafka producer: %w", err)
		}
		defer func() {
			if err := producer.Close(); err != nil {
				log.Warn("kafka producer close failed", zap.Error(err))
			}
		}()
		events = kafka.NewEventPublisher(producer, cfg.App, log)
	} else {
		log.Info("no kafka brokers configured, using logging event publisher")
		events = kafka.NewStubPublisher(log)
	}

	var sender port.EmailSender
	if cfg.SMTP.Host != "" {
		sender = email.NewSMTPSender(cfg.SMTP, log)
	} else {
		log.Warn("no smtp host configured, otp codes are written to the log")
		sender = email.NewLogSender(log)
	}

	verifier := captcha.NewVerifier(cfg.Captcha, log)

	var strength *security.PasswordValidator
	if cfg.Security.MinPasswordScore > 0 {
		strength = security.NewPasswordValidator(
			security.RequirePasswordStrengthRule(cfg.Security.MinPasswordScore),
		)
	}

	repos := postgres.NewRepositories(pool)

	referrals := usecase.NewReferralService(repos.Referrals, log, cfg.Referral.DefaultMaxUses)
	otp := usecase.NewOTPService(repos.Users, repos.Attempts, sender, events, log, usecase.OTPConfig{
		TTL:                     cfg.OTP.TTL,
		Window:                  cfg.OTP.Window,
		MaxGenerationPerEmail:   cfg.OTP.MaxGenerationPerEmail,
		MaxVerificationFailures: cfg.OTP.MaxVerificationFailures,
	})
	registration := usecase.NewRegistrationService(
		repos.Users, referrals, otp, repos.Attempts, repos.Tx, verifier, events, strength, log,
	)
	auth := usecase.NewAuthService(repos.Users, tokens, log)

	limitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: rateLimitKeyPrefix,
		TTL:       2 * cfg.RateLimit.WindowDuration,
	})
	limiter := middleware.NewRateLimiter(limitStore, log)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}

	router := routes.Register(routes.Dependencies{
		Logger: log,
		Config: cfg,
		Services: routes.ServiceSet{
			Auth:         auth,
			Registration: registration,
			OTP:          otp,
			Referrals:    referrals,
		},
		Limiter:  limiter,
		Metrics:  metrics,
		Database: pool,
		Cache:    redisClient,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	log.Info("http server stopped")
	return nil
}
