package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vyapar-labs/b2b-platform/internal/core/domain"
	"github.com/vyapar-labs/b2b-platform/internal/core/port"
	"github.com/vyapar-labs/b2b-platform/internal/infra/logger"
	"github.com/vyapar-labs/b2b-platform/internal/infra/security"
	"github.com/vyapar-labs/b2b-platform/internal/repository"
)

// Messages returned by the OTP flows. The generic variant is shared by
// every generation request whose account cannot receive a code, so the
// response never reveals whether an email is registered.
const (
	MsgOTPMaybeSent     = "If an account with that email exists, an OTP has been sent."
	MsgOTPSent          = "OTP has been sent to your email."
	MsgAccountActivated = "Email verified successfully! Your account is now activated."
)

// OTPConfig tunes code lifetime and the ledger-backed rate policy.
type OTPConfig struct {
	TTL                     time.Duration
	Window                  time.Duration
	MaxGenerationPerEmail   int
	MaxVerificationFailures int
}

func (c OTPConfig) withDefaults() OTPConfig {
	if c.TTL <= 0 {
		c.TTL = 10 * time.Minute
	}
	if c.Window <= 0 {
		c.Window = time.Hour
	}
	if c.MaxGenerationPerEmail <= 0 {
		c.MaxGenerationPerEmail = 5
	}
	if c.MaxVerificationFailures <= 0 {
		c.MaxVerificationFailures = 5
	}
	return c
}

// OTPService owns the verification code lifecycle: generation with
// anti-enumeration behaviour and windowed rate limits, and verification as a
// single atomic consume that activates the account.
type OTPService struct {
	users    port.UserRepository
	attempts port.AttemptRepository
	email    port.EmailSender
	events   port.EventPublisher
	logger   *zap.Logger
	cfg      OTPConfig
	now      func() time.Time
	newCode  func() (string, error)
}

// NewOTPService constructs the OTP service.
func NewOTPService(
	users port.UserRepository,
	attempts port.AttemptRepository,
	email port.EmailSender,
	events port.EventPublisher,
	log *zap.Logger,
	cfg OTPConfig,
) *OTPService {
	return &OTPService{
		users:    users,
		attempts: attempts,
		email:    email,
		events:   events,
		logger:   log,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		newCode:  security.GenerateOTP,
	}
}

// WithClock overrides the time source, used by tests.
func (s *OTPService) WithClock(now func() time.Time) *OTPService {
	if now != nil {
		s.now = now
	}
	return s
}

// GenerateAndSend issues a fresh code for the account behind email, if one
// exists and still needs activation. The returned message is safe to show
// the caller in every outcome that is not an error.
func (s *OTPService) GenerateAndSend(ctx context.Context, email, ip string) (string, error) {
	now := s.now()
	since := now.Add(-s.cfg.Window)

	if err := s.checkGenerationLimit(ctx, email, ip, since); err != nil {
		// A refused request still burns a ledger row, so hammering the
		// endpoint keeps the window saturated.
		s.logOTPAttempt(ctx, email, ip, domain.OTPAttemptGeneration, false)
		return "", err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logOTPAttempt(ctx, email, ip, domain.OTPAttemptGeneration, false)
			return MsgOTPMaybeSent, nil
		}
		return "", fmt.Errorf("lookup user for otp: %w", err)
	}

	// Already-activated accounts get the same generic answer as unknown
	// emails; a different reply would leak activation state.
	if user.AccountActivated {
		s.logOTPAttempt(ctx, email, ip, domain.OTPAttemptGeneration, false)
		return MsgOTPMaybeSent, nil
	}

	code, err := s.newCode()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}

	expiresAt := now.Add(s.cfg.TTL)
	if err := s.users.SetOTP(ctx, email, code, expiresAt); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}

	if err := s.email.SendOTP(ctx, email, code, expiresAt); err != nil {
		s.logger.Warn("otp email delivery failed",
			zap.String("email", logger.MaskEmail(email)),
			zap.Error(err),
		)
		s.logOTPAttempt(ctx, email, ip, domain.OTPAttemptGeneration, false)
		return "", ErrEmailDeliveryFailed
	}

	s.logOTPAttempt(ctx, email, ip, domain.OTPAttemptGeneration, true)

	s.logger.Info("otp issued",
		zap.String("email", logger.MaskEmail(email)),
		zap.Time("expires_at", expiresAt),
	)

	return MsgOTPSent, nil
}

// Verify consumes the code and activates the account. The repository runs
// match, expiry check and consumption as one guarded update, so a replayed
// or raced code cannot succeed twice.
func (s *OTPService) Verify(ctx context.Context, email, code, ip string) (int64, string, error) {
	now := s.now()
	since := now.Add(-s.cfg.Window)

	failures, err := s.attempts.CountFailedVerifications(ctx, email, since)
	if err != nil {
		return 0, "", fmt.Errorf("count failed verifications: %w", err)
	}
	if failures >= s.cfg.MaxVerificationFailures {
		return 0, "", &RateLimitExceededError{
			Scope:      "otp_verification",
			Message:    "Too many failed OTP verification attempts. Please request a new OTP.",
			RetryAfter: s.cfg.Window,
		}
	}

	userID, err := s.users.ConsumeOTP(ctx, email, code, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logOTPAttempt(ctx, email, ip, domain.OTPAttemptVerification, false)
			return 0, "", ErrOTPInvalid
		}
		return 0, "", fmt.Errorf("consume otp: %w", err)
	}

	s.logOTPAttempt(ctx, email, ip, domain.OTPAttemptVerification, true)

	if s.events != nil {
		event := domain.UserActivatedEvent{
			EventID:     uuid.NewString(),
			UserID:      userID,
			Email:       logger.MaskEmail(email),
			ActivatedAt: now,
		}
		if err := s.events.PublishUserActivated(ctx, event); err != nil {
			s.logger.Warn("publish user activated event failed", zap.Error(err))
		}
	}

	s.logger.Info("account activated",
		zap.Int64("user_id", userID),
		zap.String("email", logger.MaskEmail(email)),
	)

	return userID, MsgAccountActivated, nil
}

func (s *OTPService) checkGenerationLimit(ctx context.Context, email, ip string, since time.Time) error {
	count, err := s.attempts.CountOTPAttemptsByEmail(ctx, email, domain.OTPAttemptGeneration, since)
	if err != nil {
		return fmt.Errorf("count otp generations: %w", err)
	}
	if count >= s.cfg.MaxGenerationPerEmail {
		return &RateLimitExceededError{
			Scope:      "otp_generation",
			Message:    "Too many OTP requests. Please try again later.",
			RetryAfter: s.cfg.Window,
		}
	}

	if ip == "" {
		return nil
	}

	ipCount, err := s.attempts.CountOTPAttemptsByIP(ctx, ip, domain.OTPAttemptGeneration, since)
	if err != nil {
		return fmt.Errorf("count otp generations by ip: %w", err)
	}
	if ipCount >= 2*s.cfg.MaxGenerationPerEmail {
		return &RateLimitExceededError{
			Scope:      "otp_generation_ip",
			Message:    "Too many OTP requests from this IP address. Please try again later.",
			RetryAfter: s.cfg.Window,
		}
	}

	return nil
}

// logOTPAttempt appends one ledger row. A write failure degrades the rate
// window instead of failing the caller's request.
func (s *OTPService) logOTPAttempt(ctx context.Context, email, ip string, kind domain.OTPAttemptKind, success bool) {
	attempt := domain.OTPAttempt{
		Email:   email,
		Kind:    kind,
		Success: success,
	}
	if ip != "" {
		attempt.IPAddress = &ip
	}

	if err := s.attempts.LogOTPAttempt(ctx, attempt); err != nil {
		s.logger.Warn("log otp attempt failed",
			zap.String("email", logger.MaskEmail(email)),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}
