package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/vyapar-labs/b2b-platform/internal/core/domain"
	"github.com/vyapar-labs/b2b-platform/internal/core/port"
	"github.com/vyapar-labs/b2b-platform/internal/infra/logger"
	"github.com/vyapar-labs/b2b-platform/internal/infra/security"
	"github.com/vyapar-labs/b2b-platform/internal/repository"
	"github.com/vyapar-labs/b2b-platform/internal/validation"
)

// MsgRegistrationAccepted is returned when the account has been created and
// is awaiting OTP verification.
const MsgRegistrationAccepted = "Registration successful! Please verify your email with the OTP sent to activate your account."

const uniqueViolationCode = "23505"

// RegistrationService orchestrates the referral-gated registration pipeline:
// bot-score gate, field validation, referral validation, uniqueness checks,
// then a single transaction creating the user and spending the referral use.
type RegistrationService struct {
	users     port.UserRepository
	referrals *ReferralService
	otp       *OTPService
	attempts  port.AttemptRepository
	tx        port.TxRunner
	captcha   port.CaptchaVerifier
	events    port.EventPublisher
	strength  *security.PasswordValidator
	logger    *zap.Logger
	now       func() time.Time
}

// NewRegistrationService constructs the orchestrator. strength may be nil
// when no additional password scoring is configured.
func NewRegistrationService(
	users port.UserRepository,
	referrals *ReferralService,
	otp *OTPService,
	attempts port.AttemptRepository,
	tx port.TxRunner,
	captcha port.CaptchaVerifier,
	events port.EventPublisher,
	strength *security.PasswordValidator,
	log *zap.Logger,
) *RegistrationService {
	return &RegistrationService{
		users:     users,
		referrals: referrals,
		otp:       otp,
		attempts:  attempts,
		tx:        tx,
		captcha:   captcha,
		events:    events,
		strength:  strength,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock overrides the time source, used by tests.
func (s *RegistrationService) WithClock(now func() time.Time) *RegistrationService {
	if now != nil {
		s.now = now
	}
	return s
}

// RegisterInput carries one registration request.
type RegisterInput struct {
	Username        string
	Email           string
	Phone           string
	GSTN            string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
	ReferralCode    string
	CaptchaToken    string
	IPAddress       string
	UserAgent       string
}

// RegisterResult reports the outcome of an accepted registration.
type RegisterResult struct {
	UserID      int64
	Message     string
	RequiresOTP bool
}

// Register runs the pipeline. Every terminal outcome, accepted or refused,
// writes exactly one registration attempt row.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	if err := s.checkCaptcha(ctx, input); err != nil {
		s.logFailure(ctx, input, err.Error())
		return nil, err
	}

	if err := s.validateFields(input); err != nil {
		s.logFailure(ctx, input, err.Error())
		return nil, err
	}

	if _, err := s.referrals.Validate(ctx, input.ReferralCode, input.Email); err != nil {
		var refErr *ReferralValidationError
		if errors.As(err, &refErr) {
			s.logFailure(ctx, input, "Invalid referral: "+refErr.Message)
		} else {
			s.logFailure(ctx, input, err.Error())
		}
		return nil, err
	}

	if err := s.checkUniqueness(ctx, input); err != nil {
		s.logFailure(ctx, input, err.Error())
		return nil, err
	}

	// Hash before opening the transaction; argon2 takes tens of
	// milliseconds and must not hold row locks.
	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		s.logFailure(ctx, input, "password hashing failed")
		return nil, fmt.Errorf("hash password: %w", err)
	}

	gstn := validation.NormalizeGSTN(input.GSTN)
	user := domain.User{
		Username:     input.Username,
		Email:        input.Email,
		Phone:        validation.NormalizePhone(input.Phone),
		GSTN:         &gstn,
		PasswordHash: &passwordHash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		ReferralCode: &input.ReferralCode,
	}

	var userID int64
	txErr := s.tx.WithinTx(ctx, func(tx port.RegistrationTx) error {
		id, err := tx.CreateUser(ctx, user)
		if err != nil {
			return err
		}

		// Spending the referral use inside the same transaction ties the
		// new account to the quota: if the guarded increment matches no
		// row, the user insert rolls back with it.
		if err := tx.ConsumeReferral(ctx, input.ReferralCode); err != nil {
			return err
		}

		userID = id
		return nil
	})
	if txErr != nil {
		mapped := s.mapTxError(txErr)
		s.logFailure(ctx, input, mapped.Error())
		return nil, mapped
	}

	// Post-commit: OTP delivery is best-effort; the account exists either
	// way and the owner can request a fresh code.
	if _, err := s.otp.GenerateAndSend(ctx, input.Email, input.IPAddress); err != nil {
		s.logger.Warn("post-registration otp send failed",
			zap.String("email", logger.MaskEmail(input.Email)),
			zap.Error(err),
		)
	}

	s.publishRegistered(ctx, userID, input)
	s.logSuccess(ctx, input)

	s.logger.Info("user registered",
		zap.Int64("user_id", userID),
		zap.String("username", input.Username),
		zap.String("email", logger.MaskEmail(input.Email)),
		zap.String("referral_code", logger.MaskString(input.ReferralCode)),
	)

	return &RegisterResult{
		UserID:      userID,
		Message:     MsgRegistrationAccepted,
		RequiresOTP: true,
	}, nil
}

func (s *RegistrationService) checkCaptcha(ctx context.Context, input RegisterInput) error {
	// The gate only scores requests that present a token; token-less
	// traffic is admitted and left to the rate limits.
	if s.captcha == nil || !s.captcha.Enforced() || input.CaptchaToken == "" {
		return nil
	}

	result, err := s.captcha.Verify(ctx, input.CaptchaToken, "register")
	if err != nil {
		s.logger.Warn("captcha verification error",
			zap.String("ip", logger.MaskIP(input.IPAddress)),
			zap.Error(err),
		)
		return ErrCaptchaRejected
	}
	if !result.Valid {
		s.logger.Info("captcha rejected registration",
			zap.String("ip", logger.MaskIP(input.IPAddress)),
			zap.Float64("score", result.Score),
			zap.String("reason", result.Reason),
		)
		return ErrCaptchaRejected
	}

	return nil
}

func (s *RegistrationService) validateFields(input RegisterInput) error {
	if input.FirstName != "" {
		if err := validation.ValidateName("First name", input.FirstName); err != nil {
			return err
		}
	}
	if input.LastName != "" {
		if err := validation.ValidateName("Last name", input.LastName); err != nil {
			return err
		}
	}
	if err := validation.ValidateEmail(input.Email); err != nil {
		return err
	}
	if err := validation.ValidatePhone(input.Phone); err != nil {
		return err
	}
	if err := validation.ValidateGSTN(input.GSTN); err != nil {
		return err
	}
	if err := validation.ValidatePassword(input.Password, input.ConfirmPassword); err != nil {
		return err
	}
	if s.strength != nil {
		if err := s.strength.Validate(input.Password); err != nil {
			return err
		}
	}
	return nil
}

// checkUniqueness reports the first taken identifier in a fixed field order:
// username, email, phone, tax id.
func (s *RegistrationService) checkUniqueness(ctx context.Context, input RegisterInput) error {
	checks := []struct {
		lookup func(context.Context) (*domain.User, error)
		taken  error
	}{
		{func(ctx context.Context) (*domain.User, error) {
			return s.users.GetByUsername(ctx, input.Username)
		}, ErrUsernameTaken},
		{func(ctx context.Context) (*domain.User, error) {
			return s.users.GetByEmail(ctx, input.Email)
		}, ErrEmailTaken},
		{func(ctx context.Context) (*domain.User, error) {
			return s.users.GetByPhone(ctx, validation.NormalizePhone(input.Phone))
		}, ErrPhoneTaken},
		{func(ctx context.Context) (*domain.User, error) {
			return s.users.GetByGSTN(ctx, validation.NormalizeGSTN(input.GSTN))
		}, ErrGSTNTaken},
	}

	for _, check := range checks {
		_, err := check.lookup(ctx)
		switch {
		case err == nil:
			return check.taken
		case errors.Is(err, repository.ErrNotFound):
			continue
		default:
			return fmt.Errorf("uniqueness check: %w", err)
		}
	}

	return nil
}

// mapTxError translates transaction failures into caller-facing errors. The
// guarded referral increment losing a race surfaces as the exhausted
// referral error; unique-constraint violations cover the window between the
// pre-checks and the insert.
func (s *RegistrationService) mapTxError(err error) error {
	if errors.Is(err, repository.ErrQuotaExhausted) {
		return &ReferralValidationError{
			Reason:  ReferralReasonExhausted,
			Message: "Referral code has reached maximum uses",
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		switch pgErr.ConstraintName {
		case "users_username_key":
			return ErrUsernameTaken
		case "users_email_key":
			return ErrEmailTaken
		case "users_phone_key":
			return ErrPhoneTaken
		case "users_gstn_key":
			return ErrGSTNTaken
		}
	}

	return fmt.Errorf("registration transaction: %w", err)
}

func (s *RegistrationService) publishRegistered(ctx context.Context, userID int64, input RegisterInput) {
	if s.events == nil {
		return
	}

	event := domain.UserRegisteredEvent{
		EventID:      uuid.NewString(),
		UserID:       userID,
		Username:     input.Username,
		Email:        logger.MaskEmail(input.Email),
		ReferralCode: input.ReferralCode,
		RegisteredAt: s.now(),
	}
	if err := s.events.PublishUserRegistered(ctx, event); err != nil {
		s.logger.Warn("publish user registered event failed", zap.Error(err))
	}
}

func (s *RegistrationService) logSuccess(ctx context.Context, input RegisterInput) {
	s.logAttempt(ctx, input, true, "")
}

func (s *RegistrationService) logFailure(ctx context.Context, input RegisterInput, reason string) {
	s.logAttempt(ctx, input, false, reason)
}

// logAttempt appends the single audit row every terminal outcome produces.
// Failure to record it must not change the caller-facing result.
func (s *RegistrationService) logAttempt(ctx context.Context, input RegisterInput, success bool, reason string) {
	attempt := domain.RegistrationAttempt{
		Email:     input.Email,
		IPAddress: input.IPAddress,
		Success:   success,
	}
	if input.Phone != "" {
		phone := validation.NormalizePhone(input.Phone)
		attempt.Phone = &phone
	}
	if input.ReferralCode != "" {
		attempt.ReferralCode = &input.ReferralCode
	}
	if reason != "" {
		attempt.FailureReason = &reason
	}
	if input.UserAgent != "" {
		attempt.UserAgent = &input.UserAgent
	}

	if err := s.attempts.LogRegistrationAttempt(ctx, attempt); err != nil {
		s.logger.Warn("log registration attempt failed",
			zap.String("email", logger.MaskEmail(input.Email)),
			zap.Error(err),
		)
	}
}
