package usecase

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials indicates an unknown username or a wrong
	// password. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("Invalid credentials")

	// ErrNotActivated indicates a login attempt on an account that has not
	// verified its email OTP yet.
	ErrNotActivated = errors.New("Account not activated. Please verify your email with the OTP sent during registration.")

	// ErrPasswordLoginUnavailable indicates a password login attempt on an
	// account that has no password hash stored.
	ErrPasswordLoginUnavailable = errors.New("Please use Email OTP to login. No password set for this account.")

	// ErrOTPInvalid covers every verification failure: wrong code, expired
	// code, consumed code, unknown email. Callers must not learn which.
	ErrOTPInvalid = errors.New("Invalid or expired OTP")

	// ErrEmailDeliveryFailed indicates the OTP could not be handed to the
	// mail transport.
	ErrEmailDeliveryFailed = errors.New("Failed to send OTP email. Please try again.")

	// ErrCaptchaRejected indicates the bot-score gate refused the request.
	ErrCaptchaRejected = errors.New("Captcha verification failed")

	// ErrReferralInvalid is the common base of every referral validation
	// failure; the concrete *ReferralValidationError carries the reason.
	ErrReferralInvalid = errors.New("referral code invalid")

	// ErrInvalidInput flags a malformed management-API request.
	ErrInvalidInput = errors.New("invalid input")

	// Duplicate identifier errors surfaced during registration.
	ErrUsernameTaken = errors.New("Username already exists")
	ErrEmailTaken    = errors.New("Email already exists")
	ErrPhoneTaken    = errors.New("Phone number already exists")
	ErrGSTNTaken     = errors.New("GSTN already registered")
)

// RateLimitExceededError reports that a windowed limit refused the request.
type RateLimitExceededError struct {
	Scope      string
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("rate limit exceeded for %s", e.Scope)
}

// Referral validation failure reasons.
const (
	ReferralReasonRequired       = "required"
	ReferralReasonNotFound       = "not_found"
	ReferralReasonInactive       = "inactive"
	ReferralReasonExpired        = "expired"
	ReferralReasonExhausted      = "exhausted"
	ReferralReasonDomainMismatch = "domain_mismatch"
)

// ReferralValidationError describes why a referral code was refused.
type ReferralValidationError struct {
	Reason  string
	Message string
}

func (e *ReferralValidationError) Error() string {
	return e.Message
}

// Unwrap lets callers match any referral failure with
// errors.Is(err, ErrReferralInvalid).
func (e *ReferralValidationError) Unwrap() error {
	return ErrReferralInvalid
}
