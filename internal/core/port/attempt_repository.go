package port

import (
	"context"
	"time"

	"github.com/vyapar-labs/b2b-platform/internal/core/domain"
)

// AttemptRepository records registration and OTP attempts and answers the
// windowed counts the rate-limit policy is decided on.
type AttemptRepository interface {
	LogRegistrationAttempt(ctx context.Context, attempt domain.RegistrationAttempt) error
	LogOTPAttempt(ctx context.Context, attempt domain.OTPAttempt) error

	// CountOTPAttemptsByEmail counts attempts of the given kind for an email
	// address with created_at inside (since, now]. Generation counts every
	// outcome.
	CountOTPAttemptsByEmail(ctx context.Context, email string, kind domain.OTPAttemptKind, since time.Time) (int, error)

	// CountOTPAttemptsByIP is the origin-keyed variant of the same count.
	CountOTPAttemptsByIP(ctx context.Context, ip string, kind domain.OTPAttemptKind, since time.Time) (int, error)

	// CountFailedVerifications counts only failed verification attempts for
	// an email inside the window. Successful verifications never count
	// against the caller.
	CountFailedVerifications(ctx context.Context, email string, since time.Time) (int, error)
}
