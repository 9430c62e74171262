package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/vyapar-labs/b2b-platform/internal/core/domain"
	"github.com/vyapar-labs/b2b-platform/internal/core/port"
)

// AttemptRepository implements port.AttemptRepository using PostgreSQL. The
// tables are append-only; rate-limit decisions read windowed counts.
type AttemptRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var _ port.AttemptRepository = (*AttemptRepository)(nil)

// NewAttemptRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewAttemptRepository(exec pgExecutor) *AttemptRepository {
	return &AttemptRepository{
		exec:    exec,
		builder: statementBuilder(),
	}
}

// LogRegistrationAttempt appends one registration audit row.
func (r *AttemptRepository) LogRegistrationAttempt(ctx context.Context, attempt domain.RegistrationAttempt) error {
	query := r.builder.Insert("registration_attempts").
		Columns("email", "phone", "ip_address", "referral_code", "success", "failure_reason", "user_agent").
		Values(attempt.Email, attempt.Phone, attempt.IPAddress, attempt.ReferralCode, attempt.Success, attempt.FailureReason, attempt.UserAgent)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert registration attempt query: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert registration attempt: %w", err)
	}

	return nil
}

// LogOTPAttempt appends one OTP audit row.
func (r *AttemptRepository) LogOTPAttempt(ctx context.Context, attempt domain.OTPAttempt) error {
	query := r.builder.Insert("otp_attempts").
		Columns("email", "ip_address", "attempt_type", "success").
		Values(attempt.Email, attempt.IPAddress, string(attempt.Kind), attempt.Success)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert otp attempt query: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert otp attempt: %w", err)
	}

	return nil
}

// CountOTPAttemptsByEmail counts attempts of one kind for an email since the
// window start, regardless of outcome.
func (r *AttemptRepository) CountOTPAttemptsByEmail(ctx context.Context, email string, kind domain.OTPAttemptKind, since time.Time) (int, error) {
	return r.countOTP(ctx, squirrel.And{
		squirrel.Eq{"email": email, "attempt_type": string(kind)},
		squirrel.Gt{"created_at": since},
	})
}

// CountOTPAttemptsByIP counts attempts of one kind from an origin address
// since the window start.
func (r *AttemptRepository) CountOTPAttemptsByIP(ctx context.Context, ip string, kind domain.OTPAttemptKind, since time.Time) (int, error) {
	return r.countOTP(ctx, squirrel.And{
		squirrel.Eq{"ip_address": ip, "attempt_type": string(kind)},
		squirrel.Gt{"created_at": since},
	})
}

// CountFailedVerifications counts failed verification attempts only, so a
// successful verification never penalizes later requests.
func (r *AttemptRepository) CountFailedVerifications(ctx context.Context, email string, since time.Time) (int, error) {
	return r.countOTP(ctx, squirrel.And{
		squirrel.Eq{
			"email":        email,
			"attempt_type": string(domain.OTPAttemptVerification),
			"success":      false,
		},
		squirrel.Gt{"created_at": since},
	})
}

func (r *AttemptRepository) countOTP(ctx context.Context, pred squirrel.Sqlizer) (int, error) {
	query := r.builder.Select("COUNT(*)").
		From("otp_attempts").
		Where(pred)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count otp attempts query: %w", err)
	}

	var count int
	if err := r.exec.QueryRow(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count otp attempts: %w", err)
	}

	return count, nil
}
