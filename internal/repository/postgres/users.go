package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/vyapar-labs/b2b-platform/internal/core/domain"
	"github.com/vyapar-labs/b2b-platform/internal/core/port"
	"github.com/vyapar-labs/b2b-platform/internal/repository"
)

var userColumns = []string{
	"id",
	"username",
	"email",
	"phone",
	"gstn",
	"password_hash",
	"first_name",
	"last_name",
	"email_verified",
	"account_activated",
	"email_otp",
	"otp_expires_at",
	"referral_code",
	"created_at",
	"updated_at",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var _ port.UserRepository = (*UserRepository)(nil)

// NewUserRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: statementBuilder(),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	if tx == nil {
		return r
	}
	return &UserRepository{
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new user row and returns the generated id.
func (r *UserRepository) Create(ctx context.Context, user domain.User) (int64, error) {
	query := r.builder.Insert("users").
		Columns(
			"username",
			"email",
			"phone",
			"gstn",
			"password_hash",
			"first_name",
			"last_name",
			"email_verified",
			"account_activated",
			"email_otp",
			"otp_expires_at",
			"referral_code",
		).
		Values(
			user.Username,
			user.Email,
			user.Phone,
			user.GSTN,
			user.PasswordHash,
			user.FirstName,
			user.LastName,
			user.EmailVerified,
			user.AccountActivated,
			user.EmailOTP,
			user.OTPExpiresAt,
			user.ReferralCode,
		).
		Suffix("RETURNING id")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert user query: %w", err)
	}

	var id int64
	if err := r.exec.QueryRow(ctx, sqlStr, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}

	return id, nil
}

// GetByID fetches a user by primary key.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getBy(ctx, squirrel.Eq{"id": id})
}

// GetByUsername fetches a user by unique username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getBy(ctx, squirrel.Eq{"username": username})
}

// GetByEmail fetches a user by unique email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getBy(ctx, squirrel.Eq{"email": email})
}

// GetByPhone fetches a user by unique phone number.
func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return r.getBy(ctx, squirrel.Eq{"phone": phone})
}

// GetByGSTN fetches a user by unique tax identification number.
func (r *UserRepository) GetByGSTN(ctx context.Context, gstn string) (*domain.User, error) {
	return r.getBy(ctx, squirrel.Eq{"gstn": gstn})
}

func (r *UserRepository) getBy(ctx context.Context, pred squirrel.Eq) (*domain.User, error) {
	query := r.builder.Select(userColumns...).
		From("users").
		Where(pred).
		Limit(1)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user query: %w", err)
	}

	user, err := scanUser(r.exec.QueryRow(ctx, sqlStr, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}

	return user, nil
}

// SetOTP overwrites the account's OTP slot. The previous code, if any, stops
// being valid the moment this statement lands.
func (r *UserRepository) SetOTP(ctx context.Context, email, code string, expiresAt time.Time) error {
	query := r.builder.Update("users").
		Set("email_otp", code).
		Set("otp_expires_at", expiresAt).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"email": email})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build set otp query: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("set otp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ConsumeOTP clears a matching unexpired OTP slot, marks the account
// verified and activated, and returns the user id. Expiry, code match and
// consumption are decided by the row predicate in one statement, so two
// racing verifications can never both succeed.
func (r *UserRepository) ConsumeOTP(ctx context.Context, email, code string, now time.Time) (int64, error) {
	query := r.builder.Update("users").
		Set("email_otp", nil).
		Set("otp_expires_at", nil).
		Set("email_verified", true).
		Set("account_activated", true).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"email": email, "email_otp": code}).
		Where(squirrel.Gt{"otp_expires_at": now}).
		Suffix("RETURNING id")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build consume otp query: %w", err)
	}

	var id int64
	if err := r.exec.QueryRow(ctx, sqlStr, args...).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("consume otp: %w", err)
	}

	return id, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user         domain.User
		gstn         sql.NullString
		passwordHash sql.NullString
		emailOTP     sql.NullString
		otpExpiresAt sql.NullTime
		referralCode sql.NullString
	)

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Phone,
		&gstn,
		&passwordHash,
		&user.FirstName,
		&user.LastName,
		&user.EmailVerified,
		&user.AccountActivated,
		&emailOTP,
		&otpExpiresAt,
		&referralCode,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if gstn.Valid {
		user.GSTN = &gstn.String
	}
	if passwordHash.Valid {
		user.PasswordHash = &passwordHash.String
	}
	if emailOTP.Valid {
		user.EmailOTP = &emailOTP.String
	}
	if otpExpiresAt.Valid {
		t := otpExpiresAt.Time
		user.OTPExpiresAt = &t
	}
	if referralCode.Valid {
		user.ReferralCode = &referralCode.String
	}

	return &user, nil
}
