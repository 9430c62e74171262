package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/vyapar-labs/b2b-platform/internal/core/domain"
	"github.com/vyapar-labs/b2b-platform/internal/core/port"
	"github.com/vyapar-labs/b2b-platform/internal/repository"
)

var referralColumns = []string{
	"id",
	"code",
	"created_by",
	"max_uses",
	"used_count",
	"expires_at",
	"allowed_email_domain",
	"is_active",
	"created_at",
	"updated_at",
}

// ReferralRepository implements port.ReferralRepository using PostgreSQL.
type ReferralRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var _ port.ReferralRepository = (*ReferralRepository)(nil)

// NewReferralRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewReferralRepository(exec pgExecutor) *ReferralRepository {
	return &ReferralRepository{
		exec:    exec,
		builder: statementBuilder(),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *ReferralRepository) WithTx(tx pgx.Tx) *ReferralRepository {
	if tx == nil {
		return r
	}
	return &ReferralRepository{
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a referral and returns the stored row.
func (r *ReferralRepository) Create(ctx context.Context, referral domain.Referral) (*domain.Referral, error) {
	query := r.builder.Insert("referrals").
		Columns(
			"code",
			"created_by",
			"max_uses",
			"used_count",
			"expires_at",
			"allowed_email_domain",
			"is_active",
		).
		Values(
			referral.Code,
			referral.CreatedBy,
			referral.MaxUses,
			referral.UsedCount,
			referral.ExpiresAt,
			referral.AllowedEmailDomain,
			referral.IsActive,
		).
		Suffix("RETURNING id, created_at, updated_at")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert referral query: %w", err)
	}

	stored := referral
	if err := r.exec.QueryRow(ctx, sqlStr, args...).Scan(&stored.ID, &stored.CreatedAt, &stored.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert referral: %w", err)
	}

	return &stored, nil
}

// GetByCode fetches a referral by its code.
func (r *ReferralRepository) GetByCode(ctx context.Context, code string) (*domain.Referral, error) {
	query := r.builder.Select(referralColumns...).
		From("referrals").
		Where(squirrel.Eq{"code": code}).
		Limit(1)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select referral query: %w", err)
	}

	referral, err := scanReferral(r.exec.QueryRow(ctx, sqlStr, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select referral: %w", err)
	}

	return referral, nil
}

// ListByCreator returns the referrals owned by a user, newest first.
func (r *ReferralRepository) ListByCreator(ctx context.Context, creatorID int64) ([]domain.Referral, error) {
	query := r.builder.Select(referralColumns...).
		From("referrals").
		Where(squirrel.Eq{"created_by": creatorID}).
		OrderBy("created_at DESC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list referrals query: %w", err)
	}

	rows, err := r.exec.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	defer rows.Close()

	var referrals []domain.Referral
	for rows.Next() {
		referral, err := scanReferral(rows)
		if err != nil {
			return nil, fmt.Errorf("scan referral: %w", err)
		}
		referrals = append(referrals, *referral)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate referrals: %w", err)
	}

	return referrals, nil
}

// SetActive toggles a referral owned by creatorID.
func (r *ReferralRepository) SetActive(ctx context.Context, id int64, creatorID int64, active bool) error {
	query := r.builder.Update("referrals").
		Set("is_active", active).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id, "created_by": creatorID})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build set referral active query: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("set referral active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ConsumeUse spends one use of the code. The used_count < max_uses predicate
// makes the quota check and the increment a single atomic statement: under
// concurrent registrations the row lock serializes updates and the losing
// statement matches zero rows.
func (r *ReferralRepository) ConsumeUse(ctx context.Context, code string) error {
	query := r.builder.Update("referrals").
		Set("used_count", squirrel.Expr("used_count + 1")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"code": code}).
		Where(squirrel.Expr("used_count < max_uses"))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build consume referral query: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("consume referral: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrQuotaExhausted
	}

	return nil
}

func scanReferral(row pgx.Row) (*domain.Referral, error) {
	var (
		referral  domain.Referral
		expiresAt sql.NullTime
		domainStr sql.NullString
	)

	err := row.Scan(
		&referral.ID,
		&referral.Code,
		&referral.CreatedBy,
		&referral.MaxUses,
		&referral.UsedCount,
		&expiresAt,
		&domainStr,
		&referral.IsActive,
		&referral.CreatedAt,
		&referral.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if expiresAt.Valid {
		t := expiresAt.Time
		referral.ExpiresAt = &t
	}
	if domainStr.Valid {
		referral.AllowedEmailDomain = &domainStr.String
	}

	return &referral, nil
}
