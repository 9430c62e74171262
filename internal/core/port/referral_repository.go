package port

import (
	"context"

	"github.com/vyapar-labs/b2b-platform/internal/core/domain"
)

// ReferralRepository persists referral codes and their usage quota.
type ReferralRepository interface {
	Create(ctx context.Context, referral domain.Referral) (*domain.Referral, error)
	GetByCode(ctx context.Context, code string) (*domain.Referral, error)
	ListByCreator(ctx context.Context, creatorID int64) ([]domain.Referral, error)
	SetActive(ctx context.Context, id int64, creatorID int64, active bool) error

	// ConsumeUse increments used_count only while it is below max_uses, in a
	// single guarded statement. When the guard refuses (code missing or quota
	// spent) it returns repository.ErrQuotaExhausted.
	ConsumeUse(ctx context.Context, code string) error
}
