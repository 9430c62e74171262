package port

import (
	"context"
	"time"

	"github.com/vyapar-labs/b2b-platform/internal/core/domain"
)

// UserRepository persists user accounts.
//
// Lookup methods return repository.ErrNotFound when no row matches.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	GetByGSTN(ctx context.Context, gstn string) (*domain.User, error)

	// SetOTP overwrites the account's OTP slot with a fresh code and expiry.
	SetOTP(ctx context.Context, email, code string, expiresAt time.Time) error

	// ConsumeOTP atomically clears a matching, unexpired OTP slot and marks
	// the account verified and activated, returning the user id. A stale,
	// mismatched or already-consumed code yields repository.ErrNotFound;
	// callers must not distinguish which condition failed.
	ConsumeOTP(ctx context.Context, email, code string, now time.Time) (int64, error)
}
