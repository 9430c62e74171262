package port

import (
	"context"

	"github.com/vyapar-labs/b2b-platform/internal/core/domain"
)

// RegistrationTx exposes the two writes that must land atomically when a
// referral-gated account is created.
type RegistrationTx interface {
	CreateUser(ctx context.Context, user domain.User) (int64, error)
	ConsumeReferral(ctx context.Context, code string) error
}

// TxRunner runs fn inside a database transaction. Any error from fn rolls
// the transaction back; a nil return commits.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(tx RegistrationTx) error) error
}
