package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vyapar-labs/b2b-platform/internal/core/domain"
	"github.com/vyapar-labs/b2b-platform/internal/core/port"
)

// TxRunner implements port.TxRunner over a pgx pool.
type TxRunner struct {
	pool *pgxpool.Pool
}

var _ port.TxRunner = (*TxRunner)(nil)

// NewTxRunner constructs a transaction runner.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// WithinTx begins a transaction, hands fn repositories bound to it, and
// commits only when fn returns nil. Context cancellation mid-flight rolls
// the transaction back with everything else.
func (r *TxRunner) WithinTx(ctx context.Context, fn func(tx port.RegistrationTx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	bound := &registrationTx{
		users:     NewUserRepository(r.pool).WithTx(tx),
		referrals: NewReferralRepository(r.pool).WithTx(tx),
	}

	if err := fn(bound); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// registrationTx adapts transaction-bound repositories to port.RegistrationTx.
type registrationTx struct {
	users     *UserRepository
	referrals *ReferralRepository
}

func (t *registrationTx) CreateUser(ctx context.Context, user domain.User) (int64, error) {
	return t.users.Create(ctx, user)
}

func (t *registrationTx) ConsumeReferral(ctx context.Context, code string) error {
	return t.referrals.ConsumeUse(ctx, code)
}
