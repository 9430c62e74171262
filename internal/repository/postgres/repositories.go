package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Users     *UserRepository
	Referrals *ReferralRepository
	Attempts  *AttemptRepository
	Tx        *TxRunner
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Users:     NewUserRepository(pool),
		Referrals: NewReferralRepository(pool),
		Attempts:  NewAttemptRepository(pool),
		Tx:        NewTxRunner(pool),
	}
}
