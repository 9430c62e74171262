package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vyapar-labs/b2b-platform/internal/core/domain"
	"github.com/vyapar-labs/b2b-platform/internal/core/port"
	"github.com/vyapar-labs/b2b-platform/internal/repository"
)

// memUserStore is an in-memory port.UserRepository used across the service
// tests. It reproduces the repository's guarded-update semantics, including
// atomic OTP consumption.
type memUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*domain.User
}

var _ port.UserRepository = (*memUserStore)(nil)

func newMemUserStore() *memUserStore {
	return &memUserStore{nextID: 1, users: map[int64]*domain.User{}}
}

func (s *memUserStore) Create(_ context.Context, user domain.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.ID = s.nextID
	s.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	s.users[user.ID] = &user
	return user.ID, nil
}

func (s *memUserStore) find(match func(*domain.User) bool) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memUserStore) GetByID(_ context.Context, id int64) (*domain.User, error) {
	return s.find(func(u *domain.User) bool { return u.ID == id })
}

func (s *memUserStore) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return s.find(func(u *domain.User) bool { return u.Username == username })
}

func (s *memUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return s.find(func(u *domain.User) bool { return u.Email == email })
}

func (s *memUserStore) GetByPhone(_ context.Context, phone string) (*domain.User, error) {
	return s.find(func(u *domain.User) bool { return u.Phone == phone })
}

func (s *memUserStore) GetByGSTN(_ context.Context, gstn string) (*domain.User, error) {
	return s.find(func(u *domain.User) bool { return u.GSTN != nil && *u.GSTN == gstn })
}

func (s *memUserStore) SetOTP(_ context.Context, email, code string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			u.EmailOTP = &code
			u.OTPExpiresAt = &expiresAt
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *memUserStore) ConsumeOTP(_ context.Context, email, code string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email != email || u.EmailOTP == nil || *u.EmailOTP != code {
			continue
		}
		if u.OTPExpiresAt == nil || !u.OTPExpiresAt.After(now) {
			continue
		}
		u.EmailOTP = nil
		u.OTPExpiresAt = nil
		u.EmailVerified = true
		u.AccountActivated = true
		return u.ID, nil
	}
	return 0, repository.ErrNotFound
}

// memReferralStore is an in-memory port.ReferralRepository with the guarded
// quota increment.
type memReferralStore struct {
	mu        sync.Mutex
	nextID    int64
	referrals map[int64]*domain.Referral

	consumeErr error
}

var _ port.ReferralRepository = (*memReferralStore)(nil)

func newMemReferralStore() *memReferralStore {
	return &memReferralStore{nextID: 1, referrals: map[int64]*domain.Referral{}}
}

func (s *memReferralStore) Create(_ context.Context, referral domain.Referral) (*domain.Referral, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	referral.ID = s.nextID
	s.nextID++
	referral.CreatedAt = time.Now()
	referral.UpdatedAt = referral.CreatedAt
	s.referrals[referral.ID] = &referral

	copied := referral
	return &copied, nil
}

func (s *memReferralStore) GetByCode(_ context.Context, code string) (*domain.Referral, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.referrals {
		if r.Code == code {
			copied := *r
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memReferralStore) ListByCreator(_ context.Context, creatorID int64) ([]domain.Referral, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Referral
	for _, r := range s.referrals {
		if r.CreatedBy == creatorID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *memReferralStore) SetActive(_ context.Context, id int64, creatorID int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.referrals[id]
	if !ok || r.CreatedBy != creatorID {
		return repository.ErrNotFound
	}
	r.IsActive = active
	return nil
}

func (s *memReferralStore) ConsumeUse(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.consumeErr != nil {
		return s.consumeErr
	}

	for _, r := range s.referrals {
		if r.Code != code {
			continue
		}
		if r.UsedCount >= r.MaxUses {
			return repository.ErrQuotaExhausted
		}
		r.UsedCount++
		return nil
	}
	return repository.ErrQuotaExhausted
}

// memAttemptStore is an in-memory port.AttemptRepository.
type memAttemptStore struct {
	mu            sync.Mutex
	registrations []domain.RegistrationAttempt
	otps          []domain.OTPAttempt

	logErr error
}

var _ port.AttemptRepository = (*memAttemptStore)(nil)

func newMemAttemptStore() *memAttemptStore {
	return &memAttemptStore{}
}

func (s *memAttemptStore) LogRegistrationAttempt(_ context.Context, attempt domain.RegistrationAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.logErr != nil {
		return s.logErr
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}
	s.registrations = append(s.registrations, attempt)
	return nil
}

func (s *memAttemptStore) LogOTPAttempt(_ context.Context, attempt domain.OTPAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.logErr != nil {
		return s.logErr
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}
	s.otps = append(s.otps, attempt)
	return nil
}

func (s *memAttemptStore) CountOTPAttemptsByEmail(_ context.Context, email string, kind domain.OTPAttemptKind, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, a := range s.otps {
		if a.Email == email && a.Kind == kind && a.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (s *memAttemptStore) CountOTPAttemptsByIP(_ context.Context, ip string, kind domain.OTPAttemptKind, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, a := range s.otps {
		if a.IPAddress != nil && *a.IPAddress == ip && a.Kind == kind && a.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (s *memAttemptStore) CountFailedVerifications(_ context.Context, email string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, a := range s.otps {
		if a.Email == email && a.Kind == domain.OTPAttemptVerification && !a.Success && a.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (s *memAttemptStore) registrationRows() []domain.RegistrationAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.RegistrationAttempt(nil), s.registrations...)
}

func (s *memAttemptStore) otpRows() []domain.OTPAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OTPAttempt(nil), s.otps...)
}

// memTxRunner runs the registration transaction against the in-memory
// stores. On error it restores both stores to their pre-transaction state so
// rollback behaviour can be asserted.
type memTxRunner struct {
	users     *memUserStore
	referrals *memReferralStore
}

var _ port.TxRunner = (*memTxRunner)(nil)

func (r *memTxRunner) WithinTx(ctx context.Context, fn func(tx port.RegistrationTx) error) error {
	userSnap := r.snapshotUsers()
	refSnap := r.snapshotReferrals()

	err := fn(memRegistrationTx{users: r.users, referrals: r.referrals})
	if err != nil {
		r.restoreUsers(userSnap)
		r.restoreReferrals(refSnap)
		return err
	}
	return nil
}

func (r *memTxRunner) snapshotUsers() map[int64]domain.User {
	r.users.mu.Lock()
	defer r.users.mu.Unlock()

	snap := make(map[int64]domain.User, len(r.users.users))
	for id, u := range r.users.users {
		snap[id] = *u
	}
	return snap
}

func (r *memTxRunner) restoreUsers(snap map[int64]domain.User) {
	r.users.mu.Lock()
	defer r.users.mu.Unlock()

	r.users.users = make(map[int64]*domain.User, len(snap))
	for id, u := range snap {
		copied := u
		r.users.users[id] = &copied
	}
}

func (r *memTxRunner) snapshotReferrals() map[int64]domain.Referral {
	r.referrals.mu.Lock()
	defer r.referrals.mu.Unlock()

	snap := make(map[int64]domain.Referral, len(r.referrals.referrals))
	for id, ref := range r.referrals.referrals {
		snap[id] = *ref
	}
	return snap
}

func (r *memTxRunner) restoreReferrals(snap map[int64]domain.Referral) {
	r.referrals.mu.Lock()
	defer r.referrals.mu.Unlock()

	r.referrals.referrals = make(map[int64]*domain.Referral, len(snap))
	for id, ref := range snap {
		copied := ref
		r.referrals.referrals[id] = &copied
	}
}

type memRegistrationTx struct {
	users     *memUserStore
	referrals *memReferralStore
}

func (tx memRegistrationTx) CreateUser(ctx context.Context, user domain.User) (int64, error) {
	return tx.users.Create(ctx, user)
}

func (tx memRegistrationTx) ConsumeReferral(ctx context.Context, code string) error {
	return tx.referrals.ConsumeUse(ctx, code)
}

// stubEmailSender records deliveries and can be told to fail.
type stubEmailSender struct {
	mu   sync.Mutex
	sent []sentOTP
	fail error
}

type sentOTP struct {
	To        string
	Code      string
	ExpiresAt time.Time
}

var _ port.EmailSender = (*stubEmailSender)(nil)

func (s *stubEmailSender) SendOTP(_ context.Context, to, code string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail != nil {
		return s.fail
	}
	s.sent = append(s.sent, sentOTP{To: to, Code: code, ExpiresAt: expiresAt})
	return nil
}

func (s *stubEmailSender) deliveries() []sentOTP {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentOTP(nil), s.sent...)
}

// stubEventPublisher records published events.
type stubEventPublisher struct {
	mu         sync.Mutex
	registered []domain.UserRegisteredEvent
	activated  []domain.UserActivatedEvent
	fail       error
}

var _ port.EventPublisher = (*stubEventPublisher)(nil)

func (s *stubEventPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail != nil {
		return s.fail
	}
	s.registered = append(s.registered, event)
	return nil
}

func (s *stubEventPublisher) PublishUserActivated(_ context.Context, event domain.UserActivatedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail != nil {
		return s.fail
	}
	s.activated = append(s.activated, event)
	return nil
}

// stubCaptcha returns a fixed verdict and counts how often it is asked.
type stubCaptcha struct {
	enforced    bool
	result      port.CaptchaResult
	err         error
	verifyCalls int
}

var _ port.CaptchaVerifier = (*stubCaptcha)(nil)

func (s *stubCaptcha) Verify(_ context.Context, _, _ string) (port.CaptchaResult, error) {
	s.verifyCalls++
	if s.err != nil {
		return port.CaptchaResult{}, s.err
	}
	return s.result, nil
}

func (s *stubCaptcha) Enforced() bool {
	return s.enforced
}

var errStoreDown = errors.New("store unavailable")
