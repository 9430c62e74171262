package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vyapar-labs/b2b-platform/internal/core/domain"
	"github.com/vyapar-labs/b2b-platform/internal/core/port"
	"github.com/vyapar-labs/b2b-platform/internal/infra/logger"
	"github.com/vyapar-labs/b2b-platform/internal/infra/security"
	"github.com/vyapar-labs/b2b-platform/internal/repository"
)

// AuthService handles credential login and session token issuance. Login is
// gated on account activation: a correct password on a pending account is
// still refused, with an error distinct from bad credentials.
type AuthService struct {
	users  port.UserRepository
	tokens *security.TokenManager
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthService constructs the auth service.
func NewAuthService(users port.UserRepository, tokens *security.TokenManager, log *zap.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		logger: log,
		now:    time.Now,
	}
}

// WithClock overrides the time source, used by tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	if now != nil {
		s.now = now
	}
	return s
}

// Login verifies the credentials and returns the account plus a signed
// session token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("lookup user: %w", err)
	}

	if !user.AccountActivated {
		return nil, "", ErrNotActivated
	}
	if !user.CanLoginWithPassword() {
		return nil, "", ErrPasswordLoginUnavailable
	}

	ok, err := security.VerifyPassword(password, *user.PasswordHash)
	if err != nil {
		return nil, "", fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.logger.Info("login rejected",
			zap.String("username", username),
			zap.String("reason", "password mismatch"),
		)
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Username, s.now())
	if err != nil {
		return nil, "", fmt.Errorf("issue session token: %w", err)
	}

	s.logger.Info("user logged in",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
		zap.String("email", logger.MaskEmail(user.Email)),
	)

	return user, token, nil
}

// SessionForUser issues a session token for an account looked up by id,
// used after OTP verification so the freshly activated owner lands logged
// in. The return shape mirrors Login.
func (s *AuthService) SessionForUser(ctx context.Context, userID int64) (*domain.User, string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", repository.ErrNotFound
		}
		return nil, "", fmt.Errorf("lookup user: %w", err)
	}

	token, err := s.tokens.Issue(user.ID, user.Username, s.now())
	if err != nil {
		return nil, "", fmt.Errorf("issue session token: %w", err)
	}

	return user, token, nil
}

// ParseToken verifies a presented session token.
func (s *AuthService) ParseToken(raw string) (*security.SessionClaims, error) {
	return s.tokens.Parse(raw)
}

// GetUserByID fetches an account for the authenticated-profile endpoint.
func (s *AuthService) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}
