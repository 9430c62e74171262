package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vyapar-labs/b2b-platform/internal/core/domain"
	"github.com/vyapar-labs/b2b-platform/internal/core/port"
	"github.com/vyapar-labs/b2b-platform/internal/infra/logger"
	"github.com/vyapar-labs/b2b-platform/internal/infra/security"
	"github.com/vyapar-labs/b2b-platform/internal/repository"
)

var emailDomainRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]{0,61}[a-zA-Z0-9]?\.[a-zA-Z]{2,}$`)

// ReferralService manages referral codes and validates them during
// registration. The usage quota itself is spent inside the registration
// transaction, not here.
type ReferralService struct {
	referrals      port.ReferralRepository
	logger         *zap.Logger
	defaultMaxUses int
	now            func() time.Time
}

// NewReferralService constructs the referral service.
func NewReferralService(referrals port.ReferralRepository, log *zap.Logger, defaultMaxUses int) *ReferralService {
	if defaultMaxUses <= 0 {
		defaultMaxUses = 10
	}
	return &ReferralService{
		referrals:      referrals,
		logger:         log,
		defaultMaxUses: defaultMaxUses,
		now:            time.Now,
	}
}

// WithClock overrides the time source, used by tests.
func (s *ReferralService) WithClock(now func() time.Time) *ReferralService {
	if now != nil {
		s.now = now
	}
	return s
}

// CreateReferralInput carries the optional knobs for a new referral code.
type CreateReferralInput struct {
	MaxUses            int
	ExpiresAt          *time.Time
	AllowedEmailDomain *string
}

// Create validates the input, generates a fresh code and stores it.
func (s *ReferralService) Create(ctx context.Context, creatorID int64, input CreateReferralInput) (*domain.Referral, error) {
	maxUses := input.MaxUses
	if maxUses == 0 {
		maxUses = s.defaultMaxUses
	}
	if maxUses < 1 {
		return nil, fmt.Errorf("%w: max_uses must be at least 1", ErrInvalidInput)
	}
	if input.ExpiresAt != nil && !input.ExpiresAt.After(s.now()) {
		return nil, fmt.Errorf("%w: expires_at must be in the future", ErrInvalidInput)
	}
	if input.AllowedEmailDomain != nil && *input.AllowedEmailDomain != "" {
		if !emailDomainRegex.MatchString(*input.AllowedEmailDomain) {
			return nil, fmt.Errorf("%w: invalid email domain format", ErrInvalidInput)
		}
	}

	code, err := s.generateCode()
	if err != nil {
		return nil, err
	}

	referral, err := s.referrals.Create(ctx, domain.Referral{
		Code:               code,
		CreatedBy:          creatorID,
		MaxUses:            maxUses,
		UsedCount:          0,
		ExpiresAt:          input.ExpiresAt,
		AllowedEmailDomain: input.AllowedEmailDomain,
		IsActive:           true,
	})
	if err != nil {
		return nil, fmt.Errorf("create referral: %w", err)
	}

	s.logger.Info("referral code created",
		zap.Int64("creator_id", creatorID),
		zap.String("code", logger.MaskString(referral.Code)),
		zap.Int("max_uses", referral.MaxUses),
	)

	return referral, nil
}

// Validate runs the ordered referral checks a registration must pass:
// presence, existence, active flag, expiry, remaining quota, email domain.
// The first failing check wins; existence failures use a generic message so
// probing codes reveals nothing.
func (s *ReferralService) Validate(ctx context.Context, code, email string) (*domain.Referral, error) {
	if code == "" {
		return nil, &ReferralValidationError{Reason: ReferralReasonRequired, Message: "Referral code is required"}
	}

	referral, err := s.referrals.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &ReferralValidationError{Reason: ReferralReasonNotFound, Message: "Invalid referral code"}
		}
		return nil, fmt.Errorf("lookup referral: %w", err)
	}

	if !referral.IsActive {
		return nil, &ReferralValidationError{Reason: ReferralReasonInactive, Message: "Referral code is inactive"}
	}
	if referral.IsExpired(s.now()) {
		return nil, &ReferralValidationError{Reason: ReferralReasonExpired, Message: "Referral code has expired"}
	}
	if referral.IsExhausted() {
		return nil, &ReferralValidationError{Reason: ReferralReasonExhausted, Message: "Referral code has reached maximum uses"}
	}
	if !referral.MatchesEmailDomain(email) {
		return nil, &ReferralValidationError{
			Reason:  ReferralReasonDomainMismatch,
			Message: fmt.Sprintf("Referral code is only valid for %s email addresses", *referral.AllowedEmailDomain),
		}
	}

	return referral, nil
}

// ReferralStats summarizes usage of one code.
type ReferralStats struct {
	Code      string
	MaxUses   int
	UsedCount int
	Remaining int
	IsActive  bool
	ExpiresAt *time.Time
}

// Stats returns usage statistics for a code owned by the caller.
func (s *ReferralService) Stats(ctx context.Context, code string, ownerID int64) (*ReferralStats, error) {
	referral, err := s.referrals.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("lookup referral: %w", err)
	}
	if referral.CreatedBy != ownerID {
		return nil, repository.ErrNotFound
	}

	return &ReferralStats{
		Code:      referral.Code,
		MaxUses:   referral.MaxUses,
		UsedCount: referral.UsedCount,
		Remaining: referral.RemainingUses(),
		IsActive:  referral.IsActive,
		ExpiresAt: referral.ExpiresAt,
	}, nil
}

// ListByCreator returns the caller's codes, newest first.
func (s *ReferralService) ListByCreator(ctx context.Context, creatorID int64) ([]domain.Referral, error) {
	referrals, err := s.referrals.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	return referrals, nil
}

// SetActive toggles one of the caller's codes.
func (s *ReferralService) SetActive(ctx context.Context, id int64, creatorID int64, active bool) error {
	if err := s.referrals.SetActive(ctx, id, creatorID, active); err != nil {
		return fmt.Errorf("set referral active: %w", err)
	}

	s.logger.Info("referral code status changed",
		zap.Int64("referral_id", id),
		zap.Int64("creator_id", creatorID),
		zap.Bool("active", active),
	)

	return nil
}

// generateCode builds a code from a base-36 timestamp plus random suffix:
// REF + millis in base 36 + 8 uppercase hex characters.
func (s *ReferralService) generateCode() (string, error) {
	suffix, err := security.RandomHexUpper(4)
	if err != nil {
		return "", fmt.Errorf("generate referral code: %w", err)
	}
	stamp := strings.ToUpper(strconv.FormatInt(s.now().UnixMilli(), 36))
	return "REF" + stamp + suffix, nil
}
