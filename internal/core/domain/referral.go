package domain

import (
	"strings"
	"time"
)

// Referral is a shareable invite code with a bounded usage quota.
type Referral struct {
	ID                 int64
	Code               string
	CreatedBy          int64
	MaxUses            int
	UsedCount          int
	ExpiresAt          *time.Time
	AllowedEmailDomain *string
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RemainingUses returns how many registrations the code can still admit.
func (r Referral) RemainingUses() int {
	remaining := r.MaxUses - r.UsedCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsExpired reports whether the code's expiry, if set, has passed.
func (r Referral) IsExpired(now time.Time) bool {
	return r.ExpiresAt != nil && !r.ExpiresAt.After(now)
}

// IsExhausted reports whether the usage quota is spent.
func (r Referral) IsExhausted() bool {
	return r.UsedCount >= r.MaxUses
}

// MatchesEmailDomain checks the registrant's email against the optional
// domain restriction. Comparison is case-insensitive on the part after '@'.
func (r Referral) MatchesEmailDomain(email string) bool {
	if r.AllowedEmailDomain == nil || *r.AllowedEmailDomain == "" {
		return true
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	return strings.EqualFold(email[at+1:], *r.AllowedEmailDomain)
}
