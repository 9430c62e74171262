package domain

import "time"

// User represents a registered business account.
//
// PasswordHash is nullable: accounts provisioned through invite flows may be
// OTP-only until the owner sets a password. EmailOTP and OTPExpiresAt form a
// single-slot verification code; generating a new code overwrites the slot.
type User struct {
	ID               int64
	Username         string
	Email            string
	Phone            string
	GSTN             *string
	PasswordHash     *string
	FirstName        string
	LastName         string
	EmailVerified    bool
	AccountActivated bool
	EmailOTP         *string
	OTPExpiresAt     *time.Time
	ReferralCode     *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// FullName joins the first and last name for display purposes.
func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// CanLoginWithPassword reports whether the account carries a password hash.
func (u User) CanLoginWithPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}
