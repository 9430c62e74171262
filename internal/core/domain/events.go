package domain

import "time"

// UserRegisteredEvent is published after the registration transaction
// commits. Payload fields are limited to what downstream consumers need;
// the email is masked before publication.
type UserRegisteredEvent struct {
	EventID      string    `json:"event_id"`
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	ReferralCode string    `json:"referral_code"`
	RegisteredAt time.Time `json:"registered_at"`
}

// UserActivatedEvent is published once the account's email OTP is verified
// and the account flips to activated.
type UserActivatedEvent struct {
	EventID     string    `json:"event_id"`
	UserID      int64     `json:"user_id"`
	Email       string    `json:"email"`
	ActivatedAt time.Time `json:"activated_at"`
}
