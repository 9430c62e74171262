package domain

import "time"

// OTPAttemptKind distinguishes code generation from code verification in the
// attempt ledger.
type OTPAttemptKind string

const (
	OTPAttemptGeneration   OTPAttemptKind = "generation"
	OTPAttemptVerification OTPAttemptKind = "verification"
)

// RegistrationAttempt is an append-only audit record of a registration
// request. Exactly one record is written per request, success or failure.
type RegistrationAttempt struct {
	ID            int64
	Email         string
	Phone         *string
	IPAddress     string
	ReferralCode  *string
	Success       bool
	FailureReason *string
	UserAgent     *string
	CreatedAt     time.Time
}

// OTPAttempt is an append-only record of an OTP generation or verification.
// Windowed counts over these rows drive the rate-limit policy.
type OTPAttempt struct {
	ID        int64
	Email     string
	IPAddress *string
	Kind      OTPAttemptKind
	Success   bool
	CreatedAt time.Time
}
