package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/vyapar-labs/b2b-platform/internal/core/domain"
	"github.com/vyapar-labs/b2b-platform/internal/infra/security"
	"github.com/vyapar-labs/b2b-platform/internal/repository"
	"github.com/vyapar-labs/b2b-platform/internal/validation"
)

type registrationFixture struct {
	users     *memUserStore
	referrals *memReferralStore
	attempts  *memAttemptStore
	email     *stubEmailSender
	events    *stubEventPublisher
	captcha   *stubCaptcha

	refSvc *ReferralService
	otpSvc *OTPService
	svc    *RegistrationService
}

func newRegistrationFixture(t *testing.T) *registrationFixture {
	t.Helper()

	f := &registrationFixture{
		users:     newMemUserStore(),
		referrals: newMemReferralStore(),
		attempts:  newMemAttemptStore(),
		email:     &stubEmailSender{},
		events:    &stubEventPublisher{},
		captcha:   &stubCaptcha{},
	}

	log := zaptest.NewLogger(t)
	f.refSvc = NewReferralService(f.referrals, log, 10)
	f.otpSvc = NewOTPService(f.users, f.attempts, f.email, f.events, log, OTPConfig{})
	f.svc = NewRegistrationService(
		f.users,
		f.refSvc,
		f.otpSvc,
		f.attempts,
		&memTxRunner{users: f.users, referrals: f.referrals},
		f.captcha,
		f.events,
		nil,
		log,
	)
	return f
}

func (f *registrationFixture) seedReferral(t *testing.T, referral domain.Referral) string {
	t.Helper()

	if referral.MaxUses == 0 {
		referral.MaxUses = 5
	}
	referral.IsActive = true
	created, err := f.referrals.Create(context.Background(), referral)
	if err != nil {
		t.Fatalf("seed referral: %v", err)
	}
	return created.Code
}

func validRegisterInput(code string) RegisterInput {
	// The prefix is structurally valid, so the check character always
	// computes.
	check, _ := validation.GSTNCheckCharacter("27AAPFU0939F1Z")
	return RegisterInput{
		Username:        "mango_traders",
		Email:           "owner@mangotraders.example",
		Phone:           "9876543210",
		GSTN:            "27AAPFU0939F1Z" + string(check),
		Password:        "Tr0ub4dor&3",
		ConfirmPassword: "Tr0ub4dor&3",
		FirstName:       "Asha",
		LastName:        "Patel",
		ReferralCode:    code,
		IPAddress:       "203.0.113.7",
		UserAgent:       "integration-test/1.0",
	}
}

func TestRegisterHappyPath(t *testing.T) {
	f := newRegistrationFixture(t)
	code := f.seedReferral(t, domain.Referral{Code: "REFHAPPY01", CreatedBy: 1})

	input := validRegisterInput(code)
	result, err := f.svc.Register(context.Background(), input)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if result.Message != MsgRegistrationAccepted {
		t.Fatalf("message = %q", result.Message)
	}
	if !result.RequiresOTP {
		t.Fatal("result should require otp")
	}

	user, err := f.users.GetByEmail(context.Background(), input.Email)
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if user.AccountActivated || user.EmailVerified {
		t.Fatal("fresh account must be pending")
	}
	if user.PasswordHash == nil || *user.PasswordHash == input.Password {
		t.Fatal("password must be stored hashed")
	}
	if user.GSTN == nil || *user.GSTN != input.GSTN {
		t.Fatalf("stored gstn = %v", user.GSTN)
	}

	referral, err := f.referrals.GetByCode(context.Background(), code)
	if err != nil {
		t.Fatalf("GetByCode: %v", err)
	}
	if referral.UsedCount != 1 {
		t.Fatalf("used count = %d, want 1", referral.UsedCount)
	}

	rows := f.attempts.registrationRows()
	if len(rows) != 1 {
		t.Fatalf("attempt rows = %d, want 1", len(rows))
	}
	if !rows[0].Success || rows[0].FailureReason != nil {
		t.Fatalf("attempt row = %+v", rows[0])
	}

	if len(f.email.deliveries()) != 1 {
		t.Fatalf("otp deliveries = %d, want 1", len(f.email.deliveries()))
	}
	if len(f.events.registered) != 1 || f.events.registered[0].UserID != result.UserID {
		t.Fatalf("registered events = %+v", f.events.registered)
	}
}

func TestRegisterQuotaRaceRollsBack(t *testing.T) {
	f := newRegistrationFixture(t)
	code := f.seedReferral(t, domain.Referral{Code: "REFRACE01", CreatedBy: 1})

	// The pre-check sees remaining quota, but the guarded increment loses the
	// race inside the transaction.
	f.referrals.consumeErr = repository.ErrQuotaExhausted

	_, err := f.svc.Register(context.Background(), validRegisterInput(code))

	var refErr *ReferralValidationError
	if !errors.As(err, &refErr) {
		t.Fatalf("err = %v, want ReferralValidationError", err)
	}
	if refErr.Reason != ReferralReasonExhausted {
		t.Fatalf("reason = %q", refErr.Reason)
	}

	if _, err := f.users.GetByEmail(context.Background(), "owner@mangotraders.example"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("user lookup = %v, want ErrNotFound after rollback", err)
	}

	rows := f.attempts.registrationRows()
	if len(rows) != 1 || rows[0].Success {
		t.Fatalf("attempt rows = %+v", rows)
	}
	if rows[0].FailureReason == nil || *rows[0].FailureReason != "Referral code has reached maximum uses" {
		t.Fatalf("failure reason = %v", rows[0].FailureReason)
	}
}

func TestRegisterDuplicateIdentifiers(t *testing.T) {
	f := newRegistrationFixture(t)
	code := f.seedReferral(t, domain.Referral{Code: "REFDUP01", CreatedBy: 1})

	gstn := ""
	if check, ok := validation.GSTNCheckCharacter("07ABCDE1234F2Z"); ok {
		gstn = "07ABCDE1234F2Z" + string(check)
	}
	if _, err := f.users.Create(context.Background(), domain.User{
		Username: "mango_traders",
		Email:    "taken@mangotraders.example",
		Phone:    "9123456780",
		GSTN:     &gstn,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*RegisterInput)
		want   error
	}{
		{"username", func(in *RegisterInput) {}, ErrUsernameTaken},
		{"email", func(in *RegisterInput) {
			in.Username = "fresh_name"
			in.Email = "taken@mangotraders.example"
		}, ErrEmailTaken},
		{"phone", func(in *RegisterInput) {
			in.Username = "fresh_name"
			in.Phone = "9123456780"
		}, ErrPhoneTaken},
		{"gstn", func(in *RegisterInput) {
			in.Username = "fresh_name"
			in.GSTN = gstn
		}, ErrGSTNTaken},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validRegisterInput(code)
			tc.mutate(&input)

			if _, err := f.svc.Register(context.Background(), input); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestRegisterFieldValidationWritesOneRow(t *testing.T) {
	f := newRegistrationFixture(t)
	code := f.seedReferral(t, domain.Referral{Code: "REFFIELD01", CreatedBy: 1})

	input := validRegisterInput(code)
	input.Phone = "12345"

	_, err := f.svc.Register(context.Background(), input)

	var fieldErr *validation.FieldError
	if !errors.As(err, &fieldErr) {
		t.Fatalf("err = %v, want FieldError", err)
	}
	if fieldErr.Field != "phone" {
		t.Fatalf("field = %q", fieldErr.Field)
	}

	rows := f.attempts.registrationRows()
	if len(rows) != 1 || rows[0].Success {
		t.Fatalf("attempt rows = %+v", rows)
	}
}

func TestRegisterRequiresGSTN(t *testing.T) {
	f := newRegistrationFixture(t)
	code := f.seedReferral(t, domain.Referral{Code: "REFGSTN01", CreatedBy: 1})

	input := validRegisterInput(code)
	input.GSTN = ""

	_, err := f.svc.Register(context.Background(), input)

	var fieldErr *validation.FieldError
	if !errors.As(err, &fieldErr) {
		t.Fatalf("err = %v, want FieldError", err)
	}
	if fieldErr.Field != "gstn" || fieldErr.Code != validation.CodeRequired {
		t.Fatalf("field error = %+v", fieldErr)
	}

	if _, err := f.users.GetByEmail(context.Background(), input.Email); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("user lookup = %v, want ErrNotFound", err)
	}

	rows := f.attempts.registrationRows()
	if len(rows) != 1 || rows[0].Success {
		t.Fatalf("attempt rows = %+v", rows)
	}
}

func TestRegisterCaptchaGate(t *testing.T) {
	t.Run("low score rejected", func(t *testing.T) {
		f := newRegistrationFixture(t)
		code := f.seedReferral(t, domain.Referral{Code: "REFBOT01", CreatedBy: 1})

		f.captcha.enforced = true
		f.captcha.result.Valid = false
		f.captcha.result.Score = 0.1

		input := validRegisterInput(code)
		input.CaptchaToken = "low-score-token"

		if _, err := f.svc.Register(context.Background(), input); !errors.Is(err, ErrCaptchaRejected) {
			t.Fatalf("err = %v, want ErrCaptchaRejected", err)
		}
	})

	// A request without a token skips the gate even under enforcement.
	t.Run("token-less request admitted", func(t *testing.T) {
		f := newRegistrationFixture(t)
		code := f.seedReferral(t, domain.Referral{Code: "REFBOT02", CreatedBy: 1})

		f.captcha.enforced = true
		f.captcha.result.Valid = false

		if _, err := f.svc.Register(context.Background(), validRegisterInput(code)); err != nil {
			t.Fatalf("token-less register: %v", err)
		}
		if f.captcha.verifyCalls != 0 {
			t.Fatalf("verify calls = %d, want 0", f.captcha.verifyCalls)
		}
	})

	t.Run("unenforced gate admits", func(t *testing.T) {
		f := newRegistrationFixture(t)
		code := f.seedReferral(t, domain.Referral{Code: "REFBOT03", CreatedBy: 1})

		input := validRegisterInput(code)
		input.CaptchaToken = "any-token"

		if _, err := f.svc.Register(context.Background(), input); err != nil {
			t.Fatalf("unenforced register: %v", err)
		}
		if f.captcha.verifyCalls != 0 {
			t.Fatalf("verify calls = %d, want 0", f.captcha.verifyCalls)
		}
	})
}

func TestRegisterReferralRequired(t *testing.T) {
	f := newRegistrationFixture(t)

	_, err := f.svc.Register(context.Background(), validRegisterInput(""))

	var refErr *ReferralValidationError
	if !errors.As(err, &refErr) {
		t.Fatalf("err = %v, want ReferralValidationError", err)
	}
	if refErr.Reason != ReferralReasonRequired {
		t.Fatalf("reason = %q", refErr.Reason)
	}

	rows := f.attempts.registrationRows()
	if len(rows) != 1 || rows[0].FailureReason == nil {
		t.Fatalf("attempt rows = %+v", rows)
	}
	if *rows[0].FailureReason != "Invalid referral: Referral code is required" {
		t.Fatalf("failure reason = %q", *rows[0].FailureReason)
	}
}

// TestRegistrationActivationLoginFlow walks the full account lifecycle:
// register, fail a pending login, verify the emailed code, then log in.
func TestRegistrationActivationLoginFlow(t *testing.T) {
	f := newRegistrationFixture(t)
	code := f.seedReferral(t, domain.Referral{Code: "REFFLOW01", CreatedBy: 1})

	tokens, err := security.NewTokenManager("0123456789abcdef0123456789abcdef", "b2b-test", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	auth := NewAuthService(f.users, tokens, zaptest.NewLogger(t))

	input := validRegisterInput(code)
	result, err := f.svc.Register(context.Background(), input)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, _, err := auth.Login(context.Background(), input.Username, input.Password); !errors.Is(err, ErrNotActivated) {
		t.Fatalf("pending login err = %v, want ErrNotActivated", err)
	}

	deliveries := f.email.deliveries()
	if len(deliveries) != 1 {
		t.Fatalf("otp deliveries = %d, want 1", len(deliveries))
	}

	userID, msg, err := f.otpSvc.Verify(context.Background(), input.Email, deliveries[0].Code, input.IPAddress)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if userID != result.UserID {
		t.Fatalf("verified user = %d, want %d", userID, result.UserID)
	}
	if msg != MsgAccountActivated {
		t.Fatalf("message = %q", msg)
	}

	// Verification hands back a session without a separate login.
	verified, sessionToken, err := auth.SessionForUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("SessionForUser: %v", err)
	}
	if !verified.AccountActivated {
		t.Fatal("verified account must be activated")
	}
	if claims, err := auth.ParseToken(sessionToken); err != nil || claims.Username != input.Username {
		t.Fatalf("session claims = %+v, %v", claims, err)
	}

	user, token, err := auth.Login(context.Background(), input.Username, input.Password)
	if err != nil {
		t.Fatalf("activated login: %v", err)
	}
	if user.ID != result.UserID {
		t.Fatalf("logged-in user = %d", user.ID)
	}

	claims, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Username != input.Username {
		t.Fatalf("claims username = %q", claims.Username)
	}
	if id, err := claims.UserID(); err != nil || id != result.UserID {
		t.Fatalf("claims user id = %d, %v", id, err)
	}
}
