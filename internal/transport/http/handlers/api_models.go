package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyapar-labs/b2b-platform/internal/core/domain"
	"github.com/vyapar-labs/b2b-platform/internal/transport/http/middleware"
)

// ErrorResponse is the envelope for every non-2xx JSON body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse builds an error body carrying the request trace id.
func NewErrorResponse(c *gin.Context, message string) ErrorResponse {
	return ErrorResponse{
		Error:   message,
		TraceID: middleware.GetTraceID(c),
	}
}

type registerRequest struct {
	Username        string `json:"username" binding:"required"`
	Email           string `json:"email" binding:"required"`
	Phone           string `json:"phone" binding:"required"`
	GSTN            string `json:"gstn"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	ReferralCode    string `json:"referral_code" binding:"required"`
	CaptchaToken    string `json:"captcha_token"`
}

type registerResponse struct {
	Message     string `json:"message"`
	UserID      int64  `json:"user_id"`
	RequiresOTP bool   `json:"requires_otp"`
}

type requestOTPRequest struct {
	Email string `json:"email" binding:"required"`
}

type verifyOTPRequest struct {
	Email string `json:"email" binding:"required"`
	OTP   string `json:"otp" binding:"required"`
}

// verifyOTPResponse carries a session alongside the activation message, so
// the owner does not need a separate login after verifying.
type verifyOTPResponse struct {
	Message string        `json:"message"`
	Token   string        `json:"token,omitempty"`
	User    *userResponse `json:"user,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type userResponse struct {
	ID               int64     `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	GSTN             *string   `json:"gstn,omitempty"`
	FirstName        string    `json:"first_name,omitempty"`
	LastName         string    `json:"last_name,omitempty"`
	EmailVerified    bool      `json:"email_verified"`
	AccountActivated bool      `json:"account_activated"`
	CreatedAt        time.Time `json:"created_at"`
}

func newUserResponse(user *domain.User) userResponse {
	return userResponse{
		ID:               user.ID,
		Username:         user.Username,
		Email:            user.Email,
		Phone:            user.Phone,
		GSTN:             user.GSTN,
		FirstName:        user.FirstName,
		LastName:         user.LastName,
		EmailVerified:    user.EmailVerified,
		AccountActivated: user.AccountActivated,
		CreatedAt:        user.CreatedAt,
	}
}

type createReferralRequest struct {
	MaxUses            int        `json:"max_uses"`
	ExpiresAt          *time.Time `json:"expires_at"`
	AllowedEmailDomain *string    `json:"allowed_email_domain"`
}

type setReferralStatusRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

type referralResponse struct {
	ID                 int64      `json:"id"`
	Code               string     `json:"code"`
	MaxUses            int        `json:"max_uses"`
	UsedCount          int        `json:"used_count"`
	Remaining          int        `json:"remaining"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	AllowedEmailDomain *string    `json:"allowed_email_domain,omitempty"`
	IsActive           bool       `json:"is_active"`
	CreatedAt          time.Time  `json:"created_at"`
}

func newReferralResponse(referral *domain.Referral) referralResponse {
	return referralResponse{
		ID:                 referral.ID,
		Code:               referral.Code,
		MaxUses:            referral.MaxUses,
		UsedCount:          referral.UsedCount,
		Remaining:          referral.RemainingUses(),
		ExpiresAt:          referral.ExpiresAt,
		AllowedEmailDomain: referral.AllowedEmailDomain,
		IsActive:           referral.IsActive,
		CreatedAt:          referral.CreatedAt,
	}
}

type referralStatsResponse struct {
	Code      string     `json:"code"`
	MaxUses   int        `json:"max_uses"`
	UsedCount int        `json:"used_count"`
	Remaining int        `json:"remaining"`
	IsActive  bool       `json:"is_active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
