package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vyapar-labs/b2b-platform/internal/usecase"
)

// RegistrationHandler exposes the registration and OTP endpoints.
type RegistrationHandler struct {
	registration *usecase.RegistrationService
	otp          *usecase.OTPService
	auth         *usecase.AuthService
	logger       *zap.Logger
}

// NewRegistrationHandler constructs the handler. auth signs the session
// returned by a successful OTP verification.
func NewRegistrationHandler(registration *usecase.RegistrationService, otp *usecase.OTPService, auth *usecase.AuthService, log *zap.Logger) *RegistrationHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RegistrationHandler{
		registration: registration,
		otp:          otp,
		auth:         auth,
		logger:       log,
	}
}

// Register handles POST /api/v1/auth/register.
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	result, err := h.registration.Register(c.Request.Context(), usecase.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Phone:           req.Phone,
		GSTN:            req.GSTN,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		ReferralCode:    req.ReferralCode,
		CaptchaToken:    req.CaptchaToken,
		IPAddress:       c.ClientIP(),
		UserAgent:       c.Request.UserAgent(),
	})
	if err != nil {
		respondWithMappedError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, registerResponse{
		Message:     result.Message,
		UserID:      result.UserID,
		RequiresOTP: result.RequiresOTP,
	})
}

// RequestOTP handles POST /api/v1/auth/request-otp. The response message is
// identical for unknown and already-activated emails.
func (h *RegistrationHandler) RequestOTP(c *gin.Context) {
	var req requestOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	message, err := h.otp.GenerateAndSend(c.Request.Context(), req.Email, c.ClientIP())
	if err != nil {
		respondWithMappedError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, messageResponse{Message: message})
}

// VerifyOTP handles POST /api/v1/auth/verify-otp. A successful verification
// answers with a session token and the activated account, so the owner is
// logged in without a separate login call.
func (h *RegistrationHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	userID, message, err := h.otp.Verify(c.Request.Context(), req.Email, req.OTP, c.ClientIP())
	if err != nil {
		respondWithMappedError(c, h.logger, err)
		return
	}

	resp := verifyOTPResponse{Message: message}
	if h.auth != nil {
		user, token, err := h.auth.SessionForUser(c.Request.Context(), userID)
		if err != nil {
			// The account is activated either way; the owner can still log
			// in with their password.
			h.logger.Warn("session issuance after activation failed",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
		} else {
			view := newUserResponse(user)
			resp.Token = token
			resp.User = &view
		}
	}

	c.JSON(http.StatusOK, resp)
}
