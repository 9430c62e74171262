package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vyapar-labs/b2b-platform/internal/infra/security"
	"github.com/vyapar-labs/b2b-platform/internal/repository"
	"github.com/vyapar-labs/b2b-platform/internal/usecase"
	"github.com/vyapar-labs/b2b-platform/internal/validation"
)

// respondWithMappedError translates a service error into an HTTP response.
// Unrecognized errors collapse to a generic 500 so internals never leak.
func respondWithMappedError(c *gin.Context, log *zap.Logger, err error) {
	var fieldErr *validation.FieldError
	if errors.As(err, &fieldErr) {
		body := NewErrorResponse(c, fieldErr.Message)
		body.Field = fieldErr.Field
		body.Code = fieldErr.Code
		c.JSON(http.StatusBadRequest, body)
		return
	}

	var strengthErr *security.PasswordValidationError
	if errors.As(err, &strengthErr) {
		body := NewErrorResponse(c, strengthErr.Message)
		body.Field = "password"
		body.Code = strengthErr.Code
		c.JSON(http.StatusBadRequest, body)
		return
	}

	var refErr *usecase.ReferralValidationError
	if errors.As(err, &refErr) {
		body := NewErrorResponse(c, refErr.Message)
		body.Field = "referral_code"
		body.Code = refErr.Reason
		c.JSON(http.StatusBadRequest, body)
		return
	}

	var limitErr *usecase.RateLimitExceededError
	if errors.As(err, &limitErr) {
		seconds := int(limitErr.RetryAfter.Round(time.Second).Seconds())
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		c.JSON(http.StatusTooManyRequests, NewErrorResponse(c, limitErr.Message))
		return
	}

	switch {
	case errors.Is(err, usecase.ErrUsernameTaken),
		errors.Is(err, usecase.ErrEmailTaken),
		errors.Is(err, usecase.ErrPhoneTaken),
		errors.Is(err, usecase.ErrGSTNTaken):
		c.JSON(http.StatusConflict, NewErrorResponse(c, err.Error()))

	case errors.Is(err, usecase.ErrCaptchaRejected):
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))

	case errors.Is(err, usecase.ErrOTPInvalid):
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))

	case errors.Is(err, usecase.ErrEmailDeliveryFailed):
		c.JSON(http.StatusBadGateway, NewErrorResponse(c, err.Error()))

	case errors.Is(err, usecase.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, err.Error()))

	case errors.Is(err, usecase.ErrNotActivated),
		errors.Is(err, usecase.ErrPasswordLoginUnavailable):
		c.JSON(http.StatusForbidden, NewErrorResponse(c, err.Error()))

	case errors.Is(err, usecase.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))

	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "Not found"))

	default:
		if log != nil {
			log.Error("unhandled service error",
				zap.String("path", c.FullPath()),
				zap.Error(err),
			)
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "Internal server error"))
	}
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, NewErrorResponse(c, message))
}
