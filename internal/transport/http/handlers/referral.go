package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vyapar-labs/b2b-platform/internal/transport/http/middleware"
	"github.com/vyapar-labs/b2b-platform/internal/usecase"
)

// ReferralHandler exposes the referral management endpoints. Every route is
// behind authentication; callers only see codes they created.
type ReferralHandler struct {
	referrals *usecase.ReferralService
	logger    *zap.Logger
}

// NewReferralHandler constructs the handler.
func NewReferralHandler(referrals *usecase.ReferralService, log *zap.Logger) *ReferralHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReferralHandler{referrals: referrals, logger: log}
}

// Create handles POST /api/v1/referrals.
func (h *ReferralHandler) Create(c *gin.Context) {
	userID, ok := middleware.AuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "Unauthorized"))
		return
	}

	var req createReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	referral, err := h.referrals.Create(c.Request.Context(), userID, usecase.CreateReferralInput{
		MaxUses:            req.MaxUses,
		ExpiresAt:          req.ExpiresAt,
		AllowedEmailDomain: req.AllowedEmailDomain,
	})
	if err != nil {
		respondWithMappedError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, newReferralResponse(referral))
}

// List handles GET /api/v1/referrals.
func (h *ReferralHandler) List(c *gin.Context) {
	userID, ok := middleware.AuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "Unauthorized"))
		return
	}

	referrals, err := h.referrals.ListByCreator(c.Request.Context(), userID)
	if err != nil {
		respondWithMappedError(c, h.logger, err)
		return
	}

	out := make([]referralResponse, 0, len(referrals))
	for i := range referrals {
		out = append(out, newReferralResponse(&referrals[i]))
	}

	c.JSON(http.StatusOK, gin.H{"referrals": out})
}

// Stats handles GET /api/v1/referrals/:code/stats.
func (h *ReferralHandler) Stats(c *gin.Context) {
	userID, ok := middleware.AuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "Unauthorized"))
		return
	}

	code := c.Param("code")
	if code == "" {
		respondBadRequest(c, "Referral code is required")
		return
	}

	stats, err := h.referrals.Stats(c.Request.Context(), code, userID)
	if err != nil {
		respondWithMappedError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, referralStatsResponse{
		Code:      stats.Code,
		MaxUses:   stats.MaxUses,
		UsedCount: stats.UsedCount,
		Remaining: stats.Remaining,
		IsActive:  stats.IsActive,
		ExpiresAt: stats.ExpiresAt,
	})
}

// SetStatus handles PATCH /api/v1/referrals/:id/status.
func (h *ReferralHandler) SetStatus(c *gin.Context) {
	userID, ok := middleware.AuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "Unauthorized"))
		return
	}

	referralID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(c, "Invalid referral id")
		return
	}

	var req setReferralStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsActive == nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	if err := h.referrals.SetActive(c.Request.Context(), referralID, userID, *req.IsActive); err != nil {
		respondWithMappedError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": referralID, "is_active": *req.IsActive})
}
