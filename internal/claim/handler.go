package claim

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/apperrors"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/auth"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type claimBody struct {
	WalletAddress string `json:"wallet_address" binding:"max=44"`
	ProfileID     string `json:"profile_id" binding:"max=64"`
}

// Claim pays the caller's unclaimed fees for a token
func (h *Handler) Claim(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		apperrors.Respond(c, apperrors.ErrInvalidRequest.WithReason("invalid id"))
		return
	}

	var body claimBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apperrors.Respond(c, apperrors.ErrInvalidRequest.Wrap(err))
		return
	}

	wallet, err := auth.CallerWallet(c, body.WalletAddress)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	result, err := h.service.Claim(c.Request.Context(), Request{
		TokenID:       uint(id),
		WalletAddress: wallet,
		ProfileID:     body.ProfileID,
	})
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	status := http.StatusOK
	if result.IsPending {
		status = http.StatusAccepted
	}
	c.JSON(status, result)
}

// RegisterRoutes mounts the claim route behind any guard middleware
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, guard ...gin.HandlerFunc) {
	router.POST("/tokens/:id/claims", append(guard, h.Claim)...)
}
