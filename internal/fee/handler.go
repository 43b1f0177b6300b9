package fee

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/apperrors"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/models"
	"github.com/shopspring/decimal"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// FeesResponse is the body of GET /tokens/:id/fees
type FeesResponse struct {
	TokenID   uint                                 `json:"token_id"`
	Claimable map[models.EarnerType]decimal.Decimal `json:"claimable"`
	Total     decimal.Decimal                      `json:"total_unclaimed"`
	Earners   []*models.FeeEarner                  `json:"earners"`
}

func (h *Handler) GetClaimableFees(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		apperrors.Respond(c, apperrors.ErrInvalidRequest.WithReason("invalid id"))
		return
	}

	ctx := c.Request.Context()
	claimable, err := h.service.GetClaimableFees(ctx, uint(id))
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	earners, err := h.service.Earners(ctx, uint(id))
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, FeesResponse{
		TokenID:   uint(id),
		Claimable: claimable,
		Total:     sumUnclaimed(earners),
		Earners:   earners,
	})
}

func (h *Handler) ListClaims(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		apperrors.Respond(c, apperrors.ErrInvalidRequest.WithReason("invalid id"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	claims, err := h.service.Claims(c.Request.Context(), uint(id), limit)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, claims)
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	tokens := router.Group("/tokens")
	{
		tokens.GET("/:id/fees", h.GetClaimableFees)
		tokens.GET("/:id/claims", h.ListClaims)
	}
}
