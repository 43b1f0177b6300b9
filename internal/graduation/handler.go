package graduation

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/apperrors"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func tokenID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		apperrors.Respond(c, apperrors.ErrInvalidRequest.WithReason("invalid id"))
		return 0, false
	}
	return uint(id), true
}

// TriggerGraduationCheck runs or resumes a token's migration
func (h *Handler) TriggerGraduationCheck(c *gin.Context) {
	id, ok := tokenID(c)
	if !ok {
		return
	}

	m, err := h.service.TriggerGraduationCheck(c.Request.Context(), id)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	if m == nil {
		c.JSON(http.StatusOK, gin.H{"token_id": id, "graduating": false})
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) GetMigration(c *gin.Context) {
	id, ok := tokenID(c)
	if !ok {
		return
	}

	m, err := h.service.Migration(c.Request.Context(), id)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) GetPoolFees(c *gin.Context) {
	id, ok := tokenID(c)
	if !ok {
		return
	}

	metrics, err := h.service.PoolFeeMetrics(c.Request.Context(), id)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

// RegisterRoutes mounts graduation routes; guard protects the manual trigger
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, guard ...gin.HandlerFunc) {
	router.POST("/tokens/:id/graduation", append(guard, h.TriggerGraduationCheck)...)
	router.GET("/tokens/:id/graduation", h.GetMigration)
	router.GET("/tokens/:id/pool-fees", h.GetPoolFees)
}
