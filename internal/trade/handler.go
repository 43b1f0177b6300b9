package trade

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/apperrors"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/models"
	"github.com/shopspring/decimal"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// HistoryResponse is the body of GET /tokens/:id/trades
type HistoryResponse struct {
	Trades       []*models.Trade `json:"trades"`
	Total        int64           `json:"total"`
	Volume24hSol decimal.Decimal `json:"volume_24h_sol"`
}

func pagination(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (h *Handler) ListTokenTrades(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		apperrors.Respond(c, apperrors.ErrInvalidRequest.WithReason("invalid id"))
		return
	}
	limit, offset := pagination(c)
	ctx := c.Request.Context()

	trades, err := h.repo.ListByToken(ctx, uint(id), limit, offset)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	total, err := h.repo.CountByToken(ctx, uint(id))
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	volume, err := h.repo.VolumeSince(ctx, uint(id), time.Now().Add(-24*time.Hour))
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, HistoryResponse{Trades: trades, Total: total, Volume24hSol: volume})
}

func (h *Handler) ListWalletTrades(c *gin.Context) {
	limit, offset := pagination(c)
	trades, err := h.repo.ListByWallet(c.Request.Context(), c.Param("address"), limit, offset)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/tokens/:id/trades", h.ListTokenTrades)
	router.GET("/wallets/:address/trades", h.ListWalletTrades)
}
