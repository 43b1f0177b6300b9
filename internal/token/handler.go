package token

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/apperrors"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/auth"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/models"
	"github.com/shopspring/decimal"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type tradeBody struct {
	WalletAddress     string          `json:"wallet_address"`
	Side              string          `json:"side" binding:"required,oneof=buy sell"`
	Amount            decimal.Decimal `json:"amount"`
	ExpectedAmountOut decimal.Decimal `json:"expected_amount_out"`
	SlippageBps       int             `json:"slippage_bps" binding:"min=0,max=10000"`
}

func tokenID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		apperrors.Respond(c, apperrors.ErrInvalidRequest.WithReason("invalid id"))
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) Launch(c *gin.Context) {
	var req LaunchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, apperrors.ErrInvalidRequest.Wrap(err))
		return
	}

	creator, err := auth.CallerWallet(c, req.CreatorWallet)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	req.CreatorWallet = creator

	token, err := h.service.Launch(c.Request.Context(), req)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, token)
}

func (h *Handler) GetToken(c *gin.Context) {
	id, ok := tokenID(c)
	if !ok {
		return
	}

	token, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, token)
}

func (h *Handler) ListTokens(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	tokens, err := h.service.List(c.Request.Context(), limit, offset)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (h *Handler) GetQuote(c *gin.Context) {
	id, ok := tokenID(c)
	if !ok {
		return
	}

	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		apperrors.Respond(c, apperrors.ErrInvalidAmount.WithReason("amount must be a decimal"))
		return
	}
	side := models.TradeSide(c.DefaultQuery("side", string(models.TradeSideBuy)))

	quote, err := h.service.Quote(c.Request.Context(), id, amount, side)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *Handler) ExecuteTrade(c *gin.Context) {
	id, ok := tokenID(c)
	if !ok {
		return
	}

	var body tradeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apperrors.Respond(c, apperrors.ErrInvalidRequest.Wrap(err))
		return
	}

	wallet, err := auth.CallerWallet(c, body.WalletAddress)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	result, err := h.service.ExecuteTrade(c.Request.Context(), TradeRequest{
		TokenID:           id,
		WalletAddress:     wallet,
		Side:              models.TradeSide(body.Side),
		Amount:            body.Amount,
		ExpectedAmountOut: body.ExpectedAmountOut,
		SlippageBps:       body.SlippageBps,
	})
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// RegisterRoutes mounts token routes; guard runs before the state-changing ones
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, guard ...gin.HandlerFunc) {
	tokens := router.Group("/tokens")
	{
		tokens.POST("", append(guard, h.Launch)...)
		tokens.GET("", h.ListTokens)
		tokens.GET("/:id", h.GetToken)
		tokens.GET("/:id/quote", h.GetQuote)
		tokens.POST("/:id/trades", append(guard, h.ExecuteTrade)...)
	}
}
