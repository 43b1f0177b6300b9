package token

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/irfndi/AetherDEX/apps/launchpad/internal/apperrors"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/fee"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/metrics"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/models"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/pricing"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/solana"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/trade"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	maxTradeAttempts = 3

	// TopicTrades carries TradeEvent payloads
	TopicTrades = "trades"
)

// Params seeds launched tokens and prices trades
type Params struct {
	InitialVirtualSol   decimal.Decimal
	InitialVirtualToken decimal.Decimal
	TotalSupply         decimal.Decimal
	GraduationThreshold decimal.Decimal
	FeeBps              int
	CreatorShareBps     int
	SystemWallet        string
}

// GraduationQueue accepts tokens whose curve has completed
type GraduationQueue interface {
	Enqueue(tokenID uint) bool
}

// Publisher fans events out to feed subscribers
type Publisher interface {
	Publish(topic string, payload interface{})
}

// LaunchRequest creates a token on the curve
type LaunchRequest struct {
	Mint             string `json:"mint" binding:"required"`
	Name             string `json:"name" binding:"required,max=100"`
	Symbol           string `json:"symbol" binding:"required,max=20"`
	CreatorWallet    string `json:"creator_wallet"`
	CreatorProfileID string `json:"creator_profile_id" binding:"max=64"`
}

// TradeRequest executes a buy (Amount in SOL) or sell (Amount in tokens).
// When ExpectedAmountOut is set the trade fails if the output falls more than
// SlippageBps below it. Without it, SlippageBps caps the price impact of the
// trade against the reserves it executes on.
type TradeRequest struct {
	TokenID           uint
	WalletAddress     string
	Side              models.TradeSide
	Amount            decimal.Decimal
	ExpectedAmountOut decimal.Decimal
	SlippageBps       int
}

// QuoteResult prices a prospective trade without executing it.
// For buys AmountOut is tokens and TotalSol is the SOL debited including the
// fee. For sells AmountOut is SOL net of the fee.
type QuoteResult struct {
	TokenID        uint             `json:"token_id"`
	Side           models.TradeSide `json:"side"`
	AmountIn       decimal.Decimal  `json:"amount_in"`
	AmountOut      decimal.Decimal  `json:"amount_out"`
	FeeSol         decimal.Decimal  `json:"fee_sol"`
	TotalSol       decimal.Decimal  `json:"total_sol"`
	PriceBefore    decimal.Decimal  `json:"price_before"`
	PriceAfter     decimal.Decimal  `json:"price_after"`
	PriceImpactPct decimal.Decimal  `json:"price_impact_pct"`
	ProgressAfter  decimal.Decimal  `json:"progress_after"`

	newVirtualSol   decimal.Decimal
	newVirtualToken decimal.Decimal
	newRealSol      decimal.Decimal
	completes       bool
}

// TradeResult is the committed outcome of ExecuteTrade
type TradeResult struct {
	OutputAmount     decimal.Decimal  `json:"output_amount"`
	NewPrice         decimal.Decimal  `json:"new_price"`
	Graduated        bool             `json:"graduated"`
	Trade            *models.Trade    `json:"trade"`
	Token            *models.Token    `json:"token"`
	Allocations      []fee.Allocation `json:"fee_allocations"`
	GraduationQueued bool             `json:"graduation_queued"`
}

// TradeEvent is published after a trade commits
type TradeEvent struct {
	TokenID          uint             `json:"token_id"`
	Side             models.TradeSide `json:"side"`
	WalletAddress    string           `json:"wallet_address"`
	AmountIn         decimal.Decimal  `json:"amount_in"`
	AmountOut        decimal.Decimal  `json:"amount_out"`
	PriceAfter       decimal.Decimal  `json:"price_after"`
	Progress         decimal.Decimal  `json:"progress"`
	GraduationQueued bool             `json:"graduation_queued"`
	Timestamp        time.Time        `json:"timestamp"`
}

// Service defines the reserve ledger operations
type Service interface {
	Launch(ctx context.Context, req LaunchRequest) (*models.Token, error)
	Get(ctx context.Context, id uint) (*models.Token, error)
	List(ctx context.Context, limit, offset int) ([]*models.Token, error)
	Quote(ctx context.Context, tokenID uint, amount decimal.Decimal, side models.TradeSide) (*QuoteResult, error)
	ExecuteTrade(ctx context.Context, req TradeRequest) (*TradeResult, error)
}

type service struct {
	repo      Repository
	fees      fee.Service
	trades    trade.Repository
	queue     GraduationQueue
	publisher Publisher
	params    Params
	logger    logrus.FieldLogger

	quoteBuy  quoteFunc
	quoteSell quoteFunc
}

type quoteFunc func(amount, virtualSol, virtualToken decimal.Decimal) (*pricing.Quote, error)

// NewService creates the reserve ledger. queue and publisher may be nil.
func NewService(repo Repository, fees fee.Service, trades trade.Repository, queue GraduationQueue,
	publisher Publisher, params Params, logger logrus.FieldLogger) Service {
	return &service{
		repo:      repo,
		fees:      fees,
		trades:    trades,
		queue:     queue,
		publisher: publisher,
		params:    params,
		logger:    logger,
		quoteBuy:  pricing.QuoteBuy,
		quoteSell: pricing.QuoteSell,
	}
}

// Launch seeds a token's curve and opens its fee accounts atomically
func (s *service) Launch(ctx context.Context, req LaunchRequest) (*models.Token, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Name == "" || req.Symbol == "" {
		return nil, apperrors.ErrInvalidRequest.WithReason("name and symbol are required")
	}
	if err := solana.ValidateAddress(req.Mint); err != nil {
		return nil, err
	}
	if err := solana.ValidateWallet(req.CreatorWallet); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByMint(ctx, req.Mint)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.ErrInvalidRequest.WithReason("mint %s already launched", req.Mint)
	}

	token := &models.Token{
		Mint:                   req.Mint,
		Name:                   req.Name,
		Symbol:                 req.Symbol,
		CreatorWallet:          req.CreatorWallet,
		TotalSupply:            s.params.TotalSupply,
		VirtualSolReserves:     s.params.InitialVirtualSol,
		VirtualTokenReserves:   s.params.InitialVirtualToken,
		RealSolReserves:        decimal.Zero,
		GraduationThresholdSol: s.params.GraduationThreshold,
		BondingCurveProgress:   decimal.Zero,
		Status:                 models.TokenStatusBonding,
	}
	earners := []*models.FeeEarner{
		{
			EarnerType:    models.EarnerTypeCreator,
			ShareBps:      s.params.CreatorShareBps,
			WalletAddress: req.CreatorWallet,
			ProfileID:     req.CreatorProfileID,
		},
		{
			EarnerType:    models.EarnerTypeSystem,
			ShareBps:      pricing.BpsDenominator - s.params.CreatorShareBps,
			WalletAddress: s.params.SystemWallet,
		},
	}

	err = s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.repo.Create(tx, token); err != nil {
			return err
		}
		return s.fees.OpenAccounts(tx, token.ID, earners)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"token_id": token.ID,
		"mint":     token.Mint,
		"symbol":   token.Symbol,
	}).Info("Token launched")
	return token, nil
}

func (s *service) Get(ctx context.Context, id uint) (*models.Token, error) {
	token, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, apperrors.ErrTokenNotFound
	}
	return token, nil
}

func (s *service) List(ctx context.Context, limit, offset int) ([]*models.Token, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

// Quote prices a trade against current reserves. It takes no locks, so the
// executed price may differ.
func (s *service) Quote(ctx context.Context, tokenID uint, amount decimal.Decimal, side models.TradeSide) (*QuoteResult, error) {
	token, err := s.Get(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if !token.IsTradable() {
		return nil, closedError(token)
	}
	return s.price(token, amount, side)
}

// price applies the curve and fee schedule to token's current state
func (s *service) price(token *models.Token, amount decimal.Decimal, side models.TradeSide) (*QuoteResult, error) {
	res := &QuoteResult{TokenID: token.ID, Side: side, AmountIn: amount}

	switch side {
	case models.TradeSideBuy:
		q, err := s.quoteBuy(amount, token.VirtualSolReserves, token.VirtualTokenReserves)
		if err != nil {
			return nil, err
		}
		res.FeeSol = pricing.FeeFor(amount, s.params.FeeBps)
		res.AmountOut = q.AmountOut
		res.TotalSol = amount.Add(res.FeeSol)
		res.newRealSol = token.RealSolReserves.Add(amount)
		res.setCurve(q)

	case models.TradeSideSell:
		q, err := s.quoteSell(amount, token.VirtualSolReserves, token.VirtualTokenReserves)
		if err != nil {
			return nil, err
		}
		// Real SOL backs every payout; virtual liquidity cannot be withdrawn
		if q.AmountOut.GreaterThan(token.RealSolReserves) {
			return nil, apperrors.ErrCurveExhausted.WithReason("sell exceeds real SOL reserves")
		}
		res.FeeSol = pricing.FeeFor(q.AmountOut, s.params.FeeBps)
		res.AmountOut = q.AmountOut.Sub(res.FeeSol)
		res.TotalSol = res.AmountOut
		res.newRealSol = token.RealSolReserves.Sub(q.AmountOut)
		res.setCurve(q)

	default:
		return nil, apperrors.ErrInvalidRequest.WithReason("side must be buy or sell")
	}

	progress := pricing.Progress(res.newRealSol, token.GraduationThresholdSol)
	// High-water mark: a sell never lowers recorded progress
	if token.BondingCurveProgress.GreaterThan(progress) {
		progress = token.BondingCurveProgress
	}
	res.ProgressAfter = progress
	res.completes = pricing.IsComplete(progress)
	return res, nil
}

func (r *QuoteResult) setCurve(q *pricing.Quote) {
	r.PriceBefore = q.PriceBefore
	r.PriceAfter = q.PriceAfter
	r.PriceImpactPct = q.PriceImpactPct
	r.newVirtualSol = q.NewVirtualSol
	r.newVirtualToken = q.NewVirtualToken
}

func closedError(token *models.Token) error {
	if token.Halted {
		return apperrors.ErrTokenHalted
	}
	return apperrors.ErrPoolGraduated
}

// ExecuteTrade applies a trade to the curve in one transaction. Concurrent
// trades on the same token serialize on the row lock; a lost version race is
// retried against fresh reserves.
func (s *service) ExecuteTrade(ctx context.Context, req TradeRequest) (*TradeResult, error) {
	if !req.Amount.IsPositive() {
		return nil, apperrors.ErrInvalidAmount
	}
	if req.SlippageBps < 0 || req.SlippageBps > pricing.BpsDenominator {
		return nil, apperrors.ErrInvalidRequest.WithReason("slippage_bps out of range")
	}
	if err := solana.ValidateWallet(req.WalletAddress); err != nil {
		return nil, err
	}

	var (
		result *TradeResult
		err    error
	)
	for attempt := 1; attempt <= maxTradeAttempts; attempt++ {
		result, err = s.executeOnce(ctx, req)
		if !errors.Is(err, apperrors.ErrVersionConflict) {
			break
		}
		metrics.TradeRetries.Inc()
		s.logger.WithFields(logrus.Fields{"token_id": req.TokenID, "attempt": attempt}).Debug("Reserve version conflict, retrying")
	}

	if err != nil {
		metrics.TradesTotal.WithLabelValues(string(req.Side), apperrors.CodeOf(err)).Inc()
		if errors.Is(err, apperrors.ErrInvariantViolation) {
			s.halt(ctx, req.TokenID, err)
		}
		return nil, err
	}

	metrics.TradesTotal.WithLabelValues(string(req.Side), "ok").Inc()
	solLeg := result.Trade.AmountIn
	if req.Side == models.TradeSideSell {
		solLeg = result.Trade.AmountOut
	}
	metrics.TradeVolumeSol.WithLabelValues(string(req.Side)).Observe(solLeg.InexactFloat64())
	fee.Observe(result.Allocations)

	if result.GraduationQueued {
		s.logger.WithFields(logrus.Fields{
			"token_id":  req.TokenID,
			"real_sol":  result.Token.RealSolReserves.String(),
			"threshold": result.Token.GraduationThresholdSol.String(),
		}).Info("Bonding curve complete, graduation queued")
		if s.queue != nil && !s.queue.Enqueue(req.TokenID) {
			// The periodic sweep picks up queued tokens the hand-off missed
			s.logger.WithField("token_id", req.TokenID).Warn("Graduation queue full")
		}
	}

	if s.publisher != nil {
		s.publisher.Publish(TopicTrades, TradeEvent{
			TokenID:          req.TokenID,
			Side:             req.Side,
			WalletAddress:    req.WalletAddress,
			AmountIn:         result.Trade.AmountIn,
			AmountOut:        result.Trade.AmountOut,
			PriceAfter:       result.Trade.PriceAfter,
			Progress:         result.Token.BondingCurveProgress,
			GraduationQueued: result.GraduationQueued,
			Timestamp:        result.Trade.CreatedAt,
		})
	}
	return result, nil
}

func (s *service) executeOnce(ctx context.Context, req TradeRequest) (*TradeResult, error) {
	var result *TradeResult

	err := s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		token, err := s.repo.LockByID(tx, req.TokenID)
		if err != nil {
			return err
		}
		if token == nil {
			return apperrors.ErrTokenNotFound
		}
		if !token.IsTradable() {
			return closedError(token)
		}

		q, err := s.price(token, req.Amount, req.Side)
		if err != nil {
			return err
		}
		if err := checkSlippage(req, q); err != nil {
			return err
		}
		drift := pricing.ConstantProductDrift(token.VirtualSolReserves, token.VirtualTokenReserves,
			q.newVirtualSol, q.newVirtualToken)
		if drift.GreaterThan(pricing.MaxProductDrift) {
			return apperrors.ErrInvariantViolation.WithReason("reserve product drifted by %s", drift)
		}

		version := token.Version
		token.VirtualSolReserves = q.newVirtualSol
		token.VirtualTokenReserves = q.newVirtualToken
		token.RealSolReserves = q.newRealSol
		token.BondingCurveProgress = q.ProgressAfter
		if q.completes {
			token.MigrationStatus = models.MigrationStatusQueued
		}
		if err := s.repo.UpdateReserves(tx, token, version); err != nil {
			return err
		}

		allocations, err := s.fees.Credit(tx, token.ID, q.FeeSol)
		if err != nil {
			return err
		}

		record := &models.Trade{
			TokenID:        token.ID,
			WalletAddress:  req.WalletAddress,
			Side:           req.Side,
			AmountIn:       req.Amount,
			AmountOut:      q.AmountOut,
			FeeSol:         q.FeeSol,
			PriceBefore:    q.PriceBefore,
			PriceAfter:     q.PriceAfter,
			PriceImpactPct: q.PriceImpactPct,
		}
		if err := s.trades.Create(tx, record); err != nil {
			return err
		}

		result = &TradeResult{
			OutputAmount:     q.AmountOut,
			NewPrice:         q.PriceAfter,
			Graduated:        q.completes,
			Trade:            record,
			Token:            token,
			Allocations:      allocations,
			GraduationQueued: q.completes,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// checkSlippage enforces the caller's tolerance against the fresh quote
func checkSlippage(req TradeRequest, q *QuoteResult) error {
	switch {
	case req.ExpectedAmountOut.IsPositive():
		min := pricing.MinOutput(req.ExpectedAmountOut, req.SlippageBps)
		if q.AmountOut.LessThan(min) {
			return apperrors.ErrSlippageExceeded.WithReason("got %s, minimum %s", q.AmountOut, min)
		}
	case req.SlippageBps > 0:
		max := pricing.BpsToPct(req.SlippageBps)
		if q.PriceImpactPct.GreaterThan(max) {
			return apperrors.ErrSlippageExceeded.WithReason("price impact %s%%, maximum %s%%", q.PriceImpactPct, max)
		}
	}
	return nil
}

// halt freezes a token whose ledger failed an invariant check
func (s *service) halt(ctx context.Context, tokenID uint, cause error) {
	metrics.InvariantViolations.WithLabelValues(apperrors.CodeOf(cause)).Inc()
	entry := s.logger.WithFields(logrus.Fields{"token_id": tokenID, "error": cause.Error()})
	if err := s.repo.SetHalted(ctx, tokenID); err != nil {
		entry.WithField("halt_error", err.Error()).Error("Invariant violated and token could not be halted")
		return
	}
	entry.Error("Invariant violated, token halted")
}
