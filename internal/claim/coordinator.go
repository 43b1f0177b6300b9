// Package claim pays out accrued trading fees to their earners.
package claim

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/apperrors"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/claimlock"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/fee"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/metrics"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/models"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/treasury"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// TopicClaims carries ClaimEvent payloads
const TopicClaims = "claims"

// State is a step of the claim lifecycle
type State string

const (
	StateIdle         State = "idle"
	StateLockAcquired State = "lock_acquired"
	StateSettling     State = "settling"
	StateSettled      State = "settled"
	StateFailed       State = "failed"
)

// Disburser pays a claim out of the treasury
type Disburser interface {
	Disburse(ctx context.Context, p treasury.Payout) (models.Settlement, error)
}

// TokenReader looks up the token a claim is made against
type TokenReader interface {
	Get(ctx context.Context, id uint) (*models.Token, error)
}

// Publisher fans events out to feed subscribers
type Publisher interface {
	Publish(topic string, payload interface{})
}

// Config holds claim settings
type Config struct {
	MinClaimSol decimal.Decimal
	LockTTL     time.Duration
}

// Request identifies the caller claiming a token's fees
type Request struct {
	TokenID       uint
	WalletAddress string
	ProfileID     string
}

// Result is the outcome of a successful claim
type Result struct {
	ClaimID    uint              `json:"claim_id"`
	TokenID    uint              `json:"token_id"`
	EarnerType models.EarnerType `json:"earner_type"`
	AmountPaid decimal.Decimal   `json:"amount_paid"`
	Settlement models.Settlement `json:"settlement"`
	IsPending  bool              `json:"is_pending"`
}

// ClaimEvent is published after a claim is recorded
type ClaimEvent struct {
	TokenID    uint              `json:"token_id"`
	EarnerType models.EarnerType `json:"earner_type"`
	AmountSol  decimal.Decimal   `json:"amount_sol"`
	IsPending  bool              `json:"is_pending"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Service defines the claim operation
type Service interface {
	Claim(ctx context.Context, req Request) (*Result, error)
}

// Coordinator runs claims one token at a time
type Coordinator struct {
	tokens    TokenReader
	fees      fee.Service
	locker    claimlock.Locker
	disburser Disburser
	publisher Publisher
	cfg       Config
	logger    logrus.FieldLogger
}

// NewCoordinator creates a claim coordinator. publisher may be nil.
func NewCoordinator(tokens TokenReader, fees fee.Service, locker claimlock.Locker, disburser Disburser,
	publisher Publisher, cfg Config, logger logrus.FieldLogger) *Coordinator {
	return &Coordinator{
		tokens:    tokens,
		fees:      fees,
		locker:    locker,
		disburser: disburser,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// disburseTimeout keeps payout strictly inside the lock's lifetime
func (c *Coordinator) disburseTimeout() time.Duration {
	return c.cfg.LockTTL - c.cfg.LockTTL/4
}

func (c *Coordinator) transition(entry *logrus.Entry, state State) {
	metrics.ClaimTransitions.WithLabelValues(string(state)).Inc()
	entry.WithField("state", state).Debug("Claim state transition")
}

// Claim pays the caller's entire unclaimed balance for a token.
// A second claim on the same token while one is in flight fails immediately
// with ErrClaimInProgress.
func (c *Coordinator) Claim(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	entry := c.logger.WithField("token_id", req.TokenID)
	c.transition(entry, StateIdle)

	result, err := c.claim(ctx, req, entry)
	metrics.ClaimDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		c.transition(entry, StateFailed)
		entry.WithError(err).Warn("Fee claim failed")
		return nil, err
	}
	c.transition(entry, StateSettled)
	return result, nil
}

func (c *Coordinator) claim(ctx context.Context, req Request, entry *logrus.Entry) (*Result, error) {
	if req.WalletAddress == "" && req.ProfileID == "" {
		return nil, apperrors.ErrInvalidRequest.WithReason("wallet_address or profile_id is required")
	}

	token, err := c.tokens.Get(ctx, req.TokenID)
	if err != nil {
		return nil, err
	}
	if token.Halted {
		return nil, apperrors.ErrTokenHalted
	}

	earner, err := c.fees.ResolveEarner(ctx, req.TokenID, req.WalletAddress, req.ProfileID)
	if err != nil {
		return nil, err
	}
	entry = entry.WithFields(logrus.Fields{"earner_id": earner.ID, "earner_type": earner.EarnerType})
	if earner.UnclaimedSol.LessThan(c.cfg.MinClaimSol) {
		return nil, apperrors.ErrInsufficientAmount.WithReason("unclaimed %s, minimum %s", earner.UnclaimedSol, c.cfg.MinClaimSol)
	}

	owner := uuid.NewString()
	ok, err := c.locker.Acquire(ctx, req.TokenID, owner, c.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrClaimInProgress
	}
	defer func() {
		// Release must run even if ctx was cancelled mid-claim
		err := c.locker.Release(context.Background(), req.TokenID, owner)
		switch {
		case errors.Is(err, claimlock.ErrNotHeld):
			// The TTL ran out while this claim was still running
			metrics.InvariantViolations.WithLabelValues("CLAIM_LOCK_EXPIRED").Inc()
			entry.WithError(err).Error("Claim lock expired before release")
		case err != nil:
			entry.WithError(err).Warn("Claim lock release failed")
		}
	}()
	c.transition(entry, StateLockAcquired)

	// Re-read under the lock; a claim that just finished may have drained it
	earner, err = c.reload(ctx, earner)
	if err != nil {
		return nil, err
	}
	amount := earner.UnclaimedSol
	if amount.LessThan(c.cfg.MinClaimSol) {
		return nil, apperrors.ErrInsufficientAmount.WithReason("unclaimed %s, minimum %s", amount, c.cfg.MinClaimSol)
	}

	c.transition(entry, StateSettling)
	settlement, err := c.disburse(ctx, treasury.Payout{
		TokenID:  req.TokenID,
		EarnerID: earner.ID,
		To:       earner.WalletAddress,
		Amount:   amount,
	})
	if err != nil {
		if settlement.Reference == "" {
			return nil, err
		}
		// Funds may have moved; record the claim and let reconciliation confirm it
		entry.WithError(err).WithField("signature", settlement.Reference).Warn("Recording unconfirmed payout")
	}

	claim, err := c.fees.Settle(context.Background(), earner.ID, amount, settlement)
	if err != nil {
		if !settlement.IsPending() {
			entry.WithError(err).WithField("signature", settlement.Reference).Error("Payout sent but claim not recorded")
		}
		return nil, err
	}
	if settlement.IsPending() {
		metrics.PendingClaims.Inc()
	}

	if c.publisher != nil {
		c.publisher.Publish(TopicClaims, ClaimEvent{
			TokenID:    req.TokenID,
			EarnerType: earner.EarnerType,
			AmountSol:  amount,
			IsPending:  settlement.IsPending(),
			Timestamp:  claim.CreatedAt,
		})
	}

	return &Result{
		ClaimID:    claim.ID,
		TokenID:    req.TokenID,
		EarnerType: earner.EarnerType,
		AmountPaid: amount,
		Settlement: settlement,
		IsPending:  settlement.IsPending(),
	}, nil
}

func (c *Coordinator) reload(ctx context.Context, earner *models.FeeEarner) (*models.FeeEarner, error) {
	earners, err := c.fees.Earners(ctx, earner.TokenID)
	if err != nil {
		return nil, err
	}
	for _, e := range earners {
		if e.ID == earner.ID {
			return e, nil
		}
	}
	return nil, apperrors.ErrNotAnEarner
}

func (c *Coordinator) disburse(ctx context.Context, p treasury.Payout) (models.Settlement, error) {
	ctx, cancel := context.WithTimeout(ctx, c.disburseTimeout())
	defer cancel()
	return c.disburser.Disburse(ctx, p)
}
