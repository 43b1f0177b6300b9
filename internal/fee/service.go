package fee

import (
	"context"
	"time"

	"github.com/irfndi/AetherDEX/apps/launchpad/internal/apperrors"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/metrics"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/models"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/pricing"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// lamport granularity for every allocation but the last
const allocationPlaces = 9

// Allocation is one earner's slice of a trading fee
type Allocation struct {
	EarnerID   uint              `json:"earner_id"`
	EarnerType models.EarnerType `json:"earner_type"`
	Amount     decimal.Decimal   `json:"amount"`
}

// Service defines fee ledger operations
type Service interface {
	OpenAccounts(tx *gorm.DB, tokenID uint, earners []*models.FeeEarner) error
	Credit(tx *gorm.DB, tokenID uint, fee decimal.Decimal) ([]Allocation, error)
	GetClaimableFees(ctx context.Context, tokenID uint) (map[models.EarnerType]decimal.Decimal, error)
	Earners(ctx context.Context, tokenID uint) ([]*models.FeeEarner, error)
	ResolveEarner(ctx context.Context, tokenID uint, wallet, profileID string) (*models.FeeEarner, error)
	Settle(ctx context.Context, earnerID uint, amount decimal.Decimal, settlement models.Settlement) (*models.FeeClaim, error)
	Revert(ctx context.Context, claim *models.FeeClaim, signature string, from models.ReconciliationOutcome) error
	Claims(ctx context.Context, tokenID uint, limit int) ([]*models.FeeClaim, error)
}

type service struct {
	repo   Repository
	logger logrus.FieldLogger
}

// NewService creates a new fee service
func NewService(repo Repository, logger logrus.FieldLogger) Service {
	return &service{repo: repo, logger: logger}
}

// Split divides fee by share. Every share but the last is truncated to
// lamports and the last earner takes the remainder, so the parts sum to fee.
func Split(fee decimal.Decimal, earners []*models.FeeEarner) []Allocation {
	allocations := make([]Allocation, 0, len(earners))
	allocated := decimal.Zero
	den := decimal.NewFromInt(pricing.BpsDenominator)

	for i, e := range earners {
		var amount decimal.Decimal
		if i == len(earners)-1 {
			amount = fee.Sub(allocated)
		} else {
			amount = fee.Mul(decimal.NewFromInt(int64(e.ShareBps))).Div(den).Truncate(allocationPlaces)
		}
		allocated = allocated.Add(amount)
		allocations = append(allocations, Allocation{EarnerID: e.ID, EarnerType: e.EarnerType, Amount: amount})
	}
	return allocations
}

// ShareSum returns the total share of earners in basis points
func ShareSum(earners []*models.FeeEarner) int {
	sum := 0
	for _, e := range earners {
		sum += e.ShareBps
	}
	return sum
}

// OpenAccounts creates a new token's earners; shares must total 10000 bps
func (s *service) OpenAccounts(tx *gorm.DB, tokenID uint, earners []*models.FeeEarner) error {
	if sum := ShareSum(earners); sum != pricing.BpsDenominator {
		return apperrors.ErrInvalidRequest.WithReason("earner shares sum to %d bps", sum)
	}
	for _, e := range earners {
		e.TokenID = tokenID
		e.UnclaimedSol = decimal.Zero
		e.LifetimeEarnedSol = decimal.Zero
	}
	return s.repo.CreateEarners(tx, earners)
}

// Credit splits fee across the token's earners inside tx.
// Earner rows stay locked until tx commits, so a concurrent settlement waits.
func (s *service) Credit(tx *gorm.DB, tokenID uint, fee decimal.Decimal) ([]Allocation, error) {
	if !fee.IsPositive() {
		return nil, nil
	}

	earners, err := s.repo.LockByToken(tx, tokenID)
	if err != nil {
		return nil, err
	}
	if sum := ShareSum(earners); len(earners) == 0 || sum != pricing.BpsDenominator {
		return nil, apperrors.ErrInvariantViolation.WithReason("token %d earner shares sum to %d bps", tokenID, sum)
	}

	allocations := Split(fee, earners)
	for i, e := range earners {
		amount := allocations[i].Amount
		e.UnclaimedSol = e.UnclaimedSol.Add(amount)
		e.LifetimeEarnedSol = e.LifetimeEarnedSol.Add(amount)
		if err := s.repo.UpdateBalances(tx, e); err != nil {
			return nil, err
		}
	}
	return allocations, nil
}

// Observe records accrued fees once the trade that credited them commits
func Observe(allocations []Allocation) {
	for _, a := range allocations {
		metrics.FeesAccruedSol.WithLabelValues(string(a.EarnerType)).Add(a.Amount.InexactFloat64())
	}
}

func (s *service) GetClaimableFees(ctx context.Context, tokenID uint) (map[models.EarnerType]decimal.Decimal, error) {
	earners, err := s.Earners(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	claimable := make(map[models.EarnerType]decimal.Decimal, len(earners))
	for _, e := range earners {
		claimable[e.EarnerType] = e.UnclaimedSol
	}
	return claimable, nil
}

func (s *service) Earners(ctx context.Context, tokenID uint) ([]*models.FeeEarner, error) {
	earners, err := s.repo.ListByToken(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if len(earners) == 0 {
		return nil, apperrors.ErrTokenNotFound
	}
	return earners, nil
}

// ResolveEarner matches the caller by wallet first, then by profile id
func (s *service) ResolveEarner(ctx context.Context, tokenID uint, wallet, profileID string) (*models.FeeEarner, error) {
	if wallet != "" {
		earner, err := s.repo.FindByWallet(ctx, tokenID, wallet)
		if err != nil {
			return nil, err
		}
		if earner != nil {
			return earner, nil
		}
	}
	if profileID != "" {
		earner, err := s.repo.FindByProfile(ctx, tokenID, profileID)
		if err != nil {
			return nil, err
		}
		if earner != nil {
			return earner, nil
		}
	}
	return nil, apperrors.ErrNotAnEarner
}

// Settle records a claim receipt and deducts exactly amount from the
// earner's unclaimed balance in one transaction. Fees credited after the
// claim was sized stay in the balance.
func (s *service) Settle(ctx context.Context, earnerID uint, amount decimal.Decimal, settlement models.Settlement) (*models.FeeClaim, error) {
	if !amount.IsPositive() {
		return nil, apperrors.ErrInvalidAmount
	}

	var claim *models.FeeClaim
	err := s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		earner, err := s.repo.LockByID(tx, earnerID)
		if err != nil {
			return err
		}
		if earner == nil {
			return apperrors.ErrNotAnEarner
		}
		if earner.UnclaimedSol.LessThan(amount) {
			return apperrors.ErrInvariantViolation.WithReason("earner %d unclaimed %s below claimed %s",
				earnerID, earner.UnclaimedSol, amount)
		}

		claim = &models.FeeClaim{
			EarnerID:       earner.ID,
			TokenID:        earner.TokenID,
			AmountSol:      amount,
			SettlementKind: settlement.Kind,
			SettlementRef:  settlement.Reference,
			Confirmed:      settlement.Confirmed,
		}
		if err := s.repo.CreateClaim(tx, claim); err != nil {
			return err
		}

		now := time.Now()
		earner.UnclaimedSol = earner.UnclaimedSol.Sub(amount)
		earner.LastClaimedAt = &now
		return s.repo.UpdateBalances(tx, earner)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"earner_id":  earnerID,
		"token_id":   claim.TokenID,
		"amount_sol": amount.String(),
		"settlement": settlement.Kind,
		"reference":  settlement.Reference,
	}).Info("Fee claim settled")
	return claim, nil
}

// Revert closes out a claim whose transfer never landed and returns its
// amount to the earner's unclaimed balance. from is the reconciliation state
// the caller observed; the earner is re-credited only if the row is still in
// it, so a claim is reverted at most once.
func (s *service) Revert(ctx context.Context, claim *models.FeeClaim, signature string, from models.ReconciliationOutcome) error {
	return s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.TransitionReconciliation(tx, claim.ID, from, models.ReconciliationReverted, signature)
		if err != nil {
			return err
		}
		if !moved {
			return apperrors.ErrAlreadyReconciled
		}

		earner, err := s.repo.LockByID(tx, claim.EarnerID)
		if err != nil {
			return err
		}
		if earner == nil {
			return apperrors.ErrNotAnEarner
		}
		earner.UnclaimedSol = earner.UnclaimedSol.Add(claim.AmountSol)
		return s.repo.UpdateBalances(tx, earner)
	})
}

func (s *service) Claims(ctx context.Context, tokenID uint, limit int) ([]*models.FeeClaim, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.ListClaims(ctx, tokenID, limit)
}
