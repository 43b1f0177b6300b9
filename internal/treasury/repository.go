package treasury

import (
	"context"
	"errors"
	"time"

	"github.com/irfndi/AetherDEX/apps/launchpad/internal/fee"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/models"
	"gorm.io/gorm"
)

// Unconfirmed is a submitted payout whose confirmation was never observed.
// State is the reconciliation row's outcome, empty when the claim has no row.
type Unconfirmed struct {
	Claim     *models.FeeClaim
	Signature string
	State     models.ReconciliationOutcome
}

// Repository finds claims that still need reconciling and moves their
// reconciliation rows forward
type Repository interface {
	ListPending(ctx context.Context, limit int) ([]*models.FeeClaim, error)
	ListUnconfirmed(ctx context.Context, before time.Time, limit int) ([]*Unconfirmed, error)
	GetEarner(ctx context.Context, id uint) (*models.FeeEarner, error)
	Transition(ctx context.Context, claimID uint, from, to models.ReconciliationOutcome, signature string) (bool, error)
	Abandon(ctx context.Context, claimID uint) error
}

type treasuryRepository struct {
	db     *gorm.DB
	ledger fee.Repository
}

// NewTreasuryRepository creates a new reconciliation repository
func NewTreasuryRepository(db *gorm.DB) Repository {
	return &treasuryRepository{db: db, ledger: fee.NewFeeRepository(db)}
}

// open selects claims without a reconciliation row
func (r *treasuryRepository) open(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.FeeClaim{}).
		Joins("LEFT JOIN claim_reconciliations ON claim_reconciliations.claim_id = fee_claims.id").
		Where("claim_reconciliations.id IS NULL")
}

// ListPending returns deferred payouts nobody has started paying, oldest first
func (r *treasuryRepository) ListPending(ctx context.Context, limit int) ([]*models.FeeClaim, error) {
	var claims []*models.FeeClaim
	err := r.open(ctx).
		Where("fee_claims.pending = ?", true).
		Order("fee_claims.id ASC").Limit(limit).Find(&claims).Error
	return claims, err
}

// ListUnconfirmed returns payouts submitted before the cutoff whose outcome is
// still unknown: claims settled unconfirmed at claim time, and deferred claims
// the reconciler paid without seeing a confirmation.
func (r *treasuryRepository) ListUnconfirmed(ctx context.Context, before time.Time, limit int) ([]*Unconfirmed, error) {
	var settled []*models.FeeClaim
	err := r.open(ctx).
		Where("fee_claims.pending = ? AND fee_claims.confirmed = ? AND fee_claims.created_at < ?", false, false, before).
		Order("fee_claims.id ASC").Limit(limit).Find(&settled).Error
	if err != nil {
		return nil, err
	}

	out := make([]*Unconfirmed, 0, len(settled))
	for _, c := range settled {
		out = append(out, &Unconfirmed{Claim: c, Signature: c.SettlementRef})
	}

	var recs []*models.ClaimReconciliation
	err = r.db.WithContext(ctx).
		Where("outcome = ? AND updated_at < ?", models.ReconciliationUnconfirmed, before).
		Order("id ASC").Limit(limit).Find(&recs).Error
	if err != nil || len(recs) == 0 {
		return out, err
	}

	ids := make([]uint, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ClaimID
	}
	var paid []*models.FeeClaim
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&paid).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.FeeClaim, len(paid))
	for _, c := range paid {
		byID[c.ID] = c
	}
	for _, rec := range recs {
		if c, ok := byID[rec.ClaimID]; ok {
			out = append(out, &Unconfirmed{Claim: c, Signature: rec.Signature, State: rec.Outcome})
		}
	}
	return out, nil
}

func (r *treasuryRepository) GetEarner(ctx context.Context, id uint) (*models.FeeEarner, error) {
	var earner models.FeeEarner
	err := r.db.WithContext(ctx).First(&earner, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &earner, nil
}

// Transition moves a claim's reconciliation row from one outcome to another.
// An empty from creates the row. It reports false when another pass got there
// first.
func (r *treasuryRepository) Transition(ctx context.Context, claimID uint, from, to models.ReconciliationOutcome, signature string) (bool, error) {
	return r.ledger.TransitionReconciliation(r.db.WithContext(ctx), claimID, from, to, signature)
}

// Abandon drops the in-flight marker of a payout that was never submitted
func (r *treasuryRepository) Abandon(ctx context.Context, claimID uint) error {
	return r.db.WithContext(ctx).
		Where("claim_id = ? AND outcome = ?", claimID, models.ReconciliationSubmitting).
		Delete(&models.ClaimReconciliation{}).Error
}
