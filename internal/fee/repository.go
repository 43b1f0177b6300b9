package fee

import (
	"context"
	"errors"
	"time"

	"github.com/irfndi/AetherDEX/apps/launchpad/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines fee ledger persistence. Methods taking tx run inside the
// caller's unit of work.
type Repository interface {
	CreateEarners(tx *gorm.DB, earners []*models.FeeEarner) error
	ListByToken(ctx context.Context, tokenID uint) ([]*models.FeeEarner, error)
	LockByToken(tx *gorm.DB, tokenID uint) ([]*models.FeeEarner, error)
	LockByID(tx *gorm.DB, id uint) (*models.FeeEarner, error)
	FindByWallet(ctx context.Context, tokenID uint, wallet string) (*models.FeeEarner, error)
	FindByProfile(ctx context.Context, tokenID uint, profileID string) (*models.FeeEarner, error)
	UpdateBalances(tx *gorm.DB, earner *models.FeeEarner) error
	CreateClaim(tx *gorm.DB, claim *models.FeeClaim) error
	TransitionReconciliation(tx *gorm.DB, claimID uint, from, to models.ReconciliationOutcome, signature string) (bool, error)
	ListClaims(ctx context.Context, tokenID uint, limit int) ([]*models.FeeClaim, error)
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type feeRepository struct {
	db *gorm.DB
}

// NewFeeRepository creates a new fee repository instance
func NewFeeRepository(db *gorm.DB) Repository {
	return &feeRepository{db: db}
}

func (r *feeRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func (r *feeRepository) CreateEarners(tx *gorm.DB, earners []*models.FeeEarner) error {
	if len(earners) == 0 {
		return errors.New("earners cannot be empty")
	}
	return tx.Create(&earners).Error
}

func (r *feeRepository) ListByToken(ctx context.Context, tokenID uint) ([]*models.FeeEarner, error) {
	var earners []*models.FeeEarner
	err := r.db.WithContext(ctx).Where("token_id = ?", tokenID).Order("id ASC").Find(&earners).Error
	return earners, err
}

// LockByToken reads a token's earners with row locks held until tx ends
func (r *feeRepository) LockByToken(tx *gorm.DB, tokenID uint) ([]*models.FeeEarner, error) {
	var earners []*models.FeeEarner
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("token_id = ?", tokenID).Order("id ASC").Find(&earners).Error
	return earners, err
}

func (r *feeRepository) LockByID(tx *gorm.DB, id uint) (*models.FeeEarner, error) {
	var earner models.FeeEarner
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&earner, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &earner, nil
}

func (r *feeRepository) FindByWallet(ctx context.Context, tokenID uint, wallet string) (*models.FeeEarner, error) {
	return r.findOne(ctx, "token_id = ? AND wallet_address = ?", tokenID, wallet)
}

func (r *feeRepository) FindByProfile(ctx context.Context, tokenID uint, profileID string) (*models.FeeEarner, error) {
	return r.findOne(ctx, "token_id = ? AND profile_id = ?", tokenID, profileID)
}

func (r *feeRepository) findOne(ctx context.Context, query string, args ...interface{}) (*models.FeeEarner, error) {
	var earner models.FeeEarner
	err := r.db.WithContext(ctx).Where(query, args...).Order("id ASC").First(&earner).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &earner, nil
}

// UpdateBalances writes the balance columns of a locked earner
func (r *feeRepository) UpdateBalances(tx *gorm.DB, earner *models.FeeEarner) error {
	return tx.Model(&models.FeeEarner{}).Where("id = ?", earner.ID).
		Updates(map[string]interface{}{
			"unclaimed_sol":       earner.UnclaimedSol,
			"lifetime_earned_sol": earner.LifetimeEarnedSol,
			"last_claimed_at":     earner.LastClaimedAt,
			"updated_at":          time.Now(),
		}).Error
}

func (r *feeRepository) CreateClaim(tx *gorm.DB, claim *models.FeeClaim) error {
	return tx.Create(claim).Error
}

// TransitionReconciliation moves a claim's reconciliation row from one
// outcome to another. An empty from inserts the row. It reports false when the
// row is not in the from state.
func (r *feeRepository) TransitionReconciliation(tx *gorm.DB, claimID uint, from, to models.ReconciliationOutcome, signature string) (bool, error) {
	if from == "" {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "claim_id"}},
			DoNothing: true,
		}).Create(&models.ClaimReconciliation{ClaimID: claimID, Outcome: to, Signature: signature})
		return res.RowsAffected == 1, res.Error
	}

	updates := map[string]interface{}{"outcome": to, "updated_at": time.Now()}
	if signature != "" {
		updates["signature"] = signature
	}
	res := tx.Model(&models.ClaimReconciliation{}).
		Where("claim_id = ? AND outcome = ?", claimID, from).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

func (r *feeRepository) ListClaims(ctx context.Context, tokenID uint, limit int) ([]*models.FeeClaim, error) {
	var claims []*models.FeeClaim
	err := r.db.WithContext(ctx).Where("token_id = ?", tokenID).
		Order("created_at DESC").Limit(limit).Find(&claims).Error
	return claims, err
}

// sumUnclaimed totals the unclaimed balances of earners
func sumUnclaimed(earners []*models.FeeEarner) decimal.Decimal {
	total := decimal.Zero
	for _, e := range earners {
		total = total.Add(e.UnclaimedSol)
	}
	return total
}
