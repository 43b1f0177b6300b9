package token

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/irfndi/AetherDEX/apps/launchpad/internal/apperrors"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines token and reserve persistence
type Repository interface {
	Create(tx *gorm.DB, token *models.Token) error
	GetByID(ctx context.Context, id uint) (*models.Token, error)
	GetByMint(ctx context.Context, mint string) (*models.Token, error)
	List(ctx context.Context, limit, offset int) ([]*models.Token, error)
	ListByMigrationStatus(ctx context.Context, statuses ...string) ([]*models.Token, error)

	// LockByID reads a token holding its row lock until tx ends
	LockByID(tx *gorm.DB, id uint) (*models.Token, error)
	// UpdateReserves persists curve state if the row is still at expectedVersion
	UpdateReserves(tx *gorm.DB, token *models.Token, expectedVersion uint64) error
	SetHalted(ctx context.Context, id uint) error
	UpdateStatus(ctx context.Context, id uint, status models.TokenStatus, migrationStatus string) error
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type tokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a new token repository instance
func NewTokenRepository(db *gorm.DB) Repository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// Create creates a new token
func (r *tokenRepository) Create(tx *gorm.DB, token *models.Token) error {
	if token == nil {
		return errors.New("token cannot be nil")
	}
	return tx.Create(token).Error
}

// GetByID retrieves a token by ID
func (r *tokenRepository) GetByID(ctx context.Context, id uint) (*models.Token, error) {
	if id == 0 {
		return nil, errors.New("id cannot be zero")
	}

	var token models.Token
	err := r.db.WithContext(ctx).First(&token, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

// GetByMint retrieves a token by mint address
func (r *tokenRepository) GetByMint(ctx context.Context, mint string) (*models.Token, error) {
	if strings.TrimSpace(mint) == "" {
		return nil, errors.New("mint cannot be empty")
	}

	var token models.Token
	err := r.db.WithContext(ctx).Where("mint = ?", mint).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

// List retrieves tokens with pagination, newest first
func (r *tokenRepository) List(ctx context.Context, limit, offset int) ([]*models.Token, error) {
	var tokens []*models.Token
	err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Offset(offset).Find(&tokens).Error
	return tokens, err
}

// ListByMigrationStatus retrieves bonding tokens whose migration is in one of statuses
func (r *tokenRepository) ListByMigrationStatus(ctx context.Context, statuses ...string) ([]*models.Token, error) {
	if len(statuses) == 0 {
		return []*models.Token{}, nil
	}

	var tokens []*models.Token
	err := r.db.WithContext(ctx).
		Where("migration_status IN ? AND status = ?", statuses, models.TokenStatusBonding).
		Order("id ASC").Find(&tokens).Error
	return tokens, err
}

func (r *tokenRepository) LockByID(tx *gorm.DB, id uint) (*models.Token, error) {
	var token models.Token
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&token, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

func (r *tokenRepository) UpdateReserves(tx *gorm.DB, token *models.Token, expectedVersion uint64) error {
	result := tx.Model(&models.Token{}).
		Where("id = ? AND version = ?", token.ID, expectedVersion).
		Updates(map[string]interface{}{
			"virtual_sol_reserves":   token.VirtualSolReserves,
			"virtual_token_reserves": token.VirtualTokenReserves,
			"real_sol_reserves":      token.RealSolReserves,
			"bonding_curve_progress": token.BondingCurveProgress,
			"migration_status":       token.MigrationStatus,
			"version":                expectedVersion + 1,
			"updated_at":             time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrVersionConflict
	}
	token.Version = expectedVersion + 1
	return nil
}

// SetHalted freezes a token pending operator review
func (r *tokenRepository) SetHalted(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Token{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"halted":     true,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		}).Error
}

// UpdateStatus sets the lifecycle status and migration marker
func (r *tokenRepository) UpdateStatus(ctx context.Context, id uint, status models.TokenStatus, migrationStatus string) error {
	if id == 0 {
		return errors.New("id cannot be zero")
	}
	return r.db.WithContext(ctx).Model(&models.Token{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":           status,
			"migration_status": migrationStatus,
			"version":          gorm.Expr("version + 1"),
			"updated_at":       time.Now(),
		}).Error
}
