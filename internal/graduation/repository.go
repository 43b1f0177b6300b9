package graduation

import (
	"context"
	"errors"
	"time"

	"github.com/irfndi/AetherDEX/apps/launchpad/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists migration progress and the lease that lets one
// process at a time drive a token's migration
type Repository interface {
	GetByToken(ctx context.Context, tokenID uint) (*models.PoolMigration, error)
	Create(ctx context.Context, m *models.PoolMigration) error
	Save(ctx context.Context, m *models.PoolMigration) error
	AcquireLease(ctx context.Context, tokenID uint, owner string, ttl time.Duration) (bool, error)
	RenewLease(ctx context.Context, tokenID uint, owner string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, tokenID uint, owner string) error
}

type migrationRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewMigrationRepository creates a new migration repository instance
func NewMigrationRepository(db *gorm.DB) Repository {
	return &migrationRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// GetByToken retrieves a token's migration record
func (r *migrationRepository) GetByToken(ctx context.Context, tokenID uint) (*models.PoolMigration, error) {
	if tokenID == 0 {
		return nil, errors.New("token id cannot be zero")
	}

	var m models.PoolMigration
	err := r.db.WithContext(ctx).Where("token_id = ?", tokenID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *migrationRepository) Create(ctx context.Context, m *models.PoolMigration) error {
	if m == nil {
		return errors.New("migration cannot be nil")
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// Save persists every progress field of m. Lease columns belong to
// AcquireLease and friends and are never written here.
func (r *migrationRepository) Save(ctx context.Context, m *models.PoolMigration) error {
	return r.db.WithContext(ctx).Omit("LeaseOwner", "LeaseExpiresAt").Save(m).Error
}

// AcquireLease takes the token's migration lease when it is free or expired,
// creating the migration row on first use
func (r *migrationRepository) AcquireLease(ctx context.Context, tokenID uint, owner string, ttl time.Duration) (bool, error) {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "token_id"}}, DoNothing: true}).
		Create(&models.PoolMigration{TokenID: tokenID}).Error; err != nil {
		return false, err
	}

	now := r.now()
	result := db.Model(&models.PoolMigration{}).
		Where("token_id = ? AND (lease_owner = '' OR lease_owner IS NULL OR lease_expires_at IS NULL OR lease_expires_at <= ?)", tokenID, now).
		Updates(map[string]interface{}{"lease_owner": owner, "lease_expires_at": now.Add(ttl)})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// RenewLease extends a lease owner still holds; false means it was lost
func (r *migrationRepository) RenewLease(ctx context.Context, tokenID uint, owner string, ttl time.Duration) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.PoolMigration{}).
		Where("token_id = ? AND lease_owner = ?", tokenID, owner).
		Update("lease_expires_at", r.now().Add(ttl))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *migrationRepository) ReleaseLease(ctx context.Context, tokenID uint, owner string) error {
	return r.db.WithContext(ctx).Model(&models.PoolMigration{}).
		Where("token_id = ? AND lease_owner = ?", tokenID, owner).
		Updates(map[string]interface{}{"lease_owner": "", "lease_expires_at": nil}).Error
}
