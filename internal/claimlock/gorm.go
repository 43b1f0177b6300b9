package claimlock

import (
	"context"
	"sync"
	"time"

	"github.com/irfndi/AetherDEX/apps/launchpad/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLocker stores locks as rows keyed by token id
type GormLocker struct {
	db     *gorm.DB
	logger logrus.FieldLogger
	now    func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewGormLocker creates a table-backed locker
func NewGormLocker(db *gorm.DB, logger logrus.FieldLogger) *GormLocker {
	return &GormLocker{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		stopCh: make(chan struct{}),
	}
}

func (l *GormLocker) Acquire(ctx context.Context, tokenID uint, owner string, ttl time.Duration) (bool, error) {
	now := l.now()
	acquired := false

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Expired locks are swept on access
		if err := tx.Where("token_id = ? AND expires_at <= ?", tokenID, now).
			Delete(&models.ClaimLock{}).Error; err != nil {
			return err
		}

		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.ClaimLock{
			TokenID:    tokenID,
			Owner:      owner,
			AcquiredAt: now,
			ExpiresAt:  now.Add(ttl),
		})
		if result.Error != nil {
			return result.Error
		}
		acquired = result.RowsAffected == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	return acquired, nil
}

func (l *GormLocker) Release(ctx context.Context, tokenID uint, owner string) error {
	result := l.db.WithContext(ctx).
		Where("token_id = ? AND owner = ?", tokenID, owner).
		Delete(&models.ClaimLock{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotHeld
	}
	return nil
}

// Sweep deletes every expired lock and returns how many were removed
func (l *GormLocker) Sweep(ctx context.Context) (int64, error) {
	result := l.db.WithContext(ctx).Where("expires_at <= ?", l.now()).Delete(&models.ClaimLock{})
	return result.RowsAffected, result.Error
}

// Start runs Sweep every interval until Stop
func (l *GormLocker) Start(interval time.Duration) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				n, err := l.Sweep(context.Background())
				if err != nil {
					l.logger.WithError(err).Warn("Claim lock sweep failed")
					continue
				}
				if n > 0 {
					l.logger.WithField("expired", n).Info("Swept expired claim locks")
				}
			case <-l.stopCh:
				return
			}
		}
	}()
}

// Stop halts the background sweep and waits for it to exit
func (l *GormLocker) Stop() {
	close(l.stopCh)
	l.wg.Wait()
}
