package trade

import (
	"context"
	"errors"
	"time"

	"github.com/irfndi/AetherDEX/apps/launchpad/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository defines trade history operations. Trades are append-only.
type Repository interface {
	Create(tx *gorm.DB, trade *models.Trade) error
	GetByID(ctx context.Context, id uint) (*models.Trade, error)
	ListByToken(ctx context.Context, tokenID uint, limit, offset int) ([]*models.Trade, error)
	ListByWallet(ctx context.Context, wallet string, limit, offset int) ([]*models.Trade, error)
	CountByToken(ctx context.Context, tokenID uint) (int64, error)
	VolumeSince(ctx context.Context, tokenID uint, since time.Time) (decimal.Decimal, error)
}

type tradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(db *gorm.DB) Repository {
	return &tradeRepository{db: db}
}

// Create appends a trade inside the ledger transaction
func (r *tradeRepository) Create(tx *gorm.DB, trade *models.Trade) error {
	if trade == nil {
		return errors.New("trade cannot be nil")
	}
	return tx.Create(trade).Error
}

func (r *tradeRepository) GetByID(ctx context.Context, id uint) (*models.Trade, error) {
	if id == 0 {
		return nil, errors.New("id cannot be zero")
	}

	var trade models.Trade
	err := r.db.WithContext(ctx).First(&trade, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trade, nil
}

// ListByToken retrieves a token's trades, newest first
func (r *tradeRepository) ListByToken(ctx context.Context, tokenID uint, limit, offset int) ([]*models.Trade, error) {
	var trades []*models.Trade
	err := r.db.WithContext(ctx).Where("token_id = ?", tokenID).
		Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&trades).Error
	return trades, err
}

// ListByWallet retrieves a wallet's trades across tokens, newest first
func (r *tradeRepository) ListByWallet(ctx context.Context, wallet string, limit, offset int) ([]*models.Trade, error) {
	if wallet == "" {
		return nil, errors.New("wallet cannot be empty")
	}

	var trades []*models.Trade
	err := r.db.WithContext(ctx).Where("wallet_address = ?", wallet).
		Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&trades).Error
	return trades, err
}

func (r *tradeRepository) CountByToken(ctx context.Context, tokenID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Trade{}).Where("token_id = ?", tokenID).Count(&count).Error
	return count, err
}

// VolumeSince sums the SOL leg of a token's trades since a given time
func (r *tradeRepository) VolumeSince(ctx context.Context, tokenID uint, since time.Time) (decimal.Decimal, error) {
	var result struct {
		BuyVolume  decimal.Decimal
		SellVolume decimal.Decimal
	}

	err := r.db.WithContext(ctx).Model(&models.Trade{}).
		Select("COALESCE(SUM(CASE WHEN side = ? THEN amount_in ELSE 0 END), 0) AS buy_volume, "+
			"COALESCE(SUM(CASE WHEN side = ? THEN amount_out ELSE 0 END), 0) AS sell_volume",
			models.TradeSideBuy, models.TradeSideSell).
		Where("token_id = ? AND created_at >= ?", tokenID, since).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	return result.BuyVolume.Add(result.SellVolume), nil
}
