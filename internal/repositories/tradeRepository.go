package repositories

import (
	"errors"

	"BandReversionBot/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TradeRepository stores the ledgers of backtest runs.
type TradeRepository struct {
	db *gorm.DB
}

func NewTradeRepository(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// SaveTrades writes a run's trades in one transaction.
func (r *TradeRepository) SaveTrades(trades []models.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(trades, batchSize).Error
	})
}

// GetTotalPnL sums account-currency P&L of one run
func (r *TradeRepository) GetTotalPnL(runID uuid.UUID) (float64, error) {
	if runID == uuid.Nil {
		return 0, errors.New("invalid run id")
	}
	var total float64
	err := r.db.Model(&models.TradeRecord{}).
		Where("run_id = ?", runID).
		Select("COALESCE(SUM(pnl_usd), 0)").
		Scan(&total).Error
	return total, err
}
