package repositories

import (
	"errors"

	"BandReversionBot/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BalanceRepository stores backtest equity curves.
type BalanceRepository struct {
	db *gorm.DB
}

// NewBalanceRepository creates a new instance of BalanceRepository
func NewBalanceRepository(db *gorm.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

func (r *BalanceRepository) SaveBalances(points []models.BalanceSnapshot) error {
	if len(points) == 0 {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(points, batchSize).Error
	})
}

// GetFinalBalance returns the last point of a run's curve
func (r *BalanceRepository) GetFinalBalance(runID uuid.UUID) (*models.BalanceSnapshot, error) {
	var point models.BalanceSnapshot
	err := r.db.Where("run_id = ?", runID).Order("seq DESC").First(&point).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &point, err
}
