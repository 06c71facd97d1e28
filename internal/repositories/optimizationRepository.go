package repositories

import (
	"BandReversionBot/internal/models"

	"gorm.io/gorm"
)

// OptimizationRepository keeps every optimization run; the newest row per instrument is current.
type OptimizationRepository struct {
	db *gorm.DB
}

func NewOptimizationRepository(db *gorm.DB) *OptimizationRepository {
	return &OptimizationRepository{db: db}
}

func (r *OptimizationRepository) SaveOptimizationResults(records []models.OptimizationRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&records).Error
	})
}

// FindPassed returns every passing run, newest first.
func (r *OptimizationRepository) FindPassed() ([]models.OptimizationRecord, error) {
	var recs []models.OptimizationRecord
	err := r.db.Where("passed_validation = ?", true).Order("created_at DESC, id DESC").Find(&recs).Error
	return recs, err
}
