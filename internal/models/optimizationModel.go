package models

import "time"

// OptimizationRecord is the flat, persisted form of one pair's optimization run.
type OptimizationRecord struct {
	ID                      uint      `gorm:"primaryKey"`
	Instrument              string    `gorm:"index;not null"`
	BestParams              string    `gorm:"type:text"` // JSON object
	InSampleSharpe          float64   `gorm:"type:decimal(20,6)"`
	OutOfSampleSharpe       float64   `gorm:"type:decimal(20,6)"`
	OutOfSampleWinRate      float64   `gorm:"type:decimal(20,6)"`
	OutOfSampleProfitFactor float64   `gorm:"type:double precision"` // may be +Inf
	TotalCombinationsTested int       `gorm:"not null"`
	InSampleTrades          int       `gorm:"not null"`
	OutOfSampleTrades       int       `gorm:"not null"`
	PassedValidation        bool      `gorm:"index"`
	RejectionReason         *string   `gorm:"type:text"`
	CreatedAt               time.Time `gorm:"autoCreateTime"`
}

func (OptimizationRecord) TableName() string {
	return "optimization_results"
}
