package models

import (
	"time"

	"github.com/google/uuid"
)

// BalanceSnapshot is one point of a backtest run's equity curve.
type BalanceSnapshot struct {
	ID         uint      `gorm:"primaryKey"`
	RunID      uuid.UUID `gorm:"type:uuid;index:idx_balance_run;not null"`
	Instrument string    `gorm:"index;not null"`
	Seq        int       `gorm:"index:idx_balance_run;not null"` // position in the curve; timestamps repeat
	Balance    float64   `gorm:"type:decimal(20,4);not null"`

	Timestamp time.Time `gorm:"not null"`
}

func (BalanceSnapshot) TableName() string {
	return "backtest_balances"
}
