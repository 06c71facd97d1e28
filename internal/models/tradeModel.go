package models

import (
	"time"

	"github.com/google/uuid"
)

// TradeRecord is a closed backtest trade persisted with the run that produced it.
type TradeRecord struct {
	ID         uint      `gorm:"primaryKey"`
	RunID      uuid.UUID `gorm:"type:uuid;index;not null"`
	Instrument string    `gorm:"index;not null"`
	Side       string    `gorm:"not null"`
	Units      int64     `gorm:"not null"`
	EntryPrice float64   `gorm:"type:decimal(20,8);not null"`

	StopLossPrice   float64 `gorm:"type:decimal(20,8);not null"`
	TakeProfitPrice float64 `gorm:"type:decimal(20,8);not null"`
	ExitPrice       float64 `gorm:"type:decimal(20,8);not null"`
	ExitReason      string  `gorm:"not null"`

	PnLPips float64 `gorm:"column:pnl_pips;type:decimal(20,4)"`
	PnLUSD  float64 `gorm:"column:pnl_usd;type:decimal(20,4)"`

	OpenTime  time.Time `gorm:"index;not null"`
	CloseTime time.Time `gorm:"index"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

const (
	TradeSideLong  = "long"
	TradeSideShort = "short"
)

func (TradeRecord) TableName() string {
	return "backtest_trades"
}
