package models

import (
	"time"
)

// Price is one stored candle for an instrument and timeframe.
type Price struct {
	ID         uint      `gorm:"primaryKey"`
	Instrument string    `gorm:"uniqueIndex:idx_price_key;not null"`
	TimeFrame  string    `gorm:"uniqueIndex:idx_price_key;not null"`
	OpenTime   time.Time `gorm:"uniqueIndex:idx_price_key;not null"`
	CloseTime  time.Time `gorm:"index"`
	Open       float64   `gorm:"type:decimal(20,8)"`
	Close      float64   `gorm:"type:decimal(20,8)"`
	High       float64   `gorm:"type:decimal(20,8)"`
	Low        float64   `gorm:"type:decimal(20,8)"`
	Volume     float64   `gorm:"type:decimal(20,8)"`
	TradeCount int64
}

const (
	PriceTimeFrame15m = "15m"
	PriceTimeFrame1h  = "1h"
)

// TableName sets the table name for Price model
func (Price) TableName() string {
	return "prices"
}
