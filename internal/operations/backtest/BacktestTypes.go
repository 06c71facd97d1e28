package backtest

import (
	"fmt"
	"strings"
	"time"

	"BandReversionBot/internal/models"
	"BandReversionBot/internal/validation"
)

const (
	TradeStatusOpen   = "open"
	TradeStatusClosed = "closed"
)

// Trade is one simulated position. It is closed exactly once.
type Trade struct {
	Pair       string
	Direction  int // 1 long, -1 short
	EntryTime  time.Time
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	Units      int64

	ExitTime   time.Time
	ExitPrice  float64
	ExitReason models.ExitReason
	PnLPips    float64
	PnLUSD     float64
	Status     string
}

func newTrade(pair string, bar models.Bar, units int64) *Trade {
	return &Trade{
		Pair:       pair,
		Direction:  bar.Signal,
		EntryTime:  bar.Time,
		EntryPrice: bar.EntryPrice,
		StopLoss:   bar.StopLoss,
		TakeProfit: bar.TakeProfit,
		Units:      units,
		Status:     TradeStatusOpen,
	}
}

// Close fills the exit fields and realizes P&L in pips and account currency.
func (t *Trade) Close(exitTime time.Time, exitPrice float64, reason models.ExitReason) error {
	if t.Status == TradeStatusClosed {
		return fmt.Errorf("%w: %s trade opened at %s is already closed", models.ErrInvariant, t.Pair, t.EntryTime)
	}

	t.ExitTime = exitTime
	t.ExitPrice = exitPrice
	t.ExitReason = reason
	t.Status = TradeStatusClosed

	priceDiff := (exitPrice - t.EntryPrice) * float64(t.Direction)
	t.PnLPips = priceDiff / PipSize(t.Pair)
	if IsJPYPair(t.Pair) {
		// quote currency is JPY; convert to USD at the exit rate
		t.PnLUSD = priceDiff / exitPrice * float64(t.Units)
	} else {
		t.PnLUSD = priceDiff * float64(t.Units)
	}
	return nil
}

func (t Trade) IsWinner() bool {
	return t.PnLUSD > 0
}

func (t Trade) Side() string {
	if t.Direction == 1 {
		return models.TradeSideLong
	}
	return models.TradeSideShort
}

func IsJPYPair(pair string) bool {
	return strings.Contains(pair, "JPY")
}

func PipSize(pair string) float64 {
	if IsJPYPair(pair) {
		return 0.01
	}
	return 0.0001
}

// For tracking equity changes
type EquityPoint struct {
	Timestamp time.Time
	Balance   float64
}

// Simulation config
type Config struct {
	InitialBalance float64 `default:"10000" validate:"gt=0"`
	RiskPct        float64 `default:"0.01" validate:"gt=0,lte=1"`
}

// NewConfig creates default config
func NewConfig() Config {
	var cfg Config
	_ = validation.Defaults(&cfg)
	return cfg
}

func (c Config) Validate() error {
	return validation.Struct(c)
}
