package strategy

import (
	"fmt"
	"math"

	"BandReversionBot/internal/models"

	"github.com/shopspring/decimal"
)

// PositionSizer sizes trades by risking a fixed fraction of balance against the stop distance.
type PositionSizer struct{}

func NewPositionSizer() *PositionSizer {
	return &PositionSizer{}
}

// Calculate returns round(balance*risk / |entry-stop|) units, half to even.
func (p *PositionSizer) Calculate(balance, riskPct, entry, stop float64) (int64, error) {
	if !(balance > 0) {
		return 0, fmt.Errorf("%w: account balance must be positive, got %v", models.ErrConfiguration, balance)
	}
	if !(riskPct > 0 && riskPct <= 1) {
		return 0, fmt.Errorf("%w: risk pct must be in (0, 1], got %v", models.ErrConfiguration, riskPct)
	}
	if math.IsNaN(entry) || math.IsNaN(stop) || math.IsInf(entry, 0) || math.IsInf(stop, 0) {
		return 0, fmt.Errorf("%w: entry %v and stop %v must be defined", models.ErrConfiguration, entry, stop)
	}

	distance := decimal.NewFromFloat(entry).Sub(decimal.NewFromFloat(stop)).Abs()
	if distance.IsZero() {
		return 0, fmt.Errorf("%w: entry price and stop loss cannot be equal (%v)", models.ErrConfiguration, entry)
	}

	risk := decimal.NewFromFloat(balance).Mul(decimal.NewFromFloat(riskPct))
	units := risk.DivRound(distance, 8).RoundBank(0)
	return units.IntPart(), nil
}
