package strategy

import (
	"fmt"
	"math"
	"sort"
	"time"

	"BandReversionBot/internal/models"
	"BandReversionBot/internal/validation"
)

const (
	DefaultATRSLMultiplier = 1.5

	// Percent-of-band confirmation for re-entries.
	longPctBMax  = 0.10
	shortPctBMin = 0.90
)

// Fields the entry timeframe must carry before signals can be generated.
const fineRequired = models.FieldOHLC | models.FieldBands | models.FieldVolatility |
	models.FieldTrend | models.FieldSession | models.FieldRegime

// SignalGenerator marks band re-entry signals on the fine timeframe, confirmed by the
// coarse timeframe's regime.
type SignalGenerator struct {
	ATRSLMultiplier float64 `validate:"gt=0"`
}

func NewSignalGenerator(atrSLMultiplier float64) (*SignalGenerator, error) {
	g := &SignalGenerator{ATRSLMultiplier: atrSLMultiplier}
	if err := validation.Struct(g); err != nil {
		return nil, err
	}
	return g, nil
}

// Generate returns a copy of fine with signal fields set on every bar.
func (g *SignalGenerator) Generate(coarse, fine models.Series) (models.Series, error) {
	if err := fine.Require(fineRequired); err != nil {
		return models.Series{}, err
	}
	if err := coarse.Require(models.FieldRegime); err != nil {
		return models.Series{}, err
	}
	if err := CheckCoverage(coarse, fine); err != nil {
		return models.Series{}, err
	}

	aligned := AlignRegime(coarse, fine)
	out := fine.Clone()
	bars := out.Bars

	for i := range bars {
		b := &bars[i]
		b.Signal = 0
		b.SignalType = models.SignalNone
		b.EntryPrice = math.NaN()
		b.StopLoss = math.NaN()
		b.TakeProfit = math.NaN()
		b.ExitSignal = 0

		ranging := aligned[i] == models.RegimeRanging
		if i > 0 && ranging && b.TradeableSession {
			prevClose := bars[i-1].Close
			if prevClose < b.BBLower && b.Close > b.BBLower && b.BBPctB < longPctBMax {
				b.Signal = 1
			}
			if prevClose > b.BBUpper && b.Close < b.BBUpper && b.BBPctB > shortPctBMin {
				b.Signal = -1
			}
		}

		switch b.Signal {
		case 1:
			b.SignalType = models.SignalLong
		case -1:
			b.SignalType = models.SignalShort
		}
		if b.Signal != 0 {
			offset := b.ATR * g.ATRSLMultiplier
			b.EntryPrice = b.Close
			b.StopLoss = b.Close - float64(b.Signal)*offset
			b.TakeProfit = b.BBMiddle
		}

		// The first bar has no previous direction and counts as a flip.
		emaFlip := i == 0 || b.EMACross != bars[i-1].EMACross
		regimeLeft := i > 0 && !ranging && aligned[i-1] == models.RegimeRanging
		if emaFlip || regimeLeft {
			b.ExitSignal = 1
		}
	}

	if err := validateStops(bars); err != nil {
		return models.Series{}, err
	}

	out.Fields |= models.FieldSignals
	return out, nil
}

// AlignRegime gives each fine bar the latest coarse regime at or before its time.
// Fine bars earlier than the first coarse bar get an empty regime.
func AlignRegime(coarse, fine models.Series) []models.Regime {
	aligned := make([]models.Regime, fine.Len())
	j := -1
	for i, b := range fine.Bars {
		for j+1 < coarse.Len() && !coarse.Bars[j+1].Time.After(b.Time) {
			j++
		}
		if j >= 0 {
			aligned[i] = coarse.Bars[j].Regime
		}
	}
	return aligned
}

// CheckCoverage requires the coarse series, widened by one coarse interval on each
// side, to span the fine series.
func CheckCoverage(coarse, fine models.Series) error {
	if fine.Len() == 0 {
		return nil
	}
	if coarse.Len() == 0 {
		return fmt.Errorf("%w: %s has no %s bars to cover %s", models.ErrDataCoverage,
			fine.Instrument, coarse.Timeframe, fine.Timeframe)
	}

	interval := medianSpacing(coarse)
	if fine.First().Before(coarse.First().Add(-interval)) || fine.Last().After(coarse.Last().Add(interval)) {
		return fmt.Errorf("%w: %s %s range %s..%s does not cover %s range %s..%s", models.ErrDataCoverage,
			fine.Instrument, coarse.Timeframe,
			coarse.First().Format(time.RFC3339), coarse.Last().Format(time.RFC3339),
			fine.Timeframe, fine.First().Format(time.RFC3339), fine.Last().Format(time.RFC3339))
	}
	return nil
}

func medianSpacing(s models.Series) time.Duration {
	if s.Len() < 2 {
		return 0
	}
	gaps := make([]time.Duration, 0, s.Len()-1)
	for i := 1; i < s.Len(); i++ {
		gaps = append(gaps, s.Bars[i].Time.Sub(s.Bars[i-1].Time))
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i] < gaps[j] })
	return gaps[len(gaps)/2]
}

func validateStops(bars []models.Bar) error {
	for _, b := range bars {
		// NaN stops compare false and are left to the position sizer.
		if b.Signal == 1 && b.StopLoss >= b.EntryPrice {
			return fmt.Errorf("%w: long signal at %s has stop_loss %v >= entry %v",
				models.ErrInvariant, b.Time.Format(time.RFC3339), b.StopLoss, b.EntryPrice)
		}
		if b.Signal == -1 && b.StopLoss <= b.EntryPrice {
			return fmt.Errorf("%w: short signal at %s has stop_loss %v <= entry %v",
				models.ErrInvariant, b.Time.Format(time.RFC3339), b.StopLoss, b.EntryPrice)
		}
	}
	return nil
}
