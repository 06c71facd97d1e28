package indicators

import (
	"fmt"
	"math"

	"BandReversionBot/internal/models"
)

// ATRRatioWindow is the fixed look-back for the ATR ratio's baseline.
const ATRRatioWindow = 20

type ATRService struct{}

type ATRResult struct {
	TrueRange []float64
	ATR       []float64
	Ratio     []float64 // ATR over its own rolling mean
}

func NewATRService() *ATRService {
	return &ATRService{}
}

func (s *ATRService) Compute(highs, lows, closes []float64, period int) (*ATRResult, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: atr period must be positive, got %d", models.ErrConfiguration, period)
	}
	n := len(closes)
	if len(highs) != n || len(lows) != n {
		return nil, fmt.Errorf("%w: high/low/close lengths differ", models.ErrConfiguration)
	}

	tr := make([]float64, n)
	for i := 0; i < n; i++ {
		tr[i] = highs[i] - lows[i]
		if i == 0 {
			// no previous close on the first bar
			continue
		}
		prevClose := closes[i-1]
		tr[i] = math.Max(tr[i], math.Max(math.Abs(highs[i]-prevClose), math.Abs(lows[i]-prevClose)))
	}

	atr := rollingMean(tr, period)
	ratioBase := rollingMean(atr, ATRRatioWindow)
	ratio := nanSlice(n)
	for i := range ratio {
		ratio[i] = atr[i] / ratioBase[i]
	}

	return &ATRResult{
		TrueRange: tr,
		ATR:       atr,
		Ratio:     ratio,
	}, nil
}

// Calculate returns a copy of the series with atr and atr_ratio filled.
func (s *ATRService) Calculate(series models.Series, period int) (models.Series, error) {
	if err := series.Require(models.FieldOHLC); err != nil {
		return models.Series{}, err
	}

	n := series.Len()
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, b := range series.Bars {
		highs[i] = b.High
		lows[i] = b.Low
	}

	res, err := s.Compute(highs, lows, series.Closes(), period)
	if err != nil {
		return models.Series{}, err
	}

	out := series.Clone()
	for i := range out.Bars {
		out.Bars[i].ATR = res.ATR[i]
		out.Bars[i].ATRRatio = res.Ratio[i]
	}
	out.Fields |= models.FieldVolatility
	return out, nil
}

// rollingMean needs a full window of defined values; any NaN in the window yields NaN.
func rollingMean(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	for i := window - 1; i < len(values); i++ {
		sum := 0.0
		for _, v := range values[i-window+1 : i+1] {
			sum += v
		}
		out[i] = sum / float64(window)
	}
	return out
}
