package indicators

import (
	"fmt"

	"BandReversionBot/internal/models"
)

// EMAService provides Exponential Moving Average calculations
type EMAService struct{}

// EMAResult holds the fast/slow averages and the crossover direction per bar
type EMAResult struct {
	Fast  []float64
	Slow  []float64
	Cross []int // +1 when fast >= slow, otherwise -1
}

// NewEMAService creates a new EMA service instance
func NewEMAService() *EMAService {
	return &EMAService{}
}

// Series computes the recursive EMA seeded from the first price, so no bar is undefined.
func (s *EMAService) Series(prices []float64, span int) []float64 {
	ema := make([]float64, len(prices))
	if len(prices) == 0 {
		return ema
	}

	multiplier := s.getMultiplier(span)
	ema[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		ema[i] = s.calculatePoint(prices[i], ema[i-1], multiplier)
	}
	return ema
}

func (s *EMAService) Compute(prices []float64, fast, slow int) (*EMAResult, error) {
	if fast <= 0 || slow <= 0 {
		return nil, fmt.Errorf("%w: ema spans must be positive, got %d/%d", models.ErrConfiguration, fast, slow)
	}

	fastEMA := s.Series(prices, fast)
	slowEMA := s.Series(prices, slow)
	cross := make([]int, len(prices))
	for i := range prices {
		cross[i] = -1
		if fastEMA[i] >= slowEMA[i] {
			cross[i] = 1
		}
	}

	return &EMAResult{
		Fast:  fastEMA,
		Slow:  slowEMA,
		Cross: cross,
	}, nil
}

// Calculate returns a copy of the series with ema_fast, ema_slow and ema_cross filled.
func (s *EMAService) Calculate(series models.Series, fast, slow int) (models.Series, error) {
	if err := series.Require(models.FieldOHLC); err != nil {
		return models.Series{}, err
	}

	res, err := s.Compute(series.Closes(), fast, slow)
	if err != nil {
		return models.Series{}, err
	}

	out := series.Clone()
	for i := range out.Bars {
		out.Bars[i].EMAFast = res.Fast[i]
		out.Bars[i].EMASlow = res.Slow[i]
		out.Bars[i].EMACross = res.Cross[i]
	}
	out.Fields |= models.FieldTrend
	return out, nil
}

func (s *EMAService) getMultiplier(span int) float64 {
	return 2.0 / float64(span+1)
}

func (s *EMAService) calculatePoint(price, prevEMA, multiplier float64) float64 {
	return (price-prevEMA)*multiplier + prevEMA
}
