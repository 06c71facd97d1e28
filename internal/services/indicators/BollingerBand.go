package indicators

import (
	"fmt"
	"math"

	"BandReversionBot/internal/models"
)

type BBandsService struct{}

type BBandsResult struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
	Width  []float64 // (upper-lower)/middle
	PctB   []float64 // unbounded outside the bands
}

func NewBBandsService() *BBandsService {
	return &BBandsService{}
}

// Compute returns rolling bands over closes. Values are NaN until period bars exist.
func (s *BBandsService) Compute(closes []float64, period int, deviations float64) (*BBandsResult, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: bb period must be positive, got %d", models.ErrConfiguration, period)
	}
	if deviations <= 0 {
		return nil, fmt.Errorf("%w: bb std dev must be positive, got %v", models.ErrConfiguration, deviations)
	}

	n := len(closes)
	upper := nanSlice(n)
	middle := nanSlice(n)
	lower := nanSlice(n)
	width := nanSlice(n)
	pctB := nanSlice(n)

	for i := period - 1; i < n; i++ {
		subset := closes[i-period+1 : i+1]

		sum := 0.0
		for _, price := range subset {
			sum += price
		}
		sma := sum / float64(period)

		// Population standard deviation
		squareSum := 0.0
		for _, price := range subset {
			diff := price - sma
			squareSum += diff * diff
		}
		stdDev := math.Sqrt(squareSum / float64(period))

		middle[i] = sma
		upper[i] = sma + deviations*stdDev
		lower[i] = sma - deviations*stdDev
		width[i] = (upper[i] - lower[i]) / sma
		pctB[i] = (closes[i] - lower[i]) / (upper[i] - lower[i])
	}

	return &BBandsResult{
		Upper:  upper,
		Middle: middle,
		Lower:  lower,
		Width:  width,
		PctB:   pctB,
	}, nil
}

// Calculate returns a copy of the series with band fields filled.
func (s *BBandsService) Calculate(series models.Series, period int, deviations float64) (models.Series, error) {
	if err := series.Require(models.FieldOHLC); err != nil {
		return models.Series{}, err
	}

	res, err := s.Compute(series.Closes(), period, deviations)
	if err != nil {
		return models.Series{}, err
	}

	out := series.Clone()
	for i := range out.Bars {
		b := &out.Bars[i]
		b.BBUpper = res.Upper[i]
		b.BBMiddle = res.Middle[i]
		b.BBLower = res.Lower[i]
		b.BBWidth = res.Width[i]
		b.BBPctB = res.PctB[i]
	}
	out.Fields |= models.FieldBands
	return out, nil
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
