package performance

import "math"

// DefaultPeriodsPerYear annualizes per-bar returns the way daily returns are annualized.
const DefaultPeriodsPerYear = 252.0

// MaxDrawdown returns the largest peak-to-trough decline as a fraction of the peak.
func MaxDrawdown(equity []float64) float64 {
	if len(equity) < 2 {
		return 0
	}

	peak := equity[0]
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		dd := 0.0
		if peak != 0 {
			dd = (peak - v) / peak
		}
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// Sharpe is mean over sample std dev, scaled by sqrt(periodsPerYear). Risk-free rate is 0.
func Sharpe(returns []float64, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	constant := true
	sum := 0.0
	for _, r := range returns {
		sum += r
		if r != returns[0] {
			constant = false
		}
	}
	if constant {
		return 0
	}
	mean := sum / float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	stdDev := math.Sqrt(variance)
	if stdDev == 0 || math.IsNaN(stdDev) {
		return 0
	}

	return mean / stdDev * math.Sqrt(periodsPerYear)
}

// ProfitFactor is gross profit over gross loss. With no losses it is +Inf when
// anything was won and 0 otherwise.
func ProfitFactor(pnls []float64) float64 {
	grossProfit, grossLoss := 0.0, 0.0
	for _, p := range pnls {
		if p > 0 {
			grossProfit += p
		} else if p < 0 {
			grossLoss -= p
		}
	}
	if grossLoss == 0 {
		if grossProfit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return grossProfit / grossLoss
}

// PctChange returns successive fractional changes of a series.
func PctChange(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		out[i-1] = (values[i] - values[i-1]) / values[i-1]
	}
	return out
}
