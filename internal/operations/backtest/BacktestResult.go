package backtest

import (
	"math"
	"strconv"

	"BandReversionBot/internal/services/performance"
)

// Result holds the ledger and equity curve of one backtest. Metrics are derived on demand.
type Result struct {
	Pair           string
	Trades         []Trade
	InitialBalance float64
	FinalBalance   float64
	EquityCurve    []EquityPoint
}

func (r *Result) TotalTrades() int {
	return len(r.Trades)
}

func (r *Result) TotalReturnPct() float64 {
	if r.InitialBalance == 0 {
		return 0
	}
	return (r.FinalBalance - r.InitialBalance) / r.InitialBalance * 100
}

func (r *Result) WinRate() float64 {
	if len(r.Trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range r.Trades {
		if t.IsWinner() {
			wins++
		}
	}
	return float64(wins) / float64(len(r.Trades))
}

func (r *Result) ProfitFactor() float64 {
	pnls := make([]float64, len(r.Trades))
	for i, t := range r.Trades {
		pnls[i] = t.PnLUSD
	}
	return performance.ProfitFactor(pnls)
}

func (r *Result) MaxDrawdownPct() float64 {
	return performance.MaxDrawdown(r.Balances()) * 100
}

// SharpeRatio is computed from per-bar equity returns; 0 when nothing traded.
func (r *Result) SharpeRatio() float64 {
	if len(r.Trades) == 0 {
		return 0
	}
	return performance.Sharpe(performance.PctChange(r.Balances()), performance.DefaultPeriodsPerYear)
}

func (r *Result) AvgPipsPerTrade() float64 {
	if len(r.Trades) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range r.Trades {
		sum += t.PnLPips
	}
	return sum / float64(len(r.Trades))
}

func (r *Result) Balances() []float64 {
	out := make([]float64, len(r.EquityCurve))
	for i, p := range r.EquityCurve {
		out[i] = p.Balance
	}
	return out
}

type Summary struct {
	Pair            string  `json:"pair"`
	TotalTrades     int     `json:"total_trades"`
	WinRate         float64 `json:"win_rate"`
	ProfitFactor    string  `json:"profit_factor"` // "inf" when nothing was lost
	TotalReturnPct  float64 `json:"total_return_pct"`
	MaxDrawdownPct  float64 `json:"max_drawdown_pct"`
	SharpeRatio     float64 `json:"sharpe_ratio"`
	AvgPipsPerTrade float64 `json:"avg_pips_per_trade"`
	InitialBalance  float64 `json:"initial_balance"`
	FinalBalance    float64 `json:"final_balance"`
}

func (r *Result) Summary() Summary {
	pf := "inf"
	if v := r.ProfitFactor(); !math.IsInf(v, 1) {
		pf = strconv.FormatFloat(round(v, 4), 'f', -1, 64)
	}
	return Summary{
		Pair:            r.Pair,
		TotalTrades:     r.TotalTrades(),
		WinRate:         round(r.WinRate(), 4),
		ProfitFactor:    pf,
		TotalReturnPct:  round(r.TotalReturnPct(), 2),
		MaxDrawdownPct:  round(r.MaxDrawdownPct(), 2),
		SharpeRatio:     round(r.SharpeRatio(), 4),
		AvgPipsPerTrade: round(r.AvgPipsPerTrade(), 2),
		InitialBalance:  r.InitialBalance,
		FinalBalance:    round(r.FinalBalance, 2),
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
