package handlers

import (
	"fmt"
	"math"
	"time"

	"BandReversionBot/internal/models"
	"BandReversionBot/internal/operations/backtest"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TradeGauge is told the trade count of each finished backtest.
type TradeGauge interface {
	BacktestTrades(pair string, trades int)
}

// LedgerReader reads back the totals a run stored.
type LedgerReader interface {
	GetTotalPnL(runID uuid.UUID) (float64, error)
	GetFinalBalance(runID uuid.UUID) (*models.BalanceSnapshot, error)
}

type BacktestHandler struct {
	simulator *backtest.Simulator
	gauge     TradeGauge   // optional
	ledger    LedgerReader // optional
	log       zerolog.Logger
}

func NewBacktestHandler(simulator *backtest.Simulator, gauge TradeGauge, ledger LedgerReader, log zerolog.Logger) *BacktestHandler {
	return &BacktestHandler{
		simulator: simulator,
		gauge:     gauge,
		ledger:    ledger,
		log:       log,
	}
}

// BacktestReport is one pair's summary together with the id its ledger is stored under
// and the totals read back from that ledger.
type BacktestReport struct {
	RunID string `json:"run_id"`
	backtest.Summary
	StoredPnL          *float64 `json:"stored_pnl,omitempty"`
	StoredFinalBalance *float64 `json:"stored_final_balance,omitempty"`
}

// storedPrecision is the rounding step of stored ledger amounts.
const storedPrecision = 1e-4

// readBack fills the stored totals and checks them against the in-memory run.
func (h *BacktestHandler) readBack(pair string, run *backtest.Run, report *BacktestReport) error {
	pnl, err := h.ledger.GetTotalPnL(run.ID)
	if err != nil {
		return fmt.Errorf("read %s trades: %w", pair, err)
	}
	last, err := h.ledger.GetFinalBalance(run.ID)
	if err != nil {
		return fmt.Errorf("read %s equity curve: %w", pair, err)
	}
	if last == nil {
		return fmt.Errorf("%w: %s run %s stored no equity curve", models.ErrInvariant, pair, run.ID)
	}

	res := run.Result
	// each stored amount is rounded once
	tolerance := storedPrecision * float64(res.TotalTrades()+1)
	if math.Abs(pnl-(res.FinalBalance-res.InitialBalance)) > tolerance {
		return fmt.Errorf("%w: %s stored P&L %.4f does not match the run's %.4f", models.ErrInvariant,
			pair, pnl, res.FinalBalance-res.InitialBalance)
	}
	if math.Abs(last.Balance-res.FinalBalance) > storedPrecision {
		return fmt.Errorf("%w: %s stored final balance %.4f does not match the run's %.4f", models.ErrInvariant,
			pair, last.Balance, res.FinalBalance)
	}

	report.StoredPnL, report.StoredFinalBalance = &pnl, &last.Balance
	return nil
}

func (h *BacktestHandler) Run(pairs []string, start, end time.Time) (map[string]BacktestReport, error) {
	runs, err := h.simulator.RunAll(pairs, start, end)
	if err != nil {
		return nil, err
	}

	reports := make(map[string]BacktestReport, len(runs))
	for pair, run := range runs {
		summary := run.Result.Summary()
		if h.gauge != nil {
			h.gauge.BacktestTrades(pair, summary.TotalTrades)
		}
		report := BacktestReport{RunID: run.ID.String(), Summary: summary}
		if h.ledger != nil {
			if err := h.readBack(pair, run, &report); err != nil {
				return nil, err
			}
		}
		reports[pair] = report

		h.log.Info().
			Str("pair", pair).
			Int("trades", summary.TotalTrades).
			Float64("win_rate", summary.WinRate).
			Str("profit_factor", summary.ProfitFactor).
			Float64("sharpe", summary.SharpeRatio).
			Float64("avg_pips", summary.AvgPipsPerTrade).
			Float64("final_balance", summary.FinalBalance).
			Msg("Backtest summary")
	}
	return reports, nil
}
