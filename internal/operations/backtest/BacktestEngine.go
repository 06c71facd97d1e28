package backtest

import (
	"fmt"
	"time"

	"BandReversionBot/internal/models"
	"BandReversionBot/internal/services/strategy"

	"github.com/rs/zerolog"
)

// Engine simulates one position slot bar by bar over a signal series.
type Engine struct {
	config Config
	sizer  *strategy.PositionSizer
	log    zerolog.Logger
}

func NewEngine(config Config, log zerolog.Logger) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		config: config,
		sizer:  strategy.NewPositionSizer(),
		log:    log,
	}, nil
}

func (e *Engine) Config() Config {
	return e.config
}

// Run walks the bars in order. Stops are checked before targets on every bar, and
// a trade still open after the last bar is closed at its close.
func (e *Engine) Run(pair string, s models.Series) (*Result, error) {
	if err := s.Require(models.FieldOHLC | models.FieldSignals); err != nil {
		return nil, err
	}

	balance := e.config.InitialBalance
	equity := make([]EquityPoint, 0, s.Len()+2)
	equity = append(equity, EquityPoint{Timestamp: s.First(), Balance: balance})
	trades := make([]Trade, 0)
	var open *Trade

	for _, bar := range s.Bars {
		if open != nil {
			closed, err := e.checkExit(open, bar)
			if err != nil {
				return nil, err
			}
			if closed {
				balance += open.PnLUSD
				trades = append(trades, *open)
				open = nil
			}
		}

		if open == nil && bar.Signal != 0 {
			units, err := e.sizer.Calculate(balance, e.config.RiskPct, bar.EntryPrice, bar.StopLoss)
			if err != nil {
				return nil, fmt.Errorf("size %s trade at %s: %w", pair, bar.Time.Format(time.RFC3339), err)
			}
			open = newTrade(pair, bar, units)
		}

		equity = append(equity, EquityPoint{Timestamp: bar.Time, Balance: balance})
	}

	if open != nil {
		last := s.Bars[s.Len()-1]
		if err := open.Close(last.Time, last.Close, models.ExitEndOfData); err != nil {
			return nil, err
		}
		balance += open.PnLUSD
		trades = append(trades, *open)
		equity = append(equity, EquityPoint{Timestamp: last.Time, Balance: balance})
	}

	e.log.Debug().
		Str("pair", pair).
		Int("bars", s.Len()).
		Int("trades", len(trades)).
		Float64("final_balance", balance).
		Msg("Backtest finished")

	return &Result{
		Pair:           pair,
		Trades:         trades,
		InitialBalance: e.config.InitialBalance,
		FinalBalance:   balance,
		EquityCurve:    equity,
	}, nil
}

func (e *Engine) checkExit(trade *Trade, bar models.Bar) (bool, error) {
	if trade.Direction == 1 {
		if bar.Low <= trade.StopLoss {
			return true, trade.Close(bar.Time, trade.StopLoss, models.ExitStopLoss)
		}
		if bar.High >= trade.TakeProfit {
			return true, trade.Close(bar.Time, trade.TakeProfit, models.ExitTakeProfit)
		}
	} else {
		if bar.High >= trade.StopLoss {
			return true, trade.Close(bar.Time, trade.StopLoss, models.ExitStopLoss)
		}
		if bar.Low <= trade.TakeProfit {
			return true, trade.Close(bar.Time, trade.TakeProfit, models.ExitTakeProfit)
		}
	}

	if bar.ExitSignal == 1 {
		return true, trade.Close(bar.Time, bar.Close, models.ExitSignal)
	}
	return false, nil
}
