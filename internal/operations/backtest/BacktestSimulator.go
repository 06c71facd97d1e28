package backtest

import (
	"fmt"
	"sync"
	"time"

	"BandReversionBot/internal/models"
	"BandReversionBot/internal/services/strategy"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CandleSource supplies stored candles for one instrument and timeframe.
type CandleSource interface {
	GetPricesByTimeFrame(instrument, timeFrame string, start, end time.Time) ([]models.Price, error)
}

// TradeStore persists a run's closed trades.
type TradeStore interface {
	SaveTrades(trades []models.TradeRecord) error
}

// BalanceStore persists a run's equity curve.
type BalanceStore interface {
	SaveBalances(points []models.BalanceSnapshot) error
}

// Run is one pair's backtest with the id its ledger was stored under.
type Run struct {
	ID     uuid.UUID
	Result *Result
}

// seriesKey holds UTC times, which compare correctly with ==.
type seriesKey struct {
	pair, timeframe string
	start, end      time.Time
}

// Simulator loads stored candles, runs the strategy and backtests each pair.
type Simulator struct {
	source   CandleSource
	strategy *strategy.Engine
	engine   *Engine
	trades   TradeStore   // optional
	balances BalanceStore // optional

	coarseTF string
	fineTF   string

	cache struct {
		data map[seriesKey]models.Series
		mu   sync.RWMutex
	}

	log zerolog.Logger
}

func NewSimulator(source CandleSource, strat *strategy.Engine, engine *Engine, trades TradeStore, balances BalanceStore, coarseTF, fineTF string, log zerolog.Logger) *Simulator {
	s := &Simulator{
		source:   source,
		strategy: strat,
		engine:   engine,
		trades:   trades,
		balances: balances,
		coarseTF: coarseTF,
		fineTF:   fineTF,
		log:      log,
	}
	s.cache.data = make(map[seriesKey]models.Series)
	return s
}

// LoadSeries reads a pair's candles once per timeframe and range and serves later calls from cache.
func (s *Simulator) LoadSeries(pair, timeframe string, start, end time.Time) (models.Series, error) {
	key := seriesKey{pair: pair, timeframe: timeframe, start: start.UTC(), end: end.UTC()}
	s.cache.mu.RLock()
	cached, ok := s.cache.data[key]
	s.cache.mu.RUnlock()
	if ok {
		return cached, nil
	}

	prices, err := s.source.GetPricesByTimeFrame(pair, timeframe, start, end)
	if err != nil {
		return models.Series{}, fmt.Errorf("load %s %s: %w", pair, timeframe, err)
	}
	series, err := models.SeriesFromPrices(pair, timeframe, prices)
	if err != nil {
		return models.Series{}, err
	}

	s.cache.mu.Lock()
	s.cache.data[key] = series
	s.cache.mu.Unlock()

	return series, nil
}

func (s *Simulator) RunPair(pair string, start, end time.Time) (*Run, error) {
	coarse, err := s.LoadSeries(pair, s.coarseTF, start, end)
	if err != nil {
		return nil, err
	}
	fine, err := s.LoadSeries(pair, s.fineTF, start, end)
	if err != nil {
		return nil, err
	}

	signals, err := s.strategy.Run(pair, coarse, fine)
	if err != nil {
		return nil, err
	}
	result, err := s.engine.Run(pair, signals)
	if err != nil {
		return nil, err
	}

	run := &Run{ID: uuid.New(), Result: result}
	if s.trades != nil && len(result.Trades) > 0 {
		if err := s.trades.SaveTrades(TradeRecords(run.ID, result.Trades)); err != nil {
			return nil, fmt.Errorf("save %s trades: %w", pair, err)
		}
	}
	if s.balances != nil {
		if err := s.balances.SaveBalances(BalanceSnapshots(run.ID, pair, result.EquityCurve)); err != nil {
			return nil, fmt.Errorf("save %s equity curve: %w", pair, err)
		}
	}

	summary := result.Summary()
	s.log.Info().
		Str("pair", pair).
		Str("run_id", run.ID.String()).
		Int("trades", summary.TotalTrades).
		Float64("win_rate_pct", summary.WinRate*100).
		Float64("return_pct", summary.TotalReturnPct).
		Float64("max_dd_pct", summary.MaxDrawdownPct).
		Msg("Backtest complete")

	return run, nil
}

// RunAll backtests every pair; the first failure aborts the batch.
func (s *Simulator) RunAll(pairs []string, start, end time.Time) (map[string]*Run, error) {
	runs := make(map[string]*Run, len(pairs))
	for _, pair := range pairs {
		s.log.Info().Str("pair", pair).Msg("Backtesting")
		run, err := s.RunPair(pair, start, end)
		if err != nil {
			return nil, err
		}
		runs[pair] = run
	}
	return runs, nil
}

// TradeRecords converts a ledger into rows tagged with the run id.
func TradeRecords(runID uuid.UUID, trades []Trade) []models.TradeRecord {
	records := make([]models.TradeRecord, len(trades))
	for i, t := range trades {
		records[i] = models.TradeRecord{
			RunID:           runID,
			Instrument:      t.Pair,
			Side:            t.Side(),
			Units:           t.Units,
			EntryPrice:      t.EntryPrice,
			StopLossPrice:   t.StopLoss,
			TakeProfitPrice: t.TakeProfit,
			ExitPrice:       t.ExitPrice,
			ExitReason:      string(t.ExitReason),
			PnLPips:         t.PnLPips,
			PnLUSD:          t.PnLUSD,
			OpenTime:        t.EntryTime,
			CloseTime:       t.ExitTime,
		}
	}
	return records
}

func BalanceSnapshots(runID uuid.UUID, pair string, curve []EquityPoint) []models.BalanceSnapshot {
	points := make([]models.BalanceSnapshot, len(curve))
	for i, p := range curve {
		points[i] = models.BalanceSnapshot{
			RunID:      runID,
			Instrument: pair,
			Seq:        i,
			Balance:    p.Balance,
			Timestamp:  p.Timestamp,
		}
	}
	return points
}
