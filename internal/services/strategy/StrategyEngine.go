package strategy

import (
	"fmt"

	"BandReversionBot/internal/models"
	"BandReversionBot/internal/services/indicators"
	"BandReversionBot/internal/services/regime"

	"github.com/rs/zerolog"
)

// Engine runs indicators, regime and signals for one pair across two timeframes.
type Engine struct {
	indicators *indicators.Engine
	regimes    *regime.Engine
	signals    *SignalGenerator
	log        zerolog.Logger
}

func NewEngine(ind *indicators.Engine, reg *regime.Engine, atrSLMultiplier float64, log zerolog.Logger) (*Engine, error) {
	if ind == nil || reg == nil {
		return nil, fmt.Errorf("%w: indicator and regime engines are required", models.ErrConfiguration)
	}
	signals, err := NewSignalGenerator(atrSLMultiplier)
	if err != nil {
		return nil, err
	}
	return &Engine{
		indicators: ind,
		regimes:    reg,
		signals:    signals,
		log:        log,
	}, nil
}

// Prepare applies indicators then sessions and regime to a raw series.
func (e *Engine) Prepare(pair string, raw models.Series) (models.Series, error) {
	enriched, err := e.indicators.Run(pair, raw.Timeframe, raw)
	if err != nil {
		return models.Series{}, err
	}
	return e.regimes.Run(pair, raw.Timeframe, enriched)
}

// Run returns the fine series with indicator, regime and signal fields.
func (e *Engine) Run(pair string, coarseRaw, fineRaw models.Series) (models.Series, error) {
	e.log.Info().Str("pair", pair).Msg("Running strategy")

	coarse, err := e.Prepare(pair, coarseRaw)
	if err != nil {
		return models.Series{}, fmt.Errorf("prepare %s %s: %w", pair, coarseRaw.Timeframe, err)
	}
	fine, err := e.Prepare(pair, fineRaw)
	if err != nil {
		return models.Series{}, fmt.Errorf("prepare %s %s: %w", pair, fineRaw.Timeframe, err)
	}

	result, err := e.signals.Generate(coarse, fine)
	if err != nil {
		return models.Series{}, err
	}

	longs, shorts := CountSignals(result)
	e.log.Info().
		Str("pair", pair).
		Int("long", longs).
		Int("short", shorts).
		Int("rows", result.Len()).
		Msg("Signals generated")

	return result, nil
}

func CountSignals(s models.Series) (longs, shorts int) {
	for _, b := range s.Bars {
		switch b.Signal {
		case 1:
			longs++
		case -1:
			shorts++
		}
	}
	return longs, shorts
}
