package indicators

import (
	"fmt"

	"BandReversionBot/internal/models"

	"github.com/rs/zerolog"
)

// Engine applies bands, ATR and EMA to a series using per-pair parameters.
type Engine struct {
	configs PairConfigs
	bbands  *BBandsService
	atr     *ATRService
	ema     *EMAService
	log     zerolog.Logger
}

// NewEngine takes its own copy of configs so later changes by the caller are not seen.
func NewEngine(configs PairConfigs, log zerolog.Logger) (*Engine, error) {
	if configs == nil {
		configs = DefaultPairConfigs()
	}
	for pair, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("indicator config for %s: %w", pair, err)
		}
	}

	return &Engine{
		configs: configs.Copy(),
		bbands:  NewBBandsService(),
		atr:     NewATRService(),
		ema:     NewEMAService(),
		log:     log,
	}, nil
}

func (e *Engine) Config(pair string) (PairConfig, error) {
	return e.configs.Lookup(pair)
}

func (e *Engine) Run(pair, timeframe string, s models.Series) (models.Series, error) {
	cfg, err := e.configs.Lookup(pair)
	if err != nil {
		return models.Series{}, err
	}
	e.log.Info().Str("pair", pair).Str("timeframe", timeframe).Int("rows", s.Len()).Msg("Computing indicators")
	return e.Apply(cfg, s)
}

// Apply runs all three indicators with an explicit parameter set.
func (e *Engine) Apply(cfg PairConfig, s models.Series) (models.Series, error) {
	out, err := e.bbands.Calculate(s, cfg.BBPeriod, cfg.BBStdDev)
	if err != nil {
		return models.Series{}, fmt.Errorf("bollinger bands: %w", err)
	}
	if out, err = e.atr.Calculate(out, cfg.ATRPeriod); err != nil {
		return models.Series{}, fmt.Errorf("atr: %w", err)
	}
	if out, err = e.ema.Calculate(out, cfg.EMAFast, cfg.EMASlow); err != nil {
		return models.Series{}, fmt.Errorf("ema: %w", err)
	}
	return out, nil
}

// Bands recomputes only the band fields; used by the optimizer on each grid point.
func (e *Engine) Bands(s models.Series, period int, stdDev float64) (models.Series, error) {
	return e.bbands.Calculate(s, period, stdDev)
}

// Volatility and Trend compute the parameter-invariant indicators.
func (e *Engine) Volatility(s models.Series, period int) (models.Series, error) {
	return e.atr.Calculate(s, period)
}

func (e *Engine) Trend(s models.Series, fast, slow int) (models.Series, error) {
	return e.ema.Calculate(s, fast, slow)
}
