package strategy

import (
	"fmt"

	"BandReversionBot/internal/models"
	"BandReversionBot/internal/services/regime"

	"github.com/rs/zerolog"
)

// FilterCounts is the number of fine bars surviving each successive entry filter.
type FilterCounts struct {
	Total           int `json:"total"`
	Tradeable       int `json:"tradeable"`
	Ranging         int `json:"ranging"`
	VolatilityFloor int `json:"volatility_floor"`
	NearBand        int `json:"near_band"`
	Reentry         int `json:"reentry"`
	Signals         int `json:"signals"`
}

// FilterCounter shows where a pair's candidate entries are lost.
type FilterCounter struct {
	engine  *Engine
	regimes regime.RegimeConfigs
	log     zerolog.Logger
}

func NewFilterCounter(engine *Engine, regimes regime.RegimeConfigs, log zerolog.Logger) *FilterCounter {
	if regimes == nil {
		regimes = regime.DefaultRegimeConfigs()
	}
	return &FilterCounter{engine: engine, regimes: regimes.Copy(), log: log}
}

func (f *FilterCounter) Count(pair string, coarseRaw, fineRaw models.Series) (FilterCounts, error) {
	cfg, err := f.regimes.Lookup(pair)
	if err != nil {
		return FilterCounts{}, err
	}
	coarse, err := f.engine.Prepare(pair, coarseRaw)
	if err != nil {
		return FilterCounts{}, fmt.Errorf("prepare %s: %w", coarseRaw.Timeframe, err)
	}
	fine, err := f.engine.Prepare(pair, fineRaw)
	if err != nil {
		return FilterCounts{}, fmt.Errorf("prepare %s: %w", fineRaw.Timeframe, err)
	}

	aligned := AlignRegime(coarse, fine)
	counts := FilterCounts{Total: fine.Len()}
	for i, b := range fine.Bars {
		if !b.TradeableSession {
			continue
		}
		counts.Tradeable++
		if aligned[i] != models.RegimeRanging {
			continue
		}
		counts.Ranging++
		if !(b.BBWidth > cfg.MinBBWidth) {
			continue
		}
		counts.VolatilityFloor++
		if !(b.BBPctB < longPctBMax || b.BBPctB > shortPctBMin) {
			continue
		}
		counts.NearBand++
		if i == 0 {
			continue
		}
		prevClose := fine.Bars[i-1].Close
		longReentry := prevClose < b.BBLower && b.Close > b.BBLower
		shortReentry := prevClose > b.BBUpper && b.Close < b.BBUpper
		if longReentry || shortReentry {
			counts.Reentry++
		}
	}
	counts.Signals = counts.Reentry

	f.log.Info().Str("pair", pair).Interface("counts", counts).Msg("Filter diagnostics")
	return counts, nil
}
