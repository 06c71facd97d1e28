package handlers

import (
	"sort"

	"BandReversionBot/internal/operations/optimization"

	"github.com/rs/zerolog"
)

type OptimizationHandler struct {
	runner *optimization.Runner
	log    zerolog.Logger
}

func NewOptimizationHandler(runner *optimization.Runner, log zerolog.Logger) *OptimizationHandler {
	return &OptimizationHandler{runner: runner, log: log}
}

// Run optimizes all pairs and logs one line per pair, passed pairs first.
func (h *OptimizationHandler) Run(pairs []string) (map[string]optimization.Result, error) {
	results, err := h.runner.RunAll(pairs)
	if err != nil {
		return nil, err
	}

	ordered := make([]optimization.Result, 0, len(results))
	for _, r := range results {
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].PassedValidation != ordered[j].PassedValidation {
			return ordered[i].PassedValidation
		}
		return ordered[i].Pair < ordered[j].Pair
	})

	passed := 0
	for _, r := range ordered {
		ev := h.log.Info()
		if !r.PassedValidation {
			ev = h.log.Warn().Str("reason", r.Reason())
		} else {
			passed++
		}
		ev.Str("pair", r.Pair).
			Bool("passed", r.PassedValidation).
			Float64("is_sharpe", r.InSampleSharpe).
			Float64("oos_sharpe", r.OutOfSampleSharpe).
			Float64("oos_win_rate", r.OutOfSampleWinRate).
			Int("oos_trades", r.OutOfSampleTrades).
			Msg("Optimization result")
	}
	h.log.Info().Int("passed", passed).Int("pairs", len(ordered)).Msg("Optimization finished")

	return results, nil
}
