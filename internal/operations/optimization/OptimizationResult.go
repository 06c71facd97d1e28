package optimization

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"BandReversionBot/internal/models"
)

// Result is the outcome of one pair's search. A failed search is still a Result.
type Result struct {
	Pair                    string
	BestParams              ParamSet
	InSampleSharpe          float64
	OutOfSampleSharpe       float64
	OutOfSampleWinRate      float64
	OutOfSampleProfitFactor float64
	TotalCombinationsTested int
	InSampleTrades          int
	OutOfSampleTrades       int
	PassedValidation        bool
	RejectionReason         *string
}

func failed(pair string, reason string, combos int) Result {
	return Result{
		Pair:                    pair,
		TotalCombinationsTested: combos,
		RejectionReason:         &reason,
	}
}

func (r Result) Reason() string {
	if r.RejectionReason == nil {
		return ""
	}
	return *r.RejectionReason
}

// ToMap flattens the result into the persisted structure. An unset parameter set
// becomes an empty object and an infinite profit factor becomes "inf".
func (r Result) ToMap() map[string]any {
	var reason any
	if r.RejectionReason != nil {
		reason = *r.RejectionReason
	}
	return map[string]any{
		"pair":                        r.Pair,
		"best_params":                 r.BestParams.toMap(),
		"in_sample_sharpe":            r.InSampleSharpe,
		"out_of_sample_sharpe":        r.OutOfSampleSharpe,
		"out_of_sample_win_rate":      r.OutOfSampleWinRate,
		"out_of_sample_profit_factor": encodeFloat(r.OutOfSampleProfitFactor),
		"total_combinations_tested":   r.TotalCombinationsTested,
		"in_sample_trades":            r.InSampleTrades,
		"out_of_sample_trades":        r.OutOfSampleTrades,
		"passed_validation":           r.PassedValidation,
		"rejection_reason":            reason,
	}
}

func FromMap(m map[string]any) (Result, error) {
	var r Result
	var err error

	pair, ok := m["pair"].(string)
	if !ok {
		return Result{}, fmt.Errorf("%w: optimization result has no pair", models.ErrConfiguration)
	}
	r.Pair = pair

	if bp, ok := m["best_params"].(map[string]any); ok {
		if r.BestParams, err = paramSetFromMap(bp); err != nil {
			return Result{}, fmt.Errorf("%s best_params: %w", pair, err)
		}
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"in_sample_sharpe", &r.InSampleSharpe},
		{"out_of_sample_sharpe", &r.OutOfSampleSharpe},
		{"out_of_sample_win_rate", &r.OutOfSampleWinRate},
		{"out_of_sample_profit_factor", &r.OutOfSampleProfitFactor},
	}
	for _, f := range floats {
		if *f.dst, err = toFloat(m[f.key]); err != nil {
			return Result{}, fmt.Errorf("%s %s: %w", pair, f.key, err)
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"total_combinations_tested", &r.TotalCombinationsTested},
		{"in_sample_trades", &r.InSampleTrades},
		{"out_of_sample_trades", &r.OutOfSampleTrades},
	}
	for _, f := range ints {
		if *f.dst, err = toInt(m[f.key]); err != nil {
			return Result{}, fmt.Errorf("%s %s: %w", pair, f.key, err)
		}
	}

	r.PassedValidation, _ = m["passed_validation"].(bool)
	if reason, ok := m["rejection_reason"].(string); ok {
		r.RejectionReason = &reason
	}
	return r, nil
}

func (r Result) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r.ToMap(), "", "  ")
}

func FromJSON(data []byte) (Result, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Result{}, fmt.Errorf("%w: decode optimization result: %v", models.ErrConfiguration, err)
	}
	return FromMap(m)
}

// Record converts a sanitized result map into its database row.
func Record(m map[string]any) (models.OptimizationRecord, error) {
	r, err := FromMap(m)
	if err != nil {
		return models.OptimizationRecord{}, err
	}
	params, err := json.Marshal(m["best_params"])
	if err != nil {
		return models.OptimizationRecord{}, fmt.Errorf("encode %s best_params: %w", r.Pair, err)
	}
	return models.OptimizationRecord{
		Instrument:              r.Pair,
		BestParams:              string(params),
		InSampleSharpe:          r.InSampleSharpe,
		OutOfSampleSharpe:       r.OutOfSampleSharpe,
		OutOfSampleWinRate:      r.OutOfSampleWinRate,
		OutOfSampleProfitFactor: r.OutOfSampleProfitFactor,
		TotalCombinationsTested: r.TotalCombinationsTested,
		InSampleTrades:          r.InSampleTrades,
		OutOfSampleTrades:       r.OutOfSampleTrades,
		PassedValidation:        r.PassedValidation,
		RejectionReason:         r.RejectionReason,
	}, nil
}

// FromRecord rebuilds a Result from its stored row.
func FromRecord(rec models.OptimizationRecord) (Result, error) {
	var params map[string]any
	if rec.BestParams != "" {
		if err := json.Unmarshal([]byte(rec.BestParams), &params); err != nil {
			return Result{}, fmt.Errorf("%w: %s best_params: %v", models.ErrConfiguration, rec.Instrument, err)
		}
	}
	best, err := paramSetFromMap(params)
	if err != nil {
		return Result{}, fmt.Errorf("%s best_params: %w", rec.Instrument, err)
	}
	return Result{
		Pair:                    rec.Instrument,
		BestParams:              best,
		InSampleSharpe:          rec.InSampleSharpe,
		OutOfSampleSharpe:       rec.OutOfSampleSharpe,
		OutOfSampleWinRate:      rec.OutOfSampleWinRate,
		OutOfSampleProfitFactor: rec.OutOfSampleProfitFactor,
		TotalCombinationsTested: rec.TotalCombinationsTested,
		InSampleTrades:          rec.InSampleTrades,
		OutOfSampleTrades:       rec.OutOfSampleTrades,
		PassedValidation:        rec.PassedValidation,
		RejectionReason:         rec.RejectionReason,
	}, nil
}

func (p ParamSet) toMap() map[string]any {
	if p.IsZero() {
		return map[string]any{}
	}
	return map[string]any{
		"bb_period":           p.BBPeriod,
		"bb_std_dev":          p.BBStdDev,
		"atr_period":          p.ATRPeriod,
		"bb_width_threshold":  p.BBWidthThreshold,
		"min_bb_width":        p.MinBBWidth,
		"atr_ratio_threshold": p.ATRRatioThreshold,
		"ema_fast":            p.EMAFast,
		"ema_slow":            p.EMASlow,
	}
}

// paramSetFromMap tolerates missing keys; they stay zero.
func paramSetFromMap(m map[string]any) (ParamSet, error) {
	var p ParamSet
	var err error

	ints := map[string]*int{
		"bb_period":  &p.BBPeriod,
		"atr_period": &p.ATRPeriod,
		"ema_fast":   &p.EMAFast,
		"ema_slow":   &p.EMASlow,
	}
	for key, dst := range ints {
		if v, ok := m[key]; ok {
			if *dst, err = toInt(v); err != nil {
				return ParamSet{}, fmt.Errorf("%s: %w", key, err)
			}
		}
	}

	floats := map[string]*float64{
		"bb_std_dev":          &p.BBStdDev,
		"bb_width_threshold":  &p.BBWidthThreshold,
		"min_bb_width":        &p.MinBBWidth,
		"atr_ratio_threshold": &p.ATRRatioThreshold,
	}
	for key, dst := range floats {
		if v, ok := m[key]; ok {
			if *dst, err = toFloat(v); err != nil {
				return ParamSet{}, fmt.Errorf("%s: %w", key, err)
			}
		}
	}
	return p, nil
}

// encodeFloat keeps non-finite values representable in JSON.
func encodeFloat(v float64) any {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsNaN(v):
		return "nan"
	}
	return v
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case string:
		switch strings.ToLower(x) {
		case "inf", "infinity", "+inf":
			return math.Inf(1), nil
		case "-inf", "-infinity":
			return math.Inf(-1), nil
		case "nan":
			return math.NaN(), nil
		}
		return strconv.ParseFloat(x, 64)
	}
	return 0, fmt.Errorf("%w: unexpected number %v (%T)", models.ErrConfiguration, v, v)
}

func toInt(v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %v is not a whole number", models.ErrConfiguration, v)
	}
	return int(f), nil
}
