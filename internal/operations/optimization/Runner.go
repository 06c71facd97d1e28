package optimization

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"BandReversionBot/internal/models"
	"BandReversionBot/internal/services/indicators"
	"BandReversionBot/internal/services/regime"
	"BandReversionBot/internal/validation"

	"github.com/rs/zerolog"
)

// SeriesLoader supplies raw candles; backtest.Simulator satisfies it with a cache.
type SeriesLoader interface {
	LoadSeries(pair, timeframe string, start, end time.Time) (models.Series, error)
}

type ResultStore interface {
	SaveOptimizationResults(records []models.OptimizationRecord) error
}

type RunnerConfig struct {
	Optimizer       Config
	CoarseTimeframe string `default:"1h" validate:"required"`
	FineTimeframe   string `default:"15m" validate:"required"`
	Start           time.Time
	End             time.Time
	ResultsPath     string   `default:"data/optimization_results.json"`
	FallbackPairs   []string `default:"[\"EUR_USD\",\"GBP_USD\"]"`
	FallbackSharpe  float64  `default:"0.15"`
}

func NewRunnerConfig() RunnerConfig {
	var cfg RunnerConfig
	_ = validation.Defaults(&cfg)
	return cfg
}

// Runner optimizes a batch of pairs, applies the fallback gate and persists the results.
type Runner struct {
	loader SeriesLoader
	store  ResultStore // optional
	config RunnerConfig
	opts   []Option
	log    zerolog.Logger

	optimize func(pair string, gate float64) (Result, error)
}

func NewRunner(loader SeriesLoader, store ResultStore, cfg RunnerConfig, opts ...Option) (*Runner, error) {
	if err := validation.Struct(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Optimizer.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{
		loader: loader,
		store:  store,
		config: cfg,
		opts:   opts,
		log:    buildOptions(opts).log,
	}
	r.optimize = r.optimizePair
	return r, nil
}

func (r *Runner) optimizePair(pair string, gate float64) (Result, error) {
	coarse, err := r.loader.LoadSeries(pair, r.config.CoarseTimeframe, r.config.Start, r.config.End)
	if err != nil {
		return Result{}, err
	}
	fine, err := r.loader.LoadSeries(pair, r.config.FineTimeframe, r.config.Start, r.config.End)
	if err != nil {
		return Result{}, err
	}
	opt, err := NewOptimizer(pair, coarse, fine, r.config.Optimizer, r.opts...)
	if err != nil {
		return Result{}, fmt.Errorf("optimizer for %s: %w", pair, err)
	}
	return opt.Run(gate), nil
}

// RunAll optimizes every pair at the strict gate. If none passes, the fallback pairs
// are retried at the relaxed gate and replaced only when the retry passes.
func (r *Runner) RunAll(pairs []string) (map[string]Result, error) {
	results := make(map[string]Result, len(pairs))
	for _, pair := range pairs {
		r.log.Info().Str("pair", pair).Msg("Optimizing")
		res, err := r.optimize(pair, r.config.Optimizer.MinOOSSharpe)
		if err != nil {
			return nil, err
		}
		results[pair] = res
	}

	if !anyPassed(results) && len(r.config.FallbackPairs) > 0 {
		r.log.Warn().
			Float64("strict_gate", r.config.Optimizer.MinOOSSharpe).
			Float64("fallback_gate", r.config.FallbackSharpe).
			Strs("pairs", r.config.FallbackPairs).
			Msg("No pairs passed the strict Sharpe gate, applying fallback")

		for _, pair := range r.config.FallbackPairs {
			if _, ok := results[pair]; !ok {
				continue
			}
			res, err := r.optimize(pair, r.config.FallbackSharpe)
			if err != nil {
				return nil, err
			}
			if res.PassedValidation {
				r.log.Info().Str("pair", pair).Float64("gate", r.config.FallbackSharpe).Msg("Passed with fallback gate")
				results[pair] = res
			}
		}
	}

	if err := r.persist(results); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) persist(results map[string]Result) error {
	serializable := make(map[string]map[string]any, len(results))
	for pair, res := range results {
		serializable[pair] = res.ToMap()
	}
	Sanitize(serializable)

	if r.config.ResultsPath != "" {
		if err := SaveJSON(r.config.ResultsPath, serializable); err != nil {
			return err
		}
		r.log.Info().Str("path", r.config.ResultsPath).Msg("Optimization results saved")
	}

	if r.store == nil {
		return nil
	}
	pairs := make([]string, 0, len(serializable))
	for pair := range serializable {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)

	records := make([]models.OptimizationRecord, 0, len(pairs))
	for _, pair := range pairs {
		rec, err := Record(serializable[pair])
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	if err := r.store.SaveOptimizationResults(records); err != nil {
		return fmt.Errorf("store optimization results: %w", err)
	}
	return nil
}

func anyPassed(results map[string]Result) bool {
	for _, r := range results {
		if r.PassedValidation {
			return true
		}
	}
	return false
}

var forbiddenKeys = []string{"api_key", "account_id", "access_token", "secret"}

// Sanitize drops credential-looking keys from each pair's entry and its best_params.
func Sanitize(data map[string]map[string]any) {
	for _, entry := range data {
		dropForbidden(entry)
		if bp, ok := entry["best_params"].(map[string]any); ok {
			dropForbidden(bp)
		}
	}
}

func dropForbidden(m map[string]any) {
	for key := range m {
		lower := strings.ToLower(key)
		for _, f := range forbiddenKeys {
			if strings.Contains(lower, f) {
				delete(m, key)
				break
			}
		}
	}
}

func SaveJSON(path string, data map[string]map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	body, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode optimization results: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("write optimization results: %w", err)
	}
	return nil
}

func LoadResults(path string) (map[string]Result, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read optimization results: %w", err)
	}
	var raw map[string]map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", models.ErrConfiguration, path, err)
	}

	results := make(map[string]Result, len(raw))
	for pair, entry := range raw {
		if _, ok := entry["pair"]; !ok {
			entry["pair"] = pair
		}
		res, err := FromMap(entry)
		if err != nil {
			return nil, err
		}
		results[pair] = res
	}
	return results, nil
}

// LatestResults keeps the first record seen per instrument, so records must come newest first.
func LatestResults(records []models.OptimizationRecord) (map[string]Result, error) {
	results := make(map[string]Result, len(records))
	for _, rec := range records {
		if _, seen := results[rec.Instrument]; seen {
			continue
		}
		res, err := FromRecord(rec)
		if err != nil {
			return nil, err
		}
		results[rec.Instrument] = res
	}
	return results, nil
}

// UpdateConfigs returns copies of both tables with the best parameters of every
// passing pair applied. Failed pairs and pairs missing from a table are left alone.
func UpdateConfigs(results map[string]Result, ind indicators.PairConfigs, reg regime.RegimeConfigs) (indicators.PairConfigs, regime.RegimeConfigs) {
	indOut, regOut := ind.Copy(), reg.Copy()

	for pair, res := range results {
		if !res.PassedValidation || res.BestParams.IsZero() {
			continue
		}
		bp := res.BestParams

		if cfg, ok := indOut[pair]; ok {
			setInt(&cfg.BBPeriod, bp.BBPeriod)
			setFloat(&cfg.BBStdDev, bp.BBStdDev)
			setInt(&cfg.ATRPeriod, bp.ATRPeriod)
			setInt(&cfg.EMAFast, bp.EMAFast)
			setInt(&cfg.EMASlow, bp.EMASlow)
			indOut[pair] = cfg
		}
		if cfg, ok := regOut[pair]; ok {
			setFloat(&cfg.BBWidthThreshold, bp.BBWidthThreshold)
			setFloat(&cfg.ATRRatioThreshold, bp.ATRRatioThreshold)
			setFloat(&cfg.MinBBWidth, bp.MinBBWidth)
			regOut[pair] = cfg
		}
	}
	return indOut, regOut
}

// zero means the key was absent from the stored params
func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}
