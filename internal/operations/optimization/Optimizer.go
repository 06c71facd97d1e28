package optimization

import (
	"fmt"
	"math"
	"time"

	"BandReversionBot/internal/models"
	"BandReversionBot/internal/operations/backtest"
	"BandReversionBot/internal/services/indicators"
	"BandReversionBot/internal/services/regime"
	"BandReversionBot/internal/services/strategy"
	"BandReversionBot/internal/validation"

	"github.com/rs/zerolog"
)

// MinOOSWinRate is the fixed out-of-sample win rate floor.
const MinOOSWinRate = 0.4

type Config struct {
	Split           float64 `default:"0.7" validate:"gt=0,lt=1"`
	MinISTrades     int     `default:"20" validate:"gte=1"`
	MinOOSSharpe    float64 `default:"0.3"`
	InitialBalance  float64 `default:"10000" validate:"gt=0"`
	RiskPct         float64 `default:"0.01" validate:"gt=0,lte=1"`
	ATRSLMultiplier float64 `default:"1.5" validate:"gt=0"`
}

func NewConfig() Config {
	var cfg Config
	_ = validation.Defaults(&cfg)
	return cfg
}

func (c Config) Validate() error {
	return validation.Struct(c)
}

// Observer is told about search progress. metrics.Recorder implements it.
type Observer interface {
	CombinationTested(pair string)
	CombinationSkipped(pair, reason string)
	SearchFinished(pair string, passed bool, elapsed time.Duration)
}

type options struct {
	log        zerolog.Logger
	grids      GridSet
	pairs      indicators.PairConfigs
	observer   Observer
	customGrid bool
}

type Option func(*options)

func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

func WithGridSet(gs GridSet) Option {
	return func(o *options) { o.grids = gs; o.customGrid = true }
}

// WithPairConfigs sets the table the parameter-invariant indicators are looked up in.
func WithPairConfigs(pairs indicators.PairConfigs) Option {
	return func(o *options) { o.pairs = pairs }
}

func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

func buildOptions(opts []Option) options {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.customGrid {
		o.grids = DefaultGridSet()
	}
	if o.pairs == nil {
		o.pairs = indicators.DefaultPairConfigs()
	}
	return o
}

// sample is one chronological slice of both timeframes.
type sample struct {
	coarse models.Series
	fine   models.Series
}

// Optimizer runs the grid search for a single pair.
type Optimizer struct {
	pair   string
	config Config
	combos []ParamSet

	// split samples keyed by ATR period; trend and sessions are the same in all of them
	inSample    map[int]sample
	outOfSample map[int]sample

	indicators *indicators.Engine
	regimes    *regime.Engine
	signals    *strategy.SignalGenerator
	backtester *backtest.Engine
	// evaluate is backtestWith outside of tests.
	evaluate func(ParamSet, sample) (*backtest.Result, error)

	observer Observer
	log      zerolog.Logger
}

// NewOptimizer computes the parameter-invariant fields once, then splits both
// timeframes at the fine series' cut point.
func NewOptimizer(pair string, coarse, fine models.Series, cfg Config, opts ...Option) (*Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	base, err := o.pairs.Lookup(pair)
	if err != nil {
		return nil, err
	}
	combos, err := o.grids.Combinations(pair)
	if err != nil {
		return nil, err
	}
	if fine.Len() == 0 || coarse.Len() == 0 {
		return nil, fmt.Errorf("%w: %s has no candles to optimize on", models.ErrConfiguration, pair)
	}

	ind, err := indicators.NewEngine(o.pairs, o.log)
	if err != nil {
		return nil, err
	}
	reg, err := regime.NewEngine(nil, o.log)
	if err != nil {
		return nil, err
	}
	gen, err := strategy.NewSignalGenerator(cfg.ATRSLMultiplier)
	if err != nil {
		return nil, err
	}
	bt, err := backtest.NewEngine(backtest.Config{
		InitialBalance: cfg.InitialBalance,
		RiskPct:        cfg.RiskPct,
	}, zerolog.Nop())
	if err != nil {
		return nil, err
	}

	opt := &Optimizer{
		pair:        pair,
		config:      cfg,
		combos:      combos,
		inSample:    make(map[int]sample),
		outOfSample: make(map[int]sample),
		indicators:  ind,
		regimes:     reg,
		signals:     gen,
		backtester:  bt,
		observer:    o.observer,
		log:         o.log,
	}
	opt.evaluate = opt.backtestWith

	fast, slow := o.grids.EMAFast, o.grids.EMASlow
	if fast <= 0 || slow <= fast {
		fast, slow = base.EMAFast, base.EMASlow
	}

	cut := fine.Bars[int(float64(fine.Len())*cfg.Split)].Time
	for _, p := range combos {
		if _, done := opt.inSample[p.ATRPeriod]; done {
			continue
		}
		c, err := opt.prepare(coarse, p.ATRPeriod, fast, slow)
		if err != nil {
			return nil, fmt.Errorf("prepare %s %s: %w", pair, coarse.Timeframe, err)
		}
		f, err := opt.prepare(fine, p.ATRPeriod, fast, slow)
		if err != nil {
			return nil, fmt.Errorf("prepare %s %s: %w", pair, fine.Timeframe, err)
		}
		cIS, cOOS := c.SplitAt(cut)
		fIS, fOOS := f.SplitAt(cut)
		opt.inSample[p.ATRPeriod] = sample{coarse: cIS, fine: fIS}
		opt.outOfSample[p.ATRPeriod] = sample{coarse: cOOS, fine: fOOS}
	}

	return opt, nil
}

func (o *Optimizer) prepare(s models.Series, atrPeriod, fast, slow int) (models.Series, error) {
	out, err := o.indicators.Volatility(s, atrPeriod)
	if err != nil {
		return models.Series{}, err
	}
	if out, err = o.indicators.Trend(out, fast, slow); err != nil {
		return models.Series{}, err
	}
	return o.regimes.Sessions(out)
}

func (o *Optimizer) Combinations() int {
	return len(o.combos)
}

// Run searches the in-sample split and validates the winner out of sample.
// Not finding a good parameter set is reported in the Result, never as an error.
func (o *Optimizer) Run(minOOSSharpe float64) Result {
	start := time.Now()
	res := o.search(minOOSSharpe)
	if o.observer != nil {
		o.observer.SearchFinished(o.pair, res.PassedValidation, time.Since(start))
	}
	return res
}

func (o *Optimizer) search(minOOSSharpe float64) Result {
	o.log.Info().
		Str("pair", o.pair).
		Int("combinations", len(o.combos)).
		Float64("split", o.config.Split).
		Msg("Searching parameter grid")

	bestSharpe := math.Inf(-1)
	var best ParamSet
	bestTrades := 0

	for i, p := range o.combos {
		res, err := o.evaluate(p, o.inSample[p.ATRPeriod])
		if err != nil {
			o.log.Debug().Err(err).Int("combination", i).Msg("Parameter set failed")
			o.skipped("error")
			continue
		}
		o.tested()
		if res.TotalTrades() < o.config.MinISTrades {
			o.skipped("min_trades")
			continue
		}
		if sharpe := res.SharpeRatio(); sharpe > bestSharpe {
			bestSharpe = sharpe
			best = p
			bestTrades = res.TotalTrades()
		}
	}

	if best.IsZero() {
		return failed(o.pair,
			fmt.Sprintf("No parameter set produced >= %d trades in-sample", o.config.MinISTrades),
			len(o.combos))
	}

	oos, err := o.evaluate(best, o.outOfSample[best.ATRPeriod])
	if err != nil {
		res := failed(o.pair, fmt.Sprintf("OOS backtest failed: %v", err), len(o.combos))
		res.BestParams = best
		res.InSampleSharpe = bestSharpe
		res.InSampleTrades = bestTrades
		return res
	}

	res := Result{
		Pair:                    o.pair,
		BestParams:              best,
		InSampleSharpe:          bestSharpe,
		OutOfSampleSharpe:       oos.SharpeRatio(),
		OutOfSampleWinRate:      oos.WinRate(),
		OutOfSampleProfitFactor: oos.ProfitFactor(),
		TotalCombinationsTested: len(o.combos),
		InSampleTrades:          bestTrades,
		OutOfSampleTrades:       oos.TotalTrades(),
		PassedValidation:        true,
	}
	switch {
	case res.OutOfSampleSharpe < minOOSSharpe:
		reason := fmt.Sprintf("OOS Sharpe %.4f < %v", res.OutOfSampleSharpe, minOOSSharpe)
		res.PassedValidation, res.RejectionReason = false, &reason
	case res.OutOfSampleWinRate < MinOOSWinRate:
		reason := fmt.Sprintf("OOS win_rate %.4f < %v", res.OutOfSampleWinRate, MinOOSWinRate)
		res.PassedValidation, res.RejectionReason = false, &reason
	}

	status := "PASSED"
	if !res.PassedValidation {
		status = "REJECTED (" + res.Reason() + ")"
	}
	o.log.Info().
		Str("pair", o.pair).
		Float64("is_sharpe", bestSharpe).
		Float64("oos_sharpe", res.OutOfSampleSharpe).
		Float64("oos_win_rate_pct", res.OutOfSampleWinRate*100).
		Msg(status)

	return res
}

// backtestWith recomputes the parameter-dependent fields and runs the chain on one sample.
func (o *Optimizer) backtestWith(p ParamSet, s sample) (*backtest.Result, error) {
	rc := p.RegimeConfig()

	coarse, err := o.indicators.Bands(s.coarse, p.BBPeriod, p.BBStdDev)
	if err != nil {
		return nil, err
	}
	if coarse, err = o.regimes.Classify(rc, coarse); err != nil {
		return nil, err
	}
	fine, err := o.indicators.Bands(s.fine, p.BBPeriod, p.BBStdDev)
	if err != nil {
		return nil, err
	}
	if fine, err = o.regimes.Classify(rc, fine); err != nil {
		return nil, err
	}

	signals, err := o.signals.Generate(coarse, fine)
	if err != nil {
		return nil, err
	}
	return o.backtester.Run(o.pair, signals)
}

func (o *Optimizer) tested() {
	if o.observer != nil {
		o.observer.CombinationTested(o.pair)
	}
}

func (o *Optimizer) skipped(reason string) {
	if o.observer != nil {
		o.observer.CombinationSkipped(o.pair, reason)
	}
}
