package optimization

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"BandReversionBot/internal/models"
	"BandReversionBot/internal/operations/backtest"
	"BandReversionBot/internal/services/indicators"
	"BandReversionBot/internal/services/regime"
)

func TestDefaultGridSize(t *testing.T) {
	gs := DefaultGridSet()
	for _, pair := range []string{"EUR_USD", "GBP_USD", "USD_JPY", "GBP_JPY"} {
		combos, err := gs.Combinations(pair)
		if err != nil {
			t.Fatalf("%s: %v", pair, err)
		}
		if len(combos) != 243 {
			t.Fatalf("%s: expected 243 combinations, got %d", pair, len(combos))
		}
	}
}

func TestGridOrderAndFixedParams(t *testing.T) {
	combos, err := DefaultGridSet().Combinations("EUR_USD")
	if err != nil {
		t.Fatalf("Combinations: %v", err)
	}

	first := ParamSet{
		BBPeriod: 15, BBStdDev: 1.8, ATRPeriod: 14,
		BBWidthThreshold: 0.0015, MinBBWidth: 0.0005, ATRRatioThreshold: 0.8,
		EMAFast: 8, EMASlow: 21,
	}
	if combos[0] != first {
		t.Fatalf("unexpected first combination %+v", combos[0])
	}
	if combos[1].ATRRatioThreshold != 0.9 || combos[1].MinBBWidth != 0.0005 {
		t.Fatalf("last dimension should vary fastest, got %+v", combos[1])
	}
	last := combos[len(combos)-1]
	if last.BBPeriod != 25 || last.ATRRatioThreshold != 1.0 {
		t.Fatalf("unexpected last combination %+v", last)
	}
	for _, c := range combos {
		if c.EMAFast != 8 || c.EMASlow != 21 {
			t.Fatalf("trend params should be fixed, got %+v", c)
		}
	}
}

func TestPairOverrides(t *testing.T) {
	gs := DefaultGridSet()

	gbpjpy := gs.ForPair("GBP_JPY")
	if !reflect.DeepEqual(gbpjpy.BBStdDev, []float64{2.0, 2.5, 3.0}) {
		t.Fatalf("GBP_JPY std devs: %v", gbpjpy.BBStdDev)
	}
	if !reflect.DeepEqual(gbpjpy.MinBBWidth, []float64{0.0004, 0.0006, 0.0009}) {
		t.Fatalf("GBP_JPY floors: %v", gbpjpy.MinBBWidth)
	}

	usdjpy := gs.ForPair("USD_JPY")
	if !reflect.DeepEqual(usdjpy.BBStdDev, []float64{1.8, 2.0, 2.2}) {
		t.Fatalf("USD_JPY should keep base std devs, got %v", usdjpy.BBStdDev)
	}
	if !reflect.DeepEqual(usdjpy.MinBBWidth, []float64{0.0004, 0.0006, 0.0009}) {
		t.Fatalf("USD_JPY floors: %v", usdjpy.MinBBWidth)
	}
}

func TestGridCapRejected(t *testing.T) {
	gs := DefaultGridSet()
	gs.Overrides["EUR_USD"] = Grid{BBPeriod: []int{10, 12, 14, 16, 18, 20, 22}}

	_, err := gs.Combinations("EUR_USD") // 7*3*1*3*3*3 = 567
	if !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestEmptyGridRejected(t *testing.T) {
	gs := DefaultGridSet()
	gs.Base.ATRPeriod = nil

	if _, err := gs.Combinations("EUR_USD"); !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLoadGrid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.yaml")
	body := `grid:
  bb_period: [20]
overrides:
  USD_JPY:
    bb_std_dev: [2.0]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	gs, err := LoadGrid(path)
	if err != nil {
		t.Fatalf("LoadGrid: %v", err)
	}
	if n := gs.ForPair("EUR_USD").Size(); n != 81 {
		t.Fatalf("expected 81 EUR_USD combinations, got %d", n)
	}
	if n := gs.ForPair("USD_JPY").Size(); n != 27 {
		t.Fatalf("expected 27 USD_JPY combinations, got %d", n)
	}
	if n := gs.ForPair("GBP_JPY").Size(); n != 81 {
		t.Fatalf("file overrides replace the defaults, expected 81 GBP_JPY combinations, got %d", n)
	}
	if gs.EMAFast != 8 || gs.EMASlow != 21 {
		t.Fatalf("unset trend params should keep defaults, got %d/%d", gs.EMAFast, gs.EMASlow)
	}
}

func TestLoadGridRejectsInvertedEMA(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.yaml")
	if err := os.WriteFile(path, []byte("ema_fast: 30\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadGrid(path); !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func sampleResult() Result {
	return Result{
		Pair: "EUR_USD",
		BestParams: ParamSet{
			BBPeriod: 20, BBStdDev: 2.2, ATRPeriod: 14,
			BBWidthThreshold: 0.0025, MinBBWidth: 0.0005, ATRRatioThreshold: 0.8,
			EMAFast: 8, EMASlow: 21,
		},
		InSampleSharpe:          1.234,
		OutOfSampleSharpe:       0.512,
		OutOfSampleWinRate:      0.55,
		OutOfSampleProfitFactor: 1.8,
		TotalCombinationsTested: 243,
		InSampleTrades:          48,
		OutOfSampleTrades:       19,
		PassedValidation:        true,
	}
}

func TestResultJSONRoundTrip(t *testing.T) {
	reason := "OOS Sharpe 0.1000 < 0.3"
	cases := map[string]Result{
		"passed": sampleResult(),
		"failed": failed("GBP_JPY", "No parameter set produced >= 20 trades in-sample", 243),
		"infinite profit factor": func() Result {
			r := sampleResult()
			r.OutOfSampleProfitFactor = math.Inf(1)
			r.PassedValidation = false
			r.RejectionReason = &reason
			return r
		}(),
	}

	for name, want := range cases {
		data, err := want.ToJSON()
		if err != nil {
			t.Fatalf("%s: ToJSON: %v", name, err)
		}
		got, err := FromJSON(data)
		if err != nil {
			t.Fatalf("%s: FromJSON: %v", name, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("%s: round trip mismatch\nwant %+v\ngot  %+v", name, want, got)
		}

		fromMap, err := FromMap(want.ToMap())
		if err != nil {
			t.Fatalf("%s: FromMap: %v", name, err)
		}
		if !reflect.DeepEqual(fromMap, want) {
			t.Fatalf("%s: map round trip mismatch", name)
		}
	}
}

func TestFailedResultHasEmptyParams(t *testing.T) {
	m := failed("USD_JPY", "x", 243).ToMap()
	bp, ok := m["best_params"].(map[string]any)
	if !ok || len(bp) != 0 {
		t.Fatalf("expected empty best_params, got %v", m["best_params"])
	}
	if m["passed_validation"] != false || m["rejection_reason"] != "x" {
		t.Fatalf("unexpected map %v", m)
	}
}

func TestLatestResultsFromRecords(t *testing.T) {
	newer := sampleResult()
	older := sampleResult()
	older.BestParams.BBPeriod = 15
	reason := "OOS win_rate 0.2500 < 0.4"
	failedGBP := failed("GBP_USD", reason, 243)

	var records []models.OptimizationRecord
	for _, r := range []Result{newer, older, failedGBP} {
		rec, err := Record(r.ToMap())
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
		records = append(records, rec)
	}

	got, err := LatestResults(records)
	if err != nil {
		t.Fatalf("LatestResults: %v", err)
	}
	if len(got) != 2 || !reflect.DeepEqual(got["EUR_USD"], newer) {
		t.Fatalf("expected the newest EUR_USD record, got %+v", got["EUR_USD"])
	}
	if g := got["GBP_USD"]; !g.BestParams.IsZero() || g.Reason() != reason {
		t.Fatalf("failed record not restored: %+v", g)
	}

	records[0].BestParams = "{not json"
	if _, err := LatestResults(records); !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected configuration error for corrupt params, got %v", err)
	}
}

func TestSanitize(t *testing.T) {
	data := map[string]map[string]any{
		"EUR_USD": {
			"pair":             "EUR_USD",
			"api_key":          "k",
			"Oanda_Secret":     "s",
			"best_params":      map[string]any{"bb_period": 20, "access_token": "t"},
			"in_sample_sharpe": 1.0,
		},
	}
	Sanitize(data)

	entry := data["EUR_USD"]
	if _, ok := entry["api_key"]; ok {
		t.Fatal("api_key should be removed")
	}
	if _, ok := entry["Oanda_Secret"]; ok {
		t.Fatal("keys are matched case-insensitively")
	}
	bp := entry["best_params"].(map[string]any)
	if _, ok := bp["access_token"]; ok {
		t.Fatal("access_token should be removed from best_params")
	}
	if bp["bb_period"] != 20 || entry["in_sample_sharpe"] != 1.0 {
		t.Fatal("other keys must be kept")
	}
}

func TestUpdateConfigsAppliesOnlyPassingPairs(t *testing.T) {
	passed := sampleResult()
	rejected := sampleResult()
	rejected.Pair = "GBP_USD"
	rejected.PassedValidation = false

	ind := indicators.DefaultPairConfigs()
	reg := regime.DefaultRegimeConfigs()
	indOut, regOut := UpdateConfigs(map[string]Result{"EUR_USD": passed, "GBP_USD": rejected}, ind, reg)

	if got := indOut["EUR_USD"]; got.BBStdDev != 2.2 || got.BBPeriod != 20 {
		t.Fatalf("EUR_USD indicator config not updated: %+v", got)
	}
	if got := regOut["EUR_USD"]; got.BBWidthThreshold != 0.0025 || got.MinBBWidth != 0.0005 || got.ATRRatioThreshold != 0.8 {
		t.Fatalf("EUR_USD regime config not updated: %+v", got)
	}
	if indOut["GBP_USD"] != ind["GBP_USD"] || regOut["GBP_USD"] != reg["GBP_USD"] {
		t.Fatal("a rejected pair must keep its defaults")
	}
	if ind["EUR_USD"].BBStdDev != 2.0 {
		t.Fatal("input tables must not be modified")
	}
}

type fakeStore struct {
	records []models.OptimizationRecord
}

func (f *fakeStore) SaveOptimizationResults(records []models.OptimizationRecord) error {
	f.records = append(f.records, records...)
	return nil
}

func newTestRunner(t *testing.T, store ResultStore) *Runner {
	t.Helper()
	cfg := NewRunnerConfig()
	cfg.ResultsPath = filepath.Join(t.TempDir(), "data", "optimization_results.json")
	r, err := NewRunner(nil, store, cfg)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r
}

func TestRunAllFallbackReplacesOnlyPassingRetries(t *testing.T) {
	store := &fakeStore{}
	r := newTestRunner(t, store)

	calls := map[string][]float64{}
	r.optimize = func(pair string, gate float64) (Result, error) {
		calls[pair] = append(calls[pair], gate)
		res := sampleResult()
		res.Pair = pair
		if pair == "EUR_USD" && gate == 0.15 {
			return res, nil
		}
		reason := fmt.Sprintf("OOS Sharpe 0.2000 < %v", gate)
		res.PassedValidation = false
		res.RejectionReason = &reason
		return res, nil
	}

	results, err := r.RunAll([]string{"EUR_USD", "GBP_USD", "USD_JPY"})
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}

	if !results["EUR_USD"].PassedValidation {
		t.Fatal("EUR_USD should be replaced by its passing retry")
	}
	if results["GBP_USD"].PassedValidation || results["GBP_USD"].Reason() != "OOS Sharpe 0.2000 < 0.3" {
		t.Fatalf("GBP_USD should keep its strict-gate result, got %q", results["GBP_USD"].Reason())
	}
	if len(calls["USD_JPY"]) != 1 {
		t.Fatalf("USD_JPY is not a fallback pair, got gates %v", calls["USD_JPY"])
	}
	if !reflect.DeepEqual(calls["EUR_USD"], []float64{0.3, 0.15}) {
		t.Fatalf("unexpected EUR_USD gates %v", calls["EUR_USD"])
	}

	if len(store.records) != 3 || store.records[0].Instrument != "EUR_USD" || store.records[2].Instrument != "USD_JPY" {
		t.Fatalf("expected 3 records sorted by pair, got %+v", store.records)
	}

	loaded, err := LoadResults(r.config.ResultsPath)
	if err != nil {
		t.Fatalf("LoadResults: %v", err)
	}
	if !reflect.DeepEqual(loaded, results) {
		t.Fatalf("saved results differ from returned results")
	}
}

func TestRunAllSkipsFallbackWhenAnyPairPasses(t *testing.T) {
	r := newTestRunner(t, nil)

	n := 0
	r.optimize = func(pair string, gate float64) (Result, error) {
		n++
		res := sampleResult()
		res.Pair = pair
		res.PassedValidation = pair == "USD_JPY"
		return res, nil
	}

	if _, err := r.RunAll([]string{"EUR_USD", "GBP_USD", "USD_JPY"}); err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected no retries, got %d optimize calls", n)
	}
}

func TestRunAllPropagatesConfigurationErrors(t *testing.T) {
	r := newTestRunner(t, nil)
	r.optimize = func(pair string, gate float64) (Result, error) {
		return Result{}, models.ErrConfiguration
	}
	if _, err := r.RunAll([]string{"XAU_USD"}); !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

// flatSeries never touches its bands, so no combination can trade.
func flatSeries(t *testing.T, timeframe string, step time.Duration, n int) models.Series {
	t.Helper()
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, n)
	for i := range candles {
		candles[i] = models.Candle{
			Time:  start.Add(time.Duration(i) * step),
			Open:  1.1000,
			High:  1.1002,
			Low:   1.0998,
			Close: 1.1000,
		}
	}
	s, err := models.NewSeries("EUR_USD", timeframe, candles)
	if err != nil {
		t.Fatalf("NewSeries: %v", err)
	}
	return s
}

type countingObserver struct {
	tested, skipped, finished int
	passed                    bool
}

func (c *countingObserver) CombinationTested(string)          { c.tested++ }
func (c *countingObserver) CombinationSkipped(string, string) { c.skipped++ }
func (c *countingObserver) SearchFinished(_ string, passed bool, _ time.Duration) {
	c.finished++
	c.passed = passed
}

func TestOptimizerReportsTooFewTrades(t *testing.T) {
	coarse := flatSeries(t, "1h", time.Hour, 120)
	fine := flatSeries(t, "15m", 15*time.Minute, 480)
	obs := &countingObserver{}

	opt, err := NewOptimizer("EUR_USD", coarse, fine, NewConfig(), WithObserver(obs))
	if err != nil {
		t.Fatalf("NewOptimizer: %v", err)
	}
	res := opt.Run(0.3)

	if res.PassedValidation {
		t.Fatal("flat data cannot pass")
	}
	if res.Reason() != "No parameter set produced >= 20 trades in-sample" {
		t.Fatalf("unexpected reason %q", res.Reason())
	}
	if res.TotalCombinationsTested != 243 || !res.BestParams.IsZero() {
		t.Fatalf("unexpected result %+v", res)
	}
	if obs.tested != 243 || obs.skipped != 243 || obs.finished != 1 || obs.passed {
		t.Fatalf("unexpected observer counts %+v", obs)
	}
}

func TestOptimizerSplitIsShared(t *testing.T) {
	coarse := flatSeries(t, "1h", time.Hour, 120)
	fine := flatSeries(t, "15m", 15*time.Minute, 480)

	opt, err := NewOptimizer("EUR_USD", coarse, fine, NewConfig())
	if err != nil {
		t.Fatalf("NewOptimizer: %v", err)
	}

	is, oos := opt.inSample[14], opt.outOfSample[14]
	idx := int(float64(fine.Len()) * 0.7)
	cut := fine.Bars[idx].Time
	if is.fine.Len() != idx+1 || oos.fine.Len() != fine.Len()-idx-1 {
		t.Fatalf("unexpected fine split %d/%d", is.fine.Len(), oos.fine.Len())
	}
	if is.coarse.Last().After(cut) || !oos.coarse.First().After(cut) {
		t.Fatalf("coarse split does not respect the cut at %s", cut)
	}
	if !is.fine.Fields.Has(models.FieldVolatility|models.FieldTrend|models.FieldSession) {
		t.Fatalf("invariant fields should be precomputed, have %s", is.fine.Fields)
	}
}

func TestNewOptimizerRejectsBadSetup(t *testing.T) {
	coarse := flatSeries(t, "1h", time.Hour, 24)
	fine := flatSeries(t, "15m", 15*time.Minute, 96)

	if _, err := NewOptimizer("XAU_USD", coarse, fine, NewConfig()); !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("unknown pair: expected configuration error, got %v", err)
	}

	cfg := NewConfig()
	cfg.Split = 1
	if _, err := NewOptimizer("EUR_USD", coarse, fine, cfg); !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("split of 1: expected configuration error, got %v", err)
	}

	if _, err := NewOptimizer("EUR_USD", coarse, models.Series{}, NewConfig()); !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("empty fine series: expected configuration error, got %v", err)
	}
}

var (
	flatCurve    = []float64{10000, 10000, 10000}
	risingCurve  = []float64{10000, 10100, 10050, 10200}
	steepCurve   = []float64{10000, 10300, 10250, 10600}
	fallingCurve = []float64{10000, 9900, 9950, 9800}
)

// curveResult builds a backtest result from an equity curve and the P&L of each trade.
func curveResult(balances []float64, pnls ...float64) *backtest.Result {
	r := &backtest.Result{
		Pair:           "EUR_USD",
		InitialBalance: balances[0],
		FinalBalance:   balances[len(balances)-1],
	}
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	for i, b := range balances {
		r.EquityCurve = append(r.EquityCurve, backtest.EquityPoint{Timestamp: start.Add(time.Duration(i) * time.Hour), Balance: b})
	}
	for _, pnl := range pnls {
		r.Trades = append(r.Trades, backtest.Trade{Pair: "EUR_USD", PnLUSD: pnl, Status: backtest.TradeStatusClosed})
	}
	return r
}

func TestOptimizerSelectsAndValidatesBest(t *testing.T) {
	cases := []struct {
		name   string
		oos    *backtest.Result
		oosErr error
		reason string // empty when the result passes
	}{
		{
			name: "passes both gates",
			oos:  curveResult(risingCurve, 10, 10, -5, 10),
		},
		{
			name:   "out-of-sample Sharpe below gate",
			oos:    curveResult(fallingCurve, 10, 10, -5),
			reason: fmt.Sprintf("OOS Sharpe %.4f < %v", curveResult(fallingCurve, 10, 10, -5).SharpeRatio(), 0.3),
		},
		{
			name:   "out-of-sample win rate below gate",
			oos:    curveResult(risingCurve, 10, -5, -5, -5),
			reason: "OOS win_rate 0.2500 < 0.4",
		},
		{
			name:   "out-of-sample backtest fails",
			oosErr: errors.New("coverage"),
			reason: "OOS backtest failed: coverage",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			coarse := flatSeries(t, "1h", time.Hour, 120)
			fine := flatSeries(t, "15m", 15*time.Minute, 480)
			cfg := NewConfig()
			cfg.MinISTrades = 3
			obs := &countingObserver{}

			opt, err := NewOptimizer("EUR_USD", coarse, fine, cfg, WithObserver(obs))
			if err != nil {
				t.Fatalf("NewOptimizer: %v", err)
			}
			oosStart := opt.outOfSample[14].fine.First()
			failing, winner, tie, thin := opt.combos[0], opt.combos[5], opt.combos[9], opt.combos[7]

			var oosCalls []ParamSet
			opt.evaluate = func(p ParamSet, s sample) (*backtest.Result, error) {
				if s.fine.First().Equal(oosStart) {
					oosCalls = append(oosCalls, p)
					return tc.oos, tc.oosErr
				}
				switch p {
				case failing:
					return nil, errors.New("bad combination")
				case winner, tie:
					return curveResult(risingCurve, 10, -5, 10), nil
				case thin:
					// best curve of all, but too few trades
					return curveResult(steepCurve, 10, 10), nil
				}
				return curveResult(flatCurve, 1, -1, 1), nil
			}

			res := opt.Run(0.3)

			if res.BestParams != winner {
				t.Fatalf("expected the first of the tied best sets %+v, got %+v", winner, res.BestParams)
			}
			if want := curveResult(risingCurve, 10, -5, 10).SharpeRatio(); res.InSampleSharpe != want || res.InSampleTrades != 3 {
				t.Fatalf("in-sample sharpe %v trades %d, want %v and 3", res.InSampleSharpe, res.InSampleTrades, want)
			}
			if len(oosCalls) != 1 || oosCalls[0] != winner {
				t.Fatalf("expected one out-of-sample run of the winner, got %+v", oosCalls)
			}
			if res.TotalCombinationsTested != 243 {
				t.Fatalf("expected 243 combinations, got %d", res.TotalCombinationsTested)
			}
			if obs.tested != 242 || obs.skipped != 2 || obs.finished != 1 || obs.passed != res.PassedValidation {
				t.Fatalf("unexpected observer counts %+v", obs)
			}

			if tc.reason == "" {
				if !res.PassedValidation || res.RejectionReason != nil {
					t.Fatalf("expected a pass without reason, got %v %q", res.PassedValidation, res.Reason())
				}
				if res.OutOfSampleTrades != 4 || res.OutOfSampleWinRate != 0.75 {
					t.Fatalf("unexpected out-of-sample stats %+v", res)
				}
				return
			}
			if res.PassedValidation || res.Reason() != tc.reason {
				t.Fatalf("expected rejection %q, got passed=%v %q", tc.reason, res.PassedValidation, res.Reason())
			}
		})
	}
}

// meanReverting groups a price path into candles of stride moves each.
func meanReverting(t *testing.T, timeframe string, step time.Duration, n, stride int, prices []float64) models.Series {
	t.Helper()
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, n)
	for i := range candles {
		window := prices[i*stride : (i+1)*stride+1]
		open, closePrice := window[0], window[len(window)-1]
		high, low := open, open
		for _, p := range window {
			high, low = math.Max(high, p), math.Min(low, p)
		}
		candles[i] = models.Candle{
			Time:  start.Add(time.Duration(i) * step),
			Open:  open,
			High:  high,
			Low:   low,
			Close: closePrice,
		}
	}
	s, err := models.NewSeries("EUR_USD", timeframe, candles)
	if err != nil {
		t.Fatalf("NewSeries: %v", err)
	}
	return s
}

func TestOptimizerOnMeanRevertingData(t *testing.T) {
	const fineBars = 5760
	rng := rand.New(rand.NewSource(11))
	prices := make([]float64, fineBars+1)
	prices[0] = 1.1000
	for i := 1; i < len(prices); i++ {
		mean := 1.1000 + 0.002*math.Sin(2*math.Pi*float64(i)/384)
		prices[i] = prices[i-1] + 0.2*(mean-prices[i-1]) + rng.NormFloat64()*0.0004
	}
	coarse := meanReverting(t, "1h", time.Hour, fineBars/4, 4, prices)
	fine := meanReverting(t, "15m", 15*time.Minute, fineBars, 1, prices)

	cfg := NewConfig()
	cfg.MinISTrades = 1
	obs := &countingObserver{}
	opt, err := NewOptimizer("EUR_USD", coarse, fine, cfg, WithObserver(obs))
	if err != nil {
		t.Fatalf("NewOptimizer: %v", err)
	}
	res := opt.Run(cfg.MinOOSSharpe)

	if res.TotalCombinationsTested != 243 || obs.finished != 1 {
		t.Fatalf("unexpected search bookkeeping %+v %+v", res, obs)
	}
	if obs.tested+obs.skipped < 243 {
		t.Fatalf("every combination should be tested or skipped, got %+v", obs)
	}
	if res.BestParams.IsZero() {
		if res.Reason() != "No parameter set produced >= 1 trades in-sample" {
			t.Fatalf("unexpected reason %q", res.Reason())
		}
		return
	}
	if res.InSampleTrades < 1 || math.IsInf(res.InSampleSharpe, 0) {
		t.Fatalf("winner should have traded in-sample, got %+v", res)
	}
	if res.PassedValidation != (res.RejectionReason == nil) {
		t.Fatalf("pass flag and reason disagree: %v %q", res.PassedValidation, res.Reason())
	}
	if !res.PassedValidation && !strings.HasPrefix(res.Reason(), "OOS ") {
		t.Fatalf("rejection after a winner should come from the out-of-sample gates, got %q", res.Reason())
	}
}
