package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder collects grid search and backtest counters in its own registry.
type Recorder struct {
	registry *prometheus.Registry

	combinationsTested  *prometheus.CounterVec
	combinationsSkipped *prometheus.CounterVec
	searchDuration      *prometheus.HistogramVec
	searchPassed        *prometheus.GaugeVec
	backtestTrades      *prometheus.GaugeVec
	candlesStored       *prometheus.CounterVec
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		combinationsTested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bandreversion_combinations_tested_total",
				Help: "Parameter combinations that produced an in-sample backtest",
			},
			[]string{"pair"},
		),
		combinationsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bandreversion_combinations_skipped_total",
				Help: "Parameter combinations discarded during the search",
			},
			[]string{"pair", "reason"},
		),
		searchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bandreversion_search_duration_seconds",
				Help:    "Wall time of one pair's grid search",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"pair"},
		),
		searchPassed: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bandreversion_search_passed",
				Help: "1 if the pair's last search passed out-of-sample validation",
			},
			[]string{"pair"},
		),
		backtestTrades: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bandreversion_backtest_trades",
				Help: "Trades in the pair's last backtest",
			},
			[]string{"pair"},
		),
		candlesStored: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bandreversion_candles_stored_total",
				Help: "Candles written to the price store",
			},
			[]string{"pair", "timeframe"},
		),
	}
}

func (r *Recorder) CombinationTested(pair string) {
	r.combinationsTested.WithLabelValues(pair).Inc()
}

func (r *Recorder) CombinationSkipped(pair, reason string) {
	r.combinationsSkipped.WithLabelValues(pair, reason).Inc()
}

func (r *Recorder) SearchFinished(pair string, passed bool, elapsed time.Duration) {
	r.searchDuration.WithLabelValues(pair).Observe(elapsed.Seconds())
	v := 0.0
	if passed {
		v = 1
	}
	r.searchPassed.WithLabelValues(pair).Set(v)
}

func (r *Recorder) BacktestTrades(pair string, trades int) {
	r.backtestTrades.WithLabelValues(pair).Set(float64(trades))
}

func (r *Recorder) CandlesStored(pair, timeframe string, n int) {
	r.candlesStored.WithLabelValues(pair, timeframe).Add(float64(n))
}

func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile dumps the registry in the text exposition format, for a
// node_exporter textfile collector to pick up after a batch run.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
