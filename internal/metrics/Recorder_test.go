package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.CombinationTested("EUR_USD")
	r.CombinationTested("EUR_USD")
	r.CombinationSkipped("EUR_USD", "min_trades")
	r.SearchFinished("EUR_USD", true, 3*time.Second)
	r.BacktestTrades("GBP_USD", 42)
	r.CandlesStored("GBP_USD", "1h", 500)

	if got := testutil.ToFloat64(r.combinationsTested.WithLabelValues("EUR_USD")); got != 2 {
		t.Fatalf("expected 2 tested combinations, got %v", got)
	}
	if got := testutil.ToFloat64(r.combinationsSkipped.WithLabelValues("EUR_USD", "min_trades")); got != 1 {
		t.Fatalf("expected 1 skipped combination, got %v", got)
	}
	if got := testutil.ToFloat64(r.searchPassed.WithLabelValues("EUR_USD")); got != 1 {
		t.Fatalf("expected passed gauge 1, got %v", got)
	}
	if got := testutil.ToFloat64(r.backtestTrades.WithLabelValues("GBP_USD")); got != 42 {
		t.Fatalf("expected 42 trades, got %v", got)
	}

	r.SearchFinished("EUR_USD", false, time.Second)
	if got := testutil.ToFloat64(r.searchPassed.WithLabelValues("EUR_USD")); got != 0 {
		t.Fatalf("expected passed gauge reset to 0, got %v", got)
	}
}

func TestRecordersAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.CombinationTested("EUR_USD")

	if got := testutil.ToFloat64(b.combinationsTested.WithLabelValues("EUR_USD")); got != 0 {
		t.Fatalf("registries should not be shared, got %v", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.CandlesStored("EUR_USD", "15m", 96)

	path := filepath.Join(t.TempDir(), "bandreversion.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(body), `bandreversion_candles_stored_total{pair="EUR_USD",timeframe="15m"} 96`) {
		t.Fatalf("unexpected textfile:\n%s", body)
	}
}
