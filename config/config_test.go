package config

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"BandReversionBot/internal/models"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_USER", "research")
	t.Setenv("DB_NAME", "bandreversion")
}

func TestFromEnvDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Database.Port != 5432 || cfg.Database.Host != "localhost" || cfg.Database.SSLMode != "disable" {
		t.Fatalf("unexpected database defaults %+v", cfg.Database)
	}
	r := cfg.Research
	if r.CoarseTimeframe != "1h" || r.FineTimeframe != "15m" || r.InitialBalance != 10000 || r.RiskPct != 0.01 || r.DataSplit != 0.7 {
		t.Fatalf("unexpected research defaults %+v", r)
	}
	if len(cfg.Pairs) != 4 || cfg.Pairs[0] != "EUR_USD" {
		t.Fatalf("unexpected pairs %v", cfg.Pairs)
	}
	if cfg.Symbols["EUR_USD"] != "EURUSDT" {
		t.Fatalf("unexpected symbols %v", cfg.Symbols)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DB_PORT", "6543")
	t.Setenv("TRADING_PAIRS", " eur_usd, usd_jpy ,")
	t.Setenv("SYMBOL_MAP", "USD_JPY=usdjpy")
	t.Setenv("RISK_PCT", "0.02")
	t.Setenv("START_DATE", "2023-01-01")
	t.Setenv("END_DATE", "2024-01-01T00:00:00Z")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Database.Port != 6543 || cfg.Research.RiskPct != 0.02 {
		t.Fatalf("overrides not applied: %+v %+v", cfg.Database, cfg.Research)
	}
	if len(cfg.Pairs) != 2 || cfg.Pairs[1] != "USD_JPY" {
		t.Fatalf("unexpected pairs %v", cfg.Pairs)
	}
	if cfg.Symbols["USD_JPY"] != "USDJPY" || cfg.Symbols["EUR_USD"] != "EURUSDT" {
		t.Fatalf("unexpected symbols %v", cfg.Symbols)
	}

	start, end := cfg.FetchRange(time.Now())
	if !start.Equal(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected range %s..%s", start, end)
	}
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"non numeric port": {"DB_PORT", "abc"},
		"risk above one":   {"RISK_PCT", "1.5"},
		"zero split":       {"DATA_SPLIT", "0"},
		"bad date":         {"START_DATE", "01/02/2023"},
		"bad symbol map":   {"SYMBOL_MAP", "EUR_USD"},
		"same timeframes":  {"FINE_TIMEFRAME", "1h"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv(kv[0], kv[1])
			if _, err := FromEnv(); !errors.Is(err, models.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestFromEnvRequiresDatabase(t *testing.T) {
	t.Setenv("DB_USER", "")
	t.Setenv("DB_NAME", "")
	if _, err := FromEnv(); !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestFetchRangeFromHistoryDays(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("HISTORY_DAYS", "30")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	start, end := cfg.FetchRange(now)
	if !end.Equal(now) || !start.Equal(now.AddDate(0, 0, -30)) {
		t.Fatalf("unexpected range %s..%s", start, end)
	}
}

func TestDSNEscapesCredentials(t *testing.T) {
	d := DatabaseConfig{
		Host: "db.internal", Port: 5433, User: "research",
		Password: `p@ss word'"/x`, DBName: "band reversion", SSLMode: "require",
	}

	u, err := url.Parse(d.DSN())
	if err != nil {
		t.Fatalf("DSN does not parse: %v", err)
	}
	pw, _ := u.User.Password()
	if u.Scheme != "postgres" || u.User.Username() != "research" || pw != d.Password {
		t.Fatalf("credentials not preserved: %q", d.DSN())
	}
	if u.Hostname() != "db.internal" || u.Port() != "5433" || u.Path != "/band reversion" {
		t.Fatalf("unexpected address in %q", d.DSN())
	}
	if u.Query().Get("sslmode") != "require" {
		t.Fatalf("unexpected sslmode in %q", d.DSN())
	}
}
