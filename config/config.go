package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"BandReversionBot/internal/models"
	"BandReversionBot/internal/validation"

	"github.com/joho/godotenv"
)

var defaultPairs = []string{"EUR_USD", "GBP_USD", "USD_JPY", "GBP_JPY"}

// Binance lists no yen crosses; map them with SYMBOL_MAP if a venue carries them.
var defaultSymbols = map[string]string{
	"EUR_USD": "EURUSDT",
	"GBP_USD": "GBPUSDT",
}

// Load reads .env when present, then the environment. Unset variables keep their defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := validation.Defaults(cfg); err != nil {
		return nil, err
	}

	cfg.Exchange = ExchangeConfig{
		APIKey:    os.Getenv("BINANCE_API_KEY"),
		SecretKey: os.Getenv("BINANCE_SECRET_KEY"),
	}
	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "console")
	cfg.Log.Output = getEnv("LOG_OUTPUT", "stdout")

	db := &cfg.Database
	db.Host = getEnv("DB_HOST", db.Host)
	db.User = os.Getenv("DB_USER")
	db.Password = os.Getenv("DB_PASSWORD")
	db.DBName = os.Getenv("DB_NAME")
	db.SSLMode = getEnv("DB_SSLMODE", db.SSLMode)

	r := &cfg.Research
	r.CoarseTimeframe = getEnv("COARSE_TIMEFRAME", r.CoarseTimeframe)
	r.FineTimeframe = getEnv("FINE_TIMEFRAME", r.FineTimeframe)
	r.ResultsPath = getEnv("RESULTS_PATH", r.ResultsPath)
	r.GridFile = os.Getenv("GRID_FILE")
	r.MetricsFile = os.Getenv("METRICS_FILE")

	var errs []error
	errs = append(errs,
		envInt("DB_PORT", &db.Port),
		envFloat("INITIAL_BALANCE", &r.InitialBalance),
		envFloat("RISK_PCT", &r.RiskPct),
		envFloat("DATA_SPLIT", &r.DataSplit),
		envInt("HISTORY_DAYS", &r.HistoryDays),
		envBool("USE_OPTIMIZED", &r.UseOptimized),
		envTime("START_DATE", &r.Start),
		envTime("END_DATE", &r.End),
	)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	cfg.Pairs = getPairs()
	symbols, err := getSymbols()
	if err != nil {
		return nil, err
	}
	cfg.Symbols = symbols

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}
	r := c.Research
	if !r.Start.IsZero() && !r.End.IsZero() && !r.Start.Before(r.End) {
		return fmt.Errorf("%w: START_DATE must be before END_DATE", models.ErrConfiguration)
	}
	return nil
}

// FetchRange is the download window: the configured dates, or HistoryDays back from now.
func (c *Config) FetchRange(now time.Time) (time.Time, time.Time) {
	end := c.Research.End
	if end.IsZero() {
		end = now.UTC()
	}
	start := c.Research.Start
	if start.IsZero() {
		start = end.AddDate(0, 0, -c.Research.HistoryDays)
	}
	return start, end
}

// DSN is a postgres URL, so credentials with spaces or quotes survive escaped.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not an integer", models.ErrConfiguration, key, v)
	}
	*dst = i
	return nil
}

func envFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not a number", models.ErrConfiguration, key, v)
	}
	*dst = f
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not a boolean", models.ErrConfiguration, key, v)
	}
	*dst = b
	return nil
}

// envTime accepts a date or a full RFC 3339 timestamp, both read as UTC.
func envTime(key string, dst *time.Time) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			*dst = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("%w: %s=%q is not a date", models.ErrConfiguration, key, v)
}

// helper to get pairs
func getPairs() []string {
	raw := os.Getenv("TRADING_PAIRS")
	if raw == "" {
		return append([]string(nil), defaultPairs...)
	}
	var pairs []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			pairs = append(pairs, p)
		}
	}
	return pairs
}

// getSymbols reads SYMBOL_MAP entries like EUR_USD=EURUSDT on top of the defaults.
func getSymbols() (map[string]string, error) {
	symbols := make(map[string]string, len(defaultSymbols))
	for k, v := range defaultSymbols {
		symbols[k] = v
	}

	raw := os.Getenv("SYMBOL_MAP")
	if raw == "" {
		return symbols, nil
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		instrument, symbol, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(instrument) == "" || strings.TrimSpace(symbol) == "" {
			return nil, fmt.Errorf("%w: SYMBOL_MAP entry %q must look like EUR_USD=EURUSDT", models.ErrConfiguration, entry)
		}
		symbols[strings.ToUpper(strings.TrimSpace(instrument))] = strings.ToUpper(strings.TrimSpace(symbol))
	}
	return symbols, nil
}
