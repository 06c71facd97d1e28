package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"BandReversionBot/config"
	"BandReversionBot/internal/handlers"
	"BandReversionBot/internal/logger"
	"BandReversionBot/internal/metrics"
	"BandReversionBot/internal/models"
	"BandReversionBot/internal/operations/backtest"
	"BandReversionBot/internal/operations/binance"
	"BandReversionBot/internal/operations/optimization"
	"BandReversionBot/internal/operations/price"
	"BandReversionBot/internal/repositories"
	"BandReversionBot/internal/services/indicators"
	"BandReversionBot/internal/services/regime"
	"BandReversionBot/internal/services/strategy"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const usage = `usage: bandreversion [fetch|backtest|optimize|filters] [-pairs EUR_USD,GBP_USD]

  fetch      download candle history for every pair into postgres
  backtest   run the strategy on stored candles and store each ledger
  optimize   grid search each pair and save the results (default)
  filters    count the bars surviving each entry filter
`

func main() {
	cmd := "optimize"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	fset := flag.NewFlagSet(cmd, flag.ExitOnError)
	fset.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	pairsCSV := fset.String("pairs", "", "comma-separated pairs, overrides TRADING_PAIRS")
	_ = fset.Parse(args)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}
	if *pairsCSV != "" {
		cfg.Pairs = splitPairs(*pairsCSV)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to create logger:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cmd, cfg, log); err != nil {
		log.Error().Err(err).Str("command", cmd).Msg("Command failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, cfg *config.Config, log zerolog.Logger) error {
	db, err := setupDatabase(cfg.Database)
	if err != nil {
		return err
	}
	recorder := metrics.New()

	switch cmd {
	case "fetch":
		err = fetch(ctx, cfg, db, recorder, log)
	case "backtest":
		err = runBacktest(cfg, db, recorder, log)
	case "optimize":
		err = optimize(cfg, db, recorder, log)
	case "filters":
		err = countFilters(cfg, db, log)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		return err
	}

	if cfg.Research.MetricsFile != "" {
		if err := recorder.WriteTextfile(cfg.Research.MetricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func fetch(ctx context.Context, cfg *config.Config, db *gorm.DB, recorder *metrics.Recorder, log zerolog.Logger) error {
	client := binance.NewBinanceClient(cfg.Exchange.APIKey, cfg.Exchange.SecretKey, logger.Component(log, "binance"))
	priceRepo := repositories.NewPriceRepository(db, logger.Component(log, "prices"))

	fetcher := price.NewPriceFetcher(client, cfg.Symbols, logger.Component(log, "fetcher"))
	priceRecorder := price.NewPriceRecorder(priceRepo, recorder, logger.Component(log, "recorder"))
	handler := handlers.NewPriceHandler(fetcher, priceRecorder, priceRepo, log)

	start, end := cfg.FetchRange(time.Now())
	timeframes := []string{cfg.Research.CoarseTimeframe, cfg.Research.FineTimeframe}
	return handler.FetchHistory(ctx, cfg.Pairs, timeframes, start, end)
}

func newStrategy(ind indicators.PairConfigs, reg regime.RegimeConfigs, log zerolog.Logger) (*strategy.Engine, error) {
	indEngine, err := indicators.NewEngine(ind, logger.Component(log, "indicators"))
	if err != nil {
		return nil, err
	}
	regEngine, err := regime.NewEngine(reg, logger.Component(log, "regime"))
	if err != nil {
		return nil, err
	}
	return strategy.NewEngine(indEngine, regEngine, strategy.DefaultATRSLMultiplier, logger.Component(log, "strategy"))
}

// newSimulator wires the strategy chain over the stored candles.
func newSimulator(cfg *config.Config, db *gorm.DB, strat *strategy.Engine, log zerolog.Logger) (*backtest.Simulator, error) {
	btConfig := backtest.NewConfig()
	btConfig.InitialBalance = cfg.Research.InitialBalance
	btConfig.RiskPct = cfg.Research.RiskPct
	engine, err := backtest.NewEngine(btConfig, logger.Component(log, "backtest"))
	if err != nil {
		return nil, err
	}

	return backtest.NewSimulator(
		repositories.NewPriceRepository(db, logger.Component(log, "prices")),
		strat,
		engine,
		repositories.NewTradeRepository(db),
		repositories.NewBalanceRepository(db),
		cfg.Research.CoarseTimeframe,
		cfg.Research.FineTimeframe,
		logger.Component(log, "simulator"),
	), nil
}

// ledgerReader reads stored totals from both ledger tables.
type ledgerReader struct {
	*repositories.TradeRepository
	*repositories.BalanceRepository
}

// optimizedResults reads RESULTS_PATH, falling back to the passing runs stored in postgres.
func optimizedResults(cfg *config.Config, db *gorm.DB, log zerolog.Logger) (map[string]optimization.Result, error) {
	results, err := optimization.LoadResults(cfg.Research.ResultsPath)
	if !errors.Is(err, fs.ErrNotExist) {
		return results, err
	}

	records, err := repositories.NewOptimizationRepository(db).FindPassed()
	if err != nil {
		return nil, fmt.Errorf("load stored optimization results: %w", err)
	}
	log.Warn().
		Str("path", cfg.Research.ResultsPath).
		Int("stored_passed", len(records)).
		Msg("No optimization results file, using stored results")
	return optimization.LatestResults(records)
}

func runBacktest(cfg *config.Config, db *gorm.DB, recorder *metrics.Recorder, log zerolog.Logger) error {
	ind, reg := indicators.DefaultPairConfigs(), regime.DefaultRegimeConfigs()
	if cfg.Research.UseOptimized {
		results, err := optimizedResults(cfg, db, log)
		if err != nil {
			return err
		}
		ind, reg = optimization.UpdateConfigs(results, ind, reg)
	}

	strat, err := newStrategy(ind, reg, log)
	if err != nil {
		return err
	}
	sim, err := newSimulator(cfg, db, strat, log)
	if err != nil {
		return err
	}
	ledger := ledgerReader{repositories.NewTradeRepository(db), repositories.NewBalanceRepository(db)}
	handler := handlers.NewBacktestHandler(sim, recorder, ledger, log)
	reports, err := handler.Run(cfg.Pairs, cfg.Research.Start, cfg.Research.End)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

func optimize(cfg *config.Config, db *gorm.DB, recorder *metrics.Recorder, log zerolog.Logger) error {
	grid := optimization.DefaultGridSet()
	if cfg.Research.GridFile != "" {
		var err error
		if grid, err = optimization.LoadGrid(cfg.Research.GridFile); err != nil {
			return err
		}
	}

	strat, err := newStrategy(nil, nil, log)
	if err != nil {
		return err
	}
	sim, err := newSimulator(cfg, db, strat, log)
	if err != nil {
		return err
	}

	runnerCfg := optimization.NewRunnerConfig()
	runnerCfg.CoarseTimeframe = cfg.Research.CoarseTimeframe
	runnerCfg.FineTimeframe = cfg.Research.FineTimeframe
	runnerCfg.Start, runnerCfg.End = cfg.Research.Start, cfg.Research.End
	runnerCfg.ResultsPath = cfg.Research.ResultsPath
	runnerCfg.Optimizer.Split = cfg.Research.DataSplit
	runnerCfg.Optimizer.InitialBalance = cfg.Research.InitialBalance
	runnerCfg.Optimizer.RiskPct = cfg.Research.RiskPct

	runner, err := optimization.NewRunner(sim, repositories.NewOptimizationRepository(db), runnerCfg,
		optimization.WithLogger(logger.Component(log, "optimizer")),
		optimization.WithGridSet(grid),
		optimization.WithObserver(recorder),
	)
	if err != nil {
		return err
	}

	_, err = handlers.NewOptimizationHandler(runner, log).Run(cfg.Pairs)
	return err
}

// countFilters prints, per pair, how many fine bars pass each entry filter in turn.
func countFilters(cfg *config.Config, db *gorm.DB, log zerolog.Logger) error {
	strat, err := newStrategy(nil, nil, log)
	if err != nil {
		return err
	}
	sim, err := newSimulator(cfg, db, strat, log)
	if err != nil {
		return err
	}
	counter := strategy.NewFilterCounter(strat, nil, logger.Component(log, "filters"))

	out := make(map[string]strategy.FilterCounts, len(cfg.Pairs))
	var errs []error
	for _, pair := range cfg.Pairs {
		coarse, err := sim.LoadSeries(pair, cfg.Research.CoarseTimeframe, cfg.Research.Start, cfg.Research.End)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fine, err := sim.LoadSeries(pair, cfg.Research.FineTimeframe, cfg.Research.Start, cfg.Research.End)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		counts, err := counter.Count(pair, coarse, fine)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", pair, err))
			continue
		}
		out[pair] = counts
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	return errors.Join(errs...)
}

func setupDatabase(dbConfig config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dbConfig.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto migrate database schemas
	err = db.AutoMigrate(
		&models.Price{},
		&models.TradeRecord{},
		&models.BalanceSnapshot{},
		&models.OptimizationRecord{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func splitPairs(csv string) []string {
	var pairs []string
	for _, p := range strings.Split(csv, ",") {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			pairs = append(pairs, p)
		}
	}
	return pairs
}
