package config

import (
	"time"

	"BandReversionBot/internal/logger"
)

type Config struct {
	Exchange ExchangeConfig
	Database DatabaseConfig
	Research ResearchConfig
	Log      logger.Config

	Pairs []string `validate:"min=1,dive,required"`
	// Symbols maps an instrument to the exchange symbol its candles are fetched under.
	Symbols map[string]string
}

type ExchangeConfig struct {
	APIKey    string
	SecretKey string
}

type DatabaseConfig struct {
	Host     string `default:"localhost" validate:"required"`
	Port     int    `default:"5432" validate:"gt=0,lte=65535"`
	User     string `validate:"required"`
	Password string
	DBName   string `validate:"required"`
	SSLMode  string `default:"disable" validate:"oneof=disable require verify-ca verify-full"`
}

type ResearchConfig struct {
	CoarseTimeframe string  `default:"1h" validate:"required"`
	FineTimeframe   string  `default:"15m" validate:"required,nefield=CoarseTimeframe"`
	InitialBalance  float64 `default:"10000" validate:"gt=0"`
	RiskPct         float64 `default:"0.01" validate:"gt=0,lte=1"`
	DataSplit       float64 `default:"0.7" validate:"gt=0,lt=1"`
	HistoryDays     int     `default:"1095" validate:"gt=0"`
	ResultsPath     string  `default:"data/optimization_results.json"`
	GridFile        string
	MetricsFile     string
	UseOptimized    bool

	// Zero values leave the range open on that side.
	Start time.Time
	End   time.Time
}
