package price

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"BandReversionBot/internal/models"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/rs/zerolog"
)

// KlineSource pages historical klines from the exchange.
type KlineSource interface {
	GetHistoricalKlines(ctx context.Context, symbol, interval string, start, end time.Time) ([]*futures.Kline, error)
}

// PriceFetcher turns exchange klines into stored candles under the instrument's name.
type PriceFetcher struct {
	source  KlineSource
	symbols map[string]string // instrument -> exchange symbol
	now     func() time.Time
	log     zerolog.Logger
}

func NewPriceFetcher(source KlineSource, symbols map[string]string, log zerolog.Logger) *PriceFetcher {
	return &PriceFetcher{
		source:  source,
		symbols: symbols,
		now:     time.Now,
		log:     log,
	}
}

func (f *PriceFetcher) Symbol(instrument string) (string, error) {
	symbol, ok := f.symbols[instrument]
	if !ok || symbol == "" {
		return "", fmt.Errorf("%w: no exchange symbol mapped for %s", models.ErrConfiguration, instrument)
	}
	return symbol, nil
}

// FetchPrices returns the completed candles in [start, end). The candle still
// forming at fetch time is dropped.
func (f *PriceFetcher) FetchPrices(ctx context.Context, instrument, timeframe string, start, end time.Time) ([]models.Price, error) {
	symbol, err := f.Symbol(instrument)
	if err != nil {
		return nil, err
	}

	klines, err := f.source.GetHistoricalKlines(ctx, symbol, timeframe, start, end)
	if err != nil {
		return nil, err
	}

	nowMs := f.now().UnixMilli()
	prices := make([]models.Price, 0, len(klines))
	for _, k := range klines {
		if k.CloseTime >= nowMs {
			continue
		}
		p, err := toPrice(instrument, timeframe, k)
		if err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}

	f.log.Info().
		Str("instrument", instrument).
		Str("symbol", symbol).
		Str("timeframe", timeframe).
		Int("candles", len(prices)).
		Msg("Fetched candles")

	return prices, nil
}

func toPrice(instrument, timeframe string, k *futures.Kline) (models.Price, error) {
	fields := []string{k.Open, k.High, k.Low, k.Close, k.Volume}
	values := make([]float64, len(fields))
	for i, s := range fields {
		v, err := parseFloat(s)
		if err != nil {
			return models.Price{}, fmt.Errorf("%s %s kline at %d: %w", instrument, timeframe, k.OpenTime, err)
		}
		values[i] = v
	}

	return models.Price{
		Instrument: instrument,
		TimeFrame:  timeframe,
		OpenTime:   time.UnixMilli(k.OpenTime).UTC(),
		CloseTime:  time.UnixMilli(k.CloseTime).UTC(),
		Open:       values[0],
		High:       values[1],
		Low:        values[2],
		Close:      values[3],
		Volume:     values[4],
		TradeCount: k.TradeNum,
	}, nil
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return f, nil
}
