package binance

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"BandReversionBot/internal/models"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// maxKlines is the most candles one klines request returns.
const maxKlines = 500

var intervals = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// IntervalDuration fails with a configuration error for an interval the client does not page.
func IntervalDuration(interval string) (time.Duration, error) {
	d, ok := intervals[interval]
	if !ok {
		return 0, fmt.Errorf("%w: unsupported kline interval %q", models.ErrConfiguration, interval)
	}
	return d, nil
}

type BinanceClient struct {
	client      *futures.Client
	rateLimiter *rate.Limiter
	httpClient  *http.Client
	log         zerolog.Logger
}

func NewBinanceClient(apiKey, secretKey string, log zerolog.Logger) *BinanceClient {
	// Create custom HTTP client with timeouts
	httpClient := &http.Client{
		Timeout: time.Second * 10,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	// Klines are public; empty keys are fine for fetching history
	futuresClient := futures.NewClient(apiKey, secretKey)
	futuresClient.HTTPClient = httpClient

	// Create rate limiter: 10 requests per second with burst of 20
	limiter := rate.NewLimiter(rate.Limit(10), 20)

	return &BinanceClient{
		client:      futuresClient,
		rateLimiter: limiter,
		httpClient:  httpClient,
		log:         log,
	}
}

// GetKlines fetches one page, retrying with exponential backoff.
func (c *BinanceClient) GetKlines(ctx context.Context, symbol, interval string, startTime, endTime int64) ([]*futures.Kline, error) {
	var klines []*futures.Kline
	maxRetries := 3
	backoff := 100 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		// Wait for rate limiter
		err := c.rateLimiter.Wait(ctx)
		if err != nil {
			return nil, err
		}

		klines, err = c.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(startTime).
			EndTime(endTime).
			Limit(maxKlines).
			Do(ctx)

		if err == nil {
			return klines, nil
		}

		if attempt == maxRetries {
			return nil, fmt.Errorf("klines %s %s: %w", symbol, interval, err)
		}

		waitTime := time.Duration(math.Pow(2, float64(attempt))) * backoff
		c.log.Warn().Err(err).Str("symbol", symbol).Dur("retry_in", waitTime).Msg("Klines request failed")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(waitTime):
			continue
		}
	}

	return klines, nil
}

// GetHistoricalKlines pages through [start, end) one full request at a time.
func (c *BinanceClient) GetHistoricalKlines(ctx context.Context, symbol, interval string, start, end time.Time) ([]*futures.Kline, error) {
	step, err := IntervalDuration(interval)
	if err != nil {
		return nil, err
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: empty range %s..%s", models.ErrConfiguration,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	startMs := start.UnixMilli()
	endMs := end.UnixMilli()
	chunk := (step * maxKlines).Milliseconds()

	var allKlines []*futures.Kline
	for currentStart := startMs; currentStart < endMs; {
		currentEnd := currentStart + chunk - 1
		if currentEnd >= endMs {
			currentEnd = endMs - 1
		}

		klines, err := c.GetKlines(ctx, symbol, interval, currentStart, currentEnd)
		if err != nil {
			return nil, err
		}
		allKlines = append(allKlines, klines...)

		c.log.Debug().
			Str("symbol", symbol).
			Str("interval", interval).
			Int("klines", len(klines)).
			Time("from", time.UnixMilli(currentStart).UTC()).
			Msg("Fetched klines page")

		currentStart = currentEnd + 1
	}

	return allKlines, nil
}
