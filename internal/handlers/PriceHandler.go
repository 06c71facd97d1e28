package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"BandReversionBot/internal/models"
	"BandReversionBot/internal/operations/price"

	"github.com/rs/zerolog"
)

// LatestPriceSource reports the newest stored candle, or nil when there is none.
type LatestPriceSource interface {
	GetLatestPriceByTimeFrame(instrument, timeFrame string) (*models.Price, error)
}

// PriceHandler downloads candle history and stores it.
type PriceHandler struct {
	fetcher  *price.PriceFetcher
	recorder *price.PriceRecorder
	latest   LatestPriceSource // optional
	log      zerolog.Logger
}

func NewPriceHandler(fetcher *price.PriceFetcher, recorder *price.PriceRecorder, latest LatestPriceSource, log zerolog.Logger) *PriceHandler {
	return &PriceHandler{
		fetcher:  fetcher,
		recorder: recorder,
		latest:   latest,
		log:      log,
	}
}

// resumeFrom moves start up to the newest stored candle. That candle is fetched
// again and upserted, since it may have been stored before it closed.
func (h *PriceHandler) resumeFrom(pair, tf string, start time.Time) (time.Time, error) {
	if h.latest == nil {
		return start, nil
	}
	last, err := h.latest.GetLatestPriceByTimeFrame(pair, tf)
	if err != nil {
		return start, fmt.Errorf("latest stored candle: %w", err)
	}
	if last != nil && last.OpenTime.After(start) {
		return last.OpenTime, nil
	}
	return start, nil
}

// FetchHistory fetches every pair and timeframe. A failing pair does not stop the
// others; all failures are returned together. Cancellation stops immediately.
func (h *PriceHandler) FetchHistory(ctx context.Context, pairs, timeframes []string, start, end time.Time) error {
	var errs []error
	for _, pair := range pairs {
		for _, tf := range timeframes {
			if err := ctx.Err(); err != nil {
				return err
			}

			from, err := h.resumeFrom(pair, tf, start)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s %s: %w", pair, tf, err))
				continue
			}
			if !from.Before(end) {
				h.log.Info().Str("pair", pair).Str("timeframe", tf).Msg("Already up to date")
				continue
			}

			h.log.Info().Str("pair", pair).Str("timeframe", tf).
				Time("start", from).Time("end", end).
				Msg("Fetching historical data")

			prices, err := h.fetcher.FetchPrices(ctx, pair, tf, from, end)
			if err == nil {
				err = h.recorder.Record(pair, tf, prices)
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				h.log.Error().Err(err).Str("pair", pair).Str("timeframe", tf).Msg("Fetch failed")
				errs = append(errs, fmt.Errorf("%s %s: %w", pair, tf, err))
			}
		}
	}
	return errors.Join(errs...)
}
