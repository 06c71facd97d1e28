package price

import (
	"fmt"

	"BandReversionBot/internal/models"

	"github.com/rs/zerolog"
)

// PriceStore upserts candles.
type PriceStore interface {
	CreateBatch(prices []models.Price) error
}

// StoredCounter is told how many candles were written. metrics.Recorder implements it.
type StoredCounter interface {
	CandlesStored(pair, timeframe string, n int)
}

// PriceRecorder validates fetched candles and writes them to the store.
type PriceRecorder struct {
	store   PriceStore
	counter StoredCounter // optional
	log     zerolog.Logger
}

func NewPriceRecorder(store PriceStore, counter StoredCounter, log zerolog.Logger) *PriceRecorder {
	return &PriceRecorder{
		store:   store,
		counter: counter,
		log:     log,
	}
}

// Record rejects the whole batch if any candle would not load back into a series.
func (r *PriceRecorder) Record(instrument, timeframe string, prices []models.Price) error {
	if len(prices) == 0 {
		r.log.Warn().Str("instrument", instrument).Str("timeframe", timeframe).Msg("No candles to record")
		return nil
	}
	if _, err := models.SeriesFromPrices(instrument, timeframe, prices); err != nil {
		return err
	}

	if err := r.store.CreateBatch(prices); err != nil {
		return fmt.Errorf("store %s %s candles: %w", instrument, timeframe, err)
	}
	if r.counter != nil {
		r.counter.CandlesStored(instrument, timeframe, len(prices))
	}

	r.log.Info().
		Str("instrument", instrument).
		Str("timeframe", timeframe).
		Int("candles", len(prices)).
		Time("from", prices[0].OpenTime).
		Time("to", prices[len(prices)-1].OpenTime).
		Msg("Recorded candles")
	return nil
}
