package repositories

import (
	"errors"
	"time"

	"BandReversionBot/internal/models"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// batchSize bounds the rows per INSERT statement.
const batchSize = 500

type PriceRepository struct {
	db  *gorm.DB
	log zerolog.Logger
}

// NewPriceRepository creates a new instance of PriceRepository
func NewPriceRepository(db *gorm.DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{db: db, log: log}
}

// CreateBatch upserts candles on (instrument, time_frame, open_time), so a
// re-fetched window replaces what was stored instead of duplicating it.
func (r *PriceRepository) CreateBatch(prices []models.Price) error {
	if len(prices) == 0 {
		return nil
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "instrument"}, {Name: "time_frame"}, {Name: "open_time"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"close_time", "open", "high", "low", "close", "volume", "trade_count",
		}),
	}).CreateInBatches(prices, batchSize).Error
}

// GetPricesByTimeFrame gets candles for an instrument and timeframe. A zero start or
// end leaves that side of the range open.
func (r *PriceRepository) GetPricesByTimeFrame(instrument, timeFrame string, start, end time.Time) ([]models.Price, error) {
	if instrument == "" || timeFrame == "" {
		return nil, errors.New("invalid instrument or timeframe")
	}

	query := r.db.Where("instrument = ? AND time_frame = ?", instrument, timeFrame)
	if !start.IsZero() {
		query = query.Where("open_time >= ?", start)
	}
	if !end.IsZero() {
		query = query.Where("open_time <= ?", end)
	}

	var prices []models.Price
	err := query.Order("open_time ASC").Find(&prices).Error

	r.log.Debug().
		Str("instrument", instrument).
		Str("timeframe", timeFrame).
		Int("rows", len(prices)).
		Msg("Loaded prices")

	return prices, err
}

// GetLatestPriceByTimeFrame returns nil when nothing is stored yet.
func (r *PriceRepository) GetLatestPriceByTimeFrame(instrument, timeFrame string) (*models.Price, error) {
	if instrument == "" || timeFrame == "" {
		return nil, errors.New("invalid instrument or timeframe")
	}

	var price models.Price
	err := r.db.Where("instrument = ? AND time_frame = ?", instrument, timeFrame).
		Order("open_time DESC").
		First(&price).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &price, err
}
