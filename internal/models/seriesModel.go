package models

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

type Session string

const (
	SessionAsian   Session = "asian"
	SessionLondon  Session = "london"
	SessionOverlap Session = "overlap"
	SessionNewYork Session = "new_york"
	SessionOff     Session = "off"
)

type Regime string

const (
	RegimeRanging  Regime = "ranging"
	RegimeTrending Regime = "trending"
	RegimeNeutral  Regime = "neutral"
)

type SignalType string

const (
	SignalLong  SignalType = "long"
	SignalShort SignalType = "short"
	SignalNone  SignalType = "none"
)

type ExitReason string

const (
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitSignal     ExitReason = "exit_signal"
	ExitEndOfData  ExitReason = "end_of_data"
)

// FieldSet records which groups of bar fields have been computed on a series.
type FieldSet uint16

const (
	FieldOHLC FieldSet = 1 << iota
	FieldBands
	FieldVolatility
	FieldTrend
	FieldSession
	FieldRegime
	FieldSignals
)

var fieldNames = []struct {
	field FieldSet
	name  string
}{
	{FieldOHLC, "time/open/high/low/close"},
	{FieldBands, "bb_upper/bb_middle/bb_lower/bb_width/bb_pct_b"},
	{FieldVolatility, "atr/atr_ratio"},
	{FieldTrend, "ema_fast/ema_slow/ema_cross"},
	{FieldSession, "session/tradeable_session"},
	{FieldRegime, "regime"},
	{FieldSignals, "signal/entry_price/stop_loss/take_profit/exit_signal"},
}

func (f FieldSet) Has(want FieldSet) bool {
	return f&want == want
}

func (f FieldSet) String() string {
	var names []string
	for _, fn := range fieldNames {
		if f&fn.field != 0 {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, ", ")
}

type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Bar is a candle plus everything the pipeline layers append to it.
// Undefined numeric values are NaN.
type Bar struct {
	Candle

	BBUpper  float64
	BBMiddle float64
	BBLower  float64
	BBWidth  float64
	BBPctB   float64
	ATR      float64
	ATRRatio float64
	EMAFast  float64
	EMASlow  float64
	EMACross int

	Session          Session
	TradeableSession bool
	Regime           Regime

	Signal     int
	SignalType SignalType
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	ExitSignal int
}

// NewBar wraps a candle with every derived field unset.
func NewBar(c Candle) Bar {
	nan := math.NaN()
	return Bar{
		Candle:     c,
		BBUpper:    nan,
		BBMiddle:   nan,
		BBLower:    nan,
		BBWidth:    nan,
		BBPctB:     nan,
		ATR:        nan,
		ATRRatio:   nan,
		EMAFast:    nan,
		EMASlow:    nan,
		SignalType: SignalNone,
		EntryPrice: nan,
		StopLoss:   nan,
		TakeProfit: nan,
	}
}

type Series struct {
	Instrument string
	Timeframe  string
	Bars       []Bar
	Fields     FieldSet
}

// NewSeries validates candles and wraps them in a series carrying only OHLC fields.
func NewSeries(instrument, timeframe string, candles []Candle) (Series, error) {
	bars := make([]Bar, len(candles))
	for i, c := range candles {
		if i > 0 && c.Time.Before(candles[i-1].Time) {
			return Series{}, fmt.Errorf("%w: %s %s candle %d at %s is earlier than its predecessor",
				ErrConfiguration, instrument, timeframe, i, c.Time.Format(time.RFC3339))
		}
		if c.High < c.Low || c.High < math.Max(c.Open, c.Close) || c.Low > math.Min(c.Open, c.Close) {
			return Series{}, fmt.Errorf("%w: %s %s candle at %s has inconsistent OHLC",
				ErrConfiguration, instrument, timeframe, c.Time.Format(time.RFC3339))
		}
		bars[i] = NewBar(c)
	}

	return Series{
		Instrument: instrument,
		Timeframe:  timeframe,
		Bars:       bars,
		Fields:     FieldOHLC,
	}, nil
}

// SeriesFromPrices converts stored candles into a series, ordered by open time.
func SeriesFromPrices(instrument, timeframe string, prices []Price) (Series, error) {
	sorted := make([]Price, len(prices))
	copy(sorted, prices)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OpenTime.Before(sorted[j].OpenTime)
	})

	candles := make([]Candle, len(sorted))
	for i, p := range sorted {
		candles[i] = Candle{
			Time:   p.OpenTime.UTC(),
			Open:   p.Open,
			High:   p.High,
			Low:    p.Low,
			Close:  p.Close,
			Volume: p.Volume,
		}
	}
	return NewSeries(instrument, timeframe, candles)
}

// Require returns a configuration error naming every missing field group.
func (s Series) Require(fields FieldSet) error {
	missing := fields &^ s.Fields
	if missing == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s %s series missing fields: %s",
		ErrConfiguration, s.Instrument, s.Timeframe, missing)
}

// Clone returns a deep copy so that layers never write into a caller's bars.
func (s Series) Clone() Series {
	bars := make([]Bar, len(s.Bars))
	copy(bars, s.Bars)
	s.Bars = bars
	return s
}

func (s Series) Len() int {
	return len(s.Bars)
}

func (s Series) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

func (s Series) First() time.Time {
	if len(s.Bars) == 0 {
		return time.Time{}
	}
	return s.Bars[0].Time
}

func (s Series) Last() time.Time {
	if len(s.Bars) == 0 {
		return time.Time{}
	}
	return s.Bars[len(s.Bars)-1].Time
}

// SplitAt partitions the series into bars at or before cut and bars strictly after it.
func (s Series) SplitAt(cut time.Time) (Series, Series) {
	idx := sort.Search(len(s.Bars), func(i int) bool {
		return s.Bars[i].Time.After(cut)
	})

	before := s
	before.Bars = append([]Bar(nil), s.Bars[:idx]...)
	after := s
	after.Bars = append([]Bar(nil), s.Bars[idx:]...)
	return before, after
}
