package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is one (timestamp, price) pair of a PriceSeries.
type PricePoint struct {
	Timestamp time.Time
	Price     decimal.Decimal
}

// PriceSeries is an in-memory price history for one symbol, ascending by
// timestamp. It is built per request and never persisted.
type PriceSeries []PricePoint

// SeriesFromRecords converts stored records (already ascending) into a
// PriceSeries of close prices.
func SeriesFromRecords(records []*TickerRecord) PriceSeries {
	series := make(PriceSeries, 0, len(records))
	for _, r := range records {
		series = append(series, PricePoint{Timestamp: r.Timestamp, Price: r.Price})
	}
	return series
}

// AveragePoint is one value of a moving-average series.
type AveragePoint struct {
	Timestamp time.Time
	Average   decimal.Decimal
}

// MovingAverageSeries holds trailing averages for one window length.
type MovingAverageSeries []AveragePoint

// Windows are the short and long SMA window lengths.
type Windows struct {
	Short int
	Long  int
}

// DefaultWindows are used when neither configuration nor the request
// supplies window lengths.
var DefaultWindows = Windows{Short: 5, Long: 20}

// Validate checks that both windows are positive and Short < Long.
func (w Windows) Validate() error {
	if w.Short <= 0 || w.Long <= 0 {
		return fmt.Errorf("%w: window lengths must be positive (short=%d, long=%d)", ErrValidation, w.Short, w.Long)
	}
	if w.Short >= w.Long {
		return fmt.Errorf("%w: short window (%d) must be less than long window (%d)", ErrValidation, w.Short, w.Long)
	}
	return nil
}

// Override returns w with any non-zero field of o applied.
func (w Windows) Override(o Windows) Windows {
	if o.Short != 0 {
		w.Short = o.Short
	}
	if o.Long != 0 {
		w.Long = o.Long
	}
	return w
}
