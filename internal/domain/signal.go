package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignalPoint is the crossover evaluation at one index of a price series.
type SignalPoint struct {
	Index     int
	Timestamp time.Time
	ShortSMA  decimal.Decimal
	LongSMA   decimal.Decimal
	Signal    Signal
}

// SignalResult is the signal attached to the most recent point of a
// symbol's history.
type SignalResult struct {
	Symbol    string
	Timestamp time.Time
	Signal    Signal
	ShortSMA  decimal.Decimal
	LongSMA   decimal.Decimal
	Windows   Windows
}
