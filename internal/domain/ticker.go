package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Timestamps must be representable as int64 nanoseconds since the Unix
// epoch (1677-09-21 to 2262-04-11 UTC), the resolution the stores keep.
var (
	MinTimestamp = time.Unix(0, math.MinInt64).UTC()
	MaxTimestamp = time.Unix(0, math.MaxInt64).UTC()
)

// Candle holds the optional OHLCV detail of a ticker observation.
// The close price is carried by TickerRecord.Price.
type Candle struct {
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Volume int64
}

// TickerRecord is a single stored price observation for a symbol.
// Records are immutable once stored.
type TickerRecord struct {
	ID        int64           // Storage identifier (0 until stored)
	Symbol    string          // Instrument symbol, upper-cased (e.g., "AAPL")
	Timestamp time.Time       // Observation time, stored in UTC
	Price     decimal.Decimal // Close price, always > 0
	Candle    *Candle         // Optional OHLCV detail, nil when not supplied
}

// NewTickerRecord builds a validated record. Symbol is normalized and the
// timestamp is converted to UTC.
func NewTickerRecord(symbol string, ts time.Time, price decimal.Decimal, candle *Candle) (*TickerRecord, error) {
	rec := &TickerRecord{
		Symbol:    NormalizeSymbol(symbol),
		Timestamp: ts.UTC(),
		Price:     price,
		Candle:    candle,
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Validate checks the record invariants. It is also called by the
// repositories before any write.
func (r *TickerRecord) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: record is nil", ErrValidation)
	}
	if NormalizeSymbol(r.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", ErrValidation)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrValidation)
	}
	if r.Timestamp.Before(MinTimestamp) || r.Timestamp.After(MaxTimestamp) {
		return fmt.Errorf("%w: timestamp %s outside supported range %s to %s", ErrValidation,
			r.Timestamp.Format(time.RFC3339), MinTimestamp.Format(time.RFC3339), MaxTimestamp.Format(time.RFC3339))
	}
	if !r.Price.IsPositive() {
		return fmt.Errorf("%w: price must be greater than 0, got %s", ErrValidation, r.Price)
	}
	if r.Candle != nil {
		return r.Candle.validate()
	}
	return nil
}

func (c *Candle) validate() error {
	if !c.Open.IsPositive() || !c.High.IsPositive() || !c.Low.IsPositive() {
		return fmt.Errorf("%w: open, high and low must be greater than 0", ErrValidation)
	}
	if c.High.LessThan(c.Low) {
		return fmt.Errorf("%w: high must be greater than or equal to low", ErrValidation)
	}
	if c.High.LessThan(c.Open) {
		return fmt.Errorf("%w: high must be greater than or equal to open", ErrValidation)
	}
	if c.Low.GreaterThan(c.Open) {
		return fmt.Errorf("%w: low must be less than or equal to open", ErrValidation)
	}
	if c.Volume < 0 {
		return fmt.Errorf("%w: volume cannot be negative", ErrValidation)
	}
	return nil
}

// NormalizeSymbol trims and upper-cases a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// timestampLayouts are tried in order by ParseTimestamp. Layouts without a
// zone are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp formats accepted on ingestion
// (RFC 3339, ISO 8601 without zone, "YYYY-MM-DD HH:MM:SS", plain dates).
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: timestamp is required", ErrValidation)
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized timestamp %q", ErrValidation, value)
}
