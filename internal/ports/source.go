package ports

import (
	"context"
	"time"

	"tickerSignal/internal/domain"
)

// MarketDataSource fetches historical candles from an exchange so they can be
// ingested into the Ticker Store.
type MarketDataSource interface {
	// Ping checks connectivity to the exchange API.
	Ping(ctx context.Context) error
	// GetKlinesRange returns closed candles for symbol between start and end,
	// converted to ticker records (close price as Price).
	GetKlinesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.TickerRecord, error)
}

