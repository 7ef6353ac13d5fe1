package ports

import (
	"context"

	"tickerSignal/internal/domain"
)

// TickerRepository is the Ticker Store: append-only storage of ticker
// records with ordered retrieval.
type TickerRepository interface {
	// Insert validates and appends a single record. Invalid records fail with
	// domain.ErrValidation and nothing is written.
	Insert(ctx context.Context, rec *domain.TickerRecord) error
	// InsertBatch appends all records in one transaction, or none of them.
	// Returns the number of records written.
	InsertBatch(ctx context.Context, recs []*domain.TickerRecord) (int, error)
	// FetchHistory returns records for symbol ascending by timestamp. When
	// limit > 0 only the most recent limit records are returned (still
	// ascending). Unknown symbols yield an empty slice, not an error.
	FetchHistory(ctx context.Context, symbol string, limit int) ([]*domain.TickerRecord, error)
	// ListSymbols returns the distinct stored symbols in alphabetical order.
	ListSymbols(ctx context.Context) ([]string, error)
	// Ping checks connectivity to the underlying database.
	Ping(ctx context.Context) error
	// Close releases the database handle.
	Close() error
}
