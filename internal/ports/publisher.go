package ports

import (
	"context"

	"tickerSignal/internal/domain"
)

// SignalPublisher fans computed signals out to downstream consumers.
// Publishing is best-effort: callers log failures and carry on.
type SignalPublisher interface {
	PublishSignal(ctx context.Context, result *domain.SignalResult) error
	Close() error
}

// MetricsRecorder receives service counters.
type MetricsRecorder interface {
	TicksIngested(symbol string, n int)
	SignalComputed(symbol string, signal domain.Signal)
	StoreError(operation string)
}
