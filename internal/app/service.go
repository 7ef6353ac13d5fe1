package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"tickerSignal/internal/domain"
	"tickerSignal/internal/ports"
	"tickerSignal/internal/strategy"
	"tickerSignal/internal/strategy/analytics"
	"tickerSignal/internal/strategy/optimization"
	"tickerSignal/internal/utils"
)

// SignalService wires the Ticker Store to the crossover engine. Every call
// builds its own price series from the store, so the service is safe for
// concurrent use.
type SignalService struct {
	defaults  domain.Windows
	logger    ports.Logger
	repo      ports.TickerRepository
	publisher ports.SignalPublisher
	metrics   ports.MetricsRecorder
}

// NewSignalService creates a new application service instance. publisher and
// metrics are optional.
func NewSignalService(
	defaults domain.Windows,
	logger ports.Logger,
	repo ports.TickerRepository,
	publisher ports.SignalPublisher,
	metrics ports.MetricsRecorder,
) (*SignalService, error) {
	if logger == nil || repo == nil {
		return nil, fmt.Errorf("missing required dependencies for SignalService")
	}
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid default windows: %w", err)
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &SignalService{
		defaults:  defaults,
		logger:    logger,
		repo:      repo,
		publisher: publisher,
		metrics:   metrics,
	}, nil
}

// DefaultWindows returns the windows used when a request supplies none.
func (s *SignalService) DefaultWindows() domain.Windows {
	return s.defaults
}

// Ping reports whether the Ticker Store is reachable.
func (s *SignalService) Ping(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		s.storeFailed(ctx, "ping", err)
		return err
	}
	return nil
}

// Ingest stores a single record.
func (s *SignalService) Ingest(ctx context.Context, rec *domain.TickerRecord) error {
	if err := s.repo.Insert(ctx, rec); err != nil {
		s.storeFailed(ctx, "insert", err)
		return err
	}
	s.metrics.TicksIngested(rec.Symbol, 1)
	return nil
}

// IngestBatch stores all records or none of them.
func (s *SignalService) IngestBatch(ctx context.Context, recs []*domain.TickerRecord) (int, error) {
	if len(recs) == 0 {
		return 0, fmt.Errorf("%w: batch is empty", domain.ErrValidation)
	}
	n, err := s.repo.InsertBatch(ctx, recs)
	if err != nil {
		s.storeFailed(ctx, "insert_batch", err)
		return 0, err
	}

	perSymbol := make(map[string]int)
	for _, rec := range recs {
		perSymbol[rec.Symbol]++
	}
	for symbol, count := range perSymbol {
		s.metrics.TicksIngested(symbol, count)
	}
	s.logger.Info(ctx, "Ticker batch ingested", map[string]interface{}{"count": n, "symbols": len(perSymbol)})
	return n, nil
}

// History returns stored records for symbol, ascending by timestamp. A limit
// of 0 returns the whole history.
func (s *SignalService) History(ctx context.Context, symbol string, limit int) ([]*domain.TickerRecord, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", domain.ErrValidation)
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative, got %d", domain.ErrValidation, limit)
	}
	records, err := s.repo.FetchHistory(ctx, symbol, limit)
	if err != nil {
		s.storeFailed(ctx, "fetch_history", err)
		return nil, err
	}
	return records, nil
}

// Symbols lists every symbol with stored data.
func (s *SignalService) Symbols(ctx context.Context) ([]string, error) {
	symbols, err := s.repo.ListSymbols(ctx)
	if err != nil {
		s.storeFailed(ctx, "list_symbols", err)
		return nil, err
	}
	return symbols, nil
}

func (s *SignalService) engine(override domain.Windows) (*strategy.Crossover, error) {
	return strategy.New(s.defaults.Override(override), s.logger)
}

// Signal computes the crossover signal at the most recent stored point for
// symbol. Zero fields of override fall back to the service defaults. Fewer
// than Long stored points yields domain.ErrInsufficientData.
func (s *SignalService) Signal(ctx context.Context, symbol string, override domain.Windows) (*domain.SignalResult, error) {
	engine, err := s.engine(override)
	if err != nil {
		return nil, err
	}
	windows := engine.Windows()

	// Long+1 points cover the current and the previous long SMA.
	records, err := s.History(ctx, symbol, windows.Long+1)
	if err != nil {
		return nil, err
	}

	result, err := engine.Evaluate(ctx, symbol, domain.SeriesFromRecords(records))
	if err != nil {
		return nil, err
	}
	s.metrics.SignalComputed(result.Symbol, result.Signal)

	if s.publisher != nil {
		if err := s.publisher.PublishSignal(ctx, result); err != nil {
			s.logger.Warn(ctx, "Failed to publish signal", map[string]interface{}{
				"symbol": result.Symbol,
				"signal": string(result.Signal),
				"error":  err.Error(),
			})
		}
	}
	return result, nil
}

// SignalTrace evaluates the crossover over the whole stored history.
func (s *SignalService) SignalTrace(ctx context.Context, symbol string, override domain.Windows) ([]domain.SignalPoint, error) {
	engine, err := s.engine(override)
	if err != nil {
		return nil, err
	}
	records, err := s.History(ctx, symbol, 0)
	if err != nil {
		return nil, err
	}
	return engine.Trace(ctx, domain.SeriesFromRecords(records))
}

// Performance backtests the crossover over the whole stored history.
func (s *SignalService) Performance(ctx context.Context, symbol string, override domain.Windows) (*analytics.PerformanceReport, error) {
	windows := s.defaults.Override(override)
	if err := windows.Validate(); err != nil {
		return nil, err
	}
	records, err := s.History(ctx, symbol, 0)
	if err != nil {
		return nil, err
	}
	report, err := analytics.AnalyzeCrossover(symbol, domain.SeriesFromRecords(records), windows)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "Performance summary computed", map[string]interface{}{
		"symbol":      report.Symbol,
		"totalTrades": report.TotalTrades,
		"finalValue":  report.FinalValue,
		"sharpe":      report.SharpeRatio,
	})
	return report, nil
}

// OptimizeWindows backtests every window pair in the given ranges over the
// symbol's stored history and returns the results best first.
func (s *SignalService) OptimizeWindows(ctx context.Context, symbol string, short, long optimization.ParameterRange) ([]optimization.OptimizationResult, error) {
	opt, err := optimization.NewOptimizer(optimization.OptimizerConfig{Short: short, Long: long})
	if err != nil {
		return nil, err
	}
	records, err := s.History(ctx, symbol, 0)
	if err != nil {
		return nil, err
	}
	results, err := opt.Optimize(ctx, symbol, domain.SeriesFromRecords(records))
	if err != nil {
		return nil, err
	}
	best := results[0]
	s.logger.Info(ctx, "Window optimization finished", map[string]interface{}{
		"symbol":    domain.NormalizeSymbol(symbol),
		"evaluated": len(results),
		"bestShort": best.Windows.Short,
		"bestLong":  best.Windows.Long,
		"bestScore": best.Score,
	})
	return results, nil
}

// ImportCSV parses a CSV document and ingests it as a single batch.
func (s *SignalService) ImportCSV(ctx context.Context, r io.Reader, defaultSymbol string) (int, error) {
	records, err := utils.ReadTickersFromCSV(r, defaultSymbol)
	if err != nil {
		return 0, err
	}
	n, err := s.IngestBatch(ctx, records)
	if err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "CSV import finished", map[string]interface{}{"records": n})
	return n, nil
}

// ImportFromSource pulls candles for symbol from an exchange and ingests
// their close prices.
func (s *SignalService) ImportFromSource(ctx context.Context, src ports.MarketDataSource, symbol, interval string, start, end time.Time) (int, error) {
	if !start.Before(end) {
		return 0, fmt.Errorf("%w: start %s must be before end %s", domain.ErrValidation, start, end)
	}
	records, err := src.GetKlinesRange(ctx, domain.NormalizeSymbol(symbol), interval, start, end)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch candles for %s: %w", symbol, err)
	}
	if len(records) == 0 {
		s.logger.Warn(ctx, "Market data source returned no candles", map[string]interface{}{"symbol": symbol, "interval": interval})
		return 0, nil
	}
	return s.IngestBatch(ctx, records)
}

func (s *SignalService) storeFailed(ctx context.Context, operation string, err error) {
	if errors.Is(err, ports.ErrStore) {
		s.metrics.StoreError(operation)
		s.logger.Error(ctx, err, "Ticker store operation failed", map[string]interface{}{"operation": operation})
	}
}

type nopMetrics struct{}

func (nopMetrics) TicksIngested(string, int)            {}
func (nopMetrics) SignalComputed(string, domain.Signal) {}
func (nopMetrics) StoreError(string)                    {}
