package strategy

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"tickerSignal/internal/domain"
	"tickerSignal/internal/ports"
	"tickerSignal/internal/strategy/indicators"
)

// Crossover derives BUY/SELL/HOLD signals from the relative position of a
// short and a long simple moving average. It holds no per-request state and
// is safe for concurrent use.
type Crossover struct {
	windows domain.Windows
	short   indicators.Indicator
	long    indicators.Indicator
	logger  ports.Logger
}

// New creates a new Crossover engine for the given windows.
func New(windows domain.Windows, logger ports.Logger) (*Crossover, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	if err := windows.Validate(); err != nil {
		return nil, err
	}
	short, err := indicators.NewMovingAverage(windows.Short)
	if err != nil {
		return nil, err
	}
	long, err := indicators.NewMovingAverage(windows.Long)
	if err != nil {
		return nil, err
	}
	return &Crossover{windows: windows, short: short, long: long, logger: logger}, nil
}

// Windows returns the configured SMA windows.
func (c *Crossover) Windows() domain.Windows {
	return c.windows
}

// RequiredDataPoints returns the minimum series length for a signal.
func (c *Crossover) RequiredDataPoints() int {
	return c.long.RequiredDataPoints()
}

// classify compares the SMA difference at two consecutive indices.
// Zero is compared exactly: prices are exact decimals.
func classify(prevShort, prevLong, currShort, currLong decimal.Decimal) domain.Signal {
	prev := prevShort.Sub(prevLong).Sign()
	curr := currShort.Sub(currLong).Sign()
	switch {
	case prev <= 0 && curr > 0:
		return domain.SignalBuy
	case prev >= 0 && curr < 0:
		return domain.SignalSell
	default:
		return domain.SignalHold
	}
}

// Trace evaluates the crossover at every index from Long-1 to the end of the
// series. The first traced point is always HOLD since it has no predecessor.
func (c *Crossover) Trace(ctx context.Context, series domain.PriceSeries) ([]domain.SignalPoint, error) {
	if len(series) < c.windows.Long {
		return nil, fmt.Errorf("%w: have %d points, need %d", domain.ErrInsufficientData, len(series), c.windows.Long)
	}

	short, err := c.short.Series(series)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate %s: %w", c.short.Name(), err)
	}
	long, err := c.long.Series(series)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate %s: %w", c.long.Name(), err)
	}

	// short[k] belongs to series index k+Short-1, long[k] to k+Long-1.
	offset := c.windows.Long - c.windows.Short
	points := make([]domain.SignalPoint, 0, len(long))
	for k := range long {
		i := k + c.windows.Long - 1
		p := domain.SignalPoint{
			Index:     i,
			Timestamp: series[i].Timestamp,
			ShortSMA:  short[k+offset].Average,
			LongSMA:   long[k].Average,
			Signal:    domain.SignalHold,
		}
		if k > 0 {
			p.Signal = classify(short[k+offset-1].Average, long[k-1].Average, p.ShortSMA, p.LongSMA)
		}
		points = append(points, p)
	}
	return points, nil
}

// Evaluate returns the signal at the most recent point of the series.
func (c *Crossover) Evaluate(ctx context.Context, symbol string, series domain.PriceSeries) (*domain.SignalResult, error) {
	points, err := c.Trace(ctx, series)
	if err != nil {
		c.logger.Debug(ctx, "Not enough price data for crossover evaluation",
			map[string]interface{}{"symbol": symbol, "available": len(series), "required": c.windows.Long})
		return nil, err
	}

	last := points[len(points)-1]
	result := &domain.SignalResult{
		Symbol:    domain.NormalizeSymbol(symbol),
		Timestamp: last.Timestamp,
		Signal:    last.Signal,
		ShortSMA:  last.ShortSMA,
		LongSMA:   last.LongSMA,
		Windows:   c.windows,
	}

	fields := map[string]interface{}{
		"symbol":   result.Symbol,
		"signal":   string(result.Signal),
		"shortSMA": result.ShortSMA.String(),
		"longSMA":  result.LongSMA.String(),
		"short":    c.windows.Short,
		"long":     c.windows.Long,
	}
	if result.Signal != domain.SignalHold {
		c.logger.Info(ctx, "Crossover detected", fields)
	} else {
		c.logger.Debug(ctx, "No crossover at latest point", fields)
	}
	return result, nil
}
