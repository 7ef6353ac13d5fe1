package indicators

import (
	"context"

	"github.com/shopspring/decimal"

	"tickerSignal/internal/domain"
)

// Indicator represents a technical indicator that can be calculated from a price series
type Indicator interface {
	// Calculate computes the indicator value at the last point of the series
	Calculate(ctx context.Context, series domain.PriceSeries) (decimal.Decimal, error)

	// Series computes the indicator at every point that has enough history
	Series(series domain.PriceSeries) (domain.MovingAverageSeries, error)

	// RequiredDataPoints returns the minimum number of points needed for calculation
	RequiredDataPoints() int

	// Name returns the name of the indicator
	Name() string
}

// IndicatorConfig holds common configuration for indicators
type IndicatorConfig struct {
	Period int
}

// BaseIndicator provides common functionality for indicators
type BaseIndicator struct {
	Config IndicatorConfig
}

// RequiredDataPoints returns the minimum number of points needed for calculation
func (b *BaseIndicator) RequiredDataPoints() int {
	return b.Config.Period
}
