package indicators

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"tickerSignal/internal/domain"
)

// MovingAverage is a simple (arithmetic) trailing moving average.
type MovingAverage struct {
	BaseIndicator
	divisor decimal.Decimal
}

// NewMovingAverage creates a simple moving average over period points.
func NewMovingAverage(period int) (*MovingAverage, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: moving average period must be positive, got %d", domain.ErrValidation, period)
	}
	return &MovingAverage{
		BaseIndicator: BaseIndicator{Config: IndicatorConfig{Period: period}},
		divisor:       decimal.NewFromInt(int64(period)),
	}, nil
}

// Name returns the name of the indicator
func (m *MovingAverage) Name() string {
	return fmt.Sprintf("SMA(%d)", m.Config.Period)
}

// Calculate returns the average of the trailing Period prices.
func (m *MovingAverage) Calculate(ctx context.Context, series domain.PriceSeries) (decimal.Decimal, error) {
	if len(series) < m.Config.Period {
		return decimal.Zero, fmt.Errorf("%w: have %d points, %s needs %d",
			domain.ErrInsufficientData, len(series), m.Name(), m.Config.Period)
	}
	total := decimal.Zero
	for _, p := range series[len(series)-m.Config.Period:] {
		total = total.Add(p.Price)
	}
	return total.Div(m.divisor), nil
}

// Series returns the trailing average for every index >= Period-1. Element k
// of the result corresponds to series[k+Period-1].
func (m *MovingAverage) Series(series domain.PriceSeries) (domain.MovingAverageSeries, error) {
	period := m.Config.Period
	if len(series) < period {
		return nil, fmt.Errorf("%w: have %d points, %s needs %d",
			domain.ErrInsufficientData, len(series), m.Name(), period)
	}

	out := make(domain.MovingAverageSeries, 0, len(series)-period+1)
	sum := decimal.Zero
	for i, p := range series {
		sum = sum.Add(p.Price)
		if i >= period {
			sum = sum.Sub(series[i-period].Price)
		}
		if i >= period-1 {
			out = append(out, domain.AveragePoint{Timestamp: p.Timestamp, Average: sum.Div(m.divisor)})
		}
	}
	return out, nil
}

// SMASeries is a shorthand for NewMovingAverage(window).Series(series).
func SMASeries(series domain.PriceSeries, window int) (domain.MovingAverageSeries, error) {
	ma, err := NewMovingAverage(window)
	if err != nil {
		return nil, err
	}
	return ma.Series(series)
}
