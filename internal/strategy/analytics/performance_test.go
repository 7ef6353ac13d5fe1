package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickerSignal/internal/domain"
)

func seriesOf(prices ...float64) domain.PriceSeries {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make(domain.PriceSeries, len(prices))
	for i, p := range prices {
		series[i] = domain.PricePoint{Timestamp: start.AddDate(0, 0, i), Price: decimal.NewFromFloat(p)}
	}
	return series
}

func TestAnalyzeCrossover_RisingMarket(t *testing.T) {
	prices := make([]float64, 0, 22)
	for p := 105.0; p <= 210; p += 5 {
		prices = append(prices, p)
	}
	series := seriesOf(prices...)

	report, err := AnalyzeCrossover("aapl", series, domain.Windows{Short: 5, Long: 10})
	require.NoError(t, err)

	assert.Equal(t, "AAPL", report.Symbol)
	assert.Equal(t, 5, report.ShortWindow)
	assert.Equal(t, 10, report.LongWindow)
	assert.Equal(t, 22, report.DataPoints)
	assert.True(t, series[0].Timestamp.Equal(report.PeriodStart))
	assert.True(t, series[21].Timestamp.Equal(report.PeriodEnd))

	// Long from index 9: captures 150 -> 210.
	assert.InDelta(t, 0.4, report.FinalValue, 1e-9)
	assert.InDelta(t, 1.0, report.MarketReturn, 1e-9)
	assert.InDelta(t, math.Pow(1.4, 252.0/22.0)-1, report.AnnualizedReturn, 1e-6)
	assert.Equal(t, 0, report.TotalTrades, "a single entry counts as half a trade")
	assert.Greater(t, report.SharpeRatio, 0.0)
	assert.Zero(t, report.MaxDrawdown)

	require.Len(t, report.EquityCurve, 22)
	assert.Equal(t, 0, report.EquityCurve[8].Position)
	assert.Equal(t, 1, report.EquityCurve[9].Position)
	assert.InDelta(t, 1.4, report.EquityCurve[21].Value, 1e-9)
}

func TestAnalyzeCrossover_RoundTripTrades(t *testing.T) {
	// down, up, down: position goes -1 -> +1 -> -1
	series := seriesOf(10, 9, 8, 7, 6, 5, 6, 7, 8, 9, 10, 9, 8, 7, 6)

	report, err := AnalyzeCrossover("X", series, domain.Windows{Short: 2, Long: 4})
	require.NoError(t, err)

	// 0 -> -1 (1), -1 -> +1 (2), +1 -> -1 (2): 5 / 2
	assert.Equal(t, 2, report.TotalTrades)
	assert.Greater(t, report.MaxDrawdown, 0.0)
}

func TestAnalyzeCrossover_ShortWipedOut(t *testing.T) {
	// Short from index 2, then the price more than doubles.
	series := seriesOf(10, 9, 8, 20, 20)

	report, err := AnalyzeCrossover("X", series, domain.Windows{Short: 2, Long: 3})
	require.NoError(t, err)

	assert.Equal(t, -1.0, report.FinalValue, "equity is floored at zero")
	assert.Equal(t, -1.0, report.AnnualizedReturn)
	assert.Equal(t, 1.0, report.MaxDrawdown)
	for _, v := range []float64{report.FinalValue, report.AnnualizedReturn, report.SharpeRatio, report.MaxDrawdown} {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
	for _, p := range report.EquityCurve {
		assert.GreaterOrEqual(t, p.Value, 0.0)
	}
}

func TestAnalyzeCrossover_FlatMarket(t *testing.T) {
	series := seriesOf(50, 50, 50, 50, 50, 50)

	report, err := AnalyzeCrossover("FLAT", series, domain.Windows{Short: 2, Long: 3})
	require.NoError(t, err)

	assert.Zero(t, report.FinalValue)
	assert.Zero(t, report.MarketReturn)
	assert.Zero(t, report.SharpeRatio, "zero variance yields a zero ratio")
	assert.Zero(t, report.TotalTrades)
}

func TestAnalyzeCrossover_Errors(t *testing.T) {
	tests := []struct {
		name    string
		series  domain.PriceSeries
		windows domain.Windows
		wantErr error
	}{
		{name: "insufficient data", series: seriesOf(1, 2, 3), windows: domain.Windows{Short: 2, Long: 4}, wantErr: domain.ErrInsufficientData},
		{name: "invalid windows", series: seriesOf(1, 2, 3, 4, 5), windows: domain.Windows{Short: 4, Long: 2}, wantErr: domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := AnalyzeCrossover("X", tt.series, tt.windows)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, report)
		})
	}
}

func TestSharpe(t *testing.T) {
	assert.Zero(t, sharpe(nil))
	assert.Zero(t, sharpe([]float64{0.1}))
	assert.Zero(t, sharpe([]float64{0.25, 0.25, 0.25}))

	// mean 0.02, sample std 0.01
	got := sharpe([]float64{0.01, 0.02, 0.03})
	assert.InDelta(t, 2*math.Sqrt(252), got, 1e-9)

	assert.Zero(t, sharpe([]float64{math.Inf(1), 0.1}))
}
