package optimization

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickerSignal/internal/domain"
	"tickerSignal/internal/strategy/analytics"
)

// waveSeries builds n points of a slow sine wave around 100.
func waveSeries(n int) domain.PriceSeries {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make(domain.PriceSeries, n)
	for i := range series {
		p := 100 + 10*math.Sin(float64(i)/6)
		series[i] = domain.PricePoint{Timestamp: start.AddDate(0, 0, i), Price: decimal.NewFromFloat(p).Round(4)}
	}
	return series
}

func TestNewOptimizer_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  OptimizerConfig
		wantErr bool
	}{
		{"valid", OptimizerConfig{Short: ParameterRange{Min: 2, Max: 4}, Long: ParameterRange{Min: 5, Max: 10}}, false},
		{"zero short min", OptimizerConfig{Short: ParameterRange{Min: 0, Max: 4}, Long: ParameterRange{Min: 5, Max: 10}}, true},
		{"inverted long range", OptimizerConfig{Short: ParameterRange{Min: 2, Max: 4}, Long: ParameterRange{Min: 10, Max: 5}}, true},
		{"long max above limit", OptimizerConfig{Short: ParameterRange{Min: 2, Max: 4}, Long: ParameterRange{Min: 5, Max: MaxWindow + 1}}, true},
		{"long range near MaxInt", OptimizerConfig{Short: ParameterRange{Min: 2, Max: 4}, Long: ParameterRange{Min: math.MaxInt - 1, Max: math.MaxInt, Step: 5}}, true},
		{"grid too large", OptimizerConfig{Short: ParameterRange{Min: 1, Max: 200}, Long: ParameterRange{Min: 2, Max: 1000}}, true},
		{"short max at limit", OptimizerConfig{Short: ParameterRange{Min: 2, Max: MaxWindow}, Long: ParameterRange{Min: 5, Max: 10}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOptimizer(tt.config)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCombinations_SkipsShortNotBelowLong(t *testing.T) {
	o, err := NewOptimizer(OptimizerConfig{
		Short: ParameterRange{Min: 3, Max: 5},
		Long:  ParameterRange{Min: 4, Max: 6},
	})
	require.NoError(t, err)

	combos := o.Combinations()
	assert.Equal(t, []domain.Windows{
		{Short: 3, Long: 4}, {Short: 3, Long: 5}, {Short: 3, Long: 6},
		{Short: 4, Long: 5}, {Short: 4, Long: 6},
		{Short: 5, Long: 6},
	}, combos)
}

func TestParameterRange_ValuesStopAtMax(t *testing.T) {
	tests := []struct {
		name string
		r    ParameterRange
		want []int
	}{
		{"unit step", ParameterRange{Min: 3, Max: 5}, []int{3, 4, 5}},
		{"step past max", ParameterRange{Min: 3, Max: 10, Step: 4}, []int{3, 7}},
		{"huge step", ParameterRange{Min: 1, Max: 5, Step: math.MaxInt}, []int{1}},
		{"range ending at MaxInt", ParameterRange{Min: math.MaxInt - 1, Max: math.MaxInt, Step: 5}, []int{math.MaxInt - 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.values())
		})
	}
}

func TestCombinations_Step(t *testing.T) {
	o, err := NewOptimizer(OptimizerConfig{
		Short: ParameterRange{Min: 2, Max: 6, Step: 2},
		Long:  ParameterRange{Min: 10, Max: 20, Step: 10},
	})
	require.NoError(t, err)
	assert.Len(t, o.Combinations(), 6)
}

func TestOptimize_SortedByScore(t *testing.T) {
	o, err := NewOptimizer(OptimizerConfig{
		Short:   ParameterRange{Min: 2, Max: 5},
		Long:    ParameterRange{Min: 8, Max: 12, Step: 2},
		Workers: 3,
	})
	require.NoError(t, err)

	results, err := o.Optimize(context.Background(), "wave", waveSeries(120))
	require.NoError(t, err)
	require.Len(t, results, len(o.Combinations()))

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	for _, r := range results {
		assert.Equal(t, "WAVE", r.Report.Symbol)
		assert.Equal(t, r.Windows.Short, r.Report.ShortWindow)
		assert.InDelta(t, DefaultScoreFunction(r.Report), r.Score, 1e-12)
	}
}

func TestOptimize_SkipsPairsLongerThanSeries(t *testing.T) {
	o, err := NewOptimizer(OptimizerConfig{
		Short: ParameterRange{Min: 2, Max: 2},
		Long:  ParameterRange{Min: 5, Max: 50, Step: 45},
	})
	require.NoError(t, err)

	results, err := o.Optimize(context.Background(), "WAVE", waveSeries(20))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.Windows{Short: 2, Long: 5}, results[0].Windows)
}

func TestOptimize_InsufficientData(t *testing.T) {
	o, err := NewOptimizer(OptimizerConfig{
		Short: ParameterRange{Min: 2, Max: 3},
		Long:  ParameterRange{Min: 30, Max: 40},
	})
	require.NoError(t, err)

	_, err = o.Optimize(context.Background(), "WAVE", waveSeries(10))
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestOptimize_CustomScore(t *testing.T) {
	o, err := NewOptimizer(OptimizerConfig{
		Short: ParameterRange{Min: 2, Max: 3},
		Long:  ParameterRange{Min: 6, Max: 7},
		ScoreFunction: func(r *analytics.PerformanceReport) float64 {
			return -float64(r.LongWindow*10 + r.ShortWindow)
		},
	})
	require.NoError(t, err)

	results, err := o.Optimize(context.Background(), "WAVE", waveSeries(60))
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, domain.Windows{Short: 2, Long: 6}, results[0].Windows)
	assert.Equal(t, domain.Windows{Short: 3, Long: 7}, results[3].Windows)
}

func TestOptimize_Canceled(t *testing.T) {
	o, err := NewOptimizer(OptimizerConfig{
		Short: ParameterRange{Min: 2, Max: 5},
		Long:  ParameterRange{Min: 8, Max: 12},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = o.Optimize(ctx, "WAVE", waveSeries(50))
	assert.ErrorIs(t, err, context.Canceled)
}
