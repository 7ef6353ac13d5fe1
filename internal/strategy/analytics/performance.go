package analytics

import (
	"fmt"
	"math"
	"time"

	"tickerSignal/internal/domain"
	"tickerSignal/internal/strategy/indicators"
)

// TradingDaysPerYear annualizes per-point returns.
const TradingDaysPerYear = 252

// PerformanceReport summarizes how a single SMA crossover strategy would have
// performed over a symbol's stored history.
type PerformanceReport struct {
	Symbol           string
	ShortWindow      int
	LongWindow       int
	TotalTrades      int     // position changes / 2
	FinalValue       float64 // cumulative strategy return
	MarketReturn     float64 // buy-and-hold return over the same period
	AnnualizedReturn float64
	SharpeRatio      float64
	MaxDrawdown      float64 // deepest peak-to-trough fall of the strategy equity curve
	DataPoints       int
	PeriodStart      time.Time
	PeriodEnd        time.Time
	EquityCurve      []EquityPoint
}

// EquityPoint represents a point on the strategy equity curve (1.0 = start).
type EquityPoint struct {
	Time     time.Time
	Value    float64
	Position int
	Drawdown float64
}

// positions returns +1 where short > long, -1 where short < long and 0 where
// they are equal or the long window has not filled yet.
func positions(series domain.PriceSeries, windows domain.Windows) ([]int, error) {
	short, err := indicators.SMASeries(series, windows.Short)
	if err != nil {
		return nil, err
	}
	long, err := indicators.SMASeries(series, windows.Long)
	if err != nil {
		return nil, err
	}

	pos := make([]int, len(series))
	offset := windows.Long - windows.Short
	for k := range long {
		pos[k+windows.Long-1] = short[k+offset].Average.Cmp(long[k].Average)
	}
	return pos, nil
}

// AnalyzeCrossover backtests the position implied by the crossover at each
// point: the position held over (i-1, i] is the one decided at i-1.
func AnalyzeCrossover(symbol string, series domain.PriceSeries, windows domain.Windows) (*PerformanceReport, error) {
	if err := windows.Validate(); err != nil {
		return nil, err
	}
	if len(series) < windows.Long {
		return nil, fmt.Errorf("%w: have %d points, need at least %d", domain.ErrInsufficientData, len(series), windows.Long)
	}

	pos, err := positions(series, windows)
	if err != nil {
		return nil, err
	}

	n := len(series)
	report := &PerformanceReport{
		Symbol:      domain.NormalizeSymbol(symbol),
		ShortWindow: windows.Short,
		LongWindow:  windows.Long,
		DataPoints:  n,
		PeriodStart: series[0].Timestamp,
		PeriodEnd:   series[n-1].Timestamp,
		EquityCurve: make([]EquityPoint, 0, n),
	}

	equity, peak := 1.0, 1.0
	changes := 0
	stratReturns := make([]float64, 0, n-1)
	report.EquityCurve = append(report.EquityCurve, EquityPoint{Time: series[0].Timestamp, Value: equity, Position: pos[0]})

	for i := 1; i < n; i++ {
		prev := series[i-1].Price.InexactFloat64()
		curr := series[i].Price.InexactFloat64()
		ret := curr/prev - 1

		r := float64(pos[i-1]) * ret
		stratReturns = append(stratReturns, r)
		equity *= 1 + r
		if equity < 0 {
			// A short can lose more than the stake; the account is wiped out.
			equity = 0
		}

		if equity > peak {
			peak = equity
		}
		drawdown := (peak - equity) / peak
		if drawdown > report.MaxDrawdown {
			report.MaxDrawdown = drawdown
		}
		changes += abs(pos[i] - pos[i-1])

		report.EquityCurve = append(report.EquityCurve, EquityPoint{
			Time:     series[i].Timestamp,
			Value:    equity,
			Position: pos[i],
			Drawdown: drawdown,
		})
	}

	report.TotalTrades = changes / 2
	report.FinalValue = equity - 1
	report.MarketReturn = series[n-1].Price.InexactFloat64()/series[0].Price.InexactFloat64() - 1
	if report.FinalValue <= -1 {
		report.AnnualizedReturn = -1
	} else {
		report.AnnualizedReturn = math.Pow(1+report.FinalValue, float64(TradingDaysPerYear)/float64(n)) - 1
	}
	report.SharpeRatio = sharpe(stratReturns)
	return report, nil
}

// sharpe is mean/sample-stddev scaled to a year. It is 0 when the ratio is
// undefined (fewer than two returns, no variance or a non-finite result).
func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sq float64
	for _, r := range returns {
		sq += (r - mean) * (r - mean)
	}
	std := math.Sqrt(sq / float64(len(returns)-1))
	if std == 0 {
		return 0
	}
	ratio := mean / std * math.Sqrt(TradingDaysPerYear)
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return 0
	}
	return ratio
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
