package optimization

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tickerSignal/internal/domain"
	"tickerSignal/internal/strategy/analytics"
)

const (
	// MaxWindow bounds the window lengths a sweep may try.
	MaxWindow = 1000
	// MaxCombinations bounds the size of the short x long grid.
	MaxCombinations = 10000
)

// ParameterRange defines an inclusive integer range for a window length.
type ParameterRange struct {
	Min  int
	Max  int
	Step int
}

func (r ParameterRange) validate(name string) error {
	if r.Min <= 0 || r.Max < r.Min {
		return fmt.Errorf("%w: invalid %s window range %d..%d", domain.ErrValidation, name, r.Min, r.Max)
	}
	if r.Max > MaxWindow {
		return fmt.Errorf("%w: %s window range %d..%d exceeds %d", domain.ErrValidation, name, r.Min, r.Max, MaxWindow)
	}
	return nil
}

func (r ParameterRange) values() []int {
	step := r.Step
	if step <= 0 {
		step = 1
	}
	var out []int
	for v := r.Min; v <= r.Max; v += step {
		out = append(out, v)
		if r.Max-v < step {
			break
		}
	}
	return out
}

// OptimizationResult holds the backtest of a single window pair.
type OptimizationResult struct {
	Windows domain.Windows
	Report  *analytics.PerformanceReport
	Score   float64
}

// OptimizerConfig holds configuration for the optimizer
type OptimizerConfig struct {
	Short         ParameterRange
	Long          ParameterRange
	Workers       int // default 4
	ScoreFunction func(*analytics.PerformanceReport) float64
}

// Optimizer searches SMA window pairs for the best backtest score.
type Optimizer struct {
	config OptimizerConfig
}

// NewOptimizer creates a new optimizer instance
func NewOptimizer(config OptimizerConfig) (*Optimizer, error) {
	if err := config.Short.validate("short"); err != nil {
		return nil, err
	}
	if err := config.Long.validate("long"); err != nil {
		return nil, err
	}
	if grid := len(config.Short.values()) * len(config.Long.values()); grid > MaxCombinations {
		return nil, fmt.Errorf("%w: %d window pairs requested, at most %d allowed", domain.ErrValidation, grid, MaxCombinations)
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.ScoreFunction == nil {
		config.ScoreFunction = DefaultScoreFunction
	}
	return &Optimizer{config: config}, nil
}

// Combinations returns every valid (short < long) window pair in the ranges.
func (o *Optimizer) Combinations() []domain.Windows {
	var combos []domain.Windows
	for _, s := range o.config.Short.values() {
		for _, l := range o.config.Long.values() {
			w := domain.Windows{Short: s, Long: l}
			if w.Validate() == nil {
				combos = append(combos, w)
			}
		}
	}
	return combos
}

// Optimize backtests every window pair over series and returns the results
// sorted by score, best first. Pairs whose long window exceeds the series are
// skipped. ErrInsufficientData is returned when no pair could be evaluated.
func (o *Optimizer) Optimize(ctx context.Context, symbol string, series domain.PriceSeries) ([]OptimizationResult, error) {
	combos := o.Combinations()
	if len(combos) == 0 {
		return nil, fmt.Errorf("%w: no window pair with short < long in the given ranges", domain.ErrValidation)
	}

	jobs := make(chan domain.Windows)
	resultChan := make(chan OptimizationResult, len(combos))
	var wg sync.WaitGroup

	for i := 0; i < o.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range jobs {
				report, err := analytics.AnalyzeCrossover(symbol, series, w)
				if err != nil {
					continue
				}
				resultChan <- OptimizationResult{Windows: w, Report: report, Score: o.config.ScoreFunction(report)}
			}
		}()
	}

feed:
	for _, w := range combos {
		select {
		case jobs <- w:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(resultChan)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]OptimizationResult, 0, len(combos))
	for r := range resultChan {
		results = append(results, r)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: have %d points, every window pair needs more", domain.ErrInsufficientData, len(series))
	}
	sortResultsByScore(results)
	return results, nil
}

// sortResultsByScore orders by score descending, then by windows so equal
// scores are deterministic.
func sortResultsByScore(results []OptimizationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Windows.Short != results[j].Windows.Short {
			return results[i].Windows.Short < results[j].Windows.Short
		}
		return results[i].Windows.Long < results[j].Windows.Long
	})
}

// DefaultScoreFunction ranks by Sharpe ratio, penalized by drawdown.
func DefaultScoreFunction(report *analytics.PerformanceReport) float64 {
	return report.SharpeRatio - report.MaxDrawdown
}
