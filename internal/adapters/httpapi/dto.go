package httpapi

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tickerSignal/internal/domain"
	"tickerSignal/internal/strategy/analytics"
	"tickerSignal/internal/strategy/optimization"
)

// tickerRequest is the ingestion body. Both the short form
// {symbol, timestamp, price} and the candle form
// {symbol, datetime, open, high, low, close, volume} are accepted.
type tickerRequest struct {
	Symbol    string           `json:"symbol"`
	Timestamp string           `json:"timestamp"`
	Datetime  string           `json:"datetime"`
	Price     *decimal.Decimal `json:"price"`
	Close     *decimal.Decimal `json:"close"`
	Open      *decimal.Decimal `json:"open"`
	High      *decimal.Decimal `json:"high"`
	Low       *decimal.Decimal `json:"low"`
	Volume    *int64           `json:"volume"`
}

// toRecord converts the body into a validated domain record.
func (req tickerRequest) toRecord() (*domain.TickerRecord, error) {
	raw := req.Timestamp
	if raw == "" {
		raw = req.Datetime
	}
	ts, err := domain.ParseTimestamp(raw)
	if err != nil {
		return nil, err
	}

	price := req.Price
	if price == nil {
		price = req.Close
	}
	if price == nil {
		return nil, fmt.Errorf("%w: price is required", domain.ErrValidation)
	}

	var candle *domain.Candle
	if req.Open != nil || req.High != nil || req.Low != nil {
		if req.Open == nil || req.High == nil || req.Low == nil {
			return nil, fmt.Errorf("%w: open, high and low must be supplied together", domain.ErrValidation)
		}
		candle = &domain.Candle{Open: *req.Open, High: *req.High, Low: *req.Low}
		if req.Volume != nil {
			candle.Volume = *req.Volume
		}
	}

	return domain.NewTickerRecord(req.Symbol, ts, *price, candle)
}

type tickerResponse struct {
	ID        int64        `json:"id"`
	Symbol    string       `json:"symbol"`
	Timestamp time.Time    `json:"timestamp"`
	Price     json.Number  `json:"price"`
	Open      *json.Number `json:"open,omitempty"`
	High      *json.Number `json:"high,omitempty"`
	Low       *json.Number `json:"low,omitempty"`
	Volume    *int64       `json:"volume,omitempty"`
}

// number renders a decimal as an exact JSON number.
func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func numberPtr(d decimal.Decimal) *json.Number {
	n := number(d)
	return &n
}

func newTickerResponse(rec *domain.TickerRecord) tickerResponse {
	resp := tickerResponse{
		ID:        rec.ID,
		Symbol:    rec.Symbol,
		Timestamp: rec.Timestamp.UTC(),
		Price:     number(rec.Price),
	}
	if c := rec.Candle; c != nil {
		resp.Open, resp.High, resp.Low = numberPtr(c.Open), numberPtr(c.High), numberPtr(c.Low)
		vol := c.Volume
		resp.Volume = &vol
	}
	return resp
}

func newTickerResponses(recs []*domain.TickerRecord) []tickerResponse {
	out := make([]tickerResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, newTickerResponse(rec))
	}
	return out
}

// signalResponse carries either a signal or, when the history is too short,
// a null signal and a reason.
type signalResponse struct {
	Symbol      string         `json:"symbol"`
	Timestamp   *time.Time     `json:"timestamp"`
	Signal      *domain.Signal `json:"signal"`
	ShortSMA    *json.Number   `json:"shortSMA"`
	LongSMA     *json.Number   `json:"longSMA"`
	ShortWindow int            `json:"short_window"`
	LongWindow  int            `json:"long_window"`
	Reason      string         `json:"reason,omitempty"`
}

func newSignalResponse(r *domain.SignalResult) signalResponse {
	ts := r.Timestamp.UTC()
	sig := r.Signal
	return signalResponse{
		Symbol:      r.Symbol,
		Timestamp:   &ts,
		Signal:      &sig,
		ShortSMA:    numberPtr(r.ShortSMA),
		LongSMA:     numberPtr(r.LongSMA),
		ShortWindow: r.Windows.Short,
		LongWindow:  r.Windows.Long,
	}
}

type tracePoint struct {
	Index     int           `json:"index"`
	Timestamp time.Time     `json:"timestamp"`
	ShortSMA  json.Number   `json:"shortSMA"`
	LongSMA   json.Number   `json:"longSMA"`
	Signal    domain.Signal `json:"signal"`
}

type traceResponse struct {
	Symbol      string       `json:"symbol"`
	ShortWindow int          `json:"short_window"`
	LongWindow  int          `json:"long_window"`
	Points      []tracePoint `json:"points"`
	Reason      string       `json:"reason,omitempty"`
}

func newTracePoints(points []domain.SignalPoint) []tracePoint {
	out := make([]tracePoint, 0, len(points))
	for _, p := range points {
		out = append(out, tracePoint{
			Index:     p.Index,
			Timestamp: p.Timestamp.UTC(),
			ShortSMA:  number(p.ShortSMA),
			LongSMA:   number(p.LongSMA),
			Signal:    p.Signal,
		})
	}
	return out
}

type period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type performanceResponse struct {
	Symbol           string  `json:"symbol"`
	ShortWindow      int     `json:"short_window"`
	LongWindow       int     `json:"long_window"`
	TotalTrades      int     `json:"total_trades"`
	FinalValue       float64 `json:"final_value"`
	MarketReturn     float64 `json:"market_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	DataPoints       int     `json:"data_points"`
	Period           period  `json:"period"`
}

func newPerformanceResponse(r *analytics.PerformanceReport) performanceResponse {
	return performanceResponse{
		Symbol:           r.Symbol,
		ShortWindow:      r.ShortWindow,
		LongWindow:       r.LongWindow,
		TotalTrades:      r.TotalTrades,
		FinalValue:       r.FinalValue,
		MarketReturn:     r.MarketReturn,
		AnnualizedReturn: r.AnnualizedReturn,
		SharpeRatio:      r.SharpeRatio,
		MaxDrawdown:      r.MaxDrawdown,
		DataPoints:       r.DataPoints,
		Period:           period{Start: r.PeriodStart.UTC(), End: r.PeriodEnd.UTC()},
	}
}

type optimizeResult struct {
	ShortWindow int     `json:"short_window"`
	LongWindow  int     `json:"long_window"`
	Score       float64 `json:"score"`
	TotalTrades int     `json:"total_trades"`
	FinalValue  float64 `json:"final_value"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

type optimizeResponse struct {
	Symbol    string           `json:"symbol"`
	Evaluated int              `json:"evaluated"`
	Results   []optimizeResult `json:"results"`
}

func newOptimizeResponse(symbol string, results []optimization.OptimizationResult, top int) optimizeResponse {
	resp := optimizeResponse{Symbol: symbol, Evaluated: len(results), Results: make([]optimizeResult, 0, top)}
	for i, r := range results {
		if i == top {
			break
		}
		resp.Results = append(resp.Results, optimizeResult{
			ShortWindow: r.Windows.Short,
			LongWindow:  r.Windows.Long,
			Score:       r.Score,
			TotalTrades: r.Report.TotalTrades,
			FinalValue:  r.Report.FinalValue,
			SharpeRatio: r.Report.SharpeRatio,
			MaxDrawdown: r.Report.MaxDrawdown,
		})
	}
	return resp
}

type errorResponse struct {
	Detail string `json:"detail"`
}
