package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"tickerSignal/internal/domain"
	"tickerSignal/internal/ports"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	// maxKlinesPerRequest is the largest page the klines endpoint serves.
	maxKlinesPerRequest = 1500
)

// Client implements ports.MarketDataSource using the go-binance futures API.
// Only public market data endpoints are used.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger
	now           func() time.Time
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Logger     ports.Logger
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
	} else {
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance market data client configured",
		map[string]interface{}{"baseURL": client.BaseURL, "testnet": cfg.UseTestnet})

	return &Client{futuresClient: client, logger: cfg.Logger, now: time.Now}, nil
}

// handleError translates Binance API and transport errors into ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation}

	var mappedErr error
	var apiErr *common.APIError
	switch {
	case errors.As(err, &apiErr):
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp outside of recvWindow
			mappedErr = ports.ErrTimeout
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1120, -1121, -1130: // Parameter errors
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrSourceUnavailable
		}
	case errors.Is(err, context.DeadlineExceeded):
		mappedErr = ports.ErrTimeout
	case errors.Is(err, context.Canceled):
		mappedErr = ports.ErrContextCanceled
	case strings.Contains(err.Error(), "use of closed network connection"),
		strings.Contains(err.Error(), "connection refused"),
		strings.Contains(err.Error(), "connection reset by peer"),
		strings.Contains(err.Error(), "no such host"):
		mappedErr = ports.ErrConnectionFailed
	default:
		mappedErr = ports.ErrUnknown
	}

	c.logger.Error(ctx, err, operation+" failed", fields)
	return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	if err := c.futuresClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// GetKlinesRange fetches all closed klines for a symbol/interval between start
// and end, paging until the range is exhausted. A kline whose close time lies
// after end or in the future is still forming and is skipped.
func (c *Client) GetKlinesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.TickerRecord, error) {
	op := "GetKlinesRange"
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" || interval == "" {
		return nil, fmt.Errorf("%s: %w: symbol and interval are required", op, ports.ErrInvalidRequest)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("%s: %w: end must be after start", op, ports.ErrInvalidRequest)
	}

	cutoff := end
	if now := c.now(); now.Before(cutoff) {
		cutoff = now
	}

	var records []*domain.TickerRecord
	var skipped int
	from := start
	for {
		klines, err := c.futuresClient.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(from.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(maxKlinesPerRequest).
			Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(klines) == 0 {
			break
		}
		for _, bk := range klines {
			if bk != nil && time.UnixMilli(bk.CloseTime).After(cutoff) {
				skipped++
				continue
			}
			rec, err := translateBinanceKline(bk, symbol)
			if err != nil {
				return nil, c.handleError(ctx, fmt.Errorf("failed to translate historical kline: %w", err), op)
			}
			records = append(records, rec)
		}
		// Next page starts just after the last close.
		from = time.UnixMilli(klines[len(klines)-1].CloseTime + 1)
		if from.After(cutoff) || len(klines) < maxKlinesPerRequest {
			break
		}
	}

	c.logger.Debug(ctx, "Fetched klines", map[string]interface{}{
		"symbol": symbol, "interval": interval, "count": len(records), "skippedOpen": skipped,
	})
	return records, nil
}

// translateBinanceKline converts a historical kline into a ticker record
// stamped at its close time. Fractional volume is truncated.
func translateBinanceKline(bk *futures.Kline, symbol string) (*domain.TickerRecord, error) {
	if bk == nil {
		return nil, errors.New("received nil historical kline")
	}
	parse := func(name, value string) (decimal.Decimal, error) {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parsing %s '%s': %w", name, value, err)
		}
		return d, nil
	}

	open, err := parse("open price", bk.Open)
	if err != nil {
		return nil, err
	}
	high, err := parse("high price", bk.High)
	if err != nil {
		return nil, err
	}
	low, err := parse("low price", bk.Low)
	if err != nil {
		return nil, err
	}
	cls, err := parse("close price", bk.Close)
	if err != nil {
		return nil, err
	}
	vol, err := parse("volume", bk.Volume)
	if err != nil {
		return nil, err
	}

	return domain.NewTickerRecord(symbol, time.UnixMilli(bk.CloseTime), cls, &domain.Candle{
		Open:   open,
		High:   high,
		Low:    low,
		Volume: vol.IntPart(),
	})
}
