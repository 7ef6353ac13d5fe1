package redis

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickerSignal/internal/domain"
	"tickerSignal/internal/ports"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func sampleResult() *domain.SignalResult {
	return &domain.SignalResult{
		Symbol:    "BTCUSDT",
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Signal:    domain.SignalBuy,
		ShortSMA:  decimal.RequireFromString("64010.5"),
		LongSMA:   decimal.RequireFromString("63990.25"),
		Windows:   domain.Windows{Short: 5, Long: 20},
	}
}

func TestNewSignalMessage(t *testing.T) {
	msg := newSignalMessage(sampleResult())

	b, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"symbol": "BTCUSDT",
		"signal": "BUY",
		"ts_ms": 1714564800000,
		"short_sma": "64010.5",
		"long_sma": "63990.25",
		"short_window": 5,
		"long_window": 20
	}`, string(b))
}

func TestNewPublisher_KeyDefaults(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()

	p := newPublisher(rdb, Config{Logger: &mockLogger{}})
	assert.Equal(t, "tickersignal:latest", p.keyLatest)
	assert.Equal(t, "tickersignal:signals", p.signalStream)
	assert.Equal(t, "tickersignal:signals:pub", p.signalChannel)

	p = newPublisher(rdb, Config{Prefix: "x", SignalStream: "s", SignalChannel: "c", Logger: &mockLogger{}})
	assert.Equal(t, "x:latest", p.keyLatest)
	assert.Equal(t, "s", p.signalStream)
	assert.Equal(t, "c", p.signalChannel)
}

func TestNewPublisher_Validation(t *testing.T) {
	_, err := NewPublisher(context.Background(), Config{Addr: "localhost:6379"})
	assert.Error(t, err)

	_, err = NewPublisher(context.Background(), Config{Logger: &mockLogger{}})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

// TestPublisher_Integration runs against TEST_REDIS_ADDR when set.
func TestPublisher_Integration(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set, skipping Redis integration test")
	}
	ctx := context.Background()
	prefix := "tickersignal-test-" + time.Now().Format("150405.000000")

	p, err := NewPublisher(ctx, Config{Addr: addr, Prefix: prefix, LatestTTL: time.Minute, Logger: &mockLogger{}})
	require.NoError(t, err)
	defer p.Close()
	defer p.rdb.Del(ctx, p.signalStream, p.keyLatest)

	sub := p.rdb.Subscribe(ctx, p.signalChannel)
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, p.PublishSignal(ctx, sampleResult()))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Contains(t, msg.Payload, `"signal":"BUY"`)

	entries, err := p.rdb.XRange(ctx, p.signalStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "BTCUSDT", entries[0].Values["symbol"])

	latest, err := p.LatestSignal(ctx, "btcusdt")
	require.NoError(t, err)
	assert.Equal(t, msg.Payload, latest)
}
