package signalhub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickerSignal/internal/domain"
	"tickerSignal/internal/ports"
)

type mockLogger struct {
	mu    sync.Mutex
	warns int
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warns++
}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

var _ ports.SignalPublisher = (*Hub)(nil)

func result(symbol string, sig domain.Signal) *domain.SignalResult {
	return &domain.SignalResult{
		Symbol:    symbol,
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Signal:    sig,
		ShortSMA:  decimal.NewFromInt(2),
		LongSMA:   decimal.NewFromInt(1),
		Windows:   domain.Windows{Short: 2, Long: 4},
	}
}

func TestNew_RequiresLogger(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestHub_FiltersBySymbol(t *testing.T) {
	hub, err := New(&mockLogger{})
	require.NoError(t, err)

	btc, err := hub.Subscribe([]string{" btcusdt "}, 4)
	require.NoError(t, err)
	all, err := hub.Subscribe(nil, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, hub.Subscribers())

	ctx := context.Background()
	require.NoError(t, hub.PublishSignal(ctx, result("ETHUSDT", domain.SignalSell)))
	require.NoError(t, hub.PublishSignal(ctx, result("BTCUSDT", domain.SignalBuy)))

	got := <-btc.C
	assert.Equal(t, "BTCUSDT", got.Symbol)
	assert.Len(t, btc.C, 0)

	assert.Len(t, all.C, 2)
	assert.Equal(t, "ETHUSDT", (<-all.C).Symbol)
	assert.Equal(t, "BTCUSDT", (<-all.C).Symbol)
}

func TestHub_DropsWhenSubscriberIsFull(t *testing.T) {
	logger := &mockLogger{}
	hub, err := New(logger)
	require.NoError(t, err)

	sub, err := hub.Subscribe(nil, 1)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, hub.PublishSignal(ctx, result("BTCUSDT", domain.SignalBuy)))
	require.NoError(t, hub.PublishSignal(ctx, result("BTCUSDT", domain.SignalSell)))

	assert.Equal(t, domain.SignalBuy, (<-sub.C).Signal)
	assert.Equal(t, 1, logger.warns)
	assert.Equal(t, 1, sub.dropped)
}

func TestSubscription_Close(t *testing.T) {
	hub, err := New(&mockLogger{})
	require.NoError(t, err)

	sub, err := hub.Subscribe([]string{"BTCUSDT"}, 0)
	require.NoError(t, err)
	assert.Equal(t, defaultBuffer, cap(sub.ch))

	sub.Close()
	sub.Close()
	_, ok := <-sub.C
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Subscribers())

	require.NoError(t, hub.PublishSignal(context.Background(), result("BTCUSDT", domain.SignalBuy)))
}

func TestHub_Close(t *testing.T) {
	hub, err := New(&mockLogger{})
	require.NoError(t, err)

	sub, err := hub.Subscribe(nil, 0)
	require.NoError(t, err)

	require.NoError(t, hub.Close())
	require.NoError(t, hub.Close())
	_, ok := <-sub.C
	assert.False(t, ok)
	sub.Close()

	assert.ErrorIs(t, hub.PublishSignal(context.Background(), result("BTCUSDT", domain.SignalBuy)), ports.ErrPublishFailed)
	_, err = hub.Subscribe(nil, 0)
	assert.ErrorIs(t, err, ports.ErrPublishFailed)
}
