package binanceclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickerSignal/internal/ports"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{Logger: &mockLogger{}})
	require.NoError(t, err)
	c.futuresClient.BaseURL = srv.URL
	return c
}

func klineRow(openMs, closeMs int64, open, high, low, cls, vol string) string {
	return fmt.Sprintf(`[%d,"%s","%s","%s","%s","%s",%d,"0",1,"0","0","0"]`, openMs, open, high, low, cls, vol, closeMs)
}

func TestNew_RequiresLogger(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	c, err := New(Config{Logger: &mockLogger{}, UseTestnet: true})
	require.NoError(t, err)
	assert.Equal(t, baseURLTestnet, c.futuresClient.BaseURL)
}

func TestTranslateBinanceKline(t *testing.T) {
	closeMs := time.Date(2024, 3, 1, 0, 59, 59, 999_000_000, time.UTC).UnixMilli()

	tests := []struct {
		name    string
		kline   *futures.Kline
		wantErr bool
	}{
		{
			name:  "valid kline",
			kline: &futures.Kline{CloseTime: closeMs, Open: "100.5", High: "101.25", Low: "99.75", Close: "100.9", Volume: "1234.56"},
		},
		{name: "nil kline", kline: nil, wantErr: true},
		{name: "bad close", kline: &futures.Kline{CloseTime: closeMs, Open: "1", High: "1", Low: "1", Close: "abc", Volume: "1"}, wantErr: true},
		{name: "non-positive close", kline: &futures.Kline{CloseTime: closeMs, Open: "1", High: "1", Low: "1", Close: "0", Volume: "1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := translateBinanceKline(tt.kline, "btcusdt")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "BTCUSDT", rec.Symbol)
			assert.True(t, time.UnixMilli(closeMs).Equal(rec.Timestamp))
			assert.Equal(t, "100.9", rec.Price.String())
			require.NotNil(t, rec.Candle)
			assert.Equal(t, "101.25", rec.Candle.High.String())
			assert.Equal(t, int64(1234), rec.Candle.Volume)
		})
	}
}

func TestGetKlinesRange(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/fapi/v1/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		h := time.Hour.Milliseconds()
		b := base.UnixMilli()
		fmt.Fprintf(w, "[%s,%s]",
			klineRow(b, b+h-1, "100", "102", "99", "101", "10"),
			klineRow(b+h, b+2*h-1, "101", "103", "100", "102.5", "12.9"))
	})

	recs, err := c.GetKlinesRange(context.Background(), "btcusdt", "1h", base, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "short page ends paging")
	assert.Equal(t, "101", recs[0].Price.String())
	assert.Equal(t, "102.5", recs[1].Price.String())
	assert.Equal(t, int64(12), recs[1].Candle.Volume)
	assert.True(t, recs[0].Timestamp.Before(recs[1].Timestamp))
}

func TestGetKlinesRange_SkipsOpenKline(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	h := time.Hour.Milliseconds()
	b := base.UnixMilli()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "[%s,%s]",
			klineRow(b, b+h-1, "100", "102", "99", "101", "10"),
			klineRow(b+h, b+2*h-1, "101", "103", "100", "102.5", "12"))
	})

	t.Run("close time in the future", func(t *testing.T) {
		c.now = func() time.Time { return base.Add(90 * time.Minute) }
		recs, err := c.GetKlinesRange(context.Background(), "BTCUSDT", "1h", base, base.Add(24*time.Hour))
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "101", recs[0].Price.String())
	})

	t.Run("close time after end", func(t *testing.T) {
		c.now = func() time.Time { return base.Add(24 * time.Hour) }
		recs, err := c.GetKlinesRange(context.Background(), "BTCUSDT", "1h", base, base.Add(90*time.Minute))
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.True(t, time.UnixMilli(b+h-1).Equal(recs[0].Timestamp))
	})
}

func TestGetKlinesRange_Errors(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("invalid arguments", func(t *testing.T) {
		c, err := New(Config{Logger: &mockLogger{}})
		require.NoError(t, err)
		_, err = c.GetKlinesRange(context.Background(), "", "1h", base, base.Add(time.Hour))
		assert.ErrorIs(t, err, ports.ErrInvalidRequest)
		_, err = c.GetKlinesRange(context.Background(), "BTCUSDT", "1h", base, base)
		assert.ErrorIs(t, err, ports.ErrInvalidRequest)
	})

	t.Run("api error is mapped", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"code":-1121,"msg":"Invalid symbol."}`)
		})
		_, err := c.GetKlinesRange(context.Background(), "NOPE", "1h", base, base.Add(time.Hour))
		assert.ErrorIs(t, err, ports.ErrInvalidRequest)
	})

	t.Run("rate limit is mapped", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"code":-1003,"msg":"Too many requests."}`)
		})
		_, err := c.GetKlinesRange(context.Background(), "BTCUSDT", "1h", base, base.Add(time.Hour))
		assert.ErrorIs(t, err, ports.ErrRateLimited)
	})
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/ping", r.URL.Path)
		fmt.Fprint(w, `{}`)
	})
	assert.NoError(t, c.Ping(context.Background()))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Ping(cancelled)
	assert.ErrorIs(t, err, ports.ErrContextCanceled)
}

var _ ports.MarketDataSource = (*Client)(nil)
