package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"tickerSignal/internal/domain"
	"tickerSignal/internal/ports"
)

// Config holds the Redis connection and key layout.
type Config struct {
	Addr          string
	Password      string
	DB            int
	Prefix        string // key prefix, default "tickersignal"
	SignalStream  string // default Prefix + ":signals"
	SignalChannel string // default Prefix + ":signals:pub"
	LatestTTL     time.Duration
	Logger        ports.Logger
}

// Publisher implements ports.SignalPublisher. Each signal is appended to a
// stream, stored as the symbol's latest signal and broadcast on a channel.
type Publisher struct {
	rdb           *redis.Client
	logger        ports.Logger
	keyLatest     string
	signalStream  string
	signalChannel string
	ttl           time.Duration
}

// signalMessage is the JSON payload published for consumers.
type signalMessage struct {
	Symbol      string        `json:"symbol"`
	Signal      domain.Signal `json:"signal"`
	TsMs        int64         `json:"ts_ms"`
	ShortSMA    string        `json:"short_sma"`
	LongSMA     string        `json:"long_sma"`
	ShortWindow int           `json:"short_window"`
	LongWindow  int           `json:"long_window"`
}

func newSignalMessage(r *domain.SignalResult) signalMessage {
	return signalMessage{
		Symbol:      r.Symbol,
		Signal:      r.Signal,
		TsMs:        r.Timestamp.UnixMilli(),
		ShortSMA:    r.ShortSMA.String(),
		LongSMA:     r.LongSMA.String(),
		ShortWindow: r.Windows.Short,
		LongWindow:  r.Windows.Long,
	}
}

// NewPublisher connects to Redis and verifies the connection.
func NewPublisher(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Redis publisher")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("redis address is required: %w", ports.ErrConfigurationError)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w: %w", ports.ErrConnectionFailed, err)
	}

	p := newPublisher(rdb, cfg)
	cfg.Logger.Info(ctx, "Redis signal publisher ready", map[string]interface{}{
		"addr":    cfg.Addr,
		"stream":  p.signalStream,
		"channel": p.signalChannel,
	})
	return p, nil
}

func newPublisher(rdb *redis.Client, cfg Config) *Publisher {
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = "tickersignal"
	}
	stream := strings.TrimSpace(cfg.SignalStream)
	if stream == "" {
		stream = prefix + ":signals"
	}
	channel := strings.TrimSpace(cfg.SignalChannel)
	if channel == "" {
		channel = prefix + ":signals:pub"
	}
	return &Publisher{
		rdb:           rdb,
		logger:        cfg.Logger,
		keyLatest:     prefix + ":latest",
		signalStream:  stream,
		signalChannel: channel,
		ttl:           cfg.LatestTTL,
	}
}

// PublishSignal appends the signal to the stream, updates the latest-signal
// hash and publishes it on the channel.
func (p *Publisher) PublishSignal(ctx context.Context, result *domain.SignalResult) error {
	msg := newSignalMessage(result)
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode signal: %w: %w", ports.ErrPublishFailed, err)
	}

	pipe := p.rdb.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: p.signalStream,
		Values: map[string]any{
			"ts_ms":   msg.TsMs,
			"symbol":  msg.Symbol,
			"signal":  string(msg.Signal),
			"payload": string(payload),
		},
	})
	pipe.HSet(ctx, p.keyLatest, msg.Symbol, string(payload))
	if p.ttl > 0 {
		pipe.Expire(ctx, p.keyLatest, p.ttl)
	}
	pipe.Publish(ctx, p.signalChannel, string(payload))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish signal for %s: %w: %w", msg.Symbol, ports.ErrPublishFailed, err)
	}

	p.logger.Debug(ctx, "Signal published", map[string]interface{}{"symbol": msg.Symbol, "signal": string(msg.Signal)})
	return nil
}

// LatestSignal returns the last published signal payload for symbol, or
// redis.Nil wrapped when none exists.
func (p *Publisher) LatestSignal(ctx context.Context, symbol string) (string, error) {
	return p.rdb.HGet(ctx, p.keyLatest, domain.NormalizeSymbol(symbol)).Result()
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}
