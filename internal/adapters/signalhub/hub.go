package signalhub

import (
	"context"
	"fmt"
	"sync"

	"tickerSignal/internal/domain"
	"tickerSignal/internal/ports"
)

const defaultBuffer = 64

// Hub implements ports.SignalPublisher by fanning signals out to in-process
// subscribers. A subscriber that falls behind loses signals rather than
// blocking the publisher.
type Hub struct {
	logger ports.Logger

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// Subscription receives signals for a set of symbols (all symbols when the
// set is empty). C is closed by Close or when the hub closes.
type Subscription struct {
	C <-chan *domain.SignalResult

	hub     *Hub
	ch      chan *domain.SignalResult
	symbols map[string]struct{}
	dropped int
}

// New creates an empty hub.
func New(logger ports.Logger) (*Hub, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for signal hub")
	}
	return &Hub{logger: logger, subs: make(map[*Subscription]struct{})}, nil
}

// Subscribe registers a subscriber. buffer <= 0 uses the default size.
func (h *Hub) Subscribe(symbols []string, buffer int) (*Subscription, error) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if s = domain.NormalizeSymbol(s); s != "" {
			set[s] = struct{}{}
		}
	}

	ch := make(chan *domain.SignalResult, buffer)
	sub := &Subscription{C: ch, hub: h, ch: ch, symbols: set}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, fmt.Errorf("signal hub is closed: %w", ports.ErrPublishFailed)
	}
	h.subs[sub] = struct{}{}
	return sub, nil
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// PublishSignal delivers result to every matching subscriber without blocking.
func (h *Hub) PublishSignal(ctx context.Context, result *domain.SignalResult) error {
	if result == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return fmt.Errorf("signal hub is closed: %w", ports.ErrPublishFailed)
	}
	for sub := range h.subs {
		if !sub.wants(result.Symbol) {
			continue
		}
		select {
		case sub.ch <- result:
		default:
			sub.dropped++
			h.logger.Warn(ctx, "Signal subscriber is full, dropping signal", map[string]interface{}{
				"symbol":  result.Symbol,
				"dropped": sub.dropped,
			})
		}
	}
	return nil
}

// Close closes every subscription. Further publishes fail.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for sub := range h.subs {
		close(sub.ch)
		delete(h.subs, sub)
	}
	return nil
}

func (s *Subscription) wants(symbol string) bool {
	if len(s.symbols) == 0 {
		return true
	}
	_, ok := s.symbols[symbol]
	return ok
}

// Close unregisters the subscription and closes C. It is safe to call more
// than once.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.ch)
}
