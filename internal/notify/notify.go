package notify

import (
	"context"
	"sync"

	"spot-trader/internal/logger"
)

// EventType enumerates the discrete trading events broadcast to observers.
type EventType string

const (
	EventTradeSkip         EventType = "trade_skip"
	EventTradeBuyPlaced    EventType = "trade_buy_placed"
	EventTradeFilledBuy    EventType = "trade_filled_buy"
	EventTradeBuyCancelled EventType = "trade_buy_cancelled"
	EventTradeSellTPPlaced EventType = "trade_sell_tp_placed"
	EventTradeError        EventType = "trade_error"
)

// Event is one structured notification. Fields carries event-specific
// payload such as prices and order ids.
type Event struct {
	Type   EventType      `json:"type"`
	Symbol string         `json:"symbol,omitempty"`
	Reason string         `json:"reason,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Sink receives trading events. Publish must never block the trading loop.
type Sink interface {
	Publish(ctx context.Context, ev Event)
}

// LogSink writes every event to the structured log. It is the default sink
// when no external broadcast collaborator is attached.
type LogSink struct{}

func (LogSink) Publish(ctx context.Context, ev Event) {
	args := []any{"event", string(ev.Type), "symbol", ev.Symbol}
	if ev.Reason != "" {
		args = append(args, "reason", ev.Reason)
	}
	for k, v := range ev.Fields {
		args = append(args, k, v)
	}
	if ev.Type == EventTradeError {
		logger.Warn(ctx, "Trading event", args...)
		return
	}
	logger.Info(ctx, "Trading event", args...)
}

// Hub fans events out to subscriber channels. Slow subscribers lose events
// rather than stalling the publisher.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	next Sink
}

// NewHub creates a hub that also forwards every event to next.
func NewHub(next Sink) *Hub {
	if next == nil {
		next = LogSink{}
	}
	return &Hub{subs: map[chan Event]struct{}{}, next: next}
}

func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) Publish(ctx context.Context, ev Event) {
	h.next.Publish(ctx, ev)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
