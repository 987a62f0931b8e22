// Package events is an in-process listener bus for ledger events.
//
// Delivery is best effort and happens after commit. Cross-service consumers
// must read the outbox instead.
package events

import (
	"context"
	"sync"

	"github.com/richardliu001/funding-ledger/internal/outbox"
	"go.uber.org/zap"
)

// Handler reacts to a committed ledger event.
type Handler func(ctx context.Context, evt outbox.Event) error

// Bus fans events out to handlers registered per event type.
// The zero value is not usable; call NewBus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *zap.SugaredLogger
}

func NewBus(log *zap.SugaredLogger) *Bus {
	return &Bus{handlers: make(map[string][]Handler), log: log}
}

// Subscribe registers h for the given event types. No types means all events.
func (b *Bus) Subscribe(h Handler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(eventTypes) == 0 {
		eventTypes = []string{"*"}
	}
	for _, t := range eventTypes {
		b.handlers[t] = append(b.handlers[t], h)
	}
}

// Publish calls every matching handler synchronously. Handler errors and
// panics are logged and never returned.
func (b *Bus) Publish(ctx context.Context, evt outbox.Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	hs := make([]Handler, 0, len(b.handlers[evt.EventType()])+len(b.handlers["*"]))
	hs = append(hs, b.handlers[evt.EventType()]...)
	hs = append(hs, b.handlers["*"]...)
	b.mu.RUnlock()

	for _, h := range hs {
		b.dispatch(ctx, h, evt)
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, evt outbox.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorw("event handler panicked", "event_type", evt.EventType(), "panic", r)
		}
	}()
	if err := h(ctx, evt); err != nil {
		b.log.Warnw("event handler failed", "event_type", evt.EventType(), "error", err)
	}
}
