// Package events fans inspection and action state changes out to
// downstream consumers. In-process subscribers get synchronous delivery;
// the Postgres outbox gives external consumers (notifiers, analytics) an
// at-least-once feed that survives restarts.
package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fieldsafe/sentinel/pkg/contracts"
)

// Handler consumes one event. Handlers must not block.
type Handler func(ctx context.Context, evt contracts.Event)

// Bus is the in-process publisher. Publish never fails from a subscriber's
// perspective: a panicking handler is logged and skipped.
type Bus struct {
	mu       sync.RWMutex
	handlers map[contracts.EventType][]Handler
	all      []Handler
	outbox   *Outbox
	logger   *slog.Logger
}

// NewBus creates a Bus. outbox may be nil for in-process-only delivery.
func NewBus(outbox *Outbox, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		handlers: make(map[contracts.EventType][]Handler),
		outbox:   outbox,
		logger:   logger,
	}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(t contracts.EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Publish delivers the event to subscribers and, when configured, appends
// it to the outbox. The outbox write is the only failure that propagates:
// losing a durable event matters, losing an in-process notification does
// not.
func (b *Bus) Publish(ctx context.Context, evt contracts.Event) error {
	b.mu.RLock()
	targets := make([]Handler, 0, len(b.handlers[evt.Type])+len(b.all))
	targets = append(targets, b.handlers[evt.Type]...)
	targets = append(targets, b.all...)
	b.mu.RUnlock()

	for _, h := range targets {
		b.deliver(ctx, h, evt)
	}

	if b.outbox != nil {
		return b.outbox.Append(ctx, evt)
	}
	return nil
}

func (b *Bus) deliver(ctx context.Context, h Handler, evt contracts.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "type", evt.Type, "panic", r)
		}
	}()
	h(ctx, evt)
}
