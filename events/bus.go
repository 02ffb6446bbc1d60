package events

import (
	// Go Internal Packages
	"context"
	"sync"

	// External Packages
	"go.uber.org/zap"
)

type Handler func(ctx context.Context, evt Event) error

// Publisher is the emit side of the bus, what the services depend on.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

// Bus is an explicit registered-callback dispatcher. Subscriptions happen
// at startup; Publish is safe for concurrent use afterwards.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{handlers: make(map[string][]Handler), logger: logger}
}

// Subscribe registers a handler for one event name.
func (b *Bus) Subscribe(eventName string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], h)
}

// SubscribeAll registers a handler for every known event name.
func (b *Bus) SubscribeAll(h Handler) {
	for _, name := range []string{
		IPNReceived{}.Name(),
		PaymentSuccessful{}.Name(),
		PaymentFailed{}.Name(),
		RefundProcessed{}.Name(),
	} {
		b.Subscribe(name, h)
	}
}

// Publish invokes every subscriber synchronously. Panics and errors are
// contained per handler so one bad subscriber cannot starve the rest or
// un-commit the state change that triggered the event.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	b.mu.RLock()
	hs := append([]Handler(nil), b.handlers[evt.Name()]...)
	b.mu.RUnlock()

	for i, h := range hs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panic",
						zap.String("event", evt.Name()),
						zap.String("tran_id", evt.Key()),
						zap.Int("handler_index", i),
						zap.Any("panic", r))
				}
			}()
			if err := h(ctx, evt); err != nil {
				b.logger.Error("event handler error",
					zap.String("event", evt.Name()),
					zap.String("tran_id", evt.Key()),
					zap.Int("handler_index", i),
					zap.Error(err))
			}
		}()
	}
}
