// internal/notify/bus.go
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Bus is an in-memory notification bus. Notifications are delivered to
// subscribers in publish order by a single worker goroutine.
type Bus struct {
	mu         sync.RWMutex
	handlers   map[string]Handler
	logger     *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	queue      chan Notification
	bufferSize int
	duration   time.Duration
}

// NewBus creates a new notification bus.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	bus := &Bus{
		handlers:   make(map[string]Handler),
		logger:     logger.Named("notify_bus"),
		ctx:        ctx,
		cancel:     cancel,
		queue:      make(chan Notification, bufferSize),
		bufferSize: bufferSize,
	}

	bus.wg.Add(1)
	go bus.process()

	return bus
}

// Subscribe registers a handler for every notification.
func (b *Bus) Subscribe(handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	b.handlers[id] = handler

	b.logger.Debug("Handler subscribed", zap.String("subscription_id", id))

	return &subscription{id: id, bus: b}
}

// SubscribeFunc is a convenience method for subscribing with a function.
func (b *Bus) SubscribeFunc(fn func(context.Context, Notification) error) Subscription {
	return b.Subscribe(HandlerFunc(fn))
}

// SetDefaultDuration overrides DefaultDuration for notifications published
// through b. Call before the first Notify.
func (b *Bus) SetDefaultDuration(d time.Duration) {
	b.duration = d
}

// Notify fills defaults and enqueues n. The returned id identifies n for Dismiss.
func (b *Bus) Notify(n Notification) string {
	if n.Duration == 0 && b.duration > 0 {
		n.Duration = b.duration
	}
	n = prepare(n)
	if err := b.publish(n); err != nil {
		b.logger.Warn("Notification dropped",
			zap.String("kind", string(n.Kind)),
			zap.String("title", n.Title),
			zap.Error(err))
	}
	return n.ID
}

func (b *Bus) publish(n Notification) error {
	select {
	case <-b.ctx.Done():
		return fmt.Errorf("notification bus is shutting down")
	default:
	}
	select {
	case b.queue <- n:
		return nil
	default:
		return fmt.Errorf("notification queue full")
	}
}

func (b *Bus) deliver(ctx context.Context, n Notification) {
	b.mu.RLock()
	handlers := make(map[string]Handler, len(b.handlers))
	for id, h := range b.handlers {
		handlers[id] = h
	}
	b.mu.RUnlock()

	for id, handler := range handlers {
		if err := handler.Handle(ctx, n); err != nil {
			b.logger.Error("Handler error",
				zap.String("handler_id", id),
				zap.String("notification_id", n.ID),
				zap.Error(err))
		}
	}
}

func (b *Bus) process() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			for {
				select {
				case n := <-b.queue:
					b.deliver(context.Background(), n)
				default:
					return
				}
			}
		case n := <-b.queue:
			b.deliver(b.ctx, n)
		}
	}
}

func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, id)
	b.logger.Debug("Handler unsubscribed", zap.String("subscription_id", id))
}

// Shutdown drains queued notifications and stops the worker.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.logger.Info("Shutting down notification bus")
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("Notification bus shutdown complete")
		return nil
	case <-ctx.Done():
		b.logger.Warn("Notification bus shutdown timeout")
		return ctx.Err()
	}
}

// Stats returns statistics about the bus.
func (b *Bus) Stats() map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return map[string]interface{}{
		"buffer_size": b.bufferSize,
		"pending":     len(b.queue),
		"handlers":    len(b.handlers),
	}
}

type subscription struct {
	id  string
	bus *Bus
}

func (s *subscription) Unsubscribe() { s.bus.unsubscribe(s.id) }
func (s *subscription) ID() string   { return s.id }
