package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Aidin1998/pincex_sim/pkg/metrics"
	"go.uber.org/zap"
)

// Event is the envelope for everything published on the bus.
type Event struct {
	Topic     string                 `json:"topic"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   interface{}            `json:"payload"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// EventHandler handles one event. It runs on the publisher's goroutine and
// must not publish back into the engine. Panics are recovered and logged.
type EventHandler func(Event)

// EventBus is the interface for publishing and subscribing to events
type EventBus interface {
	Publish(ctx context.Context, event Event)
	Subscribe(topic string, handler EventHandler)
	SubscribeAll(handler EventHandler)
}

// InMemoryEventBus delivers synchronously, in publish order, to topic
// subscribers first and then to catch-all subscribers.
type InMemoryEventBus struct {
	logger *zap.Logger
	mu     sync.RWMutex
	subs   map[string][]EventHandler
	all    []EventHandler

	published atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
}

type EventBusMetrics struct {
	Published int64
	Delivered int64
	Failed    int64
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryEventBus{
		logger: logger,
		subs:   make(map[string][]EventHandler),
	}
}

// Publish delivers an event to all subscribers of the topic
func (bus *InMemoryEventBus) Publish(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	bus.published.Add(1)
	metrics.EventsPublished.WithLabelValues(event.Type).Inc()

	bus.mu.RLock()
	handlers := make([]EventHandler, 0, len(bus.subs[event.Topic])+len(bus.all))
	handlers = append(handlers, bus.subs[event.Topic]...)
	handlers = append(handlers, bus.all...)
	bus.mu.RUnlock()

	for _, h := range handlers {
		bus.deliver(h, event)
	}
}

func (bus *InMemoryEventBus) deliver(h EventHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			bus.failed.Add(1)
			bus.logger.Error("Event handler panic",
				zap.Any("recover", r),
				zap.String("topic", event.Topic),
				zap.String("type", event.Type))
		}
	}()
	h(event)
	bus.delivered.Add(1)
}

// Subscribe registers a handler for a topic
func (bus *InMemoryEventBus) Subscribe(topic string, handler EventHandler) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.subs[topic] = append(bus.subs[topic], handler)
	bus.logger.Debug("Subscribed handler to topic", zap.String("topic", topic))
}

// SubscribeAll registers a handler for every topic.
func (bus *InMemoryEventBus) SubscribeAll(handler EventHandler) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.all = append(bus.all, handler)
}

// Metrics returns current event bus metrics
func (bus *InMemoryEventBus) Metrics() EventBusMetrics {
	return EventBusMetrics{
		Published: bus.published.Load(),
		Delivered: bus.delivered.Load(),
		Failed:    bus.failed.Load(),
	}
}

// Log publishes a diagnostic line on TopicLog and mirrors it to zap.
func (bus *InMemoryEventBus) Log(ctx context.Context, level, message string, fields ...zap.Field) {
	switch level {
	case "debug":
		bus.logger.Debug(message, fields...)
	case "warn":
		bus.logger.Warn(message, fields...)
	case "error":
		bus.logger.Error(message, fields...)
	default:
		level = "info"
		bus.logger.Info(message, fields...)
	}
	bus.Publish(ctx, Event{Topic: TopicLog, Type: TypeLog, Payload: LogEvent{Level: level, Message: message}})
}
