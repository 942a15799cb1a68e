package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
)

// ConsumerRegistry routes envelopes to the consumers subscribed to their
// routing key.
type ConsumerRegistry struct {
	logger *slog.Logger

	mu     sync.RWMutex
	routes map[string][]EventConsumer
}

func NewConsumerRegistry(logger *slog.Logger) *ConsumerRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsumerRegistry{logger: logger, routes: map[string][]EventConsumer{}}
}

// Register subscribes consumer to each of its event types.
func (r *ConsumerRegistry) Register(consumer EventConsumer) {
	keys := consumer.EventTypes()

	r.mu.Lock()
	for _, key := range keys {
		r.routes[key] = append(r.routes[key], consumer)
	}
	r.mu.Unlock()

	r.logger.Debug("consumer registered", "event_types", keys)
}

// Consumers returns a copy of the consumers of routingKey.
func (r *ConsumerRegistry) Consumers(routingKey string) []EventConsumer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.routes[routingKey])
}

// EventTypes lists the routing keys with a consumer, sorted.
func (r *ConsumerRegistry) EventTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.routes))
}

// ConsumerCount counts subscriptions; a consumer of two keys counts twice.
func (r *ConsumerRegistry) ConsumerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, consumers := range r.routes {
		n += len(consumers)
	}
	return n
}

// Dispatch calls every consumer of the event's routing key, even after one
// fails, and returns the joined failures.
func (r *ConsumerRegistry) Dispatch(ctx context.Context, event *ConsumedEvent) error {
	var errs []error
	for _, consumer := range r.Consumers(event.RoutingKey) {
		err := consumer.Handle(ctx, event)
		if err == nil {
			continue
		}
		r.logger.ErrorContext(ctx, "consumer failed",
			"routing_key", event.RoutingKey,
			"event_id", event.EventID,
			"error", err,
		)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
