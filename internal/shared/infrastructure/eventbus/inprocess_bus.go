package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/mosaic/internal/shared/domain"
)

// InProcessEventBus hands events to consumers synchronously, in the
// caller's goroutine. The review observer that feeds analytics runs on it.
// Publish and PublishDomainEvent log consumer failures instead of
// returning them, so an observer can never fail the write that raised the
// event.
type InProcessEventBus struct {
	registry *ConsumerRegistry
	logger   *slog.Logger
}

func NewInProcessEventBus(logger *slog.Logger) *InProcessEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessEventBus{registry: NewConsumerRegistry(logger), logger: logger}
}

func (b *InProcessEventBus) RegisterConsumer(consumer EventConsumer) {
	b.registry.Register(consumer)
}

func (b *InProcessEventBus) Registry() *ConsumerRegistry { return b.registry }

// Publish accepts an encoded envelope, so the bus can stand in for a broker
// Publisher. Undecodable payloads are logged and dropped.
func (b *InProcessEventBus) Publish(ctx context.Context, routingKey string, payload []byte) error {
	var event ConsumedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		b.logger.ErrorContext(ctx, "undecodable event dropped", "routing_key", routingKey, "error", err)
		return nil
	}
	if event.RoutingKey == "" {
		event.RoutingKey = routingKey
	}
	b.deliver(ctx, &event)
	return nil
}

// PublishDomainEvent wraps event in its envelope and delivers it. Only an
// encoding failure is returned.
func (b *InProcessEventBus) PublishDomainEvent(ctx context.Context, event domain.DomainEvent) error {
	envelope, err := NewConsumedEvent(event)
	if err != nil {
		return err
	}
	b.deliver(ctx, envelope)
	return nil
}

// PublishConsumedEvent delivers envelope and returns the consumer failures.
func (b *InProcessEventBus) PublishConsumedEvent(ctx context.Context, envelope *ConsumedEvent) error {
	return b.registry.Dispatch(ctx, envelope)
}

func (b *InProcessEventBus) Close() error { return nil }

func (b *InProcessEventBus) deliver(ctx context.Context, event *ConsumedEvent) {
	started := time.Now()
	err := b.registry.Dispatch(ctx, event)
	attrs := []any{
		"routing_key", event.RoutingKey,
		"event_id", event.EventID,
		"duration_ms", time.Since(started).Milliseconds(),
	}
	if err != nil {
		b.logger.ErrorContext(ctx, "event delivery failed", append(attrs, "error", err)...)
		return
	}
	b.logger.DebugContext(ctx, "event delivered", attrs...)
}
