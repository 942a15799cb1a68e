package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange domain events are published to
// unless RABBITMQ_EXCHANGE overrides it.
const DefaultExchange = "mosaic.domain.events"

// ErrNotConfirmed is returned when the broker nacks a publish.
var ErrNotConfirmed = errors.New("rabbitmq: publish not confirmed")

// RabbitMQPublisher publishes persistent JSON messages on a channel in
// confirm mode. Publish returns only after the broker has acked the
// message, so the outbox marks a row published only once it is safe.
type RabbitMQPublisher struct {
	exchange string
	logger   *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewRabbitMQPublisher dials url and declares exchange as a durable topic
// exchange. An empty exchange selects DefaultExchange.
func NewRabbitMQPublisher(url, exchange string, logger *slog.Logger) (*RabbitMQPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := openChannel(conn, exchange)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	logger.Info("rabbitmq publisher connected", "exchange", exchange)
	return &RabbitMQPublisher{exchange: exchange, logger: logger, conn: conn, ch: ch}, nil
}

func openChannel(conn *amqp.Connection, exchange string) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq: declare exchange %s: %w", exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq: confirm mode: %w", err)
	}
	return ch, nil
}

// Publish sends payload with routingKey and waits for the broker ack.
func (p *RabbitMQPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq: publish %s: %w", routingKey, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("rabbitmq: await confirm %s: %w", routingKey, err)
	}
	if !acked {
		return fmt.Errorf("%w: %s", ErrNotConfirmed, routingKey)
	}
	p.logger.DebugContext(ctx, "message published", "routing_key", routingKey, "size", len(payload))
	return nil
}

// Ping fails once the broker connection or channel has closed.
func (p *RabbitMQPublisher) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.conn == nil || p.conn.IsClosed():
		return errors.New("rabbitmq: connection closed")
	case p.ch == nil || p.ch.IsClosed():
		return errors.New("rabbitmq: channel closed")
	}
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	p.ch, p.conn = nil, nil
	p.logger.Info("rabbitmq publisher closed")
	return errors.Join(errs...)
}
