// Package outbox stores domain events in the same transaction as the state
// change that produced them and relays them to the broker afterwards.
package outbox

import (
	"encoding/json"
	"time"

	"github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
)

// Message is one outbox row. Payload holds the full eventbus envelope so the
// relay can publish it unchanged.
type Message struct {
	ID               int64
	EventID          uuid.UUID
	AggregateType    string
	AggregateID      uuid.UUID
	EventType        string
	RoutingKey       string
	Payload          json.RawMessage
	Metadata         json.RawMessage
	CreatedAt        time.Time
	PublishedAt      *time.Time
	NextRetryAt      *time.Time
	RetryCount       int
	LastError        *string
	DeadLetteredAt   *time.Time
	DeadLetterReason *string
}

// NewMessage wraps a domain event for the outbox.
func NewMessage(event domain.DomainEvent) (*Message, error) {
	envelope, err := eventbus.NewConsumedEvent(event)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, err
	}
	metadata, err := json.Marshal(envelope.Metadata)
	if err != nil {
		return nil, err
	}

	return &Message{
		EventID:       envelope.EventID,
		AggregateType: envelope.AggregateType,
		AggregateID:   envelope.AggregateID,
		EventType:     envelope.RoutingKey,
		RoutingKey:    envelope.RoutingKey,
		Payload:       payload,
		Metadata:      metadata,
		CreatedAt:     envelope.OccurredAt,
	}, nil
}

// NewMessages converts a batch of events.
func NewMessages(events ...domain.DomainEvent) ([]*Message, error) {
	msgs := make([]*Message, 0, len(events))
	for _, event := range events {
		msg, err := NewMessage(event)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// IsPublished returns true if the message has been published.
func (m *Message) IsPublished() bool {
	return m.PublishedAt != nil
}

// IsDead returns true if the message was dead-lettered.
func (m *Message) IsDead() bool {
	return m.DeadLetteredAt != nil
}

func (m *Message) metadata() eventbus.EventMetadata {
	var meta eventbus.EventMetadata
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &meta)
	}
	return meta
}
