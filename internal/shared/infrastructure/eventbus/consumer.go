package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/google/uuid"
)

// EventConsumer handles specific event types.
type EventConsumer interface {
	// EventTypes returns the routing keys this consumer handles.
	// e.g., ["directory.review.added"]
	EventTypes() []string

	// Handle processes the event.
	Handle(ctx context.Context, event *ConsumedEvent) error
}

// ConsumedEvent is the envelope every domain event travels in, both on the
// broker and through the in-process bus.
type ConsumedEvent struct {
	EventID       uuid.UUID       `json:"event_id"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	RoutingKey    string          `json:"routing_key"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
	Metadata      EventMetadata   `json:"metadata,omitempty"`
}

// EventMetadata contains optional metadata about the event.
type EventMetadata struct {
	UserID        uuid.UUID `json:"user_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	CausationID   string    `json:"causation_id,omitempty"`
}

// NewConsumedEvent wraps a domain event in the envelope. The event itself is
// marshalled into Payload.
func NewConsumedEvent(event domain.DomainEvent) (*ConsumedEvent, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	meta := event.Metadata()
	return &ConsumedEvent{
		EventID:       event.EventID(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		RoutingKey:    event.RoutingKey(),
		OccurredAt:    event.OccurredAt(),
		Payload:       body,
		Metadata: EventMetadata{
			UserID:        meta.UserID,
			CorrelationID: idString(meta.CorrelationID),
			CausationID:   idString(meta.CausationID),
		},
	}, nil
}

// Encode returns the envelope bytes for a domain event.
func Encode(event domain.DomainEvent) ([]byte, error) {
	envelope, err := NewConsumedEvent(event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope)
}

// Decode unmarshals the event payload into dst.
func (e *ConsumedEvent) Decode(dst any) error {
	return json.Unmarshal(e.Payload, dst)
}

func idString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}
