package application

import (
	"github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/google/uuid"
)

type metadataSetter interface {
	SetMetadata(metadata domain.EventMetadata)
}

// NewEventMetadata creates operation-scoped metadata for domain events.
// correlationID is usually the CLI or request correlation id; anything that
// does not parse as a UUID gets a fresh one.
func NewEventMetadata(userID uuid.UUID, correlationID string) domain.EventMetadata {
	corr, err := uuid.Parse(correlationID)
	if err != nil {
		corr = uuid.New()
	}
	return domain.EventMetadata{
		CorrelationID: corr,
		CausationID:   uuid.New(),
		UserID:        userID,
	}
}

// ApplyEventMetadata sets metadata on all events that support it.
func ApplyEventMetadata(events []domain.DomainEvent, metadata domain.EventMetadata) {
	for _, event := range events {
		if setter, ok := event.(metadataSetter); ok {
			setter.SetMetadata(metadata)
		}
	}
}
