package outbox

import (
	"context"
	"time"

	"github.com/felixgeelhaar/mosaic/internal/shared/domain"
)

// Repository defines the interface for outbox persistence.
type Repository interface {
	// SaveBatch stores messages using the transaction in ctx when present.
	SaveBatch(ctx context.Context, msgs []*Message) error

	// GetUnpublished retrieves messages that are neither published nor
	// dead-lettered and whose retry time has come, oldest first.
	GetUnpublished(ctx context.Context, limit int, now time.Time) ([]*Message, error)

	// MarkPublished marks a message as successfully published.
	MarkPublished(ctx context.Context, id int64, at time.Time) error

	// MarkFailed records a publish failure and schedules the next attempt.
	MarkFailed(ctx context.Context, id int64, reason string, nextRetryAt time.Time) error

	// MarkDead marks a message as dead-lettered.
	MarkDead(ctx context.Context, id int64, reason string, at time.Time) error

	// CountPending counts messages still waiting to be published.
	CountPending(ctx context.Context) (int, error)

	// DeleteOld removes messages published before cutoff.
	DeleteOld(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventWriter is the slice of the outbox application services depend on.
type EventWriter interface {
	SaveEvents(ctx context.Context, events ...domain.DomainEvent) error
}
