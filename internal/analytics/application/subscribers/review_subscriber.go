// Package subscribers connects analytics to events raised by other contexts.
package subscribers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/mosaic/internal/analytics/application"
	"github.com/felixgeelhaar/mosaic/internal/analytics/domain"
	directoryDomain "github.com/felixgeelhaar/mosaic/internal/directory/domain"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/eventbus"
)

// ReviewSubscriber records a review activity and the business's new rating
// whenever a review is added.
type ReviewSubscriber struct {
	recorder *application.Recorder
	logger   *slog.Logger
}

// NewReviewSubscriber creates a new review subscriber.
func NewReviewSubscriber(recorder *application.Recorder, logger *slog.Logger) *ReviewSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewSubscriber{
		recorder: recorder,
		logger:   logger,
	}
}

// EventTypes returns the event types this subscriber handles.
func (s *ReviewSubscriber) EventTypes() []string {
	return []string{directoryDomain.RoutingReviewAdded}
}

// Handle processes an event. The review counts on the day the subscriber
// records it, which is the day it occurred for synchronous delivery.
func (s *ReviewSubscriber) Handle(ctx context.Context, event *eventbus.ConsumedEvent) error {
	var review directoryDomain.ReviewEvent
	if err := event.Decode(&review); err != nil {
		return fmt.Errorf("decode %s: %w", event.RoutingKey, err)
	}

	s.logger.DebugContext(ctx, "recording review activity",
		"event_id", event.EventID,
		"business_id", review.BusinessID,
		"rating", review.Rating,
	)

	userID := review.UserID
	businessID := review.BusinessID
	average := review.AverageRating
	_, err := s.recorder.Record(ctx, application.ActivityInput{
		UserID:        &userID,
		SessionID:     event.Metadata.CorrelationID,
		Kind:          domain.KindReview,
		BusinessID:    &businessID,
		AverageRating: &average,
	})
	return err
}
