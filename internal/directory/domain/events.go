package domain

import (
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
)

const reviewAggregateType = "Review"

// RoutingReviewAdded is published after a review is stored.
const RoutingReviewAdded = "directory.review.added"

// ReviewEvent carries a new review and the business's rating after it.
type ReviewEvent struct {
	sharedDomain.BaseEvent
	ReviewID      uuid.UUID `json:"review_id"`
	BusinessID    uuid.UUID `json:"business_id"`
	UserID        uuid.UUID `json:"user_id"`
	Rating        int       `json:"rating"`
	AverageRating float64   `json:"average_rating"`
	ReviewCount   int       `json:"review_count"`
}

// NewReviewAdded snapshots review and the business's updated summary.
func NewReviewAdded(review *Review, summary RatingSummary, at time.Time) *ReviewEvent {
	return &ReviewEvent{
		BaseEvent:     sharedDomain.NewBaseEvent(review.ID, reviewAggregateType, RoutingReviewAdded, at),
		ReviewID:      review.ID,
		BusinessID:    review.BusinessID,
		UserID:        review.UserID,
		Rating:        review.Rating,
		AverageRating: summary.Average,
		ReviewCount:   summary.Count,
	}
}
