package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/mosaic/internal/directory/domain"
	sharedApplication "github.com/felixgeelhaar/mosaic/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/felixgeelhaar/mosaic/pkg/observability"
)

// AddReviewRequest rates a business.
type AddReviewRequest struct {
	BusinessID uuid.UUID
	UserID     uuid.UUID
	Rating     int
	Comment    string
}

// AddReview stores a review and records the review-added event in the same
// transaction. Observers are notified after commit; their failures do not
// undo the review.
func (s *Service) AddReview(ctx context.Context, req AddReviewRequest) (review *domain.Review, err error) {
	const op = "directory.add_review"
	finish := observability.Track(ctx, op, s.logger, s.metrics)
	defer func() { finish(err) }()

	now := s.now()
	review, err = domain.NewReview(req.BusinessID, req.UserID, req.Rating, req.Comment, now)
	if err != nil {
		return nil, err
	}

	var event *domain.ReviewEvent
	err = sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		if _, err := s.businesses.FindByID(txCtx, req.BusinessID); err != nil {
			return err
		}
		exists, err := s.reviews.Exists(txCtx, req.BusinessID, req.UserID)
		if err != nil {
			return err
		}
		if exists {
			return sharedDomain.Errorf(sharedDomain.EDUPLICATEREVIEW, op, "user %s already reviewed business %s", req.UserID, req.BusinessID)
		}
		if err := s.reviews.Insert(txCtx, review); err != nil {
			return err
		}

		summary, err := s.reviews.Summary(txCtx, req.BusinessID)
		if err != nil {
			return err
		}
		event = domain.NewReviewAdded(review, summary, now)
		sharedApplication.ApplyEventMetadata(
			[]sharedDomain.DomainEvent{event},
			sharedApplication.NewEventMetadata(req.UserID, observability.CorrelationIDFromContext(ctx)),
		)
		if s.events != nil {
			return s.events.SaveEvents(txCtx, event)
		}
		return nil
	})
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}

	s.metrics.Counter(observability.MetricReviewsAdded, 1)
	s.logger.InfoContext(ctx, "review added",
		"review_id", review.ID,
		"business_id", review.BusinessID,
		"rating", review.Rating,
		"average_rating", event.AverageRating,
	)

	if s.dispatcher != nil {
		if err := s.dispatcher.PublishDomainEvent(ctx, event); err != nil {
			s.logger.WarnContext(ctx, "review observers not notified", "review_id", review.ID, "error", err)
		}
	}
	return review, nil
}

// UpdateReviewRequest changes a review; nil fields are kept.
type UpdateReviewRequest struct {
	ReviewID uuid.UUID
	Rating   *int
	Comment  *string
}

// UpdateReview edits the rating or comment of a review.
func (s *Service) UpdateReview(ctx context.Context, req UpdateReviewRequest) (*domain.Review, error) {
	const op = "directory.update_review"
	var updated *domain.Review
	err := sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		review, err := s.reviews.FindByID(txCtx, req.ReviewID)
		if err != nil {
			return err
		}
		if err := review.Edit(req.Rating, req.Comment, s.now()); err != nil {
			return err
		}
		if err := s.reviews.Update(txCtx, review); err != nil {
			return err
		}
		updated = review
		return nil
	})
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	return updated, nil
}

// DeleteReview removes a review.
func (s *Service) DeleteReview(ctx context.Context, id uuid.UUID) error {
	return sharedDomain.Storage(s.reviews.Delete(ctx, id), "directory.delete_review")
}

// ListReviews returns one page of a business's reviews, newest first.
func (s *Service) ListReviews(ctx context.Context, businessID uuid.UUID, page int) (*domain.Page[*domain.Review], error) {
	const op = "directory.list_reviews"
	if _, err := s.businesses.FindByID(ctx, businessID); err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	page = max(page, 1)
	items, total, err := s.reviews.ListByBusiness(ctx, businessID, domain.ReviewsPageSize, (page-1)*domain.ReviewsPageSize)
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	return &domain.Page[*domain.Review]{Items: items, Total: total, Page: page, PerPage: domain.ReviewsPageSize}, nil
}

// ListUserReviews returns one page of a user's reviews, newest first.
func (s *Service) ListUserReviews(ctx context.Context, userID uuid.UUID, page int) (*domain.Page[*domain.Review], error) {
	const op = "directory.list_user_reviews"
	page = max(page, 1)
	items, total, err := s.reviews.ListByUser(ctx, userID, domain.ReviewsPageSize, (page-1)*domain.ReviewsPageSize)
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	return &domain.Page[*domain.Review]{Items: items, Total: total, Page: page, PerPage: domain.ReviewsPageSize}, nil
}
