package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
)

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// MaxCommentLength bounds review text.
const MaxCommentLength = 2000

// Review is one user's rating of one business. A user reviews a business at
// most once.
type Review struct {
	ID         uuid.UUID
	BusinessID uuid.UUID
	UserID     uuid.UUID
	Rating     int
	Comment    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CheckRating fails with invalid_rating outside 1..5.
func CheckRating(op string, rating int) error {
	if rating < MinRating || rating > MaxRating {
		return sharedDomain.Errorf(sharedDomain.EINVALIDRATING, op, "rating must be between %d and %d, got %d", MinRating, MaxRating, rating)
	}
	return nil
}

func checkComment(op, comment string) error {
	if len(comment) > MaxCommentLength {
		return sharedDomain.Errorf(sharedDomain.EINVALID, op, "comment must be at most %d characters", MaxCommentLength)
	}
	return nil
}

// NewReview creates a review after checking the rating.
func NewReview(businessID, userID uuid.UUID, rating int, comment string, now time.Time) (*Review, error) {
	const op = "directory.new_review"
	if userID == uuid.Nil {
		return nil, sharedDomain.Invalid(op, "user id is required")
	}
	if err := CheckRating(op, rating); err != nil {
		return nil, err
	}
	comment = strings.TrimSpace(comment)
	if err := checkComment(op, comment); err != nil {
		return nil, err
	}
	now = now.UTC()
	return &Review{
		ID:         uuid.New(),
		BusinessID: businessID,
		UserID:     userID,
		Rating:     rating,
		Comment:    comment,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Edit changes the rating and, when comment is non-nil, the text.
func (r *Review) Edit(rating *int, comment *string, now time.Time) error {
	const op = "directory.edit_review"
	if rating != nil {
		if err := CheckRating(op, *rating); err != nil {
			return err
		}
		r.Rating = *rating
	}
	if comment != nil {
		c := strings.TrimSpace(*comment)
		if err := checkComment(op, c); err != nil {
			return err
		}
		r.Comment = c
	}
	r.UpdatedAt = now.UTC()
	return nil
}
