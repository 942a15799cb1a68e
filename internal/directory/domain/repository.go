package domain

import (
	"context"

	"github.com/google/uuid"
)

// BusinessRepository persists listings.
type BusinessRepository interface {
	Save(ctx context.Context, b *Business) error
	// FindByID returns not_found when the business does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*Business, error)
	// Delete removes the business and its reviews.
	Delete(ctx context.Context, id uuid.UUID) error
	// Search returns one page of listings ordered by name, id.
	Search(ctx context.Context, filter SearchFilter) ([]*Listing, int, error)
	Categories(ctx context.Context) ([]string, error)
	Cities(ctx context.Context) ([]CityState, error)
	// Peers lists the ids of a category's businesses, oldest first.
	Peers(ctx context.Context, category string) ([]uuid.UUID, error)
}

// ReviewRepository persists reviews.
type ReviewRepository interface {
	// Insert returns duplicate_review when the user already reviewed the business.
	Insert(ctx context.Context, r *Review) error
	Update(ctx context.Context, r *Review) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*Review, error)
	Exists(ctx context.Context, businessID, userID uuid.UUID) (bool, error)
	// ListByBusiness returns one page, newest first, and the total.
	ListByBusiness(ctx context.Context, businessID uuid.UUID, limit, offset int) ([]*Review, int, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Review, int, error)
	Summary(ctx context.Context, businessID uuid.UUID) (RatingSummary, error)
}
