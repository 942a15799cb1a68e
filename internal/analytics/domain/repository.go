package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ActivityRepository stores the append-only activity log.
type ActivityRepository interface {
	Append(ctx context.Context, event *ActivityEvent) error

	// SessionViewed reports whether the session viewed the business in [from, to).
	SessionViewed(ctx context.Context, sessionID string, businessID uuid.UUID, from, to time.Time) (bool, error)

	// RecentForBusiness lists a business's events since the given time, newest first.
	RecentForBusiness(ctx context.Context, businessID uuid.UUID, since time.Time, limit int) ([]*ActivityEvent, error)

	// RecentForUser lists a user's events since the given time, newest first.
	RecentForUser(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]*ActivityEvent, error)

	// CountByKindForUser groups a user's events since the given time by kind.
	CountByKindForUser(ctx context.Context, userID uuid.UUID, since time.Time) ([]KindCount, error)

	// CountKind counts events of one kind in [from, to).
	CountKind(ctx context.Context, kind ActivityKind, from, to time.Time) (int, error)

	// CountActiveUsers counts distinct identified users with events in [from, to).
	CountActiveUsers(ctx context.Context, from, to time.Time) (int, error)
}

// SearchRepository stores search events.
type SearchRepository interface {
	Append(ctx context.Context, event *SearchEvent) error

	// TopClickedQueries lists the queries that most often led to a click on
	// the business since the given time.
	TopClickedQueries(ctx context.Context, businessID uuid.UUID, since time.Time, limit int) ([]QueryCount, error)

	// Count counts searches in [from, to).
	Count(ctx context.Context, from, to time.Time) (int, error)

	// RecentForUser lists a user's searches since the given time, newest first.
	RecentForUser(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]*SearchEvent, error)
}

// MetricsRepository stores daily business metrics. Every write is a single
// upsert statement so concurrent increments of the same row never lose updates.
type MetricsRepository interface {
	// Increment adds delta to one counter of the (business, day) row,
	// creating the row when missing.
	Increment(ctx context.Context, businessID uuid.UUID, day time.Time, counter Counter, delta int, at time.Time) error

	// RecordReview counts one review and snapshots the business's average rating.
	RecordReview(ctx context.Context, businessID uuid.UUID, day time.Time, average float64, at time.Time) error

	// SetCategoryRanking snapshots the category rank on the (business, day) row.
	SetCategoryRanking(ctx context.Context, businessID uuid.UUID, day time.Time, rank int, at time.Time) error

	// Get returns the row or ErrNotFound.
	Get(ctx context.Context, businessID uuid.UUID, day time.Time) (*DailyBusinessMetrics, error)

	// FindRange lists rows with from <= date < until, newest first.
	FindRange(ctx context.Context, businessID uuid.UUID, from, until time.Time) ([]*DailyBusinessMetrics, error)

	// SumScores sums profile_views + search_appearances per business over
	// rows dated on or after from. Businesses without rows are absent.
	SumScores(ctx context.Context, businessIDs []uuid.UUID, from time.Time) (map[uuid.UUID]int, error)
}

// PlatformRepository stores platform rollups.
type PlatformRepository interface {
	// Save upserts the row for m.Date.
	Save(ctx context.Context, m *PlatformMetrics) error

	// FindSince lists rows dated on or after from, newest first.
	FindSince(ctx context.Context, from time.Time) ([]*PlatformMetrics, error)
}

// PlatformSource reads directory and billing tables for rollups and ranking.
type PlatformSource interface {
	// BusinessCategory returns ErrNotFound for an unknown business.
	BusinessCategory(ctx context.Context, businessID uuid.UUID) (string, error)

	// CategoryPeers lists the businesses of a category in listing order.
	CategoryPeers(ctx context.Context, category string) ([]uuid.UUID, error)

	// CountBusinesses counts businesses created before the given time.
	CountBusinesses(ctx context.Context, before time.Time) (int, error)

	// CountBusinessesCreated counts businesses created in [from, to).
	CountBusinessesCreated(ctx context.Context, from, to time.Time) (int, error)

	// CountReviews counts reviews created before the given time.
	CountReviews(ctx context.Context, before time.Time) (int, error)

	// CountActiveSubscriptions counts subscriptions granting entitlement at
	// now whose plan id starts with prefix. An empty prefix counts all.
	CountActiveSubscriptions(ctx context.Context, prefix string, now time.Time) (int, error)

	// Revenue sums succeeded payments made in [from, to).
	Revenue(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
}
