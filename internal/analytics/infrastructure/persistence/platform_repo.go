package persistence

import (
	"context"
	"time"

	"github.com/felixgeelhaar/mosaic/internal/analytics/domain"
	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/database"
)

const platformColumns = `metric_date, active_users, premium_users, total_businesses, new_businesses,
	premium_businesses, total_searches, total_views, total_reviews, subscription_revenue, updated_at`

// PlatformRepository implements domain.PlatformRepository.
type PlatformRepository struct {
	conn database.Connection
}

// NewPlatformRepository creates a new platform rollup repository.
func NewPlatformRepository(conn database.Connection) *PlatformRepository {
	return &PlatformRepository{conn: conn}
}

// Save upserts the row for m.Date. Rolling a day up twice overwrites it.
func (r *PlatformRepository) Save(ctx context.Context, m *domain.PlatformMetrics) error {
	query := database.Rebind(r.conn.Driver(), `
		INSERT INTO platform_metrics (`+platformColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (metric_date) DO UPDATE SET
			active_users = excluded.active_users,
			premium_users = excluded.premium_users,
			total_businesses = excluded.total_businesses,
			new_businesses = excluded.new_businesses,
			premium_businesses = excluded.premium_businesses,
			total_searches = excluded.total_searches,
			total_views = excluded.total_views,
			total_reviews = excluded.total_reviews,
			subscription_revenue = excluded.subscription_revenue,
			updated_at = excluded.updated_at
	`)

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, query,
		domain.Day(m.Date),
		m.ActiveUsers,
		m.PremiumUsers,
		m.TotalBusinesses,
		m.NewBusinesses,
		m.PremiumBusinesses,
		m.TotalSearches,
		m.TotalViews,
		m.TotalReviews,
		m.SubscriptionRevenue.StringFixed(2),
		m.UpdatedAt.UTC(),
	)
	return sharedDomain.Storage(err, "platform.save")
}

// FindSince lists rows dated on or after from, newest first.
func (r *PlatformRepository) FindSince(ctx context.Context, from time.Time) ([]*domain.PlatformMetrics, error) {
	const op = "platform.find_since"
	query := database.Rebind(r.conn.Driver(), `
		SELECT `+platformColumns+` FROM platform_metrics
		WHERE metric_date >= ?
		ORDER BY metric_date DESC
	`)

	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, domain.Day(from))
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	defer func() { _ = rows.Close() }()

	out := []*domain.PlatformMetrics{}
	for rows.Next() {
		var m domain.PlatformMetrics
		if err := rows.Scan(
			&m.Date,
			&m.ActiveUsers,
			&m.PremiumUsers,
			&m.TotalBusinesses,
			&m.NewBusinesses,
			&m.PremiumBusinesses,
			&m.TotalSearches,
			&m.TotalViews,
			&m.TotalReviews,
			&m.SubscriptionRevenue,
			&m.UpdatedAt,
		); err != nil {
			return nil, sharedDomain.Storage(err, op)
		}
		m.Date = domain.Day(m.Date)
		m.UpdatedAt = m.UpdatedAt.UTC()
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	return out, nil
}
