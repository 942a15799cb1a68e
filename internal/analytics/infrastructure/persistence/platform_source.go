package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/database"
)

// PlatformSource implements domain.PlatformSource by querying the directory
// and billing tables directly.
type PlatformSource struct {
	conn database.Connection
}

// NewPlatformSource creates a new platform data source.
func NewPlatformSource(conn database.Connection) *PlatformSource {
	return &PlatformSource{conn: conn}
}

// BusinessCategory returns the business's category.
func (s *PlatformSource) BusinessCategory(ctx context.Context, businessID uuid.UUID) (string, error) {
	const op = "platform_source.business_category"
	query := database.Rebind(s.conn.Driver(), `SELECT category FROM businesses WHERE id = ?`)

	var category string
	exec := database.ExecutorFromContext(ctx, s.conn)
	if err := exec.QueryRow(ctx, query, businessID).Scan(&category); err != nil {
		if database.IsNoRows(err) {
			return "", sharedDomain.NotFound(op, "business", businessID.String())
		}
		return "", sharedDomain.Storage(err, op)
	}
	return category, nil
}

// CategoryPeers lists a category's businesses, oldest listing first.
func (s *PlatformSource) CategoryPeers(ctx context.Context, category string) ([]uuid.UUID, error) {
	const op = "platform_source.category_peers"
	query := database.Rebind(s.conn.Driver(), `
		SELECT id FROM businesses WHERE category = ? ORDER BY created_at, id
	`)

	exec := database.ExecutorFromContext(ctx, s.conn)
	rows, err := exec.Query(ctx, query, category)
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	defer func() { _ = rows.Close() }()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, sharedDomain.Storage(err, op)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	return ids, nil
}

// CountBusinesses counts businesses created before the given time.
func (s *PlatformSource) CountBusinesses(ctx context.Context, before time.Time) (int, error) {
	query := database.Rebind(s.conn.Driver(), `SELECT COUNT(*) FROM businesses WHERE created_at < ?`)
	return countRow(ctx, s.conn, "platform_source.count_businesses", query, before.UTC())
}

// CountBusinessesCreated counts businesses created in [from, to).
func (s *PlatformSource) CountBusinessesCreated(ctx context.Context, from, to time.Time) (int, error) {
	query := database.Rebind(s.conn.Driver(), `
		SELECT COUNT(*) FROM businesses WHERE created_at >= ? AND created_at < ?
	`)
	return countRow(ctx, s.conn, "platform_source.count_businesses_created", query, from.UTC(), to.UTC())
}

// CountReviews counts reviews created before the given time.
func (s *PlatformSource) CountReviews(ctx context.Context, before time.Time) (int, error) {
	query := database.Rebind(s.conn.Driver(), `SELECT COUNT(*) FROM reviews WHERE created_at < ?`)
	return countRow(ctx, s.conn, "platform_source.count_reviews", query, before.UTC())
}

// CountActiveSubscriptions counts subscriptions granting entitlement at now.
// The window test matches the billing context's notion of active.
func (s *PlatformSource) CountActiveSubscriptions(ctx context.Context, prefix string, now time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM subscriptions
		WHERE status = 'active'
		  AND (period_end > ? OR (trial_end IS NOT NULL AND trial_end > ?))
	`
	now = now.UTC()
	args := []any{now, now}
	if prefix != "" {
		query += ` AND plan_id LIKE ?`
		args = append(args, prefix+"%")
	}
	return countRow(ctx, s.conn, "platform_source.count_active_subscriptions", database.Rebind(s.conn.Driver(), query), args...)
}

// Revenue sums succeeded payments made in [from, to). Amounts are added as
// decimals because SQLite stores them as TEXT.
func (s *PlatformSource) Revenue(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	const op = "platform_source.revenue"
	query := database.Rebind(s.conn.Driver(), `
		SELECT amount FROM payment_records
		WHERE status = 'succeeded' AND paid_at >= ? AND paid_at < ?
	`)

	exec := database.ExecutorFromContext(ctx, s.conn)
	rows, err := exec.Query(ctx, query, from.UTC(), to.UTC())
	if err != nil {
		return decimal.Zero, sharedDomain.Storage(err, op)
	}
	defer func() { _ = rows.Close() }()

	total := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, sharedDomain.Storage(err, op)
		}
		total = total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, sharedDomain.Storage(err, op)
	}
	return total, nil
}
