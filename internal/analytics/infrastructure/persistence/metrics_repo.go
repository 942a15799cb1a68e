package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/felixgeelhaar/mosaic/internal/analytics/domain"
	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/database"
)

const metricsColumns = `business_id, metric_date, profile_views, unique_visitors, search_appearances,
	phone_clicks, website_clicks, direction_requests, favorites_added, reviews_received,
	average_rating, search_ranking_avg, category_ranking, created_at, updated_at`

// MetricsRepository implements domain.MetricsRepository. Writes are single
// INSERT .. ON CONFLICT DO UPDATE statements, supported by both drivers.
type MetricsRepository struct {
	conn database.Connection
}

// NewMetricsRepository creates a new daily metrics repository.
func NewMetricsRepository(conn database.Connection) *MetricsRepository {
	return &MetricsRepository{conn: conn}
}

// Increment adds delta to one counter of the (business, day) row.
func (r *MetricsRepository) Increment(ctx context.Context, businessID uuid.UUID, day time.Time, counter domain.Counter, delta int, at time.Time) error {
	const op = "metrics.increment"
	// The column name is interpolated, so only whitelisted counters pass.
	if !counter.IsValid() {
		return sharedDomain.Errorf(sharedDomain.EINVALID, op, "unknown counter %q", counter)
	}
	col := string(counter)
	query := database.Rebind(r.conn.Driver(), fmt.Sprintf(`
		INSERT INTO daily_business_metrics (business_id, metric_date, %[1]s, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (business_id, metric_date) DO UPDATE SET
			%[1]s = daily_business_metrics.%[1]s + excluded.%[1]s,
			updated_at = excluded.updated_at
	`, col))

	at = at.UTC()
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, query, businessID, domain.Day(day), delta, at, at)
	return sharedDomain.Storage(err, op)
}

// RecordReview counts one review and snapshots the average rating.
func (r *MetricsRepository) RecordReview(ctx context.Context, businessID uuid.UUID, day time.Time, average float64, at time.Time) error {
	query := database.Rebind(r.conn.Driver(), `
		INSERT INTO daily_business_metrics (business_id, metric_date, reviews_received, average_rating, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?, ?)
		ON CONFLICT (business_id, metric_date) DO UPDATE SET
			reviews_received = daily_business_metrics.reviews_received + 1,
			average_rating = excluded.average_rating,
			updated_at = excluded.updated_at
	`)

	at = at.UTC()
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, query, businessID, domain.Day(day), average, at, at)
	return sharedDomain.Storage(err, "metrics.record_review")
}

// SetCategoryRanking snapshots the category rank on the (business, day) row.
func (r *MetricsRepository) SetCategoryRanking(ctx context.Context, businessID uuid.UUID, day time.Time, rank int, at time.Time) error {
	query := database.Rebind(r.conn.Driver(), `
		INSERT INTO daily_business_metrics (business_id, metric_date, category_ranking, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (business_id, metric_date) DO UPDATE SET
			category_ranking = excluded.category_ranking,
			updated_at = excluded.updated_at
	`)

	at = at.UTC()
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, query, businessID, domain.Day(day), rank, at, at)
	return sharedDomain.Storage(err, "metrics.set_category_ranking")
}

// Get returns the row for (business, day).
func (r *MetricsRepository) Get(ctx context.Context, businessID uuid.UUID, day time.Time) (*domain.DailyBusinessMetrics, error) {
	const op = "metrics.get"
	query := database.Rebind(r.conn.Driver(), `
		SELECT `+metricsColumns+` FROM daily_business_metrics
		WHERE business_id = ? AND metric_date = ?
	`)

	exec := database.ExecutorFromContext(ctx, r.conn)
	m, err := scanMetrics(exec.QueryRow(ctx, query, businessID, domain.Day(day)))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, sharedDomain.NotFound(op, "daily metrics", businessID.String()+"@"+domain.Day(day).Format(time.DateOnly))
		}
		return nil, sharedDomain.Storage(err, op)
	}
	return m, nil
}

// FindRange lists rows with from <= date < until, newest first.
func (r *MetricsRepository) FindRange(ctx context.Context, businessID uuid.UUID, from, until time.Time) ([]*domain.DailyBusinessMetrics, error) {
	const op = "metrics.find_range"
	query := database.Rebind(r.conn.Driver(), `
		SELECT `+metricsColumns+` FROM daily_business_metrics
		WHERE business_id = ? AND metric_date >= ? AND metric_date < ?
		ORDER BY metric_date DESC
	`)

	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, businessID, domain.Day(from), domain.Day(until))
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	defer func() { _ = rows.Close() }()

	days := []*domain.DailyBusinessMetrics{}
	for rows.Next() {
		m, err := scanMetrics(rows)
		if err != nil {
			return nil, sharedDomain.Storage(err, op)
		}
		days = append(days, m)
	}
	if err := rows.Err(); err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	return days, nil
}

// SumScores sums profile_views + search_appearances per business from the
// given day on. PostgreSQL receives the ids as one array parameter.
func (r *MetricsRepository) SumScores(ctx context.Context, businessIDs []uuid.UUID, from time.Time) (map[uuid.UUID]int, error) {
	const op = "metrics.sum_scores"
	scores := make(map[uuid.UUID]int, len(businessIDs))
	if len(businessIDs) == 0 {
		return scores, nil
	}

	var (
		query string
		args  []any
	)
	if r.conn.Driver() == database.DriverPostgres {
		ids := make([]string, len(businessIDs))
		for i, id := range businessIDs {
			ids[i] = id.String()
		}
		// pq.Array renders a text array literal, cast server side.
		query = database.Rebind(r.conn.Driver(), `
			SELECT business_id, SUM(profile_views + search_appearances)
			FROM daily_business_metrics
			WHERE business_id = ANY(CAST(CAST(? AS TEXT) AS UUID[])) AND metric_date >= ?
			GROUP BY business_id
		`)
		args = []any{pq.Array(ids), domain.Day(from)}
	} else {
		query = `
			SELECT business_id, SUM(profile_views + search_appearances)
			FROM daily_business_metrics
			WHERE business_id IN (` + database.Placeholders(len(businessIDs)) + `) AND metric_date >= ?
			GROUP BY business_id
		`
		for _, id := range businessIDs {
			args = append(args, id)
		}
		args = append(args, domain.Day(from))
	}

	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			id    uuid.UUID
			score int64
		)
		if err := rows.Scan(&id, &score); err != nil {
			return nil, sharedDomain.Storage(err, op)
		}
		scores[id] = int(score)
	}
	if err := rows.Err(); err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	return scores, nil
}

func scanMetrics(row database.Row) (*domain.DailyBusinessMetrics, error) {
	var m domain.DailyBusinessMetrics
	if err := row.Scan(
		&m.BusinessID,
		&m.Date,
		&m.ProfileViews,
		&m.UniqueVisitors,
		&m.SearchAppearances,
		&m.PhoneClicks,
		&m.WebsiteClicks,
		&m.DirectionRequests,
		&m.FavoritesAdded,
		&m.ReviewsReceived,
		&m.AverageRating,
		&m.SearchRankingAvg,
		&m.CategoryRanking,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	m.Date = domain.Day(m.Date)
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return &m, nil
}
