package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/mosaic/internal/analytics/domain"
	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/database"
)

// SearchRepository implements domain.SearchRepository.
type SearchRepository struct {
	conn database.Connection
}

// NewSearchRepository creates a new search event repository.
func NewSearchRepository(conn database.Connection) *SearchRepository {
	return &SearchRepository{conn: conn}
}

// Append inserts a search event.
func (r *SearchRepository) Append(ctx context.Context, e *domain.SearchEvent) error {
	query := database.Rebind(r.conn.Driver(), `
		INSERT INTO search_events (
			id, user_id, session_id, query, category, location, filters,
			results_count, clicked_business_id, click_position, searched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	filters := string(e.Filters)
	if filters == "" {
		filters = "{}"
	}

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, query,
		e.ID,
		nullUUID(e.UserID),
		e.SessionID,
		e.Query,
		e.Category,
		e.Location,
		filters,
		e.ResultsCount,
		nullUUID(e.ClickedBusinessID),
		nullInt(e.ClickPosition),
		e.SearchedAt.UTC(),
	)
	return sharedDomain.Storage(err, "search.append")
}

// TopClickedQueries lists the queries that most often led to a click on the business.
func (r *SearchRepository) TopClickedQueries(ctx context.Context, businessID uuid.UUID, since time.Time, limit int) ([]domain.QueryCount, error) {
	const op = "search.top_clicked_queries"
	query := database.Rebind(r.conn.Driver(), `
		SELECT query, COUNT(*) AS n FROM search_events
		WHERE clicked_business_id = ? AND searched_at >= ?
		GROUP BY query
		ORDER BY n DESC, query
		LIMIT ?
	`)

	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, businessID, since.UTC(), limit)
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	defer func() { _ = rows.Close() }()

	counts := []domain.QueryCount{}
	for rows.Next() {
		var qc domain.QueryCount
		if err := rows.Scan(&qc.Query, &qc.Count); err != nil {
			return nil, sharedDomain.Storage(err, op)
		}
		counts = append(counts, qc)
	}
	if err := rows.Err(); err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	return counts, nil
}

// Count counts searches in [from, to).
func (r *SearchRepository) Count(ctx context.Context, from, to time.Time) (int, error) {
	query := database.Rebind(r.conn.Driver(), `
		SELECT COUNT(*) FROM search_events WHERE searched_at >= ? AND searched_at < ?
	`)
	return countRow(ctx, r.conn, "search.count", query, from.UTC(), to.UTC())
}

// RecentForUser lists a user's searches since the given time, newest first.
func (r *SearchRepository) RecentForUser(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]*domain.SearchEvent, error) {
	const op = "search.recent_for_user"
	query := database.Rebind(r.conn.Driver(), `
		SELECT id, user_id, session_id, query, category, location, filters,
			results_count, clicked_business_id, click_position, searched_at
		FROM search_events
		WHERE user_id = ? AND searched_at >= ?
		ORDER BY searched_at DESC, id
		LIMIT ?
	`)

	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, userID, since.UTC(), limit)
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	defer func() { _ = rows.Close() }()

	events := []*domain.SearchEvent{}
	for rows.Next() {
		var (
			e        domain.SearchEvent
			uid      uuid.NullUUID
			clicked  uuid.NullUUID
			position sql.NullInt64
			filters  string
		)
		if err := rows.Scan(
			&e.ID,
			&uid,
			&e.SessionID,
			&e.Query,
			&e.Category,
			&e.Location,
			&filters,
			&e.ResultsCount,
			&clicked,
			&position,
			&e.SearchedAt,
		); err != nil {
			return nil, sharedDomain.Storage(err, op)
		}
		e.UserID = uuidPtr(uid)
		e.ClickedBusinessID = uuidPtr(clicked)
		if position.Valid {
			p := int(position.Int64)
			e.ClickPosition = &p
		}
		e.Filters = []byte(filters)
		e.SearchedAt = e.SearchedAt.UTC()
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	return events, nil
}
