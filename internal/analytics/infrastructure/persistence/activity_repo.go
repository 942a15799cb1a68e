// Package persistence implements the analytics repositories over the shared
// database.Connection, for both PostgreSQL and SQLite.
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

const activityColumns = `id, user_id, session_id, kind, business_id, search_query, category, location,
	page_url, referrer, user_agent, ip_address, device_type, duration_seconds, occurred_at`

// ActivityRepository implements domain.ActivityRepository.
type ActivityRepository struct {
	conn database.Connection
}

// NewActivityRepository creates a new activity log repository.
func NewActivityRepository(conn database.Connection) *ActivityRepository {
	return &ActivityRepository{conn: conn}
}

// Append inserts an event.
func (r *ActivityRepository) Append(ctx context.Context, e *domain.ActivityEvent) error {
	query := database.Rebind(r.conn.Driver(), `
		INSERT INTO activity_events (`+activityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, query,
		e.ID,
		nullUUID(e.UserID),
		e.SessionID,
		string(e.Kind),
		nullUUID(e.BusinessID),
		e.SearchQuery,
		e.Category,
		e.Location,
		e.PageURL,
		e.Referrer,
		e.UserAgent,
		e.IPAddress,
		e.DeviceType,
		nullInt(e.Duration),
		e.OccurredAt.UTC(),
	)
	return sharedDomain.Storage(err, "activity.append")
}

// SessionViewed reports whether the session viewed the business in [from, to).
func (r *ActivityRepository) SessionViewed(ctx context.Context, sessionID string, businessID uuid.UUID, from, to time.Time) (bool, error) {
	query := database.Rebind(r.conn.Driver(), `
		SELECT COUNT(*) FROM activity_events
		WHERE session_id = ? AND business_id = ? AND kind = ?
		  AND occurred_at >= ? AND occurred_at < ?
	`)

	var n int
	exec := database.ExecutorFromContext(ctx, r.conn)
	err := exec.QueryRow(ctx, query, sessionID, businessID, string(domain.KindViewBusiness), from.UTC(), to.UTC()).Scan(&n)
	if err != nil {
		return false, sharedDomain.Storage(err, "activity.session_viewed")
	}
	return n > 0, nil
}

// RecentForBusiness lists a business's events, newest first.
func (r *ActivityRepository) RecentForBusiness(ctx context.Context, businessID uuid.UUID, since time.Time, limit int) ([]*domain.ActivityEvent, error) {
	query := database.Rebind(r.conn.Driver(), `
		SELECT `+activityColumns+` FROM activity_events
		WHERE business_id = ? AND occurred_at >= ?
		ORDER BY occurred_at DESC, id
		LIMIT ?
	`)
	return r.list(ctx, "activity.recent_for_business", query, businessID, since.UTC(), limit)
}

// RecentForUser lists a user's events, newest first.
func (r *ActivityRepository) RecentForUser(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]*domain.ActivityEvent, error) {
	query := database.Rebind(r.conn.Driver(), `
		SELECT `+activityColumns+` FROM activity_events
		WHERE user_id = ? AND occurred_at >= ?
		ORDER BY occurred_at DESC, id
		LIMIT ?
	`)
	return r.list(ctx, "activity.recent_for_user", query, userID, since.UTC(), limit)
}

// CountByKindForUser groups a user's events by kind, most frequent first.
func (r *ActivityRepository) CountByKindForUser(ctx context.Context, userID uuid.UUID, since time.Time) ([]domain.KindCount, error) {
	const op = "activity.count_by_kind"
	query := database.Rebind(r.conn.Driver(), `
		SELECT kind, COUNT(*) AS n FROM activity_events
		WHERE user_id = ? AND occurred_at >= ?
		GROUP BY kind
		ORDER BY n DESC, kind
	`)

	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, userID, since.UTC())
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	defer func() { _ = rows.Close() }()

	counts := []domain.KindCount{}
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, sharedDomain.Storage(err, op)
		}
		counts = append(counts, domain.KindCount{Kind: domain.ActivityKind(kind), Count: n})
	}
	if err := rows.Err(); err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	return counts, nil
}

// CountKind counts events of one kind in [from, to).
func (r *ActivityRepository) CountKind(ctx context.Context, kind domain.ActivityKind, from, to time.Time) (int, error) {
	query := database.Rebind(r.conn.Driver(), `
		SELECT COUNT(*) FROM activity_events
		WHERE kind = ? AND occurred_at >= ? AND occurred_at < ?
	`)
	return countRow(ctx, r.conn, "activity.count_kind", query, string(kind), from.UTC(), to.UTC())
}

// CountActiveUsers counts distinct identified users in [from, to).
func (r *ActivityRepository) CountActiveUsers(ctx context.Context, from, to time.Time) (int, error) {
	query := database.Rebind(r.conn.Driver(), `
		SELECT COUNT(DISTINCT user_id) FROM activity_events
		WHERE user_id IS NOT NULL AND occurred_at >= ? AND occurred_at < ?
	`)
	return countRow(ctx, r.conn, "activity.count_active_users", query, from.UTC(), to.UTC())
}

func (r *ActivityRepository) list(ctx context.Context, op, query string, args ...any) ([]*domain.ActivityEvent, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	defer func() { _ = rows.Close() }()

	events := []*domain.ActivityEvent{}
	for rows.Next() {
		var (
			e          domain.ActivityEvent
			kind       string
			userID     uuid.NullUUID
			businessID uuid.NullUUID
			duration   sql.NullInt64
		)
		if err := rows.Scan(
			&e.ID,
			&userID,
			&e.SessionID,
			&kind,
			&businessID,
			&e.SearchQuery,
			&e.Category,
			&e.Location,
			&e.PageURL,
			&e.Referrer,
			&e.UserAgent,
			&e.IPAddress,
			&e.DeviceType,
			&duration,
			&e.OccurredAt,
		); err != nil {
			return nil, sharedDomain.Storage(err, op)
		}
		e.Kind = domain.ActivityKind(kind)
		e.UserID = uuidPtr(userID)
		e.BusinessID = uuidPtr(businessID)
		if duration.Valid {
			d := int(duration.Int64)
			e.Duration = &d
		}
		e.OccurredAt = e.OccurredAt.UTC()
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	return events, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func uuidPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func countRow(ctx context.Context, conn database.Connection, op, query string, args ...any) (int, error) {
	var n int
	exec := database.ExecutorFromContext(ctx, conn)
	if err := exec.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, sharedDomain.Storage(err, op)
	}
	return n, nil
}
