package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/database"
)

// SQLRepository implements Repository over any supported driver.
type SQLRepository struct {
	conn database.Connection
}

// NewSQLRepository creates a new outbox repository.
func NewSQLRepository(conn database.Connection) *SQLRepository {
	return &SQLRepository{conn: conn}
}

// SaveBatch stores messages. Callers that need atomicity with a state change
// pass a context carrying the unit of work's transaction.
func (r *SQLRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}

	query := database.Rebind(r.conn.Driver(), `
		INSERT INTO outbox (event_id, aggregate_type, aggregate_id, event_type, routing_key, payload, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	exec := database.ExecutorFromContext(ctx, r.conn)
	for _, msg := range msgs {
		metadata := string(msg.Metadata)
		if metadata == "" {
			metadata = "{}"
		}
		err := exec.QueryRow(ctx, query,
			msg.EventID,
			msg.AggregateType,
			msg.AggregateID,
			msg.EventType,
			msg.RoutingKey,
			string(msg.Payload),
			metadata,
			msg.CreatedAt.UTC(),
		).Scan(&msg.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

// SaveEvents converts events to messages and stores them.
func (r *SQLRepository) SaveEvents(ctx context.Context, events ...domain.DomainEvent) error {
	msgs, err := NewMessages(events...)
	if err != nil {
		return err
	}
	return r.SaveBatch(ctx, msgs)
}

// GetUnpublished retrieves messages ready to be relayed, oldest first.
func (r *SQLRepository) GetUnpublished(ctx context.Context, limit int, now time.Time) ([]*Message, error) {
	query := database.Rebind(r.conn.Driver(), `
		SELECT id, event_id, aggregate_type, aggregate_id, event_type, routing_key, payload, metadata,
		       created_at, published_at, next_retry_at, retry_count, last_error, dead_lettered_at, dead_letter_reason
		FROM outbox
		WHERE published_at IS NULL
		  AND dead_lettered_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at, id
		LIMIT ?
	`)

	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []*Message
	for rows.Next() {
		var (
			msg                         Message
			payload, metadata           string
			lastError, deadLetterReason sql.NullString
		)
		if err := rows.Scan(
			&msg.ID,
			&msg.EventID,
			&msg.AggregateType,
			&msg.AggregateID,
			&msg.EventType,
			&msg.RoutingKey,
			&payload,
			&metadata,
			&msg.CreatedAt,
			&msg.PublishedAt,
			&msg.NextRetryAt,
			&msg.RetryCount,
			&lastError,
			&msg.DeadLetteredAt,
			&deadLetterReason,
		); err != nil {
			return nil, err
		}
		msg.Payload = json.RawMessage(payload)
		msg.Metadata = json.RawMessage(metadata)
		msg.CreatedAt = msg.CreatedAt.UTC()
		if lastError.Valid {
			msg.LastError = &lastError.String
		}
		if deadLetterReason.Valid {
			msg.DeadLetterReason = &deadLetterReason.String
		}
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

// MarkPublished marks a message as successfully published.
func (r *SQLRepository) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	query := database.Rebind(r.conn.Driver(), `UPDATE outbox SET published_at = ?, next_retry_at = NULL WHERE id = ?`)
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, query, at.UTC(), id)
	return err
}

// MarkFailed records a publish failure and schedules the next attempt.
func (r *SQLRepository) MarkFailed(ctx context.Context, id int64, reason string, nextRetryAt time.Time) error {
	query := database.Rebind(r.conn.Driver(), `
		UPDATE outbox SET retry_count = retry_count + 1, last_error = ?, next_retry_at = ? WHERE id = ?
	`)
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, query, reason, nextRetryAt.UTC(), id)
	return err
}

// MarkDead marks a message as dead-lettered.
func (r *SQLRepository) MarkDead(ctx context.Context, id int64, reason string, at time.Time) error {
	query := database.Rebind(r.conn.Driver(), `
		UPDATE outbox SET retry_count = retry_count + 1, last_error = ?, dead_lettered_at = ?, dead_letter_reason = ? WHERE id = ?
	`)
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, query, reason, at.UTC(), reason, id)
	return err
}

// CountPending counts messages still waiting to be published.
func (r *SQLRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := database.ExecutorFromContext(ctx, r.conn).
		QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL AND dead_lettered_at IS NULL`).
		Scan(&n)
	return n, err
}

// DeleteOld removes messages published before cutoff.
func (r *SQLRepository) DeleteOld(ctx context.Context, cutoff time.Time) (int64, error) {
	query := database.Rebind(r.conn.Driver(), `DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < ?`)
	res, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
