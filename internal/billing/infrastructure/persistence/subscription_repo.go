package persistence

import (
	"context"
	"time"

	"github.com/felixgeelhaar/mosaic/internal/billing/domain"
	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/database"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const subscriptionColumns = `id, user_id, business_id, plan_id, status, amount, currency, billing_interval,
	period_start, period_end, trial_end, cancelled_at, external_customer_id, external_subscription_id,
	created_at, updated_at`

// SubscriptionRepository implements domain.SubscriptionRepository over any
// supported driver.
type SubscriptionRepository struct {
	conn database.Connection
}

// NewSubscriptionRepository creates a new subscription repository.
func NewSubscriptionRepository(conn database.Connection) *SubscriptionRepository {
	return &SubscriptionRepository{conn: conn}
}

// Save inserts or updates a subscription.
func (r *SubscriptionRepository) Save(ctx context.Context, sub *domain.Subscription) error {
	query := database.Rebind(r.conn.Driver(), `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			period_start = excluded.period_start,
			period_end = excluded.period_end,
			trial_end = excluded.trial_end,
			cancelled_at = excluded.cancelled_at,
			external_customer_id = excluded.external_customer_id,
			external_subscription_id = excluded.external_subscription_id,
			updated_at = excluded.updated_at
	`)

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, query,
		sub.ID,
		sub.UserID,
		nullUUID(sub.BusinessID),
		sub.PlanID,
		string(sub.Status),
		sub.Amount.StringFixed(2),
		sub.Currency,
		string(sub.Interval),
		sub.PeriodStart.UTC(),
		sub.PeriodEnd.UTC(),
		utcPtr(sub.TrialEnd),
		utcPtr(sub.CancelledAt),
		sub.ExternalCustomerID,
		sub.ExternalSubscriptionID,
		sub.CreatedAt.UTC(),
		sub.UpdatedAt.UTC(),
	)
	return sharedDomain.Storage(err, "subscriptions.save")
}

// FindByID retrieves a subscription by its ID.
func (r *SubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	query := database.Rebind(r.conn.Driver(), `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`)

	exec := database.ExecutorFromContext(ctx, r.conn)
	sub, err := scanSubscription(exec.QueryRow(ctx, query, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, sharedDomain.NotFound("subscriptions.find", "subscription", id.String())
		}
		return nil, sharedDomain.Storage(err, "subscriptions.find")
	}
	return sub, nil
}

// FindByExternalID looks a subscription up by processor subscription id.
func (r *SubscriptionRepository) FindByExternalID(ctx context.Context, externalID string) (*domain.Subscription, error) {
	query := database.Rebind(r.conn.Driver(), `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE external_subscription_id = ? AND external_subscription_id <> ''
		ORDER BY created_at DESC
		LIMIT 1
	`)

	exec := database.ExecutorFromContext(ctx, r.conn)
	sub, err := scanSubscription(exec.QueryRow(ctx, query, externalID))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, sharedDomain.NotFound("subscriptions.find_external", "subscription", externalID)
		}
		return nil, sharedDomain.Storage(err, "subscriptions.find_external")
	}
	return sub, nil
}

// FindByUser lists a user's subscriptions, newest first.
func (r *SubscriptionRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Subscription, error) {
	query := database.Rebind(r.conn.Driver(), `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = ?
		ORDER BY created_at DESC, id
	`)
	return r.list(ctx, "subscriptions.find_by_user", query, userID)
}

// FindLapsed lists active or past-due subscriptions whose trial and paid
// windows both ended before cutoff.
func (r *SubscriptionRepository) FindLapsed(ctx context.Context, cutoff time.Time) ([]*domain.Subscription, error) {
	query := database.Rebind(r.conn.Driver(), `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE status IN ('active', 'past_due')
		  AND period_end < ?
		  AND (trial_end IS NULL OR trial_end < ?)
		ORDER BY period_end, id
	`)
	cutoff = cutoff.UTC()
	return r.list(ctx, "subscriptions.find_lapsed", query, cutoff, cutoff)
}

// CountActive counts subscriptions granting entitlement at now. An empty
// family counts every plan.
func (r *SubscriptionRepository) CountActive(ctx context.Context, family domain.PlanFamily, now time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM subscriptions
		WHERE status = 'active'
		  AND (period_end > ? OR (trial_end IS NOT NULL AND trial_end > ?))
	`
	now = now.UTC()
	args := []any{now, now}
	if family != "" {
		query += ` AND plan_id LIKE ?`
		args = append(args, string(family)+"%")
	}

	var count int
	exec := database.ExecutorFromContext(ctx, r.conn)
	if err := exec.QueryRow(ctx, database.Rebind(r.conn.Driver(), query), args...).Scan(&count); err != nil {
		return 0, sharedDomain.Storage(err, "subscriptions.count_active")
	}
	return count, nil
}

func (r *SubscriptionRepository) list(ctx context.Context, op, query string, args ...any) ([]*domain.Subscription, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	defer func() { _ = rows.Close() }()

	var subs []*domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, sharedDomain.Storage(err, op)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	return subs, nil
}

// subscriptionRow mirrors the subscriptions table.
type subscriptionRow struct {
	ID                     uuid.UUID
	UserID                 uuid.UUID
	BusinessID             uuid.NullUUID
	PlanID                 string
	Status                 string
	Amount                 decimal.Decimal
	Currency               string
	Interval               string
	PeriodStart            time.Time
	PeriodEnd              time.Time
	TrialEnd               *time.Time
	CancelledAt            *time.Time
	ExternalCustomerID     string
	ExternalSubscriptionID string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func scanSubscription(row database.Row) (*domain.Subscription, error) {
	var r subscriptionRow
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.BusinessID,
		&r.PlanID,
		&r.Status,
		&r.Amount,
		&r.Currency,
		&r.Interval,
		&r.PeriodStart,
		&r.PeriodEnd,
		&r.TrialEnd,
		&r.CancelledAt,
		&r.ExternalCustomerID,
		&r.ExternalSubscriptionID,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sub := &domain.Subscription{
		ID:                     r.ID,
		UserID:                 r.UserID,
		PlanID:                 r.PlanID,
		Status:                 domain.Status(r.Status),
		Amount:                 r.Amount,
		Currency:               r.Currency,
		Interval:               domain.Interval(r.Interval),
		PeriodStart:            r.PeriodStart.UTC(),
		PeriodEnd:              r.PeriodEnd.UTC(),
		TrialEnd:               utcPtr(r.TrialEnd),
		CancelledAt:            utcPtr(r.CancelledAt),
		ExternalCustomerID:     r.ExternalCustomerID,
		ExternalSubscriptionID: r.ExternalSubscriptionID,
		CreatedAt:              r.CreatedAt.UTC(),
		UpdatedAt:              r.UpdatedAt.UTC(),
	}
	if r.BusinessID.Valid {
		id := r.BusinessID.UUID
		sub.BusinessID = &id
	}
	return sub, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
