package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubscriptionRepository persists subscriptions.
type SubscriptionRepository interface {
	// Save inserts or updates a subscription.
	Save(ctx context.Context, sub *Subscription) error

	// FindByID returns ErrNotFound when absent.
	FindByID(ctx context.Context, id uuid.UUID) (*Subscription, error)

	// FindByUser lists a user's subscriptions, newest first.
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*Subscription, error)

	// FindByExternalID looks a subscription up by processor subscription id.
	FindByExternalID(ctx context.Context, externalID string) (*Subscription, error)

	// FindLapsed lists active or past-due subscriptions whose trial and paid
	// windows both ended before cutoff.
	FindLapsed(ctx context.Context, cutoff time.Time) ([]*Subscription, error)

	// CountActive counts subscriptions whose status is active and whose
	// window is open at now, optionally restricted to a plan family.
	CountActive(ctx context.Context, family PlanFamily, now time.Time) (int, error)
}

// PaymentRepository persists the payment ledger.
type PaymentRepository interface {
	// Append adds a ledger row. References are unique across the ledger.
	Append(ctx context.Context, payment *PaymentRecord) error

	// ExistsByReference reports whether a row already carries the reference.
	ExistsByReference(ctx context.Context, reference string) (bool, error)

	// UpdateStatus changes the status of every row carrying the reference.
	// It reports how many rows changed.
	UpdateStatus(ctx context.Context, reference string, status PaymentStatus) (int, error)

	// FindByUser lists a user's payments, newest first.
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*PaymentRecord, error)

	// FindBySubscription lists a subscription's payments, newest first.
	FindBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*PaymentRecord, error)

	// Revenue sums succeeded payments made in [from, to).
	Revenue(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
}

// CustomerRepository maps users to payment processor customers.
type CustomerRepository interface {
	// FindByUser returns the processor customer id, or "" when none exists.
	FindByUser(ctx context.Context, userID uuid.UUID) (string, error)

	// Save stores the mapping.
	Save(ctx context.Context, userID uuid.UUID, customerID string) error
}
