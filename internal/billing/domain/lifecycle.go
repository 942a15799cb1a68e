package domain

import (
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateOptions lists the fields a caller may override when issuing a
// subscription. Nil or zero fields fall back to the plan.
type CreateOptions struct {
	Amount    *decimal.Decimal
	Currency  string
	Interval  Interval
	TrialDays *int
	PeriodEnd *time.Time
}

// CreateRequest carries everything needed to issue a subscription.
type CreateRequest struct {
	UserID     uuid.UUID
	PlanID     string
	Proof      PaymentProof
	BusinessID *uuid.UUID
	Options    CreateOptions
}

// Lifecycle issues subscriptions against an injected catalog.
type Lifecycle struct {
	catalog *Catalog
}

// NewLifecycle creates a lifecycle bound to the given catalog.
func NewLifecycle(catalog *Catalog) *Lifecycle {
	return &Lifecycle{catalog: catalog}
}

// Catalog returns the catalog the lifecycle was built with.
func (l *Lifecycle) Catalog() *Catalog {
	return l.catalog
}

// Create issues a new subscription and the payment record for the proof
// backing it. existing must hold the user's current subscriptions, loaded
// under the same lock the caller persists the result in.
func (l *Lifecycle) Create(req CreateRequest, existing []*Subscription, now time.Time) (*Subscription, *PaymentRecord, error) {
	const op = "subscription.create"

	plan, ok := l.catalog.Lookup(req.PlanID)
	if !ok {
		return nil, nil, sharedDomain.Errorf(sharedDomain.EINVALIDPLAN, op, "unknown plan %q", req.PlanID)
	}
	if req.UserID == uuid.Nil {
		return nil, nil, sharedDomain.Invalid(op, "user id is required")
	}
	if !req.Proof.Succeeded() {
		return nil, nil, sharedDomain.Errorf(sharedDomain.EPAYMENT, op, "payment %q has not succeeded", req.Proof.Reference)
	}

	for _, sub := range existing {
		if sub.UserID == req.UserID && sub.PlanID == plan.ID && sub.IsActive(now) {
			return nil, nil, sharedDomain.Errorf(sharedDomain.EDUPLICATESUB, op, "user already holds an active %s subscription", plan.ID)
		}
	}

	interval := plan.Interval
	if req.Options.Interval != "" {
		if !req.Options.Interval.IsValid() {
			return nil, nil, sharedDomain.Errorf(sharedDomain.EINVALID, op, "unknown billing interval %q", req.Options.Interval)
		}
		interval = req.Options.Interval
	}

	trialDays := plan.TrialDays
	if req.Options.TrialDays != nil {
		trialDays = *req.Options.TrialDays
	}
	if trialDays < 0 || (plan.Family() == FamilyUser && trialDays > 0) {
		return nil, nil, sharedDomain.Errorf(sharedDomain.EINVALID, op, "plan %s cannot have a %d day trial", plan.ID, trialDays)
	}

	amount := plan.Price
	if req.Options.Amount != nil {
		if req.Options.Amount.IsNegative() {
			return nil, nil, sharedDomain.Invalid(op, "amount cannot be negative")
		}
		amount = *req.Options.Amount
	}
	currency := plan.Currency
	if req.Options.Currency != "" {
		currency = strings.ToLower(req.Options.Currency)
	}

	start := now.UTC()
	end := start.Add(interval.Length())
	if req.Options.PeriodEnd != nil {
		end = req.Options.PeriodEnd.UTC()
	}
	if !end.After(start) {
		return nil, nil, sharedDomain.Invalid(op, "period end must be after period start")
	}

	sub := &Subscription{
		ID:                     uuid.New(),
		UserID:                 req.UserID,
		BusinessID:             req.BusinessID,
		PlanID:                 plan.ID,
		Status:                 StatusActive,
		Amount:                 amount,
		Currency:               currency,
		Interval:               interval,
		PeriodStart:            start,
		PeriodEnd:              end,
		ExternalCustomerID:     req.Proof.CustomerID,
		ExternalSubscriptionID: req.Proof.ExternalSubscriptionID,
		CreatedAt:              start,
		UpdatedAt:              start,
	}
	if trialDays > 0 {
		trialEnd := start.Add(time.Duration(trialDays) * day)
		sub.TrialEnd = &trialEnd
	}

	payment := NewPaymentRecord(sub, req.Proof.Reference, PaymentSucceeded, "Subscription to "+plan.Name, start)
	return sub, payment, nil
}
