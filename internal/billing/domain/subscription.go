package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusActive    Status = "active"
	StatusPastDue   Status = "past_due"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusExpired
}

// Subscription is one user's entitlement to a plan.
// Amount and Currency are a snapshot taken at creation; later catalog
// price changes do not affect existing subscriptions.
type Subscription struct {
	ID                     uuid.UUID
	UserID                 uuid.UUID
	BusinessID             *uuid.UUID
	PlanID                 string
	Status                 Status
	Amount                 decimal.Decimal
	Currency               string
	Interval               Interval
	PeriodStart            time.Time
	PeriodEnd              time.Time
	TrialEnd               *time.Time
	CancelledAt            *time.Time
	ExternalCustomerID     string
	ExternalSubscriptionID string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// InTrial reports whether the trial window is still running at now.
func (s *Subscription) InTrial(now time.Time) bool {
	return s.TrialEnd != nil && now.Before(*s.TrialEnd)
}

// IsActive reports whether the subscription grants its entitlement at now.
// Only status active counts; then either the trial or the paid period must
// still be running. A lapsed active subscription stays active in status
// until a caller expires it.
func (s *Subscription) IsActive(now time.Time) bool {
	if s.Status != StatusActive {
		return false
	}
	return s.InTrial(now) || now.Before(s.PeriodEnd)
}

// DaysRemaining counts whole days to the trial end while in trial, otherwise
// to the period end. Never negative.
func (s *Subscription) DaysRemaining(now time.Time) int {
	end := s.PeriodEnd
	if s.InTrial(now) {
		end = *s.TrialEnd
	}
	days := int(end.Sub(now) / day)
	if days < 0 {
		return 0
	}
	return days
}

// ActiveUntil is the end of the later of the trial and paid windows.
func (s *Subscription) ActiveUntil() time.Time {
	if s.TrialEnd != nil && s.TrialEnd.After(s.PeriodEnd) {
		return *s.TrialEnd
	}
	return s.PeriodEnd
}

// Cancel moves the subscription to cancelled. It reports false, and leaves
// CancelledAt untouched, when the subscription was already cancelled.
// Expired subscriptions cannot be cancelled.
func (s *Subscription) Cancel(now time.Time) (bool, error) {
	switch s.Status {
	case StatusCancelled:
		return false, nil
	case StatusExpired:
		return false, sharedDomain.Invalid("subscription.cancel", "expired subscriptions cannot be cancelled")
	}
	at := now.UTC()
	s.Status = StatusCancelled
	s.CancelledAt = &at
	s.UpdatedAt = at
	return true, nil
}

// Renew rolls the billing cycle over: the new period starts at the old
// period end and lasts one interval. The trial is left as is.
func (s *Subscription) Renew(now time.Time) error {
	if s.Status != StatusActive && s.Status != StatusPastDue {
		return sharedDomain.Errorf(sharedDomain.EINVALID, "subscription.renew", "cannot renew a %s subscription", s.Status)
	}
	length := s.Interval.Length()
	if length == 0 {
		return sharedDomain.Errorf(sharedDomain.EINVALID, "subscription.renew", "unknown billing interval %q", s.Interval)
	}
	s.PeriodStart = s.PeriodEnd
	s.PeriodEnd = s.PeriodEnd.Add(length)
	s.Status = StatusActive
	s.UpdatedAt = now.UTC()
	return nil
}

// MarkPastDue records a failed recurring payment.
func (s *Subscription) MarkPastDue(now time.Time) (bool, error) {
	switch s.Status {
	case StatusPastDue:
		return false, nil
	case StatusActive:
		s.Status = StatusPastDue
		s.UpdatedAt = now.UTC()
		return true, nil
	default:
		return false, sharedDomain.Errorf(sharedDomain.EINVALID, "subscription.past_due", "cannot mark a %s subscription past due", s.Status)
	}
}

// Expire closes out an active or past-due subscription. Terminal.
func (s *Subscription) Expire(now time.Time) (bool, error) {
	switch s.Status {
	case StatusExpired:
		return false, nil
	case StatusActive, StatusPastDue:
		s.Status = StatusExpired
		s.UpdatedAt = now.UTC()
		return true, nil
	default:
		return false, sharedDomain.Errorf(sharedDomain.EINVALID, "subscription.expire", "cannot expire a %s subscription", s.Status)
	}
}

// LapsedFor is how long ago the entitlement window ended, or zero when the
// window is still open.
func (s *Subscription) LapsedFor(now time.Time) time.Duration {
	until := s.ActiveUntil()
	if now.Before(until) {
		return 0
	}
	return now.Sub(until)
}
