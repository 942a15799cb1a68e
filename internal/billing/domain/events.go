package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/google/uuid"
)

const aggregateType = "Subscription"

// Routing keys for subscription events.
const (
	RoutingSubscriptionCreated   = "billing.subscription.created"
	RoutingSubscriptionCancelled = "billing.subscription.cancelled"
	RoutingSubscriptionRenewed   = "billing.subscription.renewed"
	RoutingSubscriptionPastDue   = "billing.subscription.past_due"
	RoutingSubscriptionExpired   = "billing.subscription.expired"
)

// SubscriptionEvent is emitted on every subscription state change.
type SubscriptionEvent struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID  `json:"subscription_id"`
	UserID         uuid.UUID  `json:"user_id"`
	BusinessID     *uuid.UUID `json:"business_id,omitempty"`
	PlanID         string     `json:"plan_id"`
	Status         string     `json:"status"`
	PeriodEnd      time.Time  `json:"period_end"`
	Amount         string     `json:"amount"`
	Currency       string     `json:"currency"`
}

// NewSubscriptionEvent snapshots sub under the given routing key.
func NewSubscriptionEvent(sub *Subscription, routingKey string, at time.Time) *SubscriptionEvent {
	return &SubscriptionEvent{
		BaseEvent:      sharedDomain.NewBaseEvent(sub.ID, aggregateType, routingKey, at),
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		BusinessID:     sub.BusinessID,
		PlanID:         sub.PlanID,
		Status:         string(sub.Status),
		PeriodEnd:      sub.PeriodEnd,
		Amount:         sub.Amount.StringFixed(2),
		Currency:       sub.Currency,
	}
}
