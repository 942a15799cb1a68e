package domain

import (
	"context"

	"github.com/google/uuid"
)

// PaymentIntent is a pending charge created at the processor.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	AmountCents  int64
	Currency     string
	Status       PaymentStatus
	CustomerID   string
}

// IntentRequest describes a charge to create.
type IntentRequest struct {
	CustomerID  string
	AmountCents int64
	Currency    string
	PlanID      string
	UserID      uuid.UUID
	BusinessID  *uuid.UUID
}

// Webhook event types acted on by the billing service.
const (
	WebhookPaymentSucceeded      = "payment_intent.succeeded"
	WebhookPaymentFailed         = "payment_intent.payment_failed"
	WebhookInvoicePaymentFailed  = "invoice.payment_failed"
	WebhookInvoicePaymentSuccess = "invoice.payment_succeeded"
	WebhookSubscriptionDeleted   = "customer.subscription.deleted"
)

// WebhookEvent is a verified processor notification reduced to the fields
// billing needs.
type WebhookEvent struct {
	ID   string
	Type string
	// PaymentReference is the payment intent id for payment_intent.* events.
	PaymentReference string
	// SubscriptionReference is the processor subscription id for invoice.*
	// and customer.subscription.* events.
	SubscriptionReference string
}

// PaymentProcessor is the external billing provider.
type PaymentProcessor interface {
	CreateCustomer(ctx context.Context, userID uuid.UUID, email string) (string, error)
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (*PaymentIntent, error)
	RetrievePaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)
	// ParseWebhook verifies the signature and decodes the payload.
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
