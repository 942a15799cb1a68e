// Package payments adapts payment providers to billing's PaymentProcessor port.
package payments

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/felixgeelhaar/mosaic/internal/billing/domain"
)

// verifyEvent checks the Stripe-Signature header and reduces the event to
// the fields billing acts on. Unknown event types come back with only ID
// and Type set.
func verifyEvent(payload []byte, signature, secret string) (*domain.WebhookEvent, error) {
	if secret == "" {
		return nil, fmt.Errorf("webhook secret is not configured")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("verify webhook signature: %w", err)
	}
	return decodeEvent(event)
}

func decodeEvent(event stripe.Event) (*domain.WebhookEvent, error) {
	out := &domain.WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}

	switch out.Type {
	case domain.WebhookPaymentSucceeded, domain.WebhookPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		out.PaymentReference = intent.ID

	case domain.WebhookInvoicePaymentFailed, domain.WebhookInvoicePaymentSuccess:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		if invoice.Subscription != nil {
			out.SubscriptionReference = invoice.Subscription.ID
		}
		if invoice.PaymentIntent != nil {
			out.PaymentReference = invoice.PaymentIntent.ID
		}

	case domain.WebhookSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		out.SubscriptionReference = sub.ID
	}
	return out, nil
}

func intentStatus(s stripe.PaymentIntentStatus) domain.PaymentStatus {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return domain.PaymentSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return domain.PaymentFailed
	default:
		return domain.PaymentPending
	}
}
