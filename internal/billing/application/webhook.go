package application

import (
	"context"

	"github.com/felixgeelhaar/mosaic/internal/billing/domain"
	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/felixgeelhaar/mosaic/pkg/observability"
)

// WebhookResult says what a webhook did.
type WebhookResult struct {
	EventID string
	Type    string
	// Handled is false for event types billing ignores.
	Handled bool
	// PaymentsUpdated counts ledger rows whose status changed.
	PaymentsUpdated int
	Subscription    *domain.Subscription
}

// HandleWebhook verifies a processor notification and applies it.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (result *WebhookResult, err error) {
	const op = "billing.handle_webhook"
	finish := observability.Track(ctx, op, s.logger, s.metrics)
	defer func() { finish(err) }()

	event, err := s.processor.ParseWebhook(payload, signature)
	if err != nil {
		return nil, err
	}
	s.metrics.Counter(observability.MetricWebhooksReceived, 1, observability.T("type", event.Type))

	result = &WebhookResult{EventID: event.ID, Type: event.Type, Handled: true}
	switch event.Type {
	case domain.WebhookPaymentSucceeded:
		result.PaymentsUpdated, err = s.updatePayment(ctx, op, event.PaymentReference, domain.PaymentSucceeded)
	case domain.WebhookPaymentFailed:
		result.PaymentsUpdated, err = s.updatePayment(ctx, op, event.PaymentReference, domain.PaymentFailed)
	case domain.WebhookInvoicePaymentFailed:
		result.Subscription, err = s.onExternal(ctx, op, event.SubscriptionReference, func(sub *domain.Subscription) (*domain.Subscription, error) {
			return s.MarkPastDue(ctx, sub.ID)
		})
	case domain.WebhookInvoicePaymentSuccess:
		result.Subscription, err = s.onExternal(ctx, op, event.SubscriptionReference, func(sub *domain.Subscription) (*domain.Subscription, error) {
			return s.Renew(ctx, sub.ID, event.ID)
		})
	case domain.WebhookSubscriptionDeleted:
		result.Subscription, err = s.onExternal(ctx, op, event.SubscriptionReference, func(sub *domain.Subscription) (*domain.Subscription, error) {
			return s.Cancel(ctx, sub.ID)
		})
	default:
		result.Handled = false
		s.logger.DebugContext(ctx, "webhook ignored", "event_id", event.ID, "type", event.Type)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) updatePayment(ctx context.Context, op, reference string, status domain.PaymentStatus) (int, error) {
	if reference == "" {
		return 0, sharedDomain.Invalid(op, "webhook carries no payment reference")
	}
	n, err := s.payments.UpdateStatus(ctx, reference, status)
	if err != nil {
		return 0, sharedDomain.Storage(err, op)
	}
	return n, nil
}

func (s *Service) onExternal(
	ctx context.Context,
	op, externalID string,
	apply func(*domain.Subscription) (*domain.Subscription, error),
) (*domain.Subscription, error) {
	if externalID == "" {
		return nil, sharedDomain.Invalid(op, "webhook carries no subscription reference")
	}
	sub, err := s.subs.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	return apply(sub)
}
