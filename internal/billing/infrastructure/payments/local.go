package payments

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/mosaic/internal/billing/domain"
	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
)

const localIntentPrefix = "pi_local_"

// LocalProcessor is an offline processor for local mode and tests. Every
// intent it creates succeeds immediately. Webhooks are verified with the
// same Stripe-Signature scheme as the Stripe processor.
type LocalProcessor struct {
	webhookSecret string

	mu      sync.Mutex
	intents map[string]*domain.PaymentIntent
	failing map[string]bool
}

// NewLocalProcessor creates an offline processor.
func NewLocalProcessor(webhookSecret string) *LocalProcessor {
	return &LocalProcessor{
		webhookSecret: webhookSecret,
		intents:       make(map[string]*domain.PaymentIntent),
		failing:       make(map[string]bool),
	}
}

// CreateCustomer returns a synthetic customer id.
func (p *LocalProcessor) CreateCustomer(_ context.Context, _ uuid.UUID, _ string) (string, error) {
	return "cus_local_" + strings.ReplaceAll(uuid.NewString(), "-", ""), nil
}

// CreatePaymentIntent returns an already succeeded intent. The id carries
// the amount and currency so another process can still tell what was paid.
func (p *LocalProcessor) CreatePaymentIntent(_ context.Context, req domain.IntentRequest) (*domain.PaymentIntent, error) {
	if req.AmountCents < 0 {
		return nil, sharedDomain.Invalid("payments.create_payment_intent", "amount cannot be negative")
	}
	id := localIntentPrefix + strings.ReplaceAll(uuid.NewString(), "-", "") +
		"_" + strconv.FormatInt(req.AmountCents, 10) + "_" + strings.ToLower(req.Currency)
	intent := &domain.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret",
		AmountCents:  req.AmountCents,
		Currency:     req.Currency,
		Status:       domain.PaymentSucceeded,
		CustomerID:   req.CustomerID,
	}

	p.mu.Lock()
	p.intents[id] = intent
	p.mu.Unlock()

	copied := *intent
	return &copied, nil
}

// RetrievePaymentIntent returns the intent. Local intents created by another
// process are reported as succeeded since nothing can have failed them; their
// amount and currency are read back from the id.
func (p *LocalProcessor) RetrievePaymentIntent(_ context.Context, id string) (*domain.PaymentIntent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if intent, ok := p.intents[id]; ok {
		copied := *intent
		if p.failing[id] {
			copied.Status = domain.PaymentFailed
		}
		return &copied, nil
	}
	if strings.HasPrefix(id, localIntentPrefix) {
		intent := &domain.PaymentIntent{ID: id, Status: domain.PaymentSucceeded}
		intent.AmountCents, intent.Currency = decodeLocalIntent(id)
		return intent, nil
	}
	return nil, sharedDomain.NotFound("payments.retrieve_payment_intent", "payment intent", id)
}

// decodeLocalIntent reads amount and currency out of a local intent id.
// Malformed ids decode to a zero amount, which matches no paid plan.
func decodeLocalIntent(id string) (int64, string) {
	parts := strings.Split(strings.TrimPrefix(id, localIntentPrefix), "_")
	if len(parts) != 3 {
		return 0, ""
	}
	cents, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || cents < 0 {
		return 0, ""
	}
	return cents, parts[2]
}

// Fail marks an intent as failed, for exercising payment_required paths.
func (p *LocalProcessor) Fail(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failing[id] = true
}

// ParseWebhook verifies the signature and decodes the event.
func (p *LocalProcessor) ParseWebhook(payload []byte, signature string) (*domain.WebhookEvent, error) {
	event, err := verifyEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return nil, sharedDomain.Wrap(err, sharedDomain.EINVALID, "payments.parse_webhook", "invalid webhook")
	}
	return event, nil
}
