package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/felixgeelhaar/mosaic/internal/billing/domain"
	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/felixgeelhaar/mosaic/pkg/observability"
)

// BreakerConfig configures the circuit breaker around processor calls.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
}

// DefaultBreakerConfig returns the breaker settings used when none are configured.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, Timeout: 30 * time.Second}
}

// StripeProcessor implements domain.PaymentProcessor with the Stripe API.
type StripeProcessor struct {
	api           *client.API
	webhookSecret string
	breaker       *gobreaker.CircuitBreaker[any]
	metrics       observability.Metrics
	logger        *slog.Logger
}

// NewStripeProcessor creates a Stripe-backed processor. backends may be nil
// to use the default HTTP backends.
func NewStripeProcessor(secretKey, webhookSecret string, backends *stripe.Backends, cfg BreakerConfig, metrics observability.Metrics, logger *slog.Logger) *StripeProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if cfg.FailureThreshold == 0 {
		cfg = DefaultBreakerConfig()
	}

	api := &client.API{}
	api.Init(secretKey, backends)

	return &StripeProcessor{
		api:           api,
		webhookSecret: webhookSecret,
		breaker:       newBreaker("stripe", cfg, logger),
		metrics:       metrics,
		logger:        logger,
	}
}

func newBreaker(name string, cfg BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("payment processor breaker state changed",
				"processor", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
}

// call runs fn behind the breaker and records the outcome.
func (p *StripeProcessor) call(operation string, fn func() (any, error)) (any, error) {
	result, err := p.breaker.Execute(fn)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.metrics.Counter(observability.MetricPaymentProcessorCalls, 1,
		observability.T("processor", "stripe"),
		observability.T("operation", operation),
		observability.T("outcome", outcome),
	)

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, sharedDomain.Wrap(err, sharedDomain.EUNAVAILABLE, "payments."+operation, "payment processor temporarily unavailable")
	}
	if err != nil {
		return nil, sharedDomain.Wrap(err, sharedDomain.EUNAVAILABLE, "payments."+operation, fmt.Sprintf("payment processor %s failed", operation))
	}
	return result, nil
}

// CreateCustomer creates a Stripe customer tagged with the user id.
func (p *StripeProcessor) CreateCustomer(ctx context.Context, userID uuid.UUID, email string) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	if email != "" {
		params.Email = stripe.String(email)
	}
	params.AddMetadata("user_id", userID.String())

	res, err := p.call("create_customer", func() (any, error) {
		return p.api.Customers.New(params)
	})
	if err != nil {
		return "", err
	}
	return res.(*stripe.Customer).ID, nil
}

// CreatePaymentIntent creates a payment intent for a plan charge.
func (p *StripeProcessor) CreatePaymentIntent(ctx context.Context, req domain.IntentRequest) (*domain.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}
	params.AddMetadata("plan_id", req.PlanID)
	params.AddMetadata("user_id", req.UserID.String())
	if req.BusinessID != nil {
		params.AddMetadata("business_id", req.BusinessID.String())
	}

	res, err := p.call("create_payment_intent", func() (any, error) {
		return p.api.PaymentIntents.New(params)
	})
	if err != nil {
		return nil, err
	}
	return toIntent(res.(*stripe.PaymentIntent)), nil
}

// RetrievePaymentIntent fetches the current state of a payment intent.
func (p *StripeProcessor) RetrievePaymentIntent(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	res, err := p.call("retrieve_payment_intent", func() (any, error) {
		return p.api.PaymentIntents.Get(id, params)
	})
	if err != nil {
		return nil, err
	}
	return toIntent(res.(*stripe.PaymentIntent)), nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
func (p *StripeProcessor) ParseWebhook(payload []byte, signature string) (*domain.WebhookEvent, error) {
	event, err := verifyEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return nil, sharedDomain.Wrap(err, sharedDomain.EINVALID, "payments.parse_webhook", "invalid webhook")
	}
	return event, nil
}

func toIntent(pi *stripe.PaymentIntent) *domain.PaymentIntent {
	intent := &domain.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       intentStatus(pi.Status),
	}
	if pi.Customer != nil {
		intent.CustomerID = pi.Customer.ID
	}
	return intent
}
