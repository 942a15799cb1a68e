// Package application runs subscription use cases against the billing
// domain: checkout, subscribe, lifecycle transitions, entitlement checks and
// processor webhooks.
package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/felixgeelhaar/mosaic/internal/billing/domain"
	sharedApplication "github.com/felixgeelhaar/mosaic/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/mosaic/pkg/observability"
)

// DefaultGracePeriod is how long a lapsed subscription stays active-in-name
// before ReconcileLapsed expires it.
const DefaultGracePeriod = 72 * time.Hour

// Deps are the collaborators of the billing service.
type Deps struct {
	Catalog       *domain.Catalog
	Subscriptions domain.SubscriptionRepository
	Payments      domain.PaymentRepository
	Customers     domain.CustomerRepository
	Processor     domain.PaymentProcessor
	Events        outbox.EventWriter
	UnitOfWork    sharedApplication.UnitOfWork
	Locker        sharedApplication.Locker
	Metrics       observability.Metrics
	Logger        *slog.Logger
	GracePeriod   time.Duration
	Clock         func() time.Time
}

// Service provides subscription and entitlement use cases.
type Service struct {
	lifecycle *domain.Lifecycle
	resolver  *domain.FeatureResolver
	catalog   *domain.Catalog

	subs      domain.SubscriptionRepository
	payments  domain.PaymentRepository
	customers domain.CustomerRepository
	processor domain.PaymentProcessor
	events    outbox.EventWriter
	uow       sharedApplication.UnitOfWork
	locker    sharedApplication.Locker

	metrics observability.Metrics
	logger  *slog.Logger
	grace   time.Duration
	now     func() time.Time
}

// NewService creates a new billing service.
func NewService(deps Deps) *Service {
	catalog := deps.Catalog
	if catalog == nil {
		catalog = domain.DefaultCatalog()
	}
	s := &Service{
		lifecycle: domain.NewLifecycle(catalog),
		resolver:  domain.NewFeatureResolver(catalog),
		catalog:   catalog,
		subs:      deps.Subscriptions,
		payments:  deps.Payments,
		customers: deps.Customers,
		processor: deps.Processor,
		events:    deps.Events,
		uow:       deps.UnitOfWork,
		locker:    deps.Locker,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		grace:     deps.GracePeriod,
		now:       deps.Clock,
	}
	if s.uow == nil {
		s.uow = sharedApplication.NopUnitOfWork{}
	}
	if s.locker == nil {
		s.locker = sharedApplication.NopLocker{}
	}
	if s.metrics == nil {
		s.metrics = observability.NoopMetrics{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.grace <= 0 {
		s.grace = DefaultGracePeriod
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Plans lists the catalog.
func (s *Service) Plans() []domain.Plan {
	return s.catalog.Plans()
}

// CheckoutRequest starts a purchase.
type CheckoutRequest struct {
	UserID     uuid.UUID
	Email      string
	PlanID     string
	BusinessID *uuid.UUID
}

// Checkout is the processor side of a started purchase. The caller confirms
// Intent with the processor and then calls Subscribe with Intent.ID.
type Checkout struct {
	Plan   domain.Plan
	Amount decimal.Decimal
	Intent *domain.PaymentIntent
}

// StartCheckout makes sure the user has a processor customer and creates a
// payment intent for the plan price.
func (s *Service) StartCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	const op = "billing.start_checkout"

	plan, ok := s.catalog.Lookup(req.PlanID)
	if !ok {
		return nil, sharedDomain.Errorf(sharedDomain.EINVALIDPLAN, op, "unknown plan %q", req.PlanID)
	}
	if req.UserID == uuid.Nil {
		return nil, sharedDomain.Invalid(op, "user id is required")
	}

	customerID, err := s.customers.FindByUser(ctx, req.UserID)
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	if customerID == "" {
		customerID, err = s.processor.CreateCustomer(ctx, req.UserID, req.Email)
		if err != nil {
			return nil, err
		}
		if err := s.customers.Save(ctx, req.UserID, customerID); err != nil {
			return nil, sharedDomain.Storage(err, op)
		}
	}

	intent, err := s.processor.CreatePaymentIntent(ctx, domain.IntentRequest{
		CustomerID:  customerID,
		AmountCents: domain.ToMinorUnits(plan.Price),
		Currency:    plan.Currency,
		PlanID:      plan.ID,
		UserID:      req.UserID,
		BusinessID:  req.BusinessID,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "checkout started",
		"user_id", req.UserID,
		"plan_id", plan.ID,
		"payment_intent", intent.ID,
	)
	return &Checkout{Plan: plan, Amount: plan.Price, Intent: intent}, nil
}

// SubscribeRequest issues a subscription against a processor payment.
type SubscribeRequest struct {
	UserID           uuid.UUID
	PlanID           string
	PaymentReference string
	BusinessID       *uuid.UUID
	Options          domain.CreateOptions
	// ExternalSubscriptionID links the subscription to a recurring billing
	// object at the processor so invoice webhooks can find it.
	ExternalSubscriptionID string
}

// Subscribe verifies the payment with the processor and issues the
// subscription. Concurrent calls for the same user and plan serialize on a
// lock so only one of them can pass the duplicate check.
func (s *Service) Subscribe(ctx context.Context, req SubscribeRequest) (sub *domain.Subscription, err error) {
	const op = "billing.subscribe"
	finish := observability.Track(ctx, op, s.logger, s.metrics)
	defer func() { finish(err) }()

	if _, ok := s.catalog.Lookup(req.PlanID); !ok {
		return nil, sharedDomain.Errorf(sharedDomain.EINVALIDPLAN, op, "unknown plan %q", req.PlanID)
	}
	if req.PaymentReference == "" {
		return nil, sharedDomain.Errorf(sharedDomain.EPAYMENT, op, "payment reference is required")
	}

	intent, err := s.processor.RetrievePaymentIntent(ctx, req.PaymentReference)
	if err != nil {
		return nil, err
	}
	proof := domain.PaymentProof{
		Reference:              intent.ID,
		Status:                 intent.Status,
		AmountCents:            intent.AmountCents,
		Currency:               intent.Currency,
		CustomerID:             intent.CustomerID,
		ExternalSubscriptionID: req.ExternalSubscriptionID,
	}

	err = sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		if err := s.locker.Lock(txCtx, subscribeLockKey(req.UserID, req.PlanID)); err != nil {
			return sharedDomain.Storage(err, op)
		}
		if err := s.claimPayment(txCtx, op, proof.Reference); err != nil {
			return err
		}

		existing, err := s.subs.FindByUser(txCtx, req.UserID)
		if err != nil {
			return sharedDomain.Storage(err, op)
		}

		created, payment, err := s.lifecycle.Create(domain.CreateRequest{
			UserID:     req.UserID,
			PlanID:     req.PlanID,
			Proof:      proof,
			BusinessID: req.BusinessID,
			Options:    req.Options,
		}, existing, s.now())
		if err != nil {
			return err
		}
		if !proof.Covers(created.Amount, created.Currency) {
			return sharedDomain.Errorf(sharedDomain.EPAYMENT, op,
				"payment %q paid %s %s, plan %s costs %s %s",
				proof.Reference, domain.FromMinorUnits(proof.AmountCents).StringFixed(2), proof.Currency,
				created.PlanID, created.Amount.StringFixed(2), created.Currency)
		}

		if err := s.subs.Save(txCtx, created); err != nil {
			return sharedDomain.Storage(err, op)
		}
		if err := s.payments.Append(txCtx, payment); err != nil {
			return sharedDomain.Storage(err, op)
		}
		if err := s.publish(txCtx, created, domain.RoutingSubscriptionCreated); err != nil {
			return sharedDomain.Storage(err, op)
		}
		sub = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Counter(observability.MetricSubscriptionsCreated, 1, observability.T("plan", sub.PlanID))
	s.logger.InfoContext(ctx, "subscription created",
		"subscription_id", sub.ID,
		"user_id", sub.UserID,
		"plan_id", sub.PlanID,
		"period_end", sub.PeriodEnd,
	)
	return sub, nil
}

func subscribeLockKey(userID uuid.UUID, planID string) string {
	return "subscribe:" + userID.String() + ":" + planID
}

// claimPayment locks the reference and rejects it when it already backs a
// ledger row. Each processor charge pays for one subscription only.
func (s *Service) claimPayment(txCtx context.Context, op, reference string) error {
	if err := s.locker.Lock(txCtx, "payment:"+reference); err != nil {
		return sharedDomain.Storage(err, op)
	}
	used, err := s.payments.ExistsByReference(txCtx, reference)
	if err != nil {
		return sharedDomain.Storage(err, op)
	}
	if used {
		return sharedDomain.Errorf(sharedDomain.EPAYMENT, op, "payment %q already used", reference)
	}
	return nil
}

// Cancel cancels a subscription. Cancelling twice is harmless and returns the
// subscription unchanged.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	const op = "billing.cancel"
	sub, changed, err := s.transition(ctx, op, id, domain.RoutingSubscriptionCancelled, func(sub *domain.Subscription, now time.Time) (bool, error) {
		return sub.Cancel(now)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.metrics.Counter(observability.MetricSubscriptionsCancelled, 1, observability.T("plan", sub.PlanID))
	}
	return sub, nil
}

// Renew rolls the billing cycle over and records the payment that paid for
// it. An empty reference gets a generated one. A reference already on the
// ledger means the renewal was applied before, so the subscription comes
// back unchanged.
func (s *Service) Renew(ctx context.Context, id uuid.UUID, reference string) (*domain.Subscription, error) {
	const op = "billing.renew"
	if reference == "" {
		reference = "renewal_" + uuid.NewString()
	}

	var (
		sub      *domain.Subscription
		replayed bool
	)
	err := sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		found, err := s.find(txCtx, op, id)
		if err != nil {
			return err
		}
		if err := s.claimPayment(txCtx, op, reference); err != nil {
			if sharedDomain.ErrorCode(err) != sharedDomain.EPAYMENT {
				return err
			}
			sub, replayed = found, true
			return nil
		}
		now := s.now()
		if err := found.Renew(now); err != nil {
			return err
		}
		if err := s.subs.Save(txCtx, found); err != nil {
			return sharedDomain.Storage(err, op)
		}

		description := "Renewal of " + found.PlanID
		if plan, ok := s.catalog.Lookup(found.PlanID); ok {
			description = "Renewal of " + plan.Name
		}
		payment := domain.NewPaymentRecord(found, reference, domain.PaymentSucceeded, description, now)
		if err := s.payments.Append(txCtx, payment); err != nil {
			return sharedDomain.Storage(err, op)
		}
		if err := s.publish(txCtx, found, domain.RoutingSubscriptionRenewed); err != nil {
			return sharedDomain.Storage(err, op)
		}
		sub = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	if replayed {
		s.logger.InfoContext(ctx, "renewal already applied", "subscription_id", sub.ID, "reference", reference)
		return sub, nil
	}

	s.metrics.Counter(observability.MetricSubscriptionsRenewed, 1, observability.T("plan", sub.PlanID))
	s.logger.InfoContext(ctx, "subscription renewed", "subscription_id", sub.ID, "period_end", sub.PeriodEnd)
	return sub, nil
}

// MarkPastDue records a failed recurring payment.
func (s *Service) MarkPastDue(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	const op = "billing.mark_past_due"
	sub, _, err := s.transition(ctx, op, id, domain.RoutingSubscriptionPastDue, func(sub *domain.Subscription, now time.Time) (bool, error) {
		return sub.MarkPastDue(now)
	})
	return sub, err
}

// Expire closes out a subscription. Expiry is never implied by reads; this
// and ReconcileLapsed are the only ways a subscription becomes expired.
func (s *Service) Expire(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	const op = "billing.expire"
	sub, changed, err := s.transition(ctx, op, id, domain.RoutingSubscriptionExpired, func(sub *domain.Subscription, now time.Time) (bool, error) {
		return sub.Expire(now)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.metrics.Counter(observability.MetricSubscriptionsExpired, 1, observability.T("plan", sub.PlanID))
	}
	return sub, nil
}

// ReconcileLapsed expires every active or past-due subscription whose
// entitlement window closed more than the grace period ago.
func (s *Service) ReconcileLapsed(ctx context.Context) (expired []*domain.Subscription, err error) {
	const op = "billing.reconcile_lapsed"
	finish := observability.Track(ctx, op, s.logger, s.metrics)
	defer func() { finish(err) }()

	now := s.now()
	lapsed, err := s.subs.FindLapsed(ctx, now.Add(-s.grace))
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}

	for _, candidate := range lapsed {
		sub, err := s.Expire(ctx, candidate.ID)
		if err != nil {
			return expired, err
		}
		s.logger.InfoContext(ctx, "lapsed subscription expired",
			"subscription_id", sub.ID,
			"lapsed_for", candidate.LapsedFor(now).Round(time.Minute),
		)
		expired = append(expired, sub)
	}
	return expired, nil
}

// Get returns a subscription.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	return s.find(ctx, "billing.get", id)
}

// ListForUser lists the user's subscriptions, newest first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Subscription, error) {
	subs, err := s.subs.FindByUser(ctx, userID)
	if err != nil {
		return nil, sharedDomain.Storage(err, "billing.list")
	}
	return subs, nil
}

// Features resolves the user's current entitlements.
func (s *Service) Features(ctx context.Context, userID uuid.UUID) (domain.FeatureSet, error) {
	subs, err := s.subs.FindByUser(ctx, userID)
	if err != nil {
		return nil, sharedDomain.Storage(err, "billing.features")
	}
	return s.resolver.Resolve(subs, s.now()), nil
}

// HasFeature reports whether the user currently holds f.
func (s *Service) HasFeature(ctx context.Context, userID uuid.UUID, f domain.Feature) (bool, error) {
	features, err := s.Features(ctx, userID)
	if err != nil {
		return false, err
	}
	return features.Has(f), nil
}

// SubscriptionFeatures lists what a single subscription unlocks while it is
// active. Inactive subscriptions unlock nothing.
func (s *Service) SubscriptionFeatures(ctx context.Context, id uuid.UUID) ([]domain.Feature, error) {
	sub, err := s.find(ctx, "billing.subscription_features", id)
	if err != nil {
		return nil, err
	}
	return s.resolver.Resolve([]*domain.Subscription{sub}, s.now()).Sorted(), nil
}

// PaymentHistory lists the user's payments, newest first.
func (s *Service) PaymentHistory(ctx context.Context, userID uuid.UUID) ([]*domain.PaymentRecord, error) {
	payments, err := s.payments.FindByUser(ctx, userID)
	if err != nil {
		return nil, sharedDomain.Storage(err, "billing.payment_history")
	}
	return payments, nil
}

func (s *Service) find(ctx context.Context, op string, id uuid.UUID) (*domain.Subscription, error) {
	sub, err := s.subs.FindByID(ctx, id)
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	return sub, nil
}

// transition loads, mutates, saves and publishes in one unit of work. The
// event is only written when the mutation reports a change.
func (s *Service) transition(
	ctx context.Context,
	op string,
	id uuid.UUID,
	routingKey string,
	mutate func(*domain.Subscription, time.Time) (bool, error),
) (*domain.Subscription, bool, error) {
	var (
		sub     *domain.Subscription
		changed bool
	)
	err := sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		found, err := s.find(txCtx, op, id)
		if err != nil {
			return err
		}
		changed, err = mutate(found, s.now())
		if err != nil {
			return err
		}
		sub = found
		if !changed {
			return nil
		}
		if err := s.subs.Save(txCtx, found); err != nil {
			return sharedDomain.Storage(err, op)
		}
		if err := s.publish(txCtx, found, routingKey); err != nil {
			return sharedDomain.Storage(err, op)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		s.logger.InfoContext(ctx, "subscription status changed",
			"subscription_id", sub.ID,
			"status", sub.Status,
		)
	}
	return sub, changed, nil
}

func (s *Service) publish(ctx context.Context, sub *domain.Subscription, routingKey string) error {
	if s.events == nil {
		return nil
	}
	event := domain.NewSubscriptionEvent(sub, routingKey, s.now())
	events := []sharedDomain.DomainEvent{event}
	sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(sub.UserID, observability.CorrelationIDFromContext(ctx)))
	return s.events.SaveEvents(ctx, events...)
}
