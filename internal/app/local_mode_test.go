package app

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	analyticsApp "github.com/felixgeelhaar/mosaic/internal/analytics/application"
	analyticsDomain "github.com/felixgeelhaar/mosaic/internal/analytics/domain"
	billingApp "github.com/felixgeelhaar/mosaic/internal/billing/application"
	billingDomain "github.com/felixgeelhaar/mosaic/internal/billing/domain"
	directoryApp "github.com/felixgeelhaar/mosaic/internal/directory/application"
	directoryDomain "github.com/felixgeelhaar/mosaic/internal/directory/domain"
	"github.com/felixgeelhaar/mosaic/pkg/config"
	"github.com/felixgeelhaar/mosaic/pkg/observability"
)

var testNow = time.Date(2026, 6, 30, 15, 0, 0, 0, time.UTC)

func newLocalContainer(t *testing.T, metrics observability.Metrics) *Container {
	t.Helper()
	cfg := &config.Config{
		AppEnv:              "test",
		LogLevel:            "error",
		DatabaseDriver:      "sqlite",
		SQLitePath:          filepath.Join(t.TempDir(), "mosaic.db"),
		LocalMode:           true,
		UserID:              config.DefaultUserID,
		PaymentProvider:     "local",
		LapseGracePeriod:    72 * time.Hour,
		AnalyticsWindowDays: 30,
		OutboxBatchSize:     100,
		OutboxMaxRetries:    5,
		OutboxPollInterval:  time.Second,
	}

	c, err := NewContainer(context.Background(), cfg, slog.New(slog.DiscardHandler),
		WithMetrics(metrics),
		WithClock(func() time.Time { return testNow }),
	)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestLocalModeContainer(t *testing.T) {
	c := newLocalContainer(t, nil)

	assert.Equal(t, "sqlite", string(c.DB.Driver()))
	assert.Nil(t, c.Redis)
	assert.NotNil(t, c.Billing)
	assert.NotNil(t, c.Directory)
	assert.NotNil(t, c.Recorder)
	assert.NotNil(t, c.Reports)
	assert.Len(t, c.Billing.Plans(), 4)
	assert.Equal(t, 1, c.EventBus.Registry().ConsumerCount())

	health := c.HealthRegistry().Check(context.Background())
	assert.Equal(t, observability.HealthStatusHealthy, health.Status)
}

func TestLocalModeContainer_UnknownProvider(t *testing.T) {
	cfg := &config.Config{
		AppEnv:          "test",
		DatabaseDriver:  "sqlite",
		SQLitePath:      filepath.Join(t.TempDir(), "mosaic.db"),
		PaymentProvider: "paypal",
	}

	_, err := NewContainer(context.Background(), cfg, slog.New(slog.DiscardHandler))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "paypal")
}

func TestLocalModeReviewReachesAnalytics(t *testing.T) {
	metrics := observability.NewInMemoryMetrics()
	c := newLocalContainer(t, metrics)
	ctx := context.Background()

	biz, err := c.Directory.CreateBusiness(ctx, directoryDomain.BusinessInput{
		Name:         "Sankofa Books",
		Address:      "12 Market St",
		City:         "Oakland",
		State:        "CA",
		Category:     "retail",
		MinorityType: "black-owned",
	})
	require.NoError(t, err)

	for _, session := range []string{"s1", "s1", "s2"} {
		_, err := c.Recorder.Record(ctx, analyticsApp.ActivityInput{
			SessionID:  session,
			Kind:       analyticsDomain.KindViewBusiness,
			BusinessID: &biz.ID,
		})
		require.NoError(t, err)
	}

	_, err = c.Directory.AddReview(ctx, directoryApp.AddReviewRequest{
		BusinessID: biz.ID,
		UserID:     uuid.New(),
		Rating:     4,
		Comment:    "Great selection",
	})
	require.NoError(t, err)

	report, err := c.Reports.BusinessReport(ctx, biz.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Summary.Totals.ProfileViews)
	assert.Equal(t, 2, report.Summary.Totals.UniqueVisitors)
	assert.Equal(t, 1, report.Summary.Totals.ReviewsReceived)
	assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricReviewsAdded))
}

func TestLocalModeCheckoutAndSubscribe(t *testing.T) {
	c := newLocalContainer(t, nil)
	ctx := context.Background()
	userID := uuid.MustParse(config.DefaultUserID)

	checkout, err := c.Billing.StartCheckout(ctx, billingApp.CheckoutRequest{
		UserID: userID,
		Email:  "owner@example.com",
		PlanID: billingDomain.PlanUserPremium,
	})
	require.NoError(t, err)
	assert.Equal(t, "7.99", checkout.Amount.StringFixed(2))

	sub, err := c.Billing.Subscribe(ctx, billingApp.SubscribeRequest{
		UserID:           userID,
		PlanID:           billingDomain.PlanUserPremium,
		PaymentReference: checkout.Intent.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, billingDomain.StatusActive, sub.Status)

	ok, err := c.Billing.HasFeature(ctx, userID, billingDomain.FeatureAdFree)
	require.NoError(t, err)
	assert.True(t, ok)

	history, err := c.Billing.PaymentHistory(ctx, userID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, billingDomain.PaymentSucceeded, history[0].Status)
}

type capturePublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *capturePublisher) Publish(_ context.Context, routingKey string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func TestLocalModeOutboxRelay(t *testing.T) {
	c := newLocalContainer(t, nil)
	ctx := context.Background()

	biz, err := c.Directory.CreateBusiness(ctx, directoryDomain.BusinessInput{
		Name: "Casa Maya", Address: "3 Elm", City: "Austin", State: "TX",
		Category: "restaurant", MinorityType: "latino-owned",
	})
	require.NoError(t, err)
	_, err = c.Directory.AddReview(ctx, directoryApp.AddReviewRequest{BusinessID: biz.ID, UserID: uuid.New(), Rating: 5})
	require.NoError(t, err)

	pending, err := c.Repos.Outbox.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	publisher := &capturePublisher{}
	published, err := c.OutboxRelay(publisher).ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, published)
	assert.Equal(t, []string{directoryDomain.RoutingReviewAdded}, publisher.keys)

	pending, err = c.Repos.Outbox.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestNewBrokerPublisher_NoURL(t *testing.T) {
	publisher, err := NewBrokerPublisher(&config.Config{}, nil)
	require.NoError(t, err)
	assert.NoError(t, publisher.Publish(context.Background(), "billing.subscription.created", []byte("{}")))
}
