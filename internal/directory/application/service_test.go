package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	analyticsApp "github.com/felixgeelhaar/mosaic/internal/analytics/application"
	"github.com/felixgeelhaar/mosaic/internal/analytics/application/subscribers"
	analyticsPersistence "github.com/felixgeelhaar/mosaic/internal/analytics/infrastructure/persistence"
	"github.com/felixgeelhaar/mosaic/internal/directory/application"
	"github.com/felixgeelhaar/mosaic/internal/directory/domain"
	"github.com/felixgeelhaar/mosaic/internal/directory/infrastructure/persistence"
	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/dbtest"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/mosaic/pkg/observability"
)

type fixture struct {
	conn    database.Connection
	svc     *application.Service
	outbox  *outbox.SQLRepository
	metrics *observability.InMemoryMetrics
	now     time.Time
}

func newFixture(t *testing.T, dispatcher application.EventDispatcher) *fixture {
	t.Helper()
	conn := dbtest.NewSQLite(t)
	f := &fixture{
		conn:    conn,
		outbox:  outbox.NewSQLRepository(conn),
		metrics: observability.NewInMemoryMetrics(),
		now:     time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC),
	}
	f.svc = application.NewService(application.Deps{
		Businesses: persistence.NewBusinessRepository(conn),
		Reviews:    persistence.NewReviewRepository(conn),
		Events:     f.outbox,
		Dispatcher: dispatcher,
		UnitOfWork: database.NewUnitOfWork(conn),
		Metrics:    f.metrics,
		Clock:      func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) business(t *testing.T, name, category string) *domain.Business {
	t.Helper()
	b, err := f.svc.CreateBusiness(context.Background(), domain.BusinessInput{
		Name:         name,
		Address:      "9 Oak Ave",
		City:         "Oakland",
		State:        "CA",
		Category:     category,
		MinorityType: "Asian-owned",
	})
	require.NoError(t, err)
	return b
}

func TestService_BusinessLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	b := f.business(t, "Pho House", "Restaurant")

	name := "Pho House Oakland"
	verified := true
	f.now = f.now.Add(time.Hour)
	updated, err := f.svc.UpdateBusiness(ctx, b.ID, application.BusinessPatch{Name: &name, Verified: &verified})
	require.NoError(t, err)
	assert.Equal(t, "Pho House Oakland", updated.Name)
	assert.Equal(t, "Oakland", updated.City)
	assert.True(t, updated.Verified)
	assert.Equal(t, f.now, updated.UpdatedAt)

	empty := ""
	_, err = f.svc.UpdateBusiness(ctx, b.ID, application.BusinessPatch{City: &empty})
	assert.ErrorIs(t, err, sharedDomain.ErrInvalid)

	listing, err := f.svc.GetBusiness(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pho House Oakland", listing.Name)
	assert.Equal(t, domain.RatingSummary{}, listing.Rating)

	require.NoError(t, f.svc.DeleteBusiness(ctx, b.ID))
	_, err = f.svc.GetBusiness(ctx, b.ID)
	assert.ErrorIs(t, err, sharedDomain.ErrNotFound)
	assert.ErrorIs(t, f.svc.DeleteBusiness(ctx, b.ID), sharedDomain.ErrNotFound)
	_, err = f.svc.UpdateBusiness(ctx, b.ID, application.BusinessPatch{Name: &name})
	assert.ErrorIs(t, err, sharedDomain.ErrNotFound)
}

func TestService_SearchAndFacets(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	first := f.business(t, "Pho House", "Restaurant")
	f.now = f.now.Add(time.Minute)
	second := f.business(t, "Dim Sum Palace", "Restaurant")
	f.business(t, "Lotus Spa", "Beauty")

	page, err := f.svc.Search(ctx, domain.SearchFilter{Category: "all", PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Pages())
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Dim Sum Palace", page.Items[0].Name)

	page, err = f.svc.Search(ctx, domain.SearchFilter{Term: "pho"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, domain.DefaultPageSize, page.PerPage)

	_, err = f.svc.Search(ctx, domain.SearchFilter{Page: -1})
	assert.ErrorIs(t, err, sharedDomain.ErrInvalid)

	categories, err := f.svc.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Beauty", "Restaurant"}, categories)

	cities, err := f.svc.Cities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.CityState{{City: "Oakland", State: "CA"}}, cities)

	peers, err := f.svc.Peers(ctx, "Restaurant")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID}, peers)
}

func TestService_AddReview(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	b := f.business(t, "Pho House", "Restaurant")
	user := uuid.New()

	for i, rating := range []int{5, 4, 5} {
		reviewer := uuid.New()
		if i == 0 {
			reviewer = user
		}
		_, err := f.svc.AddReview(ctx, application.AddReviewRequest{BusinessID: b.ID, UserID: reviewer, Rating: rating})
		require.NoError(t, err)
	}

	listing, err := f.svc.GetBusiness(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, listing.Rating.Count)
	assert.InDelta(t, 4.6667, listing.Rating.Average, 0.0001)
	assert.Equal(t, 4.7, listing.Rating.Rounded())

	_, err = f.svc.AddReview(ctx, application.AddReviewRequest{BusinessID: b.ID, UserID: user, Rating: 2})
	assert.ErrorIs(t, err, sharedDomain.ErrDuplicateReview)

	_, err = f.svc.AddReview(ctx, application.AddReviewRequest{BusinessID: b.ID, UserID: uuid.New(), Rating: 6})
	assert.ErrorIs(t, err, sharedDomain.ErrInvalidRating)

	_, err = f.svc.AddReview(ctx, application.AddReviewRequest{BusinessID: uuid.New(), UserID: uuid.New(), Rating: 3})
	assert.ErrorIs(t, err, sharedDomain.ErrNotFound)

	msgs, err := f.outbox.GetUnpublished(ctx, 10, f.now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, msgs, 3, "failed reviews leave no event")
	assert.Equal(t, domain.RoutingReviewAdded, msgs[0].RoutingKey)
	assert.Equal(t, int64(3), f.metrics.GetCounter(observability.MetricReviewsAdded))
}

func TestService_ReviewEditing(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	b := f.business(t, "Pho House", "Restaurant")
	user := uuid.New()

	review, err := f.svc.AddReview(ctx, application.AddReviewRequest{BusinessID: b.ID, UserID: user, Rating: 2, Comment: "slow"})
	require.NoError(t, err)

	rating := 4
	comment := "better on a weekday"
	updated, err := f.svc.UpdateReview(ctx, application.UpdateReviewRequest{ReviewID: review.ID, Rating: &rating, Comment: &comment})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Rating)
	assert.Equal(t, "better on a weekday", updated.Comment)

	bad := 0
	_, err = f.svc.UpdateReview(ctx, application.UpdateReviewRequest{ReviewID: review.ID, Rating: &bad})
	assert.ErrorIs(t, err, sharedDomain.ErrInvalidRating)

	for i := 0; i < 11; i++ {
		f.now = f.now.Add(time.Minute)
		_, err := f.svc.AddReview(ctx, application.AddReviewRequest{BusinessID: b.ID, UserID: uuid.New(), Rating: 5})
		require.NoError(t, err)
	}
	page, err := f.svc.ListReviews(ctx, b.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 12, page.Total)
	assert.Len(t, page.Items, domain.ReviewsPageSize)
	assert.True(t, page.HasNext())

	page, err = f.svc.ListReviews(ctx, b.ID, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, review.ID, page.Items[1].ID, "oldest review on the last page")

	mine, err := f.svc.ListUserReviews(ctx, user, 1)
	require.NoError(t, err)
	require.Len(t, mine.Items, 1)

	require.NoError(t, f.svc.DeleteReview(ctx, review.ID))
	assert.ErrorIs(t, f.svc.DeleteReview(ctx, review.ID), sharedDomain.ErrNotFound)

	_, err = f.svc.ListReviews(ctx, uuid.New(), 1)
	assert.ErrorIs(t, err, sharedDomain.ErrNotFound)
}

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) PublishDomainEvent(ctx context.Context, event sharedDomain.DomainEvent) error {
	return m.Called(ctx, event).Error(0)
}

func TestService_AddReview_ObserverFailureKeepsReview(t *testing.T) {
	dispatcher := &mockDispatcher{}
	dispatcher.On("PublishDomainEvent", mock.Anything, mock.MatchedBy(func(e sharedDomain.DomainEvent) bool {
		return e.RoutingKey() == domain.RoutingReviewAdded
	})).Return(errors.New("observer down")).Once()

	f := newFixture(t, dispatcher)
	b := f.business(t, "Pho House", "Restaurant")

	review, err := f.svc.AddReview(context.Background(), application.AddReviewRequest{BusinessID: b.ID, UserID: uuid.New(), Rating: 4})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, review.ID)
	dispatcher.AssertExpectations(t)
}

func TestService_AddReview_NotifiesAnalytics(t *testing.T) {
	bus := eventbus.NewInProcessEventBus(nil)
	f := newFixture(t, bus)
	clock := func() time.Time { return f.now }

	store := analyticsPersistence.NewMetricsRepository(f.conn)
	aggregator := analyticsApp.NewAggregator(analyticsApp.AggregatorDeps{Store: store, Clock: clock})
	recorder := analyticsApp.NewRecorder(analyticsApp.RecorderDeps{
		Activities: analyticsPersistence.NewActivityRepository(f.conn),
		Searches:   analyticsPersistence.NewSearchRepository(f.conn),
		Aggregator: aggregator,
		Clock:      clock,
	})
	bus.RegisterConsumer(subscribers.NewReviewSubscriber(recorder, nil))

	ctx := observability.WithCorrelationID(context.Background(), "req-42")
	b := f.business(t, "Pho House", "Restaurant")
	for _, rating := range []int{5, 4} {
		_, err := f.svc.AddReview(ctx, application.AddReviewRequest{BusinessID: b.ID, UserID: uuid.New(), Rating: rating})
		require.NoError(t, err)
	}

	row, err := store.Get(ctx, b.ID, f.now)
	require.NoError(t, err)
	assert.Equal(t, 2, row.ReviewsReceived)
	assert.InDelta(t, 4.5, row.AverageRating, 0.001)
	assert.Zero(t, row.ProfileViews)
}
