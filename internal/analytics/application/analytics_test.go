package application_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/mosaic/internal/analytics/application"
	"github.com/felixgeelhaar/mosaic/internal/analytics/domain"
	"github.com/felixgeelhaar/mosaic/internal/analytics/infrastructure/cache"
	"github.com/felixgeelhaar/mosaic/internal/analytics/infrastructure/persistence"
	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/dbtest"
	"github.com/felixgeelhaar/mosaic/pkg/observability"
)

type fixture struct {
	conn       database.Connection
	store      *persistence.MetricsRepository
	aggregator *application.Aggregator
	recorder   *application.Recorder
	reports    *application.Reports
	metrics    *observability.InMemoryMetrics
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.NewSQLite(t)
	f := &fixture{
		conn:    conn,
		store:   persistence.NewMetricsRepository(conn),
		metrics: observability.NewInMemoryMetrics(),
		now:     time.Date(2026, 6, 30, 15, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	activities := persistence.NewActivityRepository(conn)
	searches := persistence.NewSearchRepository(conn)

	f.aggregator = application.NewAggregator(application.AggregatorDeps{
		Store:   f.store,
		Cache:   cache.NewInMemoryRankingCache(time.Hour).WithClock(clock),
		Metrics: f.metrics,
		Clock:   clock,
	})
	f.recorder = application.NewRecorder(application.RecorderDeps{
		Activities: activities,
		Searches:   searches,
		Aggregator: f.aggregator,
		UnitOfWork: database.NewUnitOfWork(conn),
		Metrics:    f.metrics,
		Clock:      clock,
	})
	f.reports = application.NewReports(application.ReportsDeps{
		Aggregator: f.aggregator,
		Activities: activities,
		Searches:   searches,
		Store:      f.store,
		Platform:   persistence.NewPlatformRepository(conn),
		Source:     persistence.NewPlatformSource(conn),
		Metrics:    f.metrics,
		Clock:      clock,
	})
	return f
}

func (f *fixture) addBusiness(t *testing.T, category string, createdAt time.Time) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := f.conn.Exec(context.Background(), `
		INSERT INTO businesses (id, name, address, city, state, category, minority_type, created_at, updated_at)
		VALUES (?, ?, '1 Main St', 'Atlanta', 'GA', ?, 'Black-owned', ?, ?)
	`, id, "Biz "+id.String()[:6], category, createdAt.UTC(), createdAt.UTC())
	require.NoError(t, err)
	return id
}

func (f *fixture) seed(t *testing.T, businessID uuid.UUID, daysAgo int, counter domain.Counter, n int) {
	t.Helper()
	day := domain.Day(f.now).AddDate(0, 0, -daysAgo)
	require.NoError(t, f.store.Increment(context.Background(), businessID, day, counter, n, f.now))
}

func (f *fixture) view(t *testing.T, businessID uuid.UUID, session string) {
	t.Helper()
	_, err := f.recorder.Record(context.Background(), application.ActivityInput{
		SessionID:  session,
		Kind:       domain.KindViewBusiness,
		BusinessID: &businessID,
	})
	require.NoError(t, err)
}

func TestRecorder_ApplyEventPerDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	biz := uuid.New()
	dayD := domain.Day(f.now)

	for i := 0; i < 3; i++ {
		f.view(t, biz, "s-1")
	}

	row, err := f.store.Get(ctx, biz, dayD)
	require.NoError(t, err)
	assert.Equal(t, 3, row.ProfileViews)
	assert.Equal(t, 1, row.UniqueVisitors)

	f.now = f.now.Add(24 * time.Hour)
	f.view(t, biz, "s-1")

	next, err := f.store.Get(ctx, biz, dayD.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, next.ProfileViews)
	assert.Equal(t, 1, next.UniqueVisitors)

	row, err = f.store.Get(ctx, biz, dayD)
	require.NoError(t, err)
	assert.Equal(t, 3, row.ProfileViews, "previous day untouched")
	assert.Equal(t, int64(4), f.metrics.GetCounter(observability.MetricActivityEvents, observability.T("kind", "view_business")))
}

func TestRecorder_UniqueVisitorsPerSession(t *testing.T) {
	f := newFixture(t)
	biz := uuid.New()

	f.view(t, biz, "s-1")
	f.view(t, biz, "s-2")
	f.view(t, biz, "")
	f.view(t, biz, "")

	row, err := f.store.Get(context.Background(), biz, f.now)
	require.NoError(t, err)
	assert.Equal(t, 4, row.ProfileViews)
	assert.Equal(t, 3, row.UniqueVisitors)
}

func TestRecorder_CountersByKind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	biz := uuid.New()

	for _, kind := range []domain.ActivityKind{
		domain.KindPhoneClick, domain.KindWebsiteClick, domain.KindWebsiteClick,
		domain.KindDirectionRequest, domain.KindFavorite,
	} {
		_, err := f.recorder.Record(ctx, application.ActivityInput{Kind: kind, BusinessID: &biz})
		require.NoError(t, err)
	}

	row, err := f.store.Get(ctx, biz, f.now)
	require.NoError(t, err)
	assert.Equal(t, 1, row.PhoneClicks)
	assert.Equal(t, 2, row.WebsiteClicks)
	assert.Equal(t, 1, row.DirectionRequests)
	assert.Equal(t, 1, row.FavoritesAdded)
	assert.Zero(t, row.ProfileViews)
}

func TestRecorder_UnknownKindIsAppendedOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	biz := uuid.New()
	user := uuid.New()

	ev, err := f.recorder.Record(ctx, application.ActivityInput{
		UserID:     &user,
		Kind:       "share_business",
		BusinessID: &biz,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AnonymousSession, ev.SessionID)

	_, err = f.store.Get(ctx, biz, f.now)
	assert.ErrorIs(t, err, sharedDomain.ErrNotFound)

	report, err := f.reports.UserActivity(ctx, user, 0)
	require.NoError(t, err)
	require.Len(t, report.Activities, 1)
	assert.Equal(t, []domain.KindCount{{Kind: "share_business", Count: 1}}, report.Summary)
}

func TestRecorder_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.recorder.Record(ctx, application.ActivityInput{})
	assert.ErrorIs(t, err, sharedDomain.ErrInvalid)
}

func TestRecorder_KeepsEventsWithMessyMetadata(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	biz := uuid.New()
	user := uuid.New()

	inputs := []application.ActivityInput{
		{DeviceType: "smartwatch"},
		{IPAddress: "unknown"},
		{IPAddress: "10.0.0.1:5555"},
		{UserAgent: strings.Repeat("Mozilla/5.0 ", 40), PageURL: "https://example.com/?" + strings.Repeat("q", 300)},
	}
	for _, in := range inputs {
		in.UserID = &user
		in.Kind = domain.KindViewBusiness
		in.BusinessID = &biz
		_, err := f.recorder.Record(ctx, in)
		require.NoError(t, err)
	}

	row, err := f.store.Get(ctx, biz, f.now)
	require.NoError(t, err)
	assert.Equal(t, len(inputs), row.ProfileViews)

	report, err := f.reports.UserActivity(ctx, user, 0)
	require.NoError(t, err)
	require.Len(t, report.Activities, len(inputs))
	byIP := map[string]int{}
	for _, a := range report.Activities {
		byIP[a.IPAddress]++
		assert.LessOrEqual(t, len(a.UserAgent), 300)
		assert.LessOrEqual(t, len(a.PageURL), 200)
	}
	assert.Equal(t, 1, byIP["10.0.0.1"])
	assert.Equal(t, 3, byIP[""])
}

func TestRecorder_ReadsClockOncePerEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	biz := uuid.New()

	// Each reading moves past midnight; an event stamped on the evening
	// before must still land on that evening's row.
	evening := time.Date(2026, 6, 30, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	var readings int
	clock := func() time.Time {
		readings++
		return evening.Add(time.Duration(readings-1) * 2 * time.Millisecond)
	}
	aggregator := application.NewAggregator(application.AggregatorDeps{Store: f.store, Clock: clock})
	recorder := application.NewRecorder(application.RecorderDeps{
		Activities: persistence.NewActivityRepository(f.conn),
		Searches:   persistence.NewSearchRepository(f.conn),
		Aggregator: aggregator,
		UnitOfWork: database.NewUnitOfWork(f.conn),
		Clock:      clock,
	})

	ev, err := recorder.Record(ctx, application.ActivityInput{Kind: domain.KindViewBusiness, SessionID: "late", BusinessID: &biz})
	require.NoError(t, err)
	assert.Equal(t, evening, ev.OccurredAt)

	average := 4.5
	readings = 0
	_, err = recorder.Record(ctx, application.ActivityInput{Kind: domain.KindReview, BusinessID: &biz, AverageRating: &average})
	require.NoError(t, err)

	row, err := f.store.Get(ctx, biz, evening)
	require.NoError(t, err)
	assert.Equal(t, 1, row.ProfileViews)
	assert.Equal(t, 1, row.UniqueVisitors)
	assert.Equal(t, 1, row.ReviewsReceived)
	assert.InDelta(t, 4.5, row.AverageRating, 0.001)
}

func TestRecorder_ConcurrentViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	biz := uuid.New()

	const n = 16
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.recorder.Record(ctx, application.ActivityInput{
				SessionID:  fmt.Sprintf("s-%d", i%4),
				Kind:       domain.KindViewBusiness,
				BusinessID: &biz,
			})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	row, err := f.store.Get(ctx, biz, f.now)
	require.NoError(t, err)
	assert.Equal(t, n, row.ProfileViews)
	assert.Equal(t, 4, row.UniqueVisitors)
}

func TestRecorder_RecordSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	user := uuid.New()

	ev, err := f.recorder.RecordSearch(ctx, application.SearchInput{
		UserID:            &user,
		Query:             "jollof",
		Filters:           map[string]any{"city": "Houston"},
		ShownBusinessIDs:  []uuid.UUID{a, b, a},
		ClickedBusinessID: &b,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"city":"Houston"}`, string(ev.Filters))

	rowA, err := f.store.Get(ctx, a, f.now)
	require.NoError(t, err)
	assert.Equal(t, 1, rowA.SearchAppearances)

	report, err := f.reports.UserActivity(ctx, user, 7)
	require.NoError(t, err)
	require.Len(t, report.Searches, 1)
	assert.Equal(t, "jollof", report.Searches[0].Query)
	require.NotNil(t, report.Searches[0].ClickedBusinessID)
	assert.Equal(t, b, *report.Searches[0].ClickedBusinessID)
}

func TestAggregator_ClosedDayAndUnknownKind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	biz := uuid.New()

	err := f.aggregator.ApplyEvent(ctx, biz, domain.KindViewBusiness, f.now.AddDate(0, 0, -1))
	assert.Equal(t, sharedDomain.EINVALID, sharedDomain.ErrorCode(err))

	require.NoError(t, f.aggregator.ApplyEvent(ctx, biz, "new_kind", f.now))
	_, err = f.store.Get(ctx, biz, f.now)
	assert.ErrorIs(t, err, sharedDomain.ErrNotFound)
}

func TestAggregator_Summarize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	biz := uuid.New()

	f.seed(t, biz, 0, domain.CounterProfileViews, 2)
	f.seed(t, biz, 5, domain.CounterProfileViews, 3)
	f.seed(t, biz, 5, domain.CounterPhoneClicks, 1)
	f.seed(t, biz, 7, domain.CounterWebsiteClicks, 4)
	f.seed(t, biz, 8, domain.CounterProfileViews, 100)

	summary, err := f.aggregator.Summarize(ctx, biz, 7, f.now)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Totals.ProfileViews)
	assert.Equal(t, 1, summary.Totals.PhoneClicks)
	assert.Equal(t, 4, summary.Totals.WebsiteClicks)
	require.Len(t, summary.Days, 3)
	assert.Equal(t, domain.Day(f.now), summary.Days[0].Date, "newest first")

	_, err = f.aggregator.Summarize(ctx, biz, 0, f.now)
	assert.ErrorIs(t, err, sharedDomain.ErrInvalid)
}

func TestAggregator_CompareWindows(t *testing.T) {
	f := newFixture(t)
	biz := uuid.New()

	f.seed(t, biz, 1, domain.CounterProfileViews, 5)
	f.seed(t, biz, 29, domain.CounterSearchAppearances, 3)
	f.seed(t, biz, 31, domain.CounterSearchAppearances, 6)
	f.seed(t, biz, 61, domain.CounterProfileViews, 50)

	report, err := f.aggregator.CompareWindows(context.Background(), biz, f.now)
	require.NoError(t, err)
	assert.Equal(t, domain.AxisComparison{Current: 5, Previous: 0, ChangePercent: 500}, report.ProfileViews)
	assert.Equal(t, domain.AxisComparison{Current: 3, Previous: 6, ChangePercent: -50}, report.SearchAppearances)
}

func TestAggregator_RankWithinCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	peers := []uuid.UUID{a, b, c}

	f.seed(t, a, 2, domain.CounterProfileViews, 4)
	f.seed(t, b, 3, domain.CounterSearchAppearances, 9)
	f.seed(t, c, 1, domain.CounterProfileViews, 4)
	f.seed(t, a, 45, domain.CounterProfileViews, 100)

	for i := 0; i < 3; i++ {
		rank, err := f.aggregator.RankWithinCategory(ctx, c, "Restaurant", peers, 30, f.now)
		require.NoError(t, err)
		assert.Equal(t, &domain.CategoryRanking{Category: "Restaurant", Rank: 3, Total: 3, Score: 4}, rank)
	}
	assert.Equal(t, int64(1), f.metrics.GetCounter(observability.MetricRankingCacheMisses))
	assert.Equal(t, int64(2), f.metrics.GetCounter(observability.MetricRankingCacheHits))

	rank, err := f.aggregator.RankWithinCategory(ctx, uuid.New(), "Restaurant", peers, 30, f.now)
	require.NoError(t, err)
	assert.Equal(t, 4, rank.Rank)

	d := uuid.New()
	rank, err = f.aggregator.RankWithinCategory(ctx, d, "Restaurant", append(peers, d), 30, f.now)
	require.NoError(t, err)
	assert.Equal(t, 4, rank.Rank, "peer set changed, snapshot recomputed")
	assert.Equal(t, 4, rank.Total)
}

func TestReports_Performance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addBusiness(t, "Bakery", f.now.AddDate(0, -3, 0))
	b := f.addBusiness(t, "Bakery", f.now.AddDate(0, -2, 0))
	f.addBusiness(t, "Salon", f.now.AddDate(0, -2, 0))

	f.seed(t, a, 2, domain.CounterProfileViews, 13)
	f.seed(t, a, 40, domain.CounterProfileViews, 10)
	f.seed(t, b, 2, domain.CounterProfileViews, 20)

	report, err := f.reports.Performance(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 13, report.ProfileViews.Current)
	assert.Equal(t, 10, report.ProfileViews.Previous)
	require.NotNil(t, report.Ranking)
	assert.Equal(t, 2, report.Ranking.Rank)
	assert.Equal(t, 2, report.Ranking.Total)
	require.Len(t, report.Insights, 1)
	assert.Equal(t, "Your profile views increased by 30.0% this month!", report.Insights[0].Message)

	today, err := f.store.Get(ctx, a, f.now)
	require.NoError(t, err)
	assert.Equal(t, 2, today.CategoryRanking)

	insights, err := f.reports.Insights(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, report.Insights, insights)

	_, err = f.reports.Performance(ctx, uuid.New())
	assert.ErrorIs(t, err, sharedDomain.ErrNotFound)
}

func TestReports_BusinessReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	biz := f.addBusiness(t, "Bakery", f.now.AddDate(0, -1, 0))

	f.view(t, biz, "s-1")
	f.view(t, biz, "s-2")
	for _, q := range []string{"bread", "bread", "cake"} {
		_, err := f.recorder.RecordSearch(ctx, application.SearchInput{Query: q, ShownBusinessIDs: []uuid.UUID{biz}, ClickedBusinessID: &biz})
		require.NoError(t, err)
	}

	report, err := f.reports.BusinessReport(ctx, biz, 0)
	require.NoError(t, err)
	assert.Equal(t, 30, report.Summary.WindowDays)
	assert.Equal(t, 2, report.Summary.Totals.ProfileViews)
	assert.Equal(t, 2, report.Summary.Totals.UniqueVisitors)
	assert.Equal(t, 3, report.Summary.Totals.SearchAppearances)
	assert.Len(t, report.RecentActivity, 2)
	assert.Equal(t, []domain.QueryCount{{Query: "bread", Count: 2}, {Query: "cake", Count: 1}}, report.TopQueries)

	_, err = f.reports.BusinessReport(ctx, uuid.New(), 30)
	assert.ErrorIs(t, err, sharedDomain.ErrNotFound)
}

func TestReports_PlatformRollup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addBusiness(t, "Bakery", f.now.AddDate(0, 0, -10))
	biz := f.addBusiness(t, "Bakery", f.now.Add(-time.Hour))

	user := uuid.New()
	_, err := f.recorder.Record(ctx, application.ActivityInput{UserID: &user, Kind: domain.KindViewBusiness, BusinessID: &biz})
	require.NoError(t, err)
	_, err = f.recorder.RecordSearch(ctx, application.SearchInput{Query: "cake"})
	require.NoError(t, err)

	subID := uuid.New()
	_, err = f.conn.Exec(ctx, `
		INSERT INTO subscriptions (id, user_id, plan_id, status, amount, currency, billing_interval,
			period_start, period_end, created_at, updated_at)
		VALUES (?, ?, 'business_basic', 'active', '29.00', 'usd', 'month', ?, ?, ?, ?)
	`, subID, user, f.now.Add(-time.Hour), f.now.AddDate(0, 0, 30), f.now, f.now)
	require.NoError(t, err)
	_, err = f.conn.Exec(ctx, `
		INSERT INTO payment_records (id, subscription_id, user_id, external_reference, amount, currency, status, paid_at)
		VALUES (?, ?, ?, 'pi_1', '29.00', 'usd', 'succeeded', ?)
	`, uuid.New(), subID, user, f.now.Add(-time.Hour))
	require.NoError(t, err)

	m, err := f.reports.RollupPlatformDay(ctx, f.now)
	require.NoError(t, err)
	assert.Equal(t, 1, m.ActiveUsers)
	assert.Equal(t, 2, m.TotalBusinesses)
	assert.Equal(t, 1, m.NewBusinesses)
	assert.Equal(t, 1, m.PremiumBusinesses)
	assert.Zero(t, m.PremiumUsers)
	assert.Equal(t, 1, m.TotalSearches)
	assert.Equal(t, 1, m.TotalViews)
	assert.Equal(t, "29.00", m.SubscriptionRevenue.StringFixed(2))

	_, err = f.reports.RollupPlatformDay(ctx, f.now)
	require.NoError(t, err, "rolling up twice overwrites")

	overview, err := f.reports.PlatformOverview(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 2, overview.TotalBusinesses)
	assert.Equal(t, 1, overview.ActiveSubscriptions)
	assert.Equal(t, 1, overview.RecentSearches)
	assert.Equal(t, 1, overview.RecentViews)
	require.Len(t, overview.Daily, 1)
	assert.Equal(t, domain.Day(f.now), overview.Daily[0].Date)

	_, err = f.reports.RollupPlatformDay(ctx, f.now.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, sharedDomain.ErrInvalid)
}
