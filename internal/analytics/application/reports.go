package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/mosaic/internal/analytics/domain"
	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/felixgeelhaar/mosaic/pkg/observability"
)

// DefaultWindowDays is the report window when the caller gives none.
const DefaultWindowDays = 30

const (
	recentActivityLimit = 50
	topQueriesLimit     = 10
	userActivityLimit   = 100
	userSearchLimit     = 20
)

// ReportsDeps are the collaborators of the report service.
type ReportsDeps struct {
	Aggregator *Aggregator
	Activities domain.ActivityRepository
	Searches   domain.SearchRepository
	Store      domain.MetricsRepository
	Platform   domain.PlatformRepository
	Source     domain.PlatformSource
	WindowDays int
	Metrics    observability.Metrics
	Logger     *slog.Logger
	Clock      func() time.Time
}

// Reports builds read models for businesses, users and the platform.
type Reports struct {
	aggregator *Aggregator
	activities domain.ActivityRepository
	searches   domain.SearchRepository
	store      domain.MetricsRepository
	platform   domain.PlatformRepository
	source     domain.PlatformSource
	windowDays int
	metrics    observability.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewReports creates the report service.
func NewReports(deps ReportsDeps) *Reports {
	r := &Reports{
		aggregator: deps.Aggregator,
		activities: deps.Activities,
		searches:   deps.Searches,
		store:      deps.Store,
		platform:   deps.Platform,
		source:     deps.Source,
		windowDays: deps.WindowDays,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Clock,
	}
	if r.windowDays <= 0 {
		r.windowDays = DefaultWindowDays
	}
	if r.metrics == nil {
		r.metrics = observability.NoopMetrics{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

func (r *Reports) window(days int) int {
	if days <= 0 {
		return r.windowDays
	}
	return days
}

// BusinessReport is a business's analytics dashboard.
type BusinessReport struct {
	Summary        *domain.Summary
	RecentActivity []*domain.ActivityEvent
	TopQueries     []domain.QueryCount
}

// BusinessReport summarizes the window and lists recent activity and the
// search queries that led users to the business.
func (r *Reports) BusinessReport(ctx context.Context, businessID uuid.UUID, days int) (report *BusinessReport, err error) {
	const op = "analytics.business_report"
	finish := observability.Track(ctx, op, r.logger, r.metrics)
	defer func() { finish(err) }()

	if _, err := r.source.BusinessCategory(ctx, businessID); err != nil {
		return nil, sharedDomain.Storage(err, op)
	}

	now := r.now()
	days = r.window(days)
	summary, err := r.aggregator.Summarize(ctx, businessID, days, now)
	if err != nil {
		return nil, err
	}

	since := now.AddDate(0, 0, -days)
	recent, err := r.activities.RecentForBusiness(ctx, businessID, since, recentActivityLimit)
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	queries, err := r.searches.TopClickedQueries(ctx, businessID, since, topQueriesLimit)
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}

	return &BusinessReport{Summary: summary, RecentActivity: recent, TopQueries: queries}, nil
}

// Performance compares the last two months, ranks the business within its
// category and derives insights. The rank is also stored on today's row.
func (r *Reports) Performance(ctx context.Context, businessID uuid.UUID) (report *domain.PerformanceReport, err error) {
	const op = "analytics.performance"
	finish := observability.Track(ctx, op, r.logger, r.metrics)
	defer func() { finish(err) }()

	category, err := r.source.BusinessCategory(ctx, businessID)
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}

	now := r.now()
	report, err = r.aggregator.CompareWindows(ctx, businessID, now)
	if err != nil {
		return nil, err
	}

	peers, err := r.source.CategoryPeers(ctx, category)
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	ranking, err := r.aggregator.RankWithinCategory(ctx, businessID, category, peers, domain.ComparisonWindowDays, now)
	if err != nil {
		return nil, err
	}
	report.Ranking = ranking
	report.Insights = r.aggregator.GenerateInsights(report.Current, report.Previous)

	if err := r.store.SetCategoryRanking(ctx, businessID, now, ranking.Rank, now); err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	return report, nil
}

// Insights derives insights from the last two months without ranking.
func (r *Reports) Insights(ctx context.Context, businessID uuid.UUID) ([]domain.Insight, error) {
	const op = "analytics.insights"
	if _, err := r.source.BusinessCategory(ctx, businessID); err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	report, err := r.aggregator.CompareWindows(ctx, businessID, r.now())
	if err != nil {
		return nil, err
	}
	return r.aggregator.GenerateInsights(report.Current, report.Previous), nil
}

// UserActivityReport is a user's recent history.
type UserActivityReport struct {
	UserID     uuid.UUID
	WindowDays int
	Activities []*domain.ActivityEvent
	Searches   []*domain.SearchEvent
	Summary    []domain.KindCount
}

// UserActivity lists a user's latest events and counts them by kind.
func (r *Reports) UserActivity(ctx context.Context, userID uuid.UUID, days int) (*UserActivityReport, error) {
	const op = "analytics.user_activity"
	days = r.window(days)
	since := r.now().AddDate(0, 0, -days)

	activities, err := r.activities.RecentForUser(ctx, userID, since, userActivityLimit)
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	searches, err := r.searches.RecentForUser(ctx, userID, since, userSearchLimit)
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	counts, err := r.activities.CountByKindForUser(ctx, userID, since)
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	return &UserActivityReport{
		UserID:     userID,
		WindowDays: days,
		Activities: activities,
		Searches:   searches,
		Summary:    counts,
	}, nil
}

// PlatformOverview reports current totals, recent searches and views, and
// the stored daily rollups of the window.
func (r *Reports) PlatformOverview(ctx context.Context, days int) (*domain.PlatformOverview, error) {
	const op = "analytics.platform_overview"
	days = r.window(days)
	now := r.now()
	since := now.AddDate(0, 0, -days)
	until := domain.Day(now).AddDate(0, 0, 1)

	overview := &domain.PlatformOverview{WindowDays: days}
	var err error
	if overview.TotalBusinesses, err = r.source.CountBusinesses(ctx, until); err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	if overview.ActiveSubscriptions, err = r.source.CountActiveSubscriptions(ctx, "", now); err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	if overview.RecentSearches, err = r.searches.Count(ctx, since, until); err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	if overview.RecentViews, err = r.activities.CountKind(ctx, domain.KindViewBusiness, since, until); err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	if overview.Daily, err = r.platform.FindSince(ctx, domain.WindowStart(now, days)); err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	return overview, nil
}

// Plan id prefixes counted as premium users and premium businesses.
const (
	userPlanPrefix     = "user"
	businessPlanPrefix = "business"
)

// RollupPlatformDay computes and stores the platform row for date's day.
// Rolling up the same day again overwrites the row.
func (r *Reports) RollupPlatformDay(ctx context.Context, date time.Time) (m *domain.PlatformMetrics, err error) {
	const op = "analytics.rollup_platform_day"
	finish := observability.Track(ctx, op, r.logger, r.metrics)
	defer func() { finish(err) }()

	now := r.now()
	day := domain.Day(date)
	if day.After(domain.Day(now)) {
		return nil, sharedDomain.Invalid(op, "cannot roll up a future day")
	}
	next := day.AddDate(0, 0, 1)
	asOf := next
	if now.Before(asOf) {
		asOf = now
	}

	m = &domain.PlatformMetrics{Date: day, UpdatedAt: now.UTC()}
	steps := []struct {
		dst *int
		fn  func() (int, error)
	}{
		{&m.ActiveUsers, func() (int, error) { return r.activities.CountActiveUsers(ctx, day, next) }},
		{&m.PremiumUsers, func() (int, error) { return r.source.CountActiveSubscriptions(ctx, userPlanPrefix, asOf) }},
		{&m.TotalBusinesses, func() (int, error) { return r.source.CountBusinesses(ctx, next) }},
		{&m.NewBusinesses, func() (int, error) { return r.source.CountBusinessesCreated(ctx, day, next) }},
		{&m.PremiumBusinesses, func() (int, error) { return r.source.CountActiveSubscriptions(ctx, businessPlanPrefix, asOf) }},
		{&m.TotalSearches, func() (int, error) { return r.searches.Count(ctx, day, next) }},
		{&m.TotalViews, func() (int, error) { return r.activities.CountKind(ctx, domain.KindViewBusiness, day, next) }},
		{&m.TotalReviews, func() (int, error) { return r.source.CountReviews(ctx, next) }},
	}
	for _, step := range steps {
		if *step.dst, err = step.fn(); err != nil {
			return nil, sharedDomain.Storage(err, op)
		}
	}

	if m.SubscriptionRevenue, err = r.source.Revenue(ctx, day, next); err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	if err := r.platform.Save(ctx, m); err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	r.logger.InfoContext(ctx, "platform day rolled up",
		"date", day.Format(time.DateOnly),
		"total_businesses", m.TotalBusinesses,
		"revenue", m.SubscriptionRevenue.StringFixed(2),
	)
	return m, nil
}
