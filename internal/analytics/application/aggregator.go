// Package application runs the analytics use cases: recording activity and
// searches, rolling them into daily business metrics, and building reports.
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

// AggregatorDeps are the collaborators of the aggregator.
type AggregatorDeps struct {
	Store   domain.MetricsRepository
	Cache   domain.RankingCache
	Rules   []domain.InsightRule
	Metrics observability.Metrics
	Logger  *slog.Logger
	Clock   func() time.Time
}

// Aggregator maintains daily business metrics and derives comparisons,
// rankings and insights from them.
type Aggregator struct {
	store   domain.MetricsRepository
	cache   domain.RankingCache
	rules   []domain.InsightRule
	metrics observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewAggregator creates an aggregator. A nil cache recomputes every ranking.
func NewAggregator(deps AggregatorDeps) *Aggregator {
	a := &Aggregator{
		store:   deps.Store,
		cache:   deps.Cache,
		rules:   deps.Rules,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		now:     deps.Clock,
	}
	if a.rules == nil {
		a.rules = domain.DefaultInsightRules()
	}
	if a.metrics == nil {
		a.metrics = observability.NoopMetrics{}
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// ApplyEvent increments the counter mapped to kind on the (business, today)
// row. Unknown kinds are ignored.
func (a *Aggregator) ApplyEvent(ctx context.Context, businessID uuid.UUID, kind domain.ActivityKind, today time.Time) error {
	counter, ok := domain.CounterFor(kind)
	if !ok {
		a.logger.DebugContext(ctx, "activity kind not aggregated", "kind", kind)
		return nil
	}
	return a.Increment(ctx, businessID, counter, 1, today)
}

// Increment adds delta to one counter of the (business, today) row. Days
// before the aggregator's current day are closed.
func (a *Aggregator) Increment(ctx context.Context, businessID uuid.UUID, counter domain.Counter, delta int, today time.Time) error {
	now := a.now()
	if err := checkOpen("analytics.increment", today, now); err != nil {
		return err
	}
	return a.write(ctx, businessID, counter, delta, today, now)
}

// RecordReview counts a review on today's row and snapshots the business's
// current average rating.
func (a *Aggregator) RecordReview(ctx context.Context, businessID uuid.UUID, average float64, today time.Time) error {
	now := a.now()
	if err := checkOpen("analytics.record_review", today, now); err != nil {
		return err
	}
	return a.writeReview(ctx, businessID, average, today, now)
}

// increment and recordReview serve the recorder, whose own clock reading is
// today by definition.
func (a *Aggregator) increment(ctx context.Context, businessID uuid.UUID, counter domain.Counter, delta int, now time.Time) error {
	return a.write(ctx, businessID, counter, delta, now, now)
}

func (a *Aggregator) recordReview(ctx context.Context, businessID uuid.UUID, average float64, now time.Time) error {
	return a.writeReview(ctx, businessID, average, now, now)
}

func (a *Aggregator) write(ctx context.Context, businessID uuid.UUID, counter domain.Counter, delta int, day, at time.Time) error {
	if err := a.store.Increment(ctx, businessID, domain.Day(day), counter, delta, at); err != nil {
		return sharedDomain.Storage(err, "analytics.increment")
	}
	a.metrics.Counter(observability.MetricDailyMetricIncrement, int64(delta), observability.T("counter", string(counter)))
	return nil
}

func (a *Aggregator) writeReview(ctx context.Context, businessID uuid.UUID, average float64, day, at time.Time) error {
	if err := a.store.RecordReview(ctx, businessID, domain.Day(day), average, at); err != nil {
		return sharedDomain.Storage(err, "analytics.record_review")
	}
	a.metrics.Counter(observability.MetricDailyMetricIncrement, 1, observability.T("counter", string(domain.CounterReviewsReceived)))
	return nil
}

func checkOpen(op string, today, now time.Time) error {
	if domain.Day(today).Before(domain.Day(now)) {
		return sharedDomain.Errorf(sharedDomain.EINVALID, op, "day %s is closed", domain.Day(today).Format(time.DateOnly))
	}
	return nil
}

// Summarize totals the rows dated within windowDays of today, today included.
func (a *Aggregator) Summarize(ctx context.Context, businessID uuid.UUID, windowDays int, now time.Time) (*domain.Summary, error) {
	const op = "analytics.summarize"
	if windowDays <= 0 {
		return nil, sharedDomain.Invalid(op, "window must be at least one day")
	}

	start := domain.WindowStart(now, windowDays)
	today := domain.Day(now)
	days, err := a.store.FindRange(ctx, businessID, start, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	return &domain.Summary{
		BusinessID: businessID,
		WindowDays: windowDays,
		StartDate:  start,
		EndDate:    today,
		Totals:     domain.SumRows(days),
		Days:       days,
	}, nil
}

// CompareWindows compares the last 30 days with the 30 days before them.
func (a *Aggregator) CompareWindows(ctx context.Context, businessID uuid.UUID, now time.Time) (*domain.PerformanceReport, error) {
	const op = "analytics.compare_windows"
	w := domain.ComparisonWindows(now)

	rows, err := a.store.FindRange(ctx, businessID, w.PreviousStart, w.Today.AddDate(0, 0, 1))
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}

	var current, previous domain.Totals
	for _, row := range rows {
		if row.Date.Before(w.CurrentStart) {
			previous.Add(row)
		} else {
			current.Add(row)
		}
	}
	return domain.NewPerformanceReport(businessID, w, current, previous), nil
}

// RankWithinCategory ranks businessID among peers by views plus search
// appearances over the window. A business missing from peers ranks last
// plus one.
func (a *Aggregator) RankWithinCategory(
	ctx context.Context,
	businessID uuid.UUID,
	category string,
	peers []uuid.UUID,
	windowDays int,
	now time.Time,
) (*domain.CategoryRanking, error) {
	const op = "analytics.rank_within_category"
	if windowDays <= 0 {
		return nil, sharedDomain.Invalid(op, "window must be at least one day")
	}

	key := domain.RankingKey{Category: category, WindowDays: windowDays, Date: now}
	ranked, ok := a.cachedRanking(ctx, key, peers)
	if !ok {
		scores, err := a.store.SumScores(ctx, peers, domain.WindowStart(now, windowDays))
		if err != nil {
			return nil, sharedDomain.Storage(err, op)
		}
		ranked = domain.RankPeers(peers, scores)
		if a.cache != nil {
			if err := a.cache.Set(ctx, key, ranked); err != nil {
				a.logger.WarnContext(ctx, "ranking cache write failed", "key", key.String(), "error", err)
			}
		}
	}

	rank := domain.RankOf(ranked, businessID)
	result := &domain.CategoryRanking{Category: category, Rank: rank, Total: len(ranked)}
	if rank <= len(ranked) {
		result.Score = ranked[rank-1].Score
	}
	return result, nil
}

func (a *Aggregator) cachedRanking(ctx context.Context, key domain.RankingKey, peers []uuid.UUID) ([]domain.PeerScore, bool) {
	if a.cache == nil {
		return nil, false
	}
	ranked, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		a.logger.WarnContext(ctx, "ranking cache read failed", "key", key.String(), "error", err)
	}
	// A snapshot taken before a peer joined or left the category is stale.
	if err != nil || !ok || !domain.SamePeers(ranked, peers) {
		a.metrics.Counter(observability.MetricRankingCacheMisses, 1)
		return nil, false
	}
	a.metrics.Counter(observability.MetricRankingCacheHits, 1)
	return ranked, true
}

// GenerateInsights evaluates the aggregator's insight rules.
func (a *Aggregator) GenerateInsights(current, previous domain.Totals) []domain.Insight {
	return domain.GenerateInsights(current, previous, a.rules)
}
