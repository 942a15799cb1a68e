package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/mosaic/internal/analytics/domain"
	"github.com/felixgeelhaar/mosaic/internal/analytics/infrastructure/persistence"
	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/dbtest"
)

var now = time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)

func TestMetricsRepository_IncrementUpserts(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewMetricsRepository(dbtest.NewSQLite(t))
	biz := uuid.New()

	require.NoError(t, repo.Increment(ctx, biz, now, domain.CounterProfileViews, 1, now))
	require.NoError(t, repo.Increment(ctx, biz, now.Add(time.Hour), domain.CounterProfileViews, 2, now.Add(time.Hour)))
	require.NoError(t, repo.Increment(ctx, biz, now, domain.CounterPhoneClicks, 1, now))

	row, err := repo.Get(ctx, biz, now)
	require.NoError(t, err)
	assert.Equal(t, domain.Day(now), row.Date)
	assert.Equal(t, 3, row.ProfileViews)
	assert.Equal(t, 1, row.PhoneClicks)
	assert.Equal(t, now, row.CreatedAt)

	err = repo.Increment(ctx, biz, now, domain.Counter("profile_views; DROP TABLE x"), 1, now)
	assert.Equal(t, sharedDomain.EINVALID, sharedDomain.ErrorCode(err))

	_, err = repo.Get(ctx, uuid.New(), now)
	assert.ErrorIs(t, err, sharedDomain.ErrNotFound)
}

func TestMetricsRepository_ReviewAndRanking(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewMetricsRepository(dbtest.NewSQLite(t))
	biz := uuid.New()

	require.NoError(t, repo.RecordReview(ctx, biz, now, 4.0, now))
	require.NoError(t, repo.RecordReview(ctx, biz, now, 4.5, now))
	require.NoError(t, repo.SetCategoryRanking(ctx, biz, now, 3, now))
	require.NoError(t, repo.SetCategoryRanking(ctx, biz, now, 2, now))

	row, err := repo.Get(ctx, biz, now)
	require.NoError(t, err)
	assert.Equal(t, 2, row.ReviewsReceived)
	assert.InDelta(t, 4.5, row.AverageRating, 0.001)
	assert.Equal(t, 2, row.CategoryRanking)
}

func TestMetricsRepository_FindRangeAndScores(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewMetricsRepository(dbtest.NewSQLite(t))
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	for i := 0; i < 5; i++ {
		day := now.AddDate(0, 0, -i)
		require.NoError(t, repo.Increment(ctx, a, day, domain.CounterProfileViews, i+1, now))
	}
	require.NoError(t, repo.Increment(ctx, b, now, domain.CounterSearchAppearances, 7, now))
	require.NoError(t, repo.Increment(ctx, b, now.AddDate(0, 0, -10), domain.CounterProfileViews, 50, now))

	rows, err := repo.FindRange(ctx, a, now.AddDate(0, 0, -3), now)
	require.NoError(t, err)
	require.Len(t, rows, 3, "until is exclusive")
	assert.Equal(t, domain.Day(now.AddDate(0, 0, -1)), rows[0].Date)
	assert.Equal(t, domain.Day(now.AddDate(0, 0, -3)), rows[2].Date)

	scores, err := repo.SumScores(ctx, []uuid.UUID{a, b, c}, now.AddDate(0, 0, -2))
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]int{a: 1 + 2 + 3, b: 7}, scores)

	empty, err := repo.SumScores(ctx, nil, now)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestActivityRepository_Queries(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewActivityRepository(dbtest.NewSQLite(t))
	biz := uuid.New()
	user := uuid.New()
	duration := 42

	view := domain.NewActivityEvent(domain.KindViewBusiness, "s-1", now)
	view.BusinessID = &biz
	view.UserID = &user
	view.Duration = &duration
	view.DeviceType = "mobile"
	require.NoError(t, repo.Append(ctx, view))

	login := domain.NewActivityEvent(domain.KindLogin, "", now.Add(time.Minute))
	login.UserID = &user
	require.NoError(t, repo.Append(ctx, login))

	seen, err := repo.SessionViewed(ctx, "s-1", biz, domain.Day(now), domain.Day(now).AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.True(t, seen)
	seen, err = repo.SessionViewed(ctx, "s-2", biz, domain.Day(now), domain.Day(now).AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.False(t, seen)

	recent, err := repo.RecentForBusiness(ctx, biz, now.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, view.ID, recent[0].ID)
	require.NotNil(t, recent[0].Duration)
	assert.Equal(t, 42, *recent[0].Duration)
	assert.Equal(t, "mobile", recent[0].DeviceType)

	mine, err := repo.RecentForUser(ctx, user, now.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, domain.KindLogin, mine[0].Kind, "newest first")
	assert.Nil(t, mine[0].BusinessID)

	users, err := repo.CountActiveUsers(ctx, domain.Day(now), domain.Day(now).AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, users)

	views, err := repo.CountKind(ctx, domain.KindViewBusiness, domain.Day(now), domain.Day(now).AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, views)
}

func TestSearchRepository_TopClickedQueries(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewSearchRepository(dbtest.NewSQLite(t))
	biz := uuid.New()

	for i, q := range []string{"soul food", "bbq", "soul food", "tacos"} {
		ev, err := domain.NewSearchEvent(q, "s", map[string]any{"page": i}, now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		if q != "tacos" {
			ev.ClickedBusinessID = &biz
		}
		require.NoError(t, repo.Append(ctx, ev))
	}

	top, err := repo.TopClickedQueries(ctx, biz, now.Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, []domain.QueryCount{{Query: "soul food", Count: 2}, {Query: "bbq", Count: 1}}, top)

	n, err := repo.Count(ctx, now, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPlatformRepository_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewPlatformRepository(dbtest.NewSQLite(t))

	m := &domain.PlatformMetrics{
		Date:                domain.Day(now),
		TotalBusinesses:     10,
		SubscriptionRevenue: decimal.RequireFromString("19.99"),
		UpdatedAt:           now,
	}
	require.NoError(t, repo.Save(ctx, m))
	m.TotalBusinesses = 11
	require.NoError(t, repo.Save(ctx, m))
	require.NoError(t, repo.Save(ctx, &domain.PlatformMetrics{Date: domain.Day(now).AddDate(0, 0, -40), UpdatedAt: now}))

	rows, err := repo.FindSince(ctx, domain.Day(now).AddDate(0, 0, -30))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 11, rows[0].TotalBusinesses)
	assert.Equal(t, "19.99", rows[0].SubscriptionRevenue.StringFixed(2))
}
