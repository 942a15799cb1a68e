package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/mosaic/internal/directory/domain"
	"github.com/felixgeelhaar/mosaic/internal/directory/infrastructure/persistence"
	sharedApplication "github.com/felixgeelhaar/mosaic/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/dbtest"
)

var now = time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)

func newBusiness(t *testing.T, repo *persistence.BusinessRepository, name, city, category string, at time.Time) *domain.Business {
	t.Helper()
	b, err := domain.NewBusiness(domain.BusinessInput{
		Name:         name,
		Description:  name + " serves " + category,
		Address:      "1 Main St",
		City:         city,
		State:        "TX",
		Category:     category,
		MinorityType: "Hispanic-owned",
	}, at)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), b))
	return b
}

func TestBusinessRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewBusinessRepository(dbtest.NewSQLite(t))

	lat, lng := 29.76, -95.37
	b, err := domain.NewBusiness(domain.BusinessInput{
		Name: "Taqueria Sol", Address: "5 Elm", City: "Houston", State: "TX",
		Category: "Restaurant", MinorityType: "Hispanic-owned",
		Latitude: &lat, Longitude: &lng,
	}, now)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, b))

	found, err := repo.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b, found)

	b.Verified = true
	b.Name = "Taqueria Sol II"
	require.NoError(t, repo.Save(ctx, b))
	found, err = repo.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, found.Verified)
	assert.Equal(t, "Taqueria Sol II", found.Name)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, sharedDomain.ErrNotFound)
}

func TestBusinessRepository_Search(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.NewSQLite(t)
	repo := persistence.NewBusinessRepository(conn)
	reviews := persistence.NewReviewRepository(conn)

	sol := newBusiness(t, repo, "Taqueria Sol", "Houston", "Restaurant", now)
	newBusiness(t, repo, "Bella Salon", "Houston", "Beauty", now)
	newBusiness(t, repo, "Casa Pan", "Austin", "Bakery", now)
	newBusiness(t, repo, "100% Tacos", "Austin", "Restaurant", now)

	for _, rating := range []int{5, 4, 5} {
		rv, err := domain.NewReview(sol.ID, uuid.New(), rating, "", now)
		require.NoError(t, err)
		require.NoError(t, reviews.Insert(ctx, rv))
	}

	tests := []struct {
		name   string
		filter domain.SearchFilter
		want   []string
		total  int
	}{
		{"all", domain.SearchFilter{}, []string{"100% Tacos", "Bella Salon", "Casa Pan", "Taqueria Sol"}, 4},
		{"city ignores case", domain.SearchFilter{City: "houston"}, []string{"Bella Salon", "Taqueria Sol"}, 2},
		{"category all", domain.SearchFilter{Category: "All", City: "Austin"}, []string{"100% Tacos", "Casa Pan"}, 2},
		{"category", domain.SearchFilter{Category: "restaurant"}, []string{"100% Tacos", "Taqueria Sol"}, 2},
		{"term in description", domain.SearchFilter{Term: "bakery"}, []string{"Casa Pan"}, 1},
		{"term escapes wildcards", domain.SearchFilter{Term: "100%"}, []string{"100% Tacos"}, 1},
		{"paging", domain.SearchFilter{PerPage: 3, Page: 2}, []string{"Taqueria Sol"}, 4},
		{"no match", domain.SearchFilter{City: "Dallas"}, []string{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listings, total, err := repo.Search(ctx, tt.filter.Normalize())
			require.NoError(t, err)
			names := []string{}
			for _, l := range listings {
				names = append(names, l.Name)
			}
			assert.Equal(t, tt.want, names)
			assert.Equal(t, tt.total, total)
		})
	}

	listings, _, err := repo.Search(ctx, domain.SearchFilter{Term: "sol"}.Normalize())
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, 3, listings[0].Rating.Count)
	assert.InDelta(t, 14.0/3.0, listings[0].Rating.Average, 1e-9)
}

func TestBusinessRepository_CategoriesCitiesPeers(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewBusinessRepository(dbtest.NewSQLite(t))

	second := newBusiness(t, repo, "B", "Houston", "Restaurant", now.Add(time.Hour))
	first := newBusiness(t, repo, "A", "Austin", "Restaurant", now)
	newBusiness(t, repo, "C", "Austin", "Bakery", now)

	categories, err := repo.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bakery", "Restaurant"}, categories)

	cities, err := repo.Cities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.CityState{{City: "Austin", State: "TX"}, {City: "Houston", State: "TX"}}, cities)
	assert.Equal(t, "Austin, TX", cities[0].String())

	peers, err := repo.Peers(ctx, "Restaurant")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID}, peers)
}

func TestBusinessRepository_DeleteRemovesReviews(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.NewSQLite(t)
	repo := persistence.NewBusinessRepository(conn)
	reviews := persistence.NewReviewRepository(conn)

	b := newBusiness(t, repo, "Gone", "Austin", "Bakery", now)
	rv, err := domain.NewReview(b.ID, uuid.New(), 4, "", now)
	require.NoError(t, err)
	require.NoError(t, reviews.Insert(ctx, rv))

	require.NoError(t, sharedApplication.WithUnitOfWork(ctx, database.NewUnitOfWork(conn), func(txCtx context.Context) error {
		return repo.Delete(txCtx, b.ID)
	}))

	_, err = reviews.FindByID(ctx, rv.ID)
	assert.ErrorIs(t, err, sharedDomain.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, b.ID), sharedDomain.ErrNotFound)
}

func TestReviewRepository(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.NewSQLite(t)
	businesses := persistence.NewBusinessRepository(conn)
	repo := persistence.NewReviewRepository(conn)

	b := newBusiness(t, businesses, "Casa Pan", "Austin", "Bakery", now)
	user := uuid.New()

	summary, err := repo.Summary(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RatingSummary{}, summary)

	var ids []uuid.UUID
	for i, rating := range []int{5, 4, 5} {
		reviewer := uuid.New()
		if i == 0 {
			reviewer = user
		}
		rv, err := domain.NewReview(b.ID, reviewer, rating, "", now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.NoError(t, repo.Insert(ctx, rv))
		ids = append(ids, rv.ID)
	}

	dup, err := domain.NewReview(b.ID, user, 1, "", now)
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Insert(ctx, dup), sharedDomain.ErrDuplicateReview)

	exists, err := repo.Exists(ctx, b.ID, user)
	require.NoError(t, err)
	assert.True(t, exists)

	summary, err = repo.Summary(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Count)
	assert.Equal(t, 4.7, summary.Rounded())

	page, total, err := repo.ListByBusiness(ctx, b.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID, "newest first")

	mine, total, err := repo.ListByUser(ctx, user, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, ids[0], mine[0].ID)

	rv, err := repo.FindByID(ctx, ids[1])
	require.NoError(t, err)
	rating := 1
	require.NoError(t, rv.Edit(&rating, nil, now.Add(time.Hour)))
	require.NoError(t, repo.Update(ctx, rv))

	summary, err = repo.Summary(ctx, b.ID)
	require.NoError(t, err)
	assert.InDelta(t, 11.0/3.0, summary.Average, 1e-9)

	require.NoError(t, repo.Delete(ctx, ids[1]))
	assert.ErrorIs(t, repo.Delete(ctx, ids[1]), sharedDomain.ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, rv), sharedDomain.ErrNotFound)
}
