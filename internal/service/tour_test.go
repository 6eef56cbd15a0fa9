package service

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourbook/tourbook-server/internal/domain"
	domainerrors "github.com/tourbook/tourbook-server/internal/errors"
	"github.com/tourbook/tourbook-server/internal/search"
)

func TestAliasTopFive(t *testing.T) {
	raw := url.Values{"difficulty": {"easy"}, "limit": {"50"}}
	aliased := AliasTopFive(raw)

	assert.Equal(t, "5", aliased.Get("limit"))
	assert.Equal(t, "-ratingsAverage,price", aliased.Get("sort"))
	assert.Equal(t, "name,price,ratingsAverage,summary,difficulty", aliased.Get("fields"))
	assert.Equal(t, "easy", aliased.Get("difficulty"))
	assert.Equal(t, "50", raw.Get("limit"), "input is not modified")
}

func TestTourGet_ResolvesGuidesAndReviews(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	guide := env.createUser(t, "Steve Miller", "steve@example.com", domain.RoleGuide)
	author := env.createUser(t, "Laura Wilson", "laura@example.com", domain.RoleUser)

	payload := tourPayload("The Forest Hiker", 397)
	payload["guides"] = []string{guide.ID}
	tour, err := env.tours.Create(ctx, payload)
	require.NoError(t, err)

	_, err = env.reviews.Create(ctx, map[string]any{
		"review": "Amazing!",
		"rating": 5,
		"tour":   tour.ID,
		"user":   author.ID,
	})
	require.NoError(t, err)

	for _, key := range []string{tour.ID, "the-forest-hiker"} {
		detail, err := env.tours.Get(ctx, key)
		require.NoError(t, err, key)

		require.Len(t, detail.Guides, 1)
		assert.Equal(t, "Steve Miller", detail.Guides[0].Name)
		assert.Equal(t, "steve@example.com", detail.Guides[0].Email)

		require.Len(t, detail.Reviews, 1)
		require.NotNil(t, detail.Reviews[0].User)
		assert.Equal(t, "Laura Wilson", detail.Reviews[0].User.Name)
		assert.Equal(t, 5.0, detail.RatingsAverage)
	}
}

func TestTourGet_NotFound(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.tours.Get(context.Background(), "5c88fa8cf4afda39709c2951")
	de := assertCode(t, err, domainerrors.CodeNotFound)
	assert.Equal(t, "Invalid ID, no tour found", de.Message)

	_, err = env.tours.Get(context.Background(), "no-such-tour")
	assertCode(t, err, domainerrors.CodeNotFound)
}

func TestTourGet_SecretTourHidden(t *testing.T) {
	env := setupTestEnv(t)

	payload := tourPayload("The Secret Mountain", 397)
	payload["secretTour"] = true
	tour, err := env.tours.Create(context.Background(), payload)
	require.NoError(t, err)

	_, err = env.tours.Get(context.Background(), tour.ID)
	assertCode(t, err, domainerrors.CodeNotFound)

	page, err := env.tours.List(context.Background(), url.Values{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestTourDiscountMustBeBelowPrice(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	payload := tourPayload("The Forest Hiker", 397)
	payload["priceDiscount"] = 500
	_, err := env.tours.Create(ctx, payload)
	de := assertCode(t, err, domainerrors.CodeValidation)
	assert.Contains(t, de.Message, "Discount price (500)")

	tour := env.createTour(t, "The Forest Hiker", 397)

	_, err = env.tours.Update(ctx, tour.ID, map[string]any{"priceDiscount": 400})
	assertCode(t, err, domainerrors.CodeValidation)

	_, err = env.tours.Update(ctx, tour.ID, map[string]any{"priceDiscount": 400, "price": 500})
	require.NoError(t, err)

	_, err = env.tours.Update(ctx, tour.ID, map[string]any{"price": 300})
	assertCode(t, err, domainerrors.CodeValidation)
}

func TestTourUpdate_RenameRefreshesSlug(t *testing.T) {
	env := setupTestEnv(t)
	tour := env.createTour(t, "The Forest Hiker", 397)

	updated, err := env.tours.Update(context.Background(), tour.ID, map[string]any{"name": "The Forest Wanderer"})
	require.NoError(t, err)
	assert.Equal(t, "the-forest-wanderer", updated.Slug)
}

func TestTourGeoValidation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	_, err := env.tours.Within(ctx, "200", "34.1,-118.1", "yards")
	de := assertCode(t, err, domainerrors.CodeValidation)
	assert.Equal(t, "Please provide a valid unit (mi, km)", de.Message)

	_, err = env.tours.Within(ctx, "200", "34.1", "mi")
	de = assertCode(t, err, domainerrors.CodeValidation)
	assert.Equal(t, "Please provide valid coordinates (latitude, longitude)", de.Message)

	for _, distance := range []string{"far", "0", "-5", "NaN", "Inf"} {
		_, err = env.tours.Within(ctx, distance, "34.1,-118.1", "mi")
		assertCode(t, err, domainerrors.CodeValidation)
	}

	_, err = env.tours.Within(ctx, "200", "NaN,-118.1", "mi")
	assertCode(t, err, domainerrors.CodeValidation)

	_, err = env.tours.Distances(ctx, "abc,def", "km")
	assertCode(t, err, domainerrors.CodeValidation)
}

func TestTourWithinAndDistances(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	near := tourPayload("The Sea Explorer", 497)
	near["startLocation"] = map[string]any{"type": "Point", "coordinates": []float64{-80.185942, 25.774772}}
	_, err := env.tours.Create(ctx, near)
	require.NoError(t, err)

	far := tourPayload("The Forest Hiker", 397)
	far["startLocation"] = map[string]any{"type": "Point", "coordinates": []float64{-115.570154, 51.178456}}
	_, err = env.tours.Create(ctx, far)
	require.NoError(t, err)

	tours, err := env.tours.Within(ctx, "100", "25.77,-80.19", "mi")
	require.NoError(t, err)
	require.Len(t, tours, 1)
	assert.Equal(t, "The Sea Explorer", tours[0].Name)

	distances, err := env.tours.Distances(ctx, "25.77,-80.19", "km")
	require.NoError(t, err)
	require.Len(t, distances, 2)
	assert.Equal(t, "The Sea Explorer", distances[0].Name)
	assert.Less(t, distances[0].Distance, 1.0)
	assert.Greater(t, distances[1].Distance, 3000.0)
}

func TestTourMonthlyPlan_InvalidYear(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.tours.MonthlyPlan(context.Background(), "twenty")
	assertCode(t, err, domainerrors.CodeValidation)

	plan, err := env.tours.MonthlyPlan(context.Background(), "2021")
	require.NoError(t, err)
	assert.Empty(t, plan)
}

func TestTourSearch_FollowsWrites(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	forest := env.createTour(t, "The Forest Hiker", 397)
	env.createTour(t, "The Sea Explorer", 497)

	tours, err := env.tours.Search(ctx, search.Params{Query: "forest"})
	require.NoError(t, err)
	require.Len(t, tours, 1)
	assert.Equal(t, forest.ID, tours[0].ID)

	_, err = env.tours.Update(ctx, forest.ID, map[string]any{"name": "The Woodland Hiker"})
	require.NoError(t, err)
	tours, err = env.tours.Search(ctx, search.Params{Query: "woodland"})
	require.NoError(t, err)
	require.Len(t, tours, 1)

	require.NoError(t, env.tours.Delete(ctx, forest.ID))
	tours, err = env.tours.Search(ctx, search.Params{Query: "woodland"})
	require.NoError(t, err)
	assert.Empty(t, tours)
}

func TestTourReindex(t *testing.T) {
	env := setupTestEnv(t)
	env.createTour(t, "The Forest Hiker", 397)
	env.createTour(t, "The Sea Explorer", 497)

	require.NoError(t, env.index.Rebuild())

	n, err := env.tours.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := env.index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestTourSearch_Disabled(t *testing.T) {
	env := setupTestEnv(t)
	tours := NewTourService(env.db, nil, nil, env.tours.logger)

	_, err := tours.Search(context.Background(), search.Params{Query: "forest"})
	assertCode(t, err, domainerrors.CodeNotFound)
}
