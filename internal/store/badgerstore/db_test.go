package badgerstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourbook/tourbook-server/internal/domain"
	"github.com/tourbook/tourbook-server/internal/query"
	"github.com/tourbook/tourbook-server/internal/store"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTour(name, difficulty string, price, rating float64) *domain.Tour {
	t := &domain.Tour{
		Name:         name,
		Duration:     7,
		MaxGroupSize: 10,
		Difficulty:   difficulty,
		Price:        price,
		Summary:      "summary",
		ImageCover:   "cover.jpg",
	}
	t.SetDefaults()
	t.RatingsAverage = rating
	return t
}

func at(t *domain.Tour, lat, lng float64) *domain.Tour {
	t.StartLocation = &domain.GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}}
	return t
}

func newUser(email string) *domain.User {
	u := &domain.User{Name: "Jonas", Email: email, Password: "hash"}
	u.SetDefaults()
	return u
}

func TestInsertAndFindByID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tour := newTour("The Forest Hiker", domain.DifficultyEasy, 397, 4.7)
	tour.Duration = 14
	require.NoError(t, db.Tours().Insert(ctx, tour))
	require.Len(t, tour.ID, 24)

	got, err := db.Tours().FindByID(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, "The Forest Hiker", got.Name)
	assert.Equal(t, "the-forest-hiker", got.Slug)
	assert.Equal(t, 2.0, got.DurationWeeks)

	_, err = db.Tours().FindByID(ctx, "5c88fa8cf4afda39709c2951")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestInsert_UniqueIndex(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Users().Insert(ctx, newUser("jonas@example.com")))

	err := db.Users().Insert(ctx, newUser("jonas@example.com"))
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrDuplicate)

	var dup *store.DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, []string{"email"}, dup.Fields)
	assert.Equal(t, "jonas@example.com", dup.Value)
}

func TestScope_HidesInactiveUsersAndSecretTours(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	inactive := newUser("gone@example.com")
	*inactive.Active = false
	require.NoError(t, db.Users().Insert(ctx, inactive))
	require.NoError(t, db.Users().Insert(ctx, newUser("here@example.com")))

	_, err := db.Users().FindByID(ctx, inactive.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	hidden, err := db.Users().FindByIDUnscoped(ctx, inactive.ID)
	require.NoError(t, err)
	assert.False(t, hidden.IsActive())

	users, err := db.Users().Find(ctx, query.Descriptor{})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "here@example.com", users[0].Email)

	secret := newTour("The Secret Mountain", domain.DifficultyEasy, 500, 4.5)
	secret.SecretTour = true
	require.NoError(t, db.Tours().Insert(ctx, secret))
	require.NoError(t, db.Tours().Insert(ctx, newTour("The Sea Explorer", domain.DifficultyMedium, 497, 4.8)))

	n, err := db.Tours().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = db.Tours().FindByID(ctx, secret.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFind_FilterSortPaginate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, tour := range []*domain.Tour{
		newTour("The Forest Hiker", domain.DifficultyEasy, 397, 4.7),
		newTour("The Sea Explorer", domain.DifficultyMedium, 497, 4.8),
		newTour("The Snow Adventurer", domain.DifficultyDifficult, 997, 4.5),
		newTour("The City Wanderer", domain.DifficultyEasy, 1197, 4.6),
	} {
		require.NoError(t, db.Tours().Insert(ctx, tour))
	}

	tours, err := db.Tours().Find(ctx, query.Descriptor{
		Filter: []query.Predicate{{Field: "price", Op: query.OpLt, Value: 1000.0}},
		Sort:   []query.SortKey{{Field: "ratingsAverage", Desc: true}},
	})
	require.NoError(t, err)
	require.Len(t, tours, 3)
	assert.Equal(t, "The Sea Explorer", tours[0].Name)
	assert.Equal(t, "The Snow Adventurer", tours[2].Name)

	tours, err = db.Tours().Find(ctx, query.Descriptor{
		Filter: []query.Predicate{{Field: "difficulty", Op: query.OpIn, Value: []any{"easy", "difficult"}}},
		Sort:   []query.SortKey{{Field: "price"}},
		Skip:   1,
		Limit:  1,
	})
	require.NoError(t, err)
	require.Len(t, tours, 1)
	assert.Equal(t, "The Snow Adventurer", tours[0].Name)
}

func TestFind_ArrayAndDateFields(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tour := newTour("The Forest Hiker", domain.DifficultyEasy, 397, 4.7)
	tour.Guides = []string{"5c8a22c62f8fb814b56fa18b", "5c8a1f4e2f8fb814b56fa185"}
	tour.StartDates = []time.Time{time.Date(2021, 4, 25, 9, 0, 0, 0, time.UTC)}
	require.NoError(t, db.Tours().Insert(ctx, tour))

	got, err := db.Tours().FindOne(ctx, query.Eq("guides", "5c8a1f4e2f8fb814b56fa185"))
	require.NoError(t, err)
	assert.Equal(t, tour.ID, got.ID)

	n, err := db.Tours().Count(ctx, query.Predicate{Field: "startDates", Op: query.OpGte, Value: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = db.Tours().FindOne(ctx, query.Eq("guides", "000000000000000000000000"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFindByIDAndUpdate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tour := newTour("The Forest Hiker", domain.DifficultyEasy, 397, 4.7)
	require.NoError(t, db.Tours().Insert(ctx, tour))
	other := newTour("The Sea Explorer", domain.DifficultyMedium, 497, 4.8)
	require.NoError(t, db.Tours().Insert(ctx, other))

	updated, err := db.Tours().FindByIDAndUpdate(ctx, tour.ID, map[string]any{"price": 450.0, "name": "The Forest Walker", "slug": "the-forest-walker"})
	require.NoError(t, err)
	assert.Equal(t, 450.0, updated.Price)
	assert.Equal(t, "The Forest Walker", updated.Name)
	assert.Equal(t, 1.0, updated.DurationWeeks)

	// The old name is free again; the other tour's name is not.
	_, err = db.Tours().FindByIDAndUpdate(ctx, other.ID, map[string]any{"name": "The Forest Hiker"})
	require.NoError(t, err)
	_, err = db.Tours().FindByIDAndUpdate(ctx, other.ID, map[string]any{"name": "The Forest Walker"})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	_, err = db.Tours().FindByIDAndUpdate(ctx, "5c88fa8cf4afda39709c2951", map[string]any{"price": 1.0})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSave_ReplacesDocument(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user := newUser("jonas@example.com")
	expires := time.Now().Add(10 * time.Minute).UTC()
	user.PasswordResetToken = "abc"
	user.PasswordResetExpiration = &expires
	require.NoError(t, db.Users().Insert(ctx, user))

	found, err := db.Users().FindOne(ctx, query.Eq("passwordResetToken", "abc"),
		query.Predicate{Field: "passwordResetExpiration", Op: query.OpGt, Value: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	user.PasswordResetToken = ""
	user.PasswordResetExpiration = nil
	require.NoError(t, db.Users().Save(ctx, user))

	_, err = db.Users().FindOne(ctx, query.Eq("passwordResetToken", "abc"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFindByIDAndDelete(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user := newUser("jonas@example.com")
	require.NoError(t, db.Users().Insert(ctx, user))

	deleted, err := db.Users().FindByIDAndDelete(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, deleted.ID)

	_, err = db.Users().FindByIDAndDelete(ctx, user.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// The email index was released.
	require.NoError(t, db.Users().Insert(ctx, newUser("jonas@example.com")))
}

func TestDeleteAll(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Users().Insert(ctx, newUser("a@example.com")))
	require.NoError(t, db.Users().Insert(ctx, newUser("b@example.com")))

	n, err := db.Users().DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = db.Users().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, db.Users().Insert(ctx, newUser("a@example.com")))
}

func TestTourStats(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, tour := range []*domain.Tour{
		newTour("The Forest Hiker", domain.DifficultyEasy, 400, 4.7),
		newTour("The City Wanderer", domain.DifficultyEasy, 1200, 4.6),
		newTour("The Sea Explorer", domain.DifficultyMedium, 500, 4.8),
		newTour("The Snow Adventurer", domain.DifficultyDifficult, 1000, 4.0),
	} {
		require.NoError(t, db.Tours().Insert(ctx, tour))
	}

	stats, err := db.Tours().Stats(ctx, 4.5)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "MEDIUM", stats[0].Difficulty)
	assert.Equal(t, "EASY", stats[1].Difficulty)
	assert.Equal(t, 2, stats[1].NumTours)
	assert.Equal(t, 800.0, stats[1].AvgPrice)
	assert.Equal(t, 400.0, stats[1].MinPrice)
	assert.Equal(t, 1200.0, stats[1].MaxPrice)
	assert.InDelta(t, 4.65, stats[1].AvgRating, 1e-9)
}

func TestMonthlyPlan(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	hiker := newTour("The Forest Hiker", domain.DifficultyEasy, 400, 4.7)
	hiker.StartDates = []time.Time{
		time.Date(2021, 7, 20, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 3, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2022, 7, 1, 0, 0, 0, 0, time.UTC),
	}
	explorer := newTour("The Sea Explorer", domain.DifficultyMedium, 500, 4.8)
	explorer.StartDates = []time.Time{time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, db.Tours().Insert(ctx, hiker))
	require.NoError(t, db.Tours().Insert(ctx, explorer))

	plan, err := db.Tours().MonthlyPlan(ctx, 2021)
	require.NoError(t, err)
	require.Len(t, plan, 2)

	assert.Equal(t, 3, plan[0].Month)
	assert.Equal(t, 1, plan[0].NumTourStarts)
	assert.Equal(t, 7, plan[1].Month)
	assert.Equal(t, 2, plan[1].NumTourStarts)
	assert.ElementsMatch(t, []string{"The Forest Hiker", "The Sea Explorer"}, plan[1].Tours)
}

func TestWithinAndDistances(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	la := at(newTour("The Park Camper", domain.DifficultyMedium, 1497, 4.9), 34.011646, -118.113491)
	miami := at(newTour("The Sea Explorer", domain.DifficultyMedium, 497, 4.8), 25.781842, -80.128473)
	require.NoError(t, db.Tours().Insert(ctx, la))
	require.NoError(t, db.Tours().Insert(ctx, miami))
	require.NoError(t, db.Tours().Insert(ctx, newTour("The Nowhere Tour", domain.DifficultyEasy, 100, 4.5)))

	center := domain.LatLng{Lat: 34.111745, Lng: -118.113491}
	within, err := db.Tours().Within(ctx, center, domain.UnitMiles.RadiusRadians(200))
	require.NoError(t, err)
	require.Len(t, within, 1)
	assert.Equal(t, "The Park Camper", within[0].Name)

	distances, err := db.Tours().Distances(ctx, center, domain.UnitKm.Multiplier())
	require.NoError(t, err)
	require.Len(t, distances, 2)
	assert.Equal(t, "The Park Camper", distances[0].Name)
	assert.InDelta(t, 11.1, distances[0].Distance, 0.2)
	assert.Greater(t, distances[1].Distance, 3000.0)
}

func TestRatingSummary(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tourID := "5c88fa8cf4afda39709c2951"
	for i, rating := range []float64{5, 4, 4} {
		r := &domain.Review{Review: "Lovely", Rating: rating, Tour: tourID, User: []string{
			"5c8a1dfa2f8fb814b56fa181", "5c8a1e1a2f8fb814b56fa182", "5c8a1ec62f8fb814b56fa183",
		}[i]}
		r.SetDefaults()
		require.NoError(t, db.Reviews().Insert(ctx, r))
	}

	summary, err := db.Reviews().RatingSummary(ctx, tourID)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Quantity)
	assert.InDelta(t, 4.333, summary.Average, 0.001)

	summary, err = db.Reviews().RatingSummary(ctx, "5c88fa8cf4afda39709c2952")
	require.NoError(t, err)
	assert.Zero(t, summary.Quantity)
}

func TestReviews_OnePerUserAndTour(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := &domain.Review{Review: "Great", Rating: 5, Tour: "5c88fa8cf4afda39709c2951", User: "5c8a1dfa2f8fb814b56fa181"}
	second := &domain.Review{Review: "Again", Rating: 4, Tour: "5c88fa8cf4afda39709c2951", User: "5c8a1dfa2f8fb814b56fa181"}
	require.NoError(t, db.Reviews().Insert(ctx, first))
	assert.ErrorIs(t, db.Reviews().Insert(ctx, second), store.ErrDuplicate)
}

func TestPing(t *testing.T) {
	db, err := OpenInMemory(nil)
	require.NoError(t, err)
	require.NoError(t, db.Ping(context.Background()))
	require.NoError(t, db.Close())
	assert.Error(t, db.Ping(context.Background()))
}
