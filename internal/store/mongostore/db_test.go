package mongostore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/tourbook/tourbook-server/internal/domain"
	"github.com/tourbook/tourbook-server/internal/id"
	"github.com/tourbook/tourbook-server/internal/query"
	"github.com/tourbook/tourbook-server/internal/store"
)

func TestFilterDoc(t *testing.T) {
	assert.Equal(t, bson.D{}, filterDoc(nil))

	single := filterDoc([]query.Predicate{{Field: "price", Op: query.OpGte, Value: 500.0}})
	assert.Equal(t, bson.D{{Key: "price", Value: bson.D{{Key: "$gte", Value: 500.0}}}}, single)

	multi := filterDoc([]query.Predicate{
		query.Ne("secretTour", true),
		{Field: "difficulty", Op: query.OpIn, Value: []any{"easy", "medium"}},
	})
	assert.Equal(t, bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "secretTour", Value: bson.D{{Key: "$ne", Value: true}}}},
		bson.D{{Key: "difficulty", Value: bson.D{{Key: "$in", Value: bson.A{"easy", "medium"}}}}},
	}}}, multi)
}

func TestSortDoc(t *testing.T) {
	got := sortDoc([]query.SortKey{{Field: "ratingsAverage", Desc: true}, {Field: "price"}})
	assert.Equal(t, bson.D{{Key: "ratingsAverage", Value: -1}, {Key: "price", Value: 1}}, got)
}

func TestDuplicateKey(t *testing.T) {
	dup := duplicateKey(`E11000 duplicate key error collection: tourbook.users index: email_1 dup key: { email: "jonas@example.com" }`)
	assert.Equal(t, []string{"email"}, dup.Fields)
	assert.Equal(t, "jonas@example.com", dup.Value)
	assert.ErrorIs(t, dup, store.ErrDuplicate)
}

func TestIndexModels(t *testing.T) {
	c := &collection[domain.Tour]{spec: store.ToursSpec}
	models := c.indexModels()
	require.Len(t, models, 4)
	assert.Equal(t, bson.D{{Key: "startLocation", Value: "2dsphere"}}, models[3].Keys)
}

func TestDistancesPipeline_GeoNearFirst(t *testing.T) {
	p := distancesPipeline(bson.D{}, domain.LatLng{Lat: 34.1, Lng: -118.1}, domain.MetersToMiles)
	first := p[0].(bson.D)
	assert.Equal(t, "$geoNear", first[0].Key)
}

// setupMongo connects to TEST_MONGO_URI using a throwaway database.
func setupMongo(t *testing.T) *DB {
	t.Helper()
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbName := "tourbook_test_" + id.New()
	db, err := Connect(ctx, uri, dbName, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.client.Database(dbName).Drop(context.Background())
		_ = db.Close()
	})
	return db
}

func TestIntegration_CRUDAndScope(t *testing.T) {
	db := setupMongo(t)
	ctx := context.Background()

	active := true
	user := &domain.User{Name: "Jonas", Email: "jonas@example.com", Password: "hash", Role: domain.RoleUser, Active: &active}
	require.NoError(t, db.Users().Insert(ctx, user))
	assert.ErrorIs(t, db.Users().Insert(ctx, &domain.User{Name: "Other", Email: "jonas@example.com", Active: &active}), store.ErrDuplicate)

	updated, err := db.Users().FindByIDAndUpdate(ctx, user.ID, map[string]any{"active": false})
	require.NoError(t, err)
	assert.False(t, updated.IsActive())

	_, err = db.Users().FindByID(ctx, user.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestIntegration_TourReports(t *testing.T) {
	db := setupMongo(t)
	ctx := context.Background()

	tour := &domain.Tour{
		Name:           "The Park Camper",
		Difficulty:     domain.DifficultyMedium,
		Price:          1497,
		RatingsAverage: 4.9,
		StartDates:     []time.Time{time.Date(2021, 8, 5, 0, 0, 0, 0, time.UTC)},
		StartLocation:  &domain.GeoPoint{Type: "Point", Coordinates: []float64{-118.113491, 34.011646}},
	}
	tour.SetDefaults()
	require.NoError(t, db.Tours().Insert(ctx, tour))

	stats, err := db.Tours().Stats(ctx, 4.5)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "MEDIUM", stats[0].Difficulty)

	plan, err := db.Tours().MonthlyPlan(ctx, 2021)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, 8, plan[0].Month)

	center := domain.LatLng{Lat: 34.111745, Lng: -118.113491}
	within, err := db.Tours().Within(ctx, center, domain.UnitMiles.RadiusRadians(200))
	require.NoError(t, err)
	assert.Len(t, within, 1)

	distances, err := db.Tours().Distances(ctx, center, domain.UnitKm.Multiplier())
	require.NoError(t, err)
	require.Len(t, distances, 1)
	assert.InDelta(t, 11.1, distances[0].Distance, 0.3)
}
