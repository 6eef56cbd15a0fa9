package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/tourbook/tourbook-server/internal/domain"
	"github.com/tourbook/tourbook-server/internal/query"
	"github.com/tourbook/tourbook-server/internal/store"
)

type tourCollection struct {
	*collection[domain.Tour]
}

var _ store.TourCollection = (*tourCollection)(nil)

func statsPipeline(scope bson.D, minRating float64) bson.A {
	return bson.A{
		bson.D{{Key: "$match", Value: scope}},
		bson.D{{Key: "$match", Value: bson.D{{Key: "ratingsAverage", Value: bson.D{{Key: "$gte", Value: minRating}}}}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$toUpper", Value: "$difficulty"}}},
			{Key: "numTours", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "numRatings", Value: bson.D{{Key: "$sum", Value: "$ratingsQuantity"}}},
			{Key: "avgRating", Value: bson.D{{Key: "$avg", Value: "$ratingsAverage"}}},
			{Key: "avgPrice", Value: bson.D{{Key: "$avg", Value: "$price"}}},
			{Key: "minPrice", Value: bson.D{{Key: "$min", Value: "$price"}}},
			{Key: "maxPrice", Value: bson.D{{Key: "$max", Value: "$price"}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "avgPrice", Value: 1}, {Key: "_id", Value: 1}}}},
	}
}

func monthlyPlanPipeline(scope bson.D, year int) bson.A {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)
	return bson.A{
		bson.D{{Key: "$match", Value: scope}},
		bson.D{{Key: "$unwind", Value: "$startDates"}},
		bson.D{{Key: "$match", Value: bson.D{{Key: "startDates", Value: bson.D{
			{Key: "$gte", Value: from},
			{Key: "$lt", Value: to},
		}}}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$month", Value: "$startDates"}}},
			{Key: "numTourStarts", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "tours", Value: bson.D{{Key: "$push", Value: "$name"}}},
		}}},
		bson.D{{Key: "$addFields", Value: bson.D{{Key: "month", Value: "$_id"}}}},
		bson.D{{Key: "$project", Value: bson.D{{Key: "_id", Value: 0}}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "month", Value: 1}}}},
	}
}

// distancesPipeline starts with $geoNear, which must be the first stage, so
// the scope filter rides in its query option.
func distancesPipeline(scope bson.D, origin domain.LatLng, multiplier float64) bson.A {
	return bson.A{
		bson.D{{Key: "$geoNear", Value: bson.D{
			{Key: "near", Value: bson.D{
				{Key: "type", Value: "Point"},
				{Key: "coordinates", Value: bson.A{origin.Lng, origin.Lat}},
			}},
			{Key: "key", Value: "startLocation"},
			{Key: "distanceField", Value: "distance"},
			{Key: "distanceMultiplier", Value: multiplier},
			{Key: "spherical", Value: true},
			{Key: "query", Value: scope},
		}}},
		bson.D{{Key: "$project", Value: bson.D{
			{Key: "distance", Value: 1},
			{Key: "name", Value: 1},
		}}},
	}
}

func withinFilter(center domain.LatLng, radius float64) query.Predicate {
	return query.Predicate{
		Field: "startLocation",
		Op:    "geoWithin",
		Value: bson.D{{Key: "$centerSphere", Value: bson.A{bson.A{center.Lng, center.Lat}, radius}}},
	}
}

// Stats implements store.TourCollection.
func (c *tourCollection) Stats(ctx context.Context, minRating float64) ([]domain.DifficultyStats, error) {
	cur, err := c.c.Aggregate(ctx, statsPipeline(c.scoped(), minRating))
	if err != nil {
		return nil, translate(err)
	}
	out := []domain.DifficultyStats{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// MonthlyPlan implements store.TourCollection.
func (c *tourCollection) MonthlyPlan(ctx context.Context, year int) ([]domain.MonthPlan, error) {
	cur, err := c.c.Aggregate(ctx, monthlyPlanPipeline(c.scoped(), year))
	if err != nil {
		return nil, translate(err)
	}
	out := []domain.MonthPlan{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// Within implements store.TourCollection.
func (c *tourCollection) Within(ctx context.Context, center domain.LatLng, radius float64) ([]*domain.Tour, error) {
	return c.Find(ctx, query.Descriptor{Filter: []query.Predicate{withinFilter(center, radius)}})
}

// Distances implements store.TourCollection.
func (c *tourCollection) Distances(ctx context.Context, origin domain.LatLng, multiplier float64) ([]domain.TourDistance, error) {
	cur, err := c.c.Aggregate(ctx, distancesPipeline(c.scoped(), origin, multiplier))
	if err != nil {
		return nil, translate(err)
	}
	out := []domain.TourDistance{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, translate(err)
	}
	return out, nil
}
