package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/tourbook/tourbook-server/internal/domain"
	"github.com/tourbook/tourbook-server/internal/store"
)

type reviewCollection struct {
	*collection[domain.Review]
}

var _ store.ReviewCollection = (*reviewCollection)(nil)

// RatingSummary implements store.ReviewCollection.
func (c *reviewCollection) RatingSummary(ctx context.Context, tourID string) (domain.RatingSummary, error) {
	pipeline := bson.A{
		bson.D{{Key: "$match", Value: bson.D{{Key: "tour", Value: tourID}}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$tour"},
			{Key: "nRating", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "avgRating", Value: bson.D{{Key: "$avg", Value: "$rating"}}},
		}}},
	}

	cur, err := c.c.Aggregate(ctx, pipeline)
	if err != nil {
		return domain.RatingSummary{}, translate(err)
	}

	var rows []struct {
		NRating   int     `bson:"nRating"`
		AvgRating float64 `bson:"avgRating"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return domain.RatingSummary{}, translate(err)
	}
	if len(rows) == 0 {
		return domain.RatingSummary{}, nil
	}
	return domain.RatingSummary{Quantity: rows[0].NRating, Average: rows[0].AvgRating}, nil
}
