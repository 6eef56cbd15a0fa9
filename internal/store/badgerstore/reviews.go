package badgerstore

import (
	"context"

	"github.com/tourbook/tourbook-server/internal/domain"
	"github.com/tourbook/tourbook-server/internal/query"
	"github.com/tourbook/tourbook-server/internal/store"
)

type reviewCollection struct {
	*collection[domain.Review]
}

var _ store.ReviewCollection = (*reviewCollection)(nil)

// RatingSummary implements store.ReviewCollection.
func (c *reviewCollection) RatingSummary(ctx context.Context, tourID string) (domain.RatingSummary, error) {
	reviews, err := c.Find(ctx, query.Descriptor{Filter: []query.Predicate{query.Eq("tour", tourID)}})
	if err != nil {
		return domain.RatingSummary{}, err
	}
	if len(reviews) == 0 {
		return domain.RatingSummary{}, nil
	}

	var sum float64
	for _, r := range reviews {
		sum += r.Rating
	}
	return domain.RatingSummary{Quantity: len(reviews), Average: sum / float64(len(reviews))}, nil
}
