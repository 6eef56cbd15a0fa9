package badgerstore

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/tourbook/tourbook-server/internal/domain"
	"github.com/tourbook/tourbook-server/internal/query"
	"github.com/tourbook/tourbook-server/internal/store"
)

type tourCollection struct {
	*collection[domain.Tour]
}

var _ store.TourCollection = (*tourCollection)(nil)

// Stats implements store.TourCollection.
func (c *tourCollection) Stats(ctx context.Context, minRating float64) ([]domain.DifficultyStats, error) {
	tours, err := c.Find(ctx, query.Descriptor{
		Filter: []query.Predicate{{Field: "ratingsAverage", Op: query.OpGte, Value: minRating}},
	})
	if err != nil {
		return nil, err
	}

	type acc struct {
		stats     domain.DifficultyStats
		sumRating float64
		sumPrice  float64
	}
	groups := make(map[string]*acc)
	for _, t := range tours {
		key := strings.ToUpper(t.Difficulty)
		g, ok := groups[key]
		if !ok {
			g = &acc{stats: domain.DifficultyStats{Difficulty: key, MinPrice: t.Price, MaxPrice: t.Price}}
			groups[key] = g
		}
		g.stats.NumTours++
		g.stats.NumRatings += t.RatingsQuantity
		g.sumRating += t.RatingsAverage
		g.sumPrice += t.Price
		g.stats.MinPrice = min(g.stats.MinPrice, t.Price)
		g.stats.MaxPrice = max(g.stats.MaxPrice, t.Price)
	}

	out := make([]domain.DifficultyStats, 0, len(groups))
	for _, g := range groups {
		n := float64(g.stats.NumTours)
		g.stats.AvgRating = g.sumRating / n
		g.stats.AvgPrice = g.sumPrice / n
		out = append(out, g.stats)
	}
	slices.SortFunc(out, func(a, b domain.DifficultyStats) int {
		return cmp.Or(cmp.Compare(a.AvgPrice, b.AvgPrice), cmp.Compare(a.Difficulty, b.Difficulty))
	})
	return out, nil
}

// MonthlyPlan implements store.TourCollection.
func (c *tourCollection) MonthlyPlan(ctx context.Context, year int) ([]domain.MonthPlan, error) {
	tours, err := c.Find(ctx, query.Descriptor{})
	if err != nil {
		return nil, err
	}

	byMonth := make(map[int]*domain.MonthPlan)
	for _, t := range tours {
		for _, start := range t.StartDates {
			start = start.UTC()
			if start.Year() != year {
				continue
			}
			m := int(start.Month())
			plan, ok := byMonth[m]
			if !ok {
				plan = &domain.MonthPlan{Month: m, Tours: []string{}}
				byMonth[m] = plan
			}
			plan.NumTourStarts++
			plan.Tours = append(plan.Tours, t.Name)
		}
	}

	out := make([]domain.MonthPlan, 0, len(byMonth))
	for _, plan := range byMonth {
		out = append(out, *plan)
	}
	slices.SortFunc(out, func(a, b domain.MonthPlan) int { return cmp.Compare(a.Month, b.Month) })
	return out, nil
}

// Within implements store.TourCollection.
func (c *tourCollection) Within(ctx context.Context, center domain.LatLng, radius float64) ([]*domain.Tour, error) {
	tours, err := c.Find(ctx, query.Descriptor{})
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Tour, 0, len(tours))
	for _, t := range tours {
		if !t.StartLocation.Valid() {
			continue
		}
		p := domain.LatLng{Lat: t.StartLocation.Lat(), Lng: t.StartLocation.Lng()}
		if domain.AngularDistance(center, p) <= radius {
			out = append(out, t)
		}
	}
	return out, nil
}

// Distances implements store.TourCollection.
func (c *tourCollection) Distances(ctx context.Context, origin domain.LatLng, multiplier float64) ([]domain.TourDistance, error) {
	tours, err := c.Find(ctx, query.Descriptor{})
	if err != nil {
		return nil, err
	}

	out := make([]domain.TourDistance, 0, len(tours))
	for _, t := range tours {
		if !t.StartLocation.Valid() {
			continue
		}
		p := domain.LatLng{Lat: t.StartLocation.Lat(), Lng: t.StartLocation.Lng()}
		out = append(out, domain.TourDistance{
			ID:       t.ID,
			Name:     t.Name,
			Distance: domain.DistanceMeters(origin, p) * multiplier,
		})
	}
	slices.SortStableFunc(out, func(a, b domain.TourDistance) int { return cmp.Compare(a.Distance, b.Distance) })
	return out, nil
}
