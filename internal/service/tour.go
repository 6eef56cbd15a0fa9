package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tourbook/tourbook-server/internal/domain"
	domainerrors "github.com/tourbook/tourbook-server/internal/errors"
	"github.com/tourbook/tourbook-server/internal/query"
	"github.com/tourbook/tourbook-server/internal/search"
	"github.com/tourbook/tourbook-server/internal/store"
	"github.com/tourbook/tourbook-server/internal/util"
	"github.com/tourbook/tourbook-server/internal/validation"
)

// TopRatedMinimum is the rating floor of the statistics report.
const TopRatedMinimum = 4.5

// RepeatableTourFields may be repeated in a tour query to match any of the values.
var RepeatableTourFields = []string{"duration", "ratingsQuantity", "ratingsAverage", "maxGroupSize", "difficulty", "price"}

// TourService handles tours, their reports and geo lookups.
type TourService struct {
	tours   store.TourCollection
	users   store.Collection[domain.User]
	reviews store.ReviewCollection
	factory *Factory[domain.Tour]
	index   *search.SearchIndex
	logger  *slog.Logger
}

// NewTourService creates a tour service. index may be nil when search is disabled.
func NewTourService(st store.Store, v *validation.Validator, index *search.SearchIndex, logger *slog.Logger) *TourService {
	s := &TourService{
		tours:   st.Tours(),
		users:   st.Users(),
		reviews: st.Reviews(),
		index:   index,
		logger:  logger,
	}
	s.factory = NewFactory[domain.Tour](st.Tours(), v,
		WithRepeatable[domain.Tour](RepeatableTourFields...),
		WithReadOnly[domain.Tour]("slug", "ratingsQuantity", "createdAt"),
		WithBeforeCreate(checkDiscountOnCreate),
		WithBeforeUpdate(s.checkDiscountOnUpdate),
		WithAfterWrite(s.reindex),
		WithAfterDelete(s.unindex),
		WithLogger[domain.Tour](logger),
	)
	return s
}

// AliasTopFive rewrites a query into the five best rated, cheapest tours.
func AliasTopFive(raw url.Values) url.Values {
	out := url.Values{}
	for k, v := range raw {
		out[k] = v
	}
	out.Set("limit", "5")
	out.Set("sort", "-ratingsAverage,price")
	out.Set("fields", "name,price,ratingsAverage,summary,difficulty")
	return out
}

// List runs a tour query. Secret tours are never listed.
func (s *TourService) List(ctx context.Context, raw url.Values) (*Page[domain.Tour], error) {
	return s.factory.GetAll(ctx, raw)
}

// Get returns a tour with its guides and reviews. An idOrSlug containing '-'
// is looked up as a slug.
func (s *TourService) Get(ctx context.Context, idOrSlug string) (*domain.TourDetail, error) {
	var (
		tour *domain.Tour
		err  error
	)
	if strings.Contains(idOrSlug, "-") {
		tour, err = s.tours.FindOne(ctx, query.Eq("slug", idOrSlug))
	} else {
		tour, err = s.tours.FindByID(ctx, idOrSlug)
	}
	if err != nil {
		if store.IsNotFound(err) {
			return nil, domainerrors.NotFound("Invalid ID, no tour found")
		}
		return nil, fmt.Errorf("get tour: %w", err)
	}

	detail := &domain.TourDetail{Tour: tour}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		guides, err := s.resolveGuides(gctx, tour.Guides)
		detail.Guides = guides
		return err
	})
	g.Go(func() error {
		reviews, err := s.reviews.Find(gctx, query.Descriptor{Filter: []query.Predicate{query.Eq("tour", tour.ID)}})
		if err != nil {
			return fmt.Errorf("find reviews: %w", err)
		}
		views, err := resolveAuthors(gctx, s.users, reviews)
		detail.Reviews = views
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return detail, nil
}

// resolveGuides loads guide summaries. Guides that no longer exist or are
// inactive are omitted.
func (s *TourService) resolveGuides(ctx context.Context, ids []string) ([]domain.GuideSummary, error) {
	guides := make([]domain.GuideSummary, 0, len(ids))
	for _, id := range ids {
		u, err := s.users.FindByID(ctx, id)
		if err != nil {
			if store.IsNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("find guide %s: %w", id, err)
		}
		guides = append(guides, u.Summary())
	}
	return guides, nil
}

// Create inserts a tour from a JSON payload.
func (s *TourService) Create(ctx context.Context, payload map[string]any) (*domain.Tour, error) {
	return s.factory.CreateOne(ctx, payload)
}

// Update patches a tour.
func (s *TourService) Update(ctx context.Context, id string, payload map[string]any) (*domain.Tour, error) {
	return s.factory.UpdateOne(ctx, id, payload)
}

// Delete removes a tour. Its reviews are kept.
func (s *TourService) Delete(ctx context.Context, id string) error {
	return s.factory.DeleteOne(ctx, id)
}

// Stats returns the per-difficulty report over tours rated at least 4.5.
func (s *TourService) Stats(ctx context.Context) ([]domain.DifficultyStats, error) {
	stats, err := s.tours.Stats(ctx, TopRatedMinimum)
	if err != nil {
		return nil, fmt.Errorf("tour stats: %w", err)
	}
	return stats, nil
}

// MonthlyPlan returns the tour starts of year grouped by month.
func (s *TourService) MonthlyPlan(ctx context.Context, year string) ([]domain.MonthPlan, error) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return nil, domainerrors.Validationf("Invalid year: %s.", year)
	}
	plan, err := s.tours.MonthlyPlan(ctx, y)
	if err != nil {
		return nil, fmt.Errorf("monthly plan: %w", err)
	}
	return plan, nil
}

// Within returns tours starting within distance of latlng.
func (s *TourService) Within(ctx context.Context, distance, latlng, unit string) ([]*domain.Tour, error) {
	center, u, err := parseGeo(latlng, unit)
	if err != nil {
		return nil, err
	}
	d, err := strconv.ParseFloat(distance, 64)
	if err != nil || math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return nil, domainerrors.Validationf("Invalid distance: %s.", distance)
	}
	tours, err := s.tours.Within(ctx, center, u.RadiusRadians(d))
	if err != nil {
		return nil, fmt.Errorf("tours within: %w", err)
	}
	return tours, nil
}

// Distances lists every tour by distance from latlng in unit.
func (s *TourService) Distances(ctx context.Context, latlng, unit string) ([]domain.TourDistance, error) {
	origin, u, err := parseGeo(latlng, unit)
	if err != nil {
		return nil, err
	}
	distances, err := s.tours.Distances(ctx, origin, u.Multiplier())
	if err != nil {
		return nil, fmt.Errorf("tour distances: %w", err)
	}
	return distances, nil
}

func parseGeo(latlng, unit string) (domain.LatLng, domain.Unit, error) {
	point, err := domain.ParseLatLng(latlng)
	if err != nil {
		return domain.LatLng{}, "", domainerrors.Validation("Please provide valid coordinates (latitude, longitude)")
	}
	u, err := domain.ParseUnit(unit)
	if err != nil {
		return domain.LatLng{}, "", domainerrors.Validation("Please provide a valid unit (mi, km)")
	}
	return point, u, nil
}

// Search runs a full-text query and returns the matching tours in rank order.
func (s *TourService) Search(ctx context.Context, params search.Params) ([]*domain.Tour, error) {
	if s.index == nil {
		return nil, domainerrors.NotFound("Search is not enabled on this server")
	}
	res, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("search tours: %w", err)
	}

	tours := make([]*domain.Tour, 0, len(res.Hits))
	for _, id := range res.IDs() {
		t, err := s.tours.FindByID(ctx, id)
		if err != nil {
			if store.IsNotFound(err) {
				// Stale hit; the index catches up on the next write.
				continue
			}
			return nil, fmt.Errorf("load tour %s: %w", id, err)
		}
		tours = append(tours, t)
	}
	return tours, nil
}

// Reindex rebuilds the search index from the store.
func (s *TourService) Reindex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	tours, err := s.tours.Find(ctx, query.Descriptor{})
	if err != nil {
		return 0, fmt.Errorf("load tours: %w", err)
	}
	if err := s.index.Rebuild(); err != nil {
		return 0, err
	}
	if err := s.index.IndexTours(tours); err != nil {
		return 0, err
	}
	s.logger.Info("search index rebuilt", "tours", len(tours))
	return len(tours), nil
}

func checkDiscountOnCreate(_ context.Context, t *domain.Tour) error {
	if !domain.DiscountBelowPrice(t.PriceDiscount, t.Price) {
		return discountError(t.PriceDiscount)
	}
	return nil
}

// checkDiscountOnUpdate compares a changed price or discount against the
// stored counterpart and refreshes the slug on rename.
func (s *TourService) checkDiscountOnUpdate(ctx context.Context, id string, patch *domain.Tour, set map[string]any) error {
	_, priceSet := set["price"]
	_, discountSet := set["priceDiscount"]
	if priceSet || discountSet {
		price, discount := patch.Price, patch.PriceDiscount
		if !priceSet || !discountSet {
			current, err := s.tours.FindByID(ctx, id)
			if err != nil {
				if store.IsNotFound(err) {
					return domainerrors.NotFound(NotFoundMessage)
				}
				return fmt.Errorf("load tour: %w", err)
			}
			if !priceSet {
				price = current.Price
			}
			if !discountSet {
				discount = current.PriceDiscount
			}
		}
		if !domain.DiscountBelowPrice(discount, price) {
			return discountError(discount)
		}
	}

	if _, ok := set["name"]; ok {
		set["slug"] = util.Slugify(patch.Name)
	}
	return nil
}

func discountError(discount float64) error {
	return domainerrors.ValidationWithDetails(
		fmt.Sprintf("Invalid input data. Discount price (%s) should be below regular price", strconv.FormatFloat(discount, 'f', -1, 64)),
		map[string]string{"priceDiscount": "must be below price"},
	)
}

func (s *TourService) reindex(_ context.Context, t *domain.Tour) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexTour(t); err != nil {
		s.logger.Warn("failed to index tour", "tour_id", t.ID, "error", err)
	}
}

func (s *TourService) unindex(_ context.Context, t *domain.Tour) {
	if s.index == nil {
		return
	}
	if err := s.index.DeleteTour(t.ID); err != nil {
		s.logger.Warn("failed to remove tour from index", "tour_id", t.ID, "error", err)
	}
}
