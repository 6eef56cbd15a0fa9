package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tourbook/tourbook-server/internal/domain"
	"github.com/tourbook/tourbook-server/internal/query"
	"github.com/tourbook/tourbook-server/internal/service"
)

// Roles allowed to manage tours.
var tourManagers = []domain.Role{domain.RoleAdmin, domain.RoleLeadGuide}

func (s *Server) registerTourRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTours",
		Method:      http.MethodGet,
		Path:        "/api/v1/tours",
		Summary:     "List tours",
		Description: "Filters, sorts, projects and paginates tours from the query string. Secret tours are never listed.",
		Tags:        []string{"Tours"},
	}, s.handleListTours)

	huma.Register(s.api, huma.Operation{
		OperationID: "topFiveCheapTours",
		Method:      http.MethodGet,
		Path:        "/api/v1/tours/top-5-cheap",
		Summary:     "Top five cheap tours",
		Description: "The five best rated tours, cheapest first",
		Tags:        []string{"Tours"},
	}, s.handleTopFiveCheap)

	huma.Register(s.api, huma.Operation{
		OperationID: "tourStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/tours/tour-stats",
		Summary:     "Tour statistics",
		Description: "Per-difficulty statistics over tours rated 4.5 or better",
		Tags:        []string{"Tours"},
	}, s.handleTourStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "monthlyPlan",
		Method:      http.MethodGet,
		Path:        "/api/v1/tours/monthly-plan/{year}",
		Summary:     "Monthly plan",
		Description: "Tour starts of a year grouped by month",
		Tags:        []string{"Tours"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleMonthlyPlan)

	huma.Register(s.api, huma.Operation{
		OperationID: "toursWithin",
		Method:      http.MethodGet,
		Path:        "/api/v1/tours/tours-within/{distance}/center/{latlng}/unit/{unit}",
		Summary:     "Tours within a radius",
		Description: "Tours starting within distance of a point",
		Tags:        []string{"Tours"},
	}, s.handleToursWithin)

	huma.Register(s.api, huma.Operation{
		OperationID: "tourDistances",
		Method:      http.MethodGet,
		Path:        "/api/v1/tours/distances/{latlng}/unit/{unit}",
		Summary:     "Tour distances",
		Description: "Every tour with its distance from a point, nearest first",
		Tags:        []string{"Tours"},
	}, s.handleTourDistances)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createTour",
		Method:        http.MethodPost,
		Path:          "/api/v1/tours",
		Summary:       "Create tour",
		Tags:          []string{"Tours"},
		Security:      []map[string][]string{{"bearer": {}}},
		MaxBodyBytes:  s.bodyLimit(),
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateTour)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTour",
		Method:      http.MethodGet,
		Path:        "/api/v1/tours/{id}",
		Summary:     "Get tour",
		Description: "Returns a tour by id or slug with its guides and reviews",
		Tags:        []string{"Tours"},
	}, s.handleGetTour)

	huma.Register(s.api, huma.Operation{
		OperationID:  "updateTour",
		Method:       http.MethodPatch,
		Path:         "/api/v1/tours/{id}",
		Summary:      "Update tour",
		Tags:         []string{"Tours"},
		Security:     []map[string][]string{{"bearer": {}}},
		MaxBodyBytes: s.bodyLimit(),
	}, s.handleUpdateTour)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteTour",
		Method:        http.MethodDelete,
		Path:          "/api/v1/tours/{id}",
		Summary:       "Delete tour",
		Tags:          []string{"Tours"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteTour)
}

// === DTOs ===

// ToursData holds projected tours.
type ToursData struct {
	Tours []map[string]any `json:"tours"`
}

// TourData holds one tour with its guides and reviews.
type TourData struct {
	Tour *domain.TourDetail `json:"tour"`
}

// StatsData holds the statistics report.
type StatsData struct {
	Stats []domain.DifficultyStats `json:"stats"`
}

// PlanData holds the monthly plan.
type PlanData struct {
	Plan []domain.MonthPlan `json:"plan"`
}

// MonthlyPlanInput selects the plan year.
type MonthlyPlanInput struct {
	Year string `path:"year" doc:"Four digit year"`
}

// ToursWithinInput describes a radius query.
type ToursWithinInput struct {
	Distance string `path:"distance" doc:"Radius in unit"`
	LatLng   string `path:"latlng" doc:"Center as lat,lng"`
	Unit     string `path:"unit" doc:"mi or km"`
}

// DistancesInput describes a distance query.
type DistancesInput struct {
	LatLng string `path:"latlng" doc:"Origin as lat,lng"`
	Unit   string `path:"unit" doc:"mi or km"`
}

// === Handlers ===

func (s *Server) handleListTours(ctx context.Context, input *ListInput) (*Output[ToursData], error) {
	return s.listTours(ctx, input.Values())
}

func (s *Server) handleTopFiveCheap(ctx context.Context, input *ListInput) (*Output[ToursData], error) {
	return s.listTours(ctx, service.AliasTopFive(input.Values()))
}

func (s *Server) listTours(ctx context.Context, raw url.Values) (*Output[ToursData], error) {
	page, err := s.services.Tours.List(ctx, raw)
	if err != nil {
		return nil, err
	}
	tours, err := query.ProjectAll(page.Items, page.Projection)
	if err != nil {
		return nil, err
	}
	return okList(len(tours), ToursData{Tours: tours}), nil
}

func (s *Server) handleGetTour(ctx context.Context, input *IDInput) (*Output[TourData], error) {
	tour, err := s.services.Tours.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return ok(TourData{Tour: tour}), nil
}

func (s *Server) handleCreateTour(ctx context.Context, input *PayloadInput) (*Output[DocData[*domain.Tour]], error) {
	if _, err := s.restrictTo(ctx, tourManagers...); err != nil {
		return nil, err
	}
	tour, err := s.services.Tours.Create(ctx, input.Body)
	if err != nil {
		return nil, err
	}
	return ok(DocData[*domain.Tour]{Data: tour}), nil
}

func (s *Server) handleUpdateTour(ctx context.Context, input *IDPayloadInput) (*Output[DocData[*domain.Tour]], error) {
	if _, err := s.restrictTo(ctx, tourManagers...); err != nil {
		return nil, err
	}
	tour, err := s.services.Tours.Update(ctx, input.ID, input.Body)
	if err != nil {
		return nil, err
	}
	return ok(DocData[*domain.Tour]{Data: tour}), nil
}

func (s *Server) handleDeleteTour(ctx context.Context, input *IDInput) (*struct{}, error) {
	if _, err := s.restrictTo(ctx, tourManagers...); err != nil {
		return nil, err
	}
	return nil, s.services.Tours.Delete(ctx, input.ID)
}

func (s *Server) handleTourStats(ctx context.Context, _ *struct{}) (*Output[StatsData], error) {
	stats, err := s.services.Tours.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return ok(StatsData{Stats: stats}), nil
}

func (s *Server) handleMonthlyPlan(ctx context.Context, input *MonthlyPlanInput) (*Output[PlanData], error) {
	if _, err := s.restrictTo(ctx, domain.RoleAdmin, domain.RoleLeadGuide, domain.RoleGuide); err != nil {
		return nil, err
	}
	plan, err := s.services.Tours.MonthlyPlan(ctx, input.Year)
	if err != nil {
		return nil, err
	}
	return okList(len(plan), PlanData{Plan: plan}), nil
}

func (s *Server) handleToursWithin(ctx context.Context, input *ToursWithinInput) (*Output[DocData[[]*domain.Tour]], error) {
	tours, err := s.services.Tours.Within(ctx, input.Distance, input.LatLng, input.Unit)
	if err != nil {
		return nil, err
	}
	return okList(len(tours), DocData[[]*domain.Tour]{Data: tours}), nil
}

func (s *Server) handleTourDistances(ctx context.Context, input *DistancesInput) (*Output[DocData[[]domain.TourDistance]], error) {
	distances, err := s.services.Tours.Distances(ctx, input.LatLng, input.Unit)
	if err != nil {
		return nil, err
	}
	return okList(len(distances), DocData[[]domain.TourDistance]{Data: distances}), nil
}
