package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tourbook/tourbook-server/internal/domain"
	"github.com/tourbook/tourbook-server/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchTours",
		Method:      http.MethodGet,
		Path:        "/api/v1/tours/search",
		Summary:     "Search tours",
		Description: "Full-text search over tour names, summaries, descriptions and locations",
		Tags:        []string{"Tours", "Search"},
	}, s.handleSearchTours)
}

// === DTOs ===

// SearchToursInput contains parameters for searching tours.
type SearchToursInput struct {
	Query      string  `query:"q" required:"true" minLength:"1" maxLength:"200" doc:"Search query"`
	Difficulty string  `query:"difficulty" enum:"easy,medium,difficult" doc:"Only tours of this difficulty"`
	MaxPrice   float64 `query:"maxPrice" minimum:"0" doc:"Only tours at or below this price"`
	Limit      int     `query:"limit" minimum:"1" maximum:"100" default:"10" doc:"Max results"`
	Offset     int     `query:"offset" minimum:"0" doc:"Pagination offset"`
}

// SearchToursData holds the matching tours in rank order.
type SearchToursData struct {
	Tours []*domain.Tour `json:"tours"`
}

// === Handlers ===

func (s *Server) handleSearchTours(ctx context.Context, input *SearchToursInput) (*Output[SearchToursData], error) {
	tours, err := s.services.Tours.Search(ctx, search.Params{
		Query:      input.Query,
		Difficulty: input.Difficulty,
		MaxPrice:   input.MaxPrice,
		Limit:      input.Limit,
		Offset:     input.Offset,
	})
	if err != nil {
		return nil, err
	}
	return okList(len(tours), SearchToursData{Tours: tours}), nil
}
