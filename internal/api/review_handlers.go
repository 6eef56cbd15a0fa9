package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tourbook/tourbook-server/internal/domain"
	"github.com/tourbook/tourbook-server/internal/query"
	"github.com/tourbook/tourbook-server/internal/service"
)

func (s *Server) registerReviewRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listReviews",
		Method:      http.MethodGet,
		Path:        "/api/v1/reviews",
		Summary:     "List reviews",
		Tags:        []string{"Reviews"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListReviews)

	huma.Register(s.api, huma.Operation{
		OperationID: "listTourReviews",
		Method:      http.MethodGet,
		Path:        "/api/v1/tours/{id}/reviews",
		Summary:     "List tour reviews",
		Description: "Lists the reviews of one tour",
		Tags:        []string{"Reviews"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListTourReviews)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createReview",
		Method:        http.MethodPost,
		Path:          "/api/v1/reviews",
		Summary:       "Create review",
		Description:   "The author defaults to the signed-in user",
		Tags:          []string{"Reviews"},
		Security:      []map[string][]string{{"bearer": {}}},
		MaxBodyBytes:  s.bodyLimit(),
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateReview)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createTourReview",
		Method:        http.MethodPost,
		Path:          "/api/v1/tours/{id}/reviews",
		Summary:       "Review a tour",
		Description:   "The tour comes from the path and the author defaults to the signed-in user",
		Tags:          []string{"Reviews"},
		Security:      []map[string][]string{{"bearer": {}}},
		MaxBodyBytes:  s.bodyLimit(),
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateTourReview)

	huma.Register(s.api, huma.Operation{
		OperationID: "getReview",
		Method:      http.MethodGet,
		Path:        "/api/v1/reviews/{id}",
		Summary:     "Get review",
		Tags:        []string{"Reviews"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetReview)

	huma.Register(s.api, huma.Operation{
		OperationID:  "updateReview",
		Method:       http.MethodPatch,
		Path:         "/api/v1/reviews/{id}",
		Summary:      "Update review",
		Description:  "Only the author or an admin may update a review",
		Tags:         []string{"Reviews"},
		Security:     []map[string][]string{{"bearer": {}}},
		MaxBodyBytes: s.bodyLimit(),
	}, s.handleUpdateReview)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteReview",
		Method:        http.MethodDelete,
		Path:          "/api/v1/reviews/{id}",
		Summary:       "Delete review",
		Description:   "Only the author or an admin may delete a review",
		Tags:          []string{"Reviews"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteReview)
}

// === DTOs ===

// ReviewsData holds projected reviews.
type ReviewsData struct {
	Reviews []map[string]any `json:"reviews"`
}

// ReviewData holds one review with its author.
type ReviewData struct {
	Review *domain.ReviewView `json:"review"`
}

// TourReviewsInput lists the reviews of a tour.
type TourReviewsInput struct {
	ID string `path:"id" doc:"Tour ID"`
	RawQuery
}

// === Handlers ===

func (s *Server) handleListReviews(ctx context.Context, input *ListInput) (*Output[ReviewsData], error) {
	return s.listReviews(ctx, input.RawQuery, "")
}

func (s *Server) handleListTourReviews(ctx context.Context, input *TourReviewsInput) (*Output[ReviewsData], error) {
	return s.listReviews(ctx, input.RawQuery, input.ID)
}

func (s *Server) listReviews(ctx context.Context, q RawQuery, tourID string) (*Output[ReviewsData], error) {
	if _, err := s.protect(ctx); err != nil {
		return nil, err
	}
	views, projection, err := s.services.Reviews.List(ctx, q.Values(), tourID)
	if err != nil {
		return nil, err
	}
	reviews, err := query.ProjectAll(views, projection)
	if err != nil {
		return nil, err
	}
	return okList(len(reviews), ReviewsData{Reviews: reviews}), nil
}

func (s *Server) handleCreateReview(ctx context.Context, input *PayloadInput) (*Output[DocData[*domain.Review]], error) {
	return s.createReview(ctx, input.Body, "")
}

func (s *Server) handleCreateTourReview(ctx context.Context, input *IDPayloadInput) (*Output[DocData[*domain.Review]], error) {
	return s.createReview(ctx, input.Body, input.ID)
}

func (s *Server) createReview(ctx context.Context, payload map[string]any, tourID string) (*Output[DocData[*domain.Review]], error) {
	actor, err := s.restrictTo(ctx, domain.RoleUser)
	if err != nil {
		return nil, err
	}
	payload, err = service.SetTourAndUserIDs(payload, tourID, actor)
	if err != nil {
		return nil, err
	}
	review, err := s.services.Reviews.Create(ctx, payload)
	if err != nil {
		return nil, err
	}
	return ok(DocData[*domain.Review]{Data: review}), nil
}

func (s *Server) handleGetReview(ctx context.Context, input *IDInput) (*Output[ReviewData], error) {
	if _, err := s.protect(ctx); err != nil {
		return nil, err
	}
	review, err := s.services.Reviews.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return ok(ReviewData{Review: review}), nil
}

// authorizeReviewChange admits users and admins who may change the review id.
func (s *Server) authorizeReviewChange(ctx context.Context, id string) error {
	actor, err := s.restrictTo(ctx, domain.RoleUser, domain.RoleAdmin)
	if err != nil {
		return err
	}
	return s.services.Reviews.CheckAuthor(ctx, id, actor)
}

func (s *Server) handleUpdateReview(ctx context.Context, input *IDPayloadInput) (*Output[DocData[*domain.Review]], error) {
	if err := s.authorizeReviewChange(ctx, input.ID); err != nil {
		return nil, err
	}
	review, err := s.services.Reviews.Update(ctx, input.ID, input.Body)
	if err != nil {
		return nil, err
	}
	return ok(DocData[*domain.Review]{Data: review}), nil
}

func (s *Server) handleDeleteReview(ctx context.Context, input *IDInput) (*struct{}, error) {
	if err := s.authorizeReviewChange(ctx, input.ID); err != nil {
		return nil, err
	}
	return nil, s.services.Reviews.Delete(ctx, input.ID)
}
