package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/tourbook/tourbook-server/internal/domain"
	domainerrors "github.com/tourbook/tourbook-server/internal/errors"
	"github.com/tourbook/tourbook-server/internal/query"
	"github.com/tourbook/tourbook-server/internal/store"
	"github.com/tourbook/tourbook-server/internal/validation"
)

// ReviewService handles reviews and keeps tour ratings in step with them.
type ReviewService struct {
	reviews store.ReviewCollection
	tours   store.TourCollection
	users   store.Collection[domain.User]
	factory *Factory[domain.Review]
	logger  *slog.Logger
}

// NewReviewService creates a review service.
func NewReviewService(st store.Store, v *validation.Validator, logger *slog.Logger) *ReviewService {
	s := &ReviewService{
		reviews: st.Reviews(),
		tours:   st.Tours(),
		users:   st.Users(),
		logger:  logger,
	}
	s.factory = NewFactory[domain.Review](st.Reviews(), v,
		WithReadOnly[domain.Review]("tour", "user", "createdAt"),
		WithBeforeCreate(s.checkTourExists),
		WithAfterWrite(s.recomputeRating),
		WithAfterDelete(s.recomputeRating),
		WithLogger[domain.Review](logger),
	)
	return s
}

// MsgNotReviewAuthor rejects a review posted on behalf of another user.
const MsgNotReviewAuthor = "You can only post reviews as yourself"

// SetTourAndUserIDs fills the tour and user of a new review from the nested
// route and the actor when the payload leaves them out. Only an admin may name
// a different user as the author.
func SetTourAndUserIDs(payload map[string]any, tourID string, actor *domain.User) (map[string]any, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	if v, _ := payload["tour"].(string); v == "" && tourID != "" {
		payload["tour"] = tourID
	}
	v, _ := payload["user"].(string)
	switch {
	case v == "":
		payload["user"] = actor.ID
	case v != actor.ID && actor.Role != domain.RoleAdmin:
		return nil, domainerrors.Forbidden(MsgNotReviewAuthor)
	}
	return payload, nil
}

// List runs a review query, restricted to tourID when it is not empty.
func (s *ReviewService) List(ctx context.Context, raw url.Values, tourID string) ([]domain.ReviewView, query.Projection, error) {
	var base []query.Predicate
	if tourID != "" {
		base = append(base, query.Eq("tour", tourID))
	}
	page, err := s.factory.GetAll(ctx, raw, base...)
	if err != nil {
		return nil, query.Projection{}, err
	}
	views, err := resolveAuthors(ctx, s.users, page.Items)
	if err != nil {
		return nil, query.Projection{}, err
	}
	return views, page.Projection, nil
}

// Get returns a review with its author.
func (s *ReviewService) Get(ctx context.Context, id string) (*domain.ReviewView, error) {
	r, err := s.factory.GetOne(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := resolveAuthors(ctx, s.users, []*domain.Review{r})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Create inserts a review.
func (s *ReviewService) Create(ctx context.Context, payload map[string]any) (*domain.Review, error) {
	return s.factory.CreateOne(ctx, payload)
}

// Update patches a review.
func (s *ReviewService) Update(ctx context.Context, id string, payload map[string]any) (*domain.Review, error) {
	return s.factory.UpdateOne(ctx, id, payload)
}

// Delete removes a review.
func (s *ReviewService) Delete(ctx context.Context, id string) error {
	return s.factory.DeleteOne(ctx, id)
}

// CheckAuthor allows admins and the review's author. A missing review is
// NotFound regardless of the actor.
func (s *ReviewService) CheckAuthor(ctx context.Context, reviewID string, actor *domain.User) error {
	r, err := s.factory.GetOne(ctx, reviewID)
	if err != nil {
		return err
	}
	if actor.HasRole(domain.RoleAdmin) || r.User == actor.ID {
		return nil
	}
	return domainerrors.Forbidden("Permission denied. You're not the author of this review!")
}

func (s *ReviewService) checkTourExists(ctx context.Context, r *domain.Review) error {
	if _, err := s.tours.FindByID(ctx, r.Tour); err != nil {
		if store.IsNotFound(err) {
			return domainerrors.NotFound("Invalid ID, no tour found")
		}
		return fmt.Errorf("find tour: %w", err)
	}
	return nil
}

// recomputeRating refreshes ratingsAverage and ratingsQuantity of the
// review's tour. A tour without reviews falls back to the default rating.
func (s *ReviewService) recomputeRating(ctx context.Context, r *domain.Review) {
	if err := s.UpdateTourRating(ctx, r.Tour); err != nil {
		s.logger.Warn("failed to update tour rating", "tour_id", r.Tour, "error", err)
	}
}

// UpdateTourRating recomputes the rating fields of tourID from its reviews.
func (s *ReviewService) UpdateTourRating(ctx context.Context, tourID string) error {
	summary, err := s.reviews.RatingSummary(ctx, tourID)
	if err != nil {
		return fmt.Errorf("rating summary: %w", err)
	}

	avg, qty := domain.DefaultRatingsAverage, 0
	if summary.Quantity > 0 {
		avg, qty = domain.RoundRating(summary.Average), summary.Quantity
	}

	_, err = s.tours.FindByIDAndUpdate(ctx, tourID, map[string]any{
		"ratingsAverage":  avg,
		"ratingsQuantity": qty,
	})
	if err != nil && !store.IsNotFound(err) {
		return fmt.Errorf("update tour: %w", err)
	}
	return nil
}

// resolveAuthors attaches the author view to each review. Authors that are
// gone or inactive resolve to nil.
func resolveAuthors(ctx context.Context, users store.Reader[domain.User], reviews []*domain.Review) ([]domain.ReviewView, error) {
	authors := make(map[string]*domain.Author)
	views := make([]domain.ReviewView, 0, len(reviews))
	for _, r := range reviews {
		author, seen := authors[r.User]
		if !seen {
			u, err := users.FindByID(ctx, r.User)
			switch {
			case err == nil:
				author = u.Author()
			case store.IsNotFound(err):
			default:
				return nil, fmt.Errorf("find author %s: %w", r.User, err)
			}
			authors[r.User] = author
		}
		views = append(views, domain.ReviewView{Review: r, User: author})
	}
	return views, nil
}
