// Package seed imports and deletes development data.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tourbook/tourbook-server/internal/auth"
	"github.com/tourbook/tourbook-server/internal/domain"
	"github.com/tourbook/tourbook-server/internal/query"
	"github.com/tourbook/tourbook-server/internal/service"
	"github.com/tourbook/tourbook-server/internal/store"
)

// Data file names inside the seed directory.
const (
	ToursFile   = "tours.json"
	UsersFile   = "users.json"
	ReviewsFile = "reviews.json"
)

// Counts reports how many documents of each kind were written or removed.
type Counts struct {
	Tours   int
	Users   int
	Reviews int
}

// Seeder writes development data straight to the store. Document ids from the
// files are kept so that guides and reviews can reference them.
type Seeder struct {
	store   store.Store
	tours   *service.TourService
	reviews *service.ReviewService
	logger  *slog.Logger
}

// New creates a seeder. tours and reviews recompute the derived data
// (search index, tour ratings) after an import.
func New(st store.Store, tours *service.TourService, reviews *service.ReviewService, logger *slog.Logger) *Seeder {
	return &Seeder{store: st, tours: tours, reviews: reviews, logger: logger}
}

// Import reads tours, users and reviews from dir and inserts them. Users whose
// password is not already hashed are hashed on the way in.
func (s *Seeder) Import(ctx context.Context, dir string) (Counts, error) {
	var counts Counts

	tours, err := readFile[domain.Tour](filepath.Join(dir, ToursFile))
	if err != nil {
		return counts, err
	}
	users, err := readFile[domain.User](filepath.Join(dir, UsersFile))
	if err != nil {
		return counts, err
	}
	reviews, err := readFile[domain.Review](filepath.Join(dir, ReviewsFile))
	if err != nil {
		return counts, err
	}

	for _, u := range users {
		if !strings.HasPrefix(u.Password, "$argon2id$") {
			hash, err := auth.HashPassword(u.Password)
			if err != nil {
				return counts, fmt.Errorf("hash password of %s: %w", u.Email, err)
			}
			u.Password = hash
		}
		u.PasswordConfirm = ""
	}

	if counts.Users, err = insertAll[domain.User](ctx, s.store.Users(), users); err != nil {
		return counts, err
	}
	if counts.Tours, err = insertAll[domain.Tour](ctx, s.store.Tours(), tours); err != nil {
		return counts, err
	}
	if counts.Reviews, err = insertAll[domain.Review](ctx, s.store.Reviews(), reviews); err != nil {
		return counts, err
	}

	for _, t := range tours {
		if err := s.reviews.UpdateTourRating(ctx, t.ID); err != nil {
			return counts, err
		}
	}
	if _, err := s.tours.Reindex(ctx); err != nil {
		return counts, fmt.Errorf("reindex tours: %w", err)
	}

	s.logger.Info("development data imported",
		"tours", counts.Tours, "users", counts.Users, "reviews", counts.Reviews)
	return counts, nil
}

// Delete removes every document visible through the collection scopes.
// Secret tours and inactive users are left in place.
func (s *Seeder) Delete(ctx context.Context) (Counts, error) {
	var (
		counts Counts
		err    error
	)
	if counts.Reviews, err = deleteAll[domain.Review](ctx, s.store.Reviews()); err != nil {
		return counts, err
	}
	if counts.Tours, err = deleteAll[domain.Tour](ctx, s.store.Tours()); err != nil {
		return counts, err
	}
	if counts.Users, err = deleteAll[domain.User](ctx, s.store.Users()); err != nil {
		return counts, err
	}
	if _, err := s.tours.Reindex(ctx); err != nil {
		return counts, fmt.Errorf("reindex tours: %w", err)
	}

	s.logger.Info("development data deleted",
		"tours", counts.Tours, "users", counts.Users, "reviews", counts.Reviews)
	return counts, nil
}

func readFile[T any](path string) ([]*T, error) {
	//#nosec G304 -- seed files are chosen by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var docs []*T
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return docs, nil
}

func insertAll[T any](ctx context.Context, coll store.Writer[T], docs []*T) (int, error) {
	for i, doc := range docs {
		if d, ok := any(doc).(domain.Defaulter); ok {
			d.SetDefaults()
		}
		if err := coll.Insert(ctx, doc); err != nil {
			return i, fmt.Errorf("insert document %d: %w", i, err)
		}
	}
	return len(docs), nil
}

func deleteAll[T any](ctx context.Context, coll store.Collection[T]) (int, error) {
	docs, err := coll.Find(ctx, query.Descriptor{})
	if err != nil {
		return 0, err
	}
	for i, doc := range docs {
		id := any(doc).(store.Document).GetID()
		if _, err := coll.FindByIDAndDelete(ctx, id); err != nil && !store.IsNotFound(err) {
			return i, fmt.Errorf("delete %s: %w", id, err)
		}
	}
	return len(docs), nil
}
