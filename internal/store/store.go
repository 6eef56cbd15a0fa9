// Package store defines the storage-neutral repository interfaces shared by
// the embedded badger backend and the MongoDB backend.
package store

import (
	"context"

	"github.com/tourbook/tourbook-server/internal/domain"
	"github.com/tourbook/tourbook-server/internal/query"
)

// Document is implemented by every stored type through domain.Document.
type Document interface {
	GetID() string
	SetID(id string)
}

// Reader is the read side of a collection. Every read honours the
// collection's scope predicates.
type Reader[T any] interface {
	FindByID(ctx context.Context, id string) (*T, error)
	FindOne(ctx context.Context, filter ...query.Predicate) (*T, error)
	Find(ctx context.Context, d query.Descriptor) ([]*T, error)
	Count(ctx context.Context, filter ...query.Predicate) (int, error)
}

// Writer is the capability set the generic handler factory runs over.
type Writer[T any] interface {
	// Insert assigns an id when the document has none.
	Insert(ctx context.Context, doc *T) error
	// FindByIDAndUpdate sets fields (storage names) and returns the updated document.
	FindByIDAndUpdate(ctx context.Context, id string, set map[string]any) (*T, error)
	// FindByIDAndDelete removes the document and returns it.
	FindByIDAndDelete(ctx context.Context, id string) (*T, error)
}

// Collection is a typed document collection.
type Collection[T any] interface {
	Reader[T]
	Writer[T]
	// FindByIDUnscoped reads a document the scope would hide.
	FindByIDUnscoped(ctx context.Context, id string) (*T, error)
	// Save replaces the stored document with doc, ignoring scope.
	Save(ctx context.Context, doc *T) error
	// DeleteAll removes every document and returns how many were removed.
	DeleteAll(ctx context.Context) (int, error)
}

// TourCollection adds the tour reports and geo queries.
type TourCollection interface {
	Collection[domain.Tour]
	// Stats groups tours rated at least minRating by difficulty, ordered by average price.
	Stats(ctx context.Context, minRating float64) ([]domain.DifficultyStats, error)
	// MonthlyPlan lists tour starts in year grouped by month, ordered by month.
	MonthlyPlan(ctx context.Context, year int) ([]domain.MonthPlan, error)
	// Within returns tours whose start location lies inside the spherical cap
	// of radius radians around center.
	Within(ctx context.Context, center domain.LatLng, radius float64) ([]*domain.Tour, error)
	// Distances returns every tour with a start location ordered by distance
	// from origin. Distances are meters scaled by multiplier.
	Distances(ctx context.Context, origin domain.LatLng, multiplier float64) ([]domain.TourDistance, error)
}

// ReviewCollection adds the rating aggregate.
type ReviewCollection interface {
	Collection[domain.Review]
	RatingSummary(ctx context.Context, tourID string) (domain.RatingSummary, error)
}

// Store is an open database.
type Store interface {
	Tours() TourCollection
	Users() Collection[domain.User]
	Reviews() ReviewCollection
	Ping(ctx context.Context) error
	Close() error
}

// Spec describes a collection: its name, the predicates ANDed into every
// read, and its unique indexes (storage field names).
type Spec struct {
	Name   string
	Scope  []query.Predicate
	Unique [][]string
}

// Collection specs shared by both backends.
var (
	ToursSpec = Spec{
		Name:   "tours",
		Scope:  []query.Predicate{query.Ne("secretTour", true)},
		Unique: [][]string{{"name"}, {"slug"}},
	}
	UsersSpec = Spec{
		Name:   "users",
		Scope:  []query.Predicate{query.Ne("active", false)},
		Unique: [][]string{{"email"}},
	}
	ReviewsSpec = Spec{
		Name:   "reviews",
		Unique: [][]string{{"tour", "user"}},
	}
)
