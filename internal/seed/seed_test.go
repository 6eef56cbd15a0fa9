package seed

import (
	"context"
	"log/slog"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourbook/tourbook-server/internal/auth"
	"github.com/tourbook/tourbook-server/internal/query"
	"github.com/tourbook/tourbook-server/internal/search"
	"github.com/tourbook/tourbook-server/internal/service"
	"github.com/tourbook/tourbook-server/internal/store/badgerstore"
	"github.com/tourbook/tourbook-server/internal/validation"
)

// devDataDir is the repository's dev-data directory.
func devDataDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "..", "dev-data")
}

func setupSeeder(t *testing.T) (*Seeder, *badgerstore.DB, *search.SearchIndex) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	db, err := badgerstore.OpenInMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	index, err := search.NewSearchIndex(search.Options{InMemory: true, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	v := validation.New()
	tours := service.NewTourService(db, v, index, logger)
	reviews := service.NewReviewService(db, v, logger)
	return New(db, tours, reviews, logger), db, index
}

func TestImport(t *testing.T) {
	s, db, index := setupSeeder(t)
	ctx := context.Background()

	counts, err := s.Import(ctx, devDataDir(t))
	require.NoError(t, err)
	assert.Equal(t, Counts{Tours: 3, Users: 5, Reviews: 3}, counts)

	admin, err := db.Users().FindOne(ctx, query.Eq("email", "admin@tourbook.io"))
	require.NoError(t, err)
	assert.True(t, auth.VerifyPassword(admin.Password, "test1234"))
	assert.True(t, admin.IsActive())

	hiker, err := db.Tours().FindByID(ctx, "5c88fa8cf4afda39709c2951")
	require.NoError(t, err)
	assert.Equal(t, 2, hiker.RatingsQuantity)
	assert.InDelta(t, 4.5, hiker.RatingsAverage, 0.001)
	assert.Equal(t, "the-forest-hiker", hiker.Slug)

	docs, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), docs)
}

func TestDelete(t *testing.T) {
	s, db, index := setupSeeder(t)
	ctx := context.Background()

	_, err := s.Import(ctx, devDataDir(t))
	require.NoError(t, err)

	counts, err := s.Delete(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Tours: 3, Users: 5, Reviews: 3}, counts)

	n, err := db.Tours().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	docs, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Zero(t, docs)
}

func TestImport_MissingFile(t *testing.T) {
	s, _, _ := setupSeeder(t)

	_, err := s.Import(context.Background(), t.TempDir())
	assert.ErrorContains(t, err, ToursFile)
}
