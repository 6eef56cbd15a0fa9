package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourbook/tourbook-server/internal/domain"
)

func setupTestIndex(t *testing.T) *SearchIndex {
	t.Helper()
	idx, err := NewSearchIndex(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func testTours() []*domain.Tour {
	mk := func(id, name, summary, difficulty string, price float64, place string) *domain.Tour {
		t := &domain.Tour{
			Name:       name,
			Summary:    summary,
			Difficulty: difficulty,
			Price:      price,
		}
		t.ID = id
		if place != "" {
			t.StartLocation = &domain.GeoPoint{Type: "Point", Coordinates: []float64{-80.18, 25.77}, Description: place}
		}
		return t
	}
	return []*domain.Tour{
		mk("5c88fa8cf4afda39709c2951", "The Forest Hiker", "Breathtaking hike through the Canadian Banff National Park", "easy", 397, "Banff, CAN"),
		mk("5c88fa8cf4afda39709c2955", "The Sea Explorer", "Exploring the jaw-dropping US east coast by foot and by boat", "medium", 497, "Miami, USA"),
		mk("5c88fa8cf4afda39709c295a", "The Snow Adventurer", "Exciting adventure in the snow with snowboarding and skiing", "difficult", 997, "Aspen, USA"),
		mk("5c88fa8cf4afda39709c2961", "The Park Camper", "Breathing in Nature in America's most spectacular National Parks", "medium", 1497, "Las Vegas, USA"),
	}
}

func TestSearch_ByName(t *testing.T) {
	idx := setupTestIndex(t)
	require.NoError(t, idx.IndexTours(testTours()))

	res, err := idx.Search(context.Background(), Params{Query: "forest"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, "5c88fa8cf4afda39709c2951", res.Hits[0].ID)
	assert.Equal(t, "The Forest Hiker", res.Hits[0].Name)
}

func TestSearch_NameOutranksSummary(t *testing.T) {
	idx := setupTestIndex(t)
	require.NoError(t, idx.IndexTours(testTours()))

	// "park" is in one name and two summaries.
	res, err := idx.Search(context.Background(), Params{Query: "park"})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(res.Hits), 2)
	assert.Equal(t, "5c88fa8cf4afda39709c2961", res.Hits[0].ID)
}

func TestSearch_Fuzzy(t *testing.T) {
	idx := setupTestIndex(t)
	require.NoError(t, idx.IndexTours(testTours()))

	res, err := idx.Search(context.Background(), Params{Query: "explorr"})
	require.NoError(t, err)
	assert.Contains(t, res.IDs(), "5c88fa8cf4afda39709c2955")
}

func TestSearch_Location(t *testing.T) {
	idx := setupTestIndex(t)
	require.NoError(t, idx.IndexTours(testTours()))

	res, err := idx.Search(context.Background(), Params{Query: "miami"})
	require.NoError(t, err)
	assert.Equal(t, []string{"5c88fa8cf4afda39709c2955"}, res.IDs())
}

func TestSearch_Filters(t *testing.T) {
	idx := setupTestIndex(t)
	require.NoError(t, idx.IndexTours(testTours()))

	res, err := idx.Search(context.Background(), Params{Difficulty: "medium"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"5c88fa8cf4afda39709c2955", "5c88fa8cf4afda39709c2961"}, res.IDs())

	res, err = idx.Search(context.Background(), Params{MaxPrice: 500})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"5c88fa8cf4afda39709c2951", "5c88fa8cf4afda39709c2955"}, res.IDs())
}

func TestSearch_Limit(t *testing.T) {
	idx := setupTestIndex(t)
	require.NoError(t, idx.IndexTours(testTours()))

	res, err := idx.Search(context.Background(), Params{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 2)
	assert.Equal(t, uint64(4), res.Total)
}

func TestIndexTour_SecretIsRemoved(t *testing.T) {
	idx := setupTestIndex(t)
	tours := testTours()
	require.NoError(t, idx.IndexTours(tours))

	tours[0].SecretTour = true
	require.NoError(t, idx.IndexTour(tours[0]))

	count, err := idx.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestDeleteTour(t *testing.T) {
	idx := setupTestIndex(t)
	require.NoError(t, idx.IndexTours(testTours()))
	require.NoError(t, idx.DeleteTour("5c88fa8cf4afda39709c2951"))

	res, err := idx.Search(context.Background(), Params{Query: "forest"})
	require.NoError(t, err)
	assert.NotContains(t, res.IDs(), "5c88fa8cf4afda39709c2951")
}

func TestRebuild(t *testing.T) {
	idx := setupTestIndex(t)
	require.NoError(t, idx.IndexTours(testTours()))
	require.NoError(t, idx.Rebuild())

	count, err := idx.DocumentCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestNewSearchIndex_OnDiskReopen(t *testing.T) {
	dir := t.TempDir()

	idx, err := NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, idx.IndexTours(testTours()))
	require.NoError(t, idx.Close())

	idx, err = NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	defer idx.Close()

	count, err := idx.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), count)
}
