// Package search maintains a bleve full-text index over tours.
package search

import "github.com/tourbook/tourbook-server/internal/domain"

// TourDocument is the indexed projection of a tour.
type TourDocument struct {
	ID             string
	Name           string
	Summary        string
	Description    string
	Difficulty     string
	Location       string
	Price          float64
	Duration       float64
	RatingsAverage float64
}

// FromTour builds the indexed projection of t.
func FromTour(t *domain.Tour) *TourDocument {
	doc := &TourDocument{
		ID:             t.ID,
		Name:           t.Name,
		Summary:        t.Summary,
		Description:    t.Description,
		Difficulty:     t.Difficulty,
		Price:          t.Price,
		Duration:       t.Duration,
		RatingsAverage: t.RatingsAverage,
	}
	if t.StartLocation != nil {
		doc.Location = t.StartLocation.Description
	}
	return doc
}

// ToMap converts the document to the field names used by the mapping.
func (d *TourDocument) ToMap() map[string]any {
	return map[string]any{
		"id":              d.ID,
		"name":            d.Name,
		"summary":         d.Summary,
		"description":     d.Description,
		"difficulty":      d.Difficulty,
		"location":        d.Location,
		"price":           d.Price,
		"duration":        d.Duration,
		"ratings_average": d.RatingsAverage,
	}
}
