package domain

import (
	"math"
	"time"

	"github.com/tourbook/tourbook-server/internal/util"
)

// Tour difficulties.
const (
	DifficultyEasy      = "easy"
	DifficultyMedium    = "medium"
	DifficultyDifficult = "difficult"
)

// DefaultRatingsAverage is the rating of a tour without reviews.
const DefaultRatingsAverage = 4.5

// Tour is a bookable tour.
type Tour struct {
	Document        `bson:",inline"`
	Name            string      `json:"name" bson:"name" validate:"required,min=10,max=40"`
	Slug            string      `json:"slug" bson:"slug"`
	Duration        float64     `json:"duration" bson:"duration" validate:"required,gt=0"`
	MaxGroupSize    int         `json:"maxGroupSize" bson:"maxGroupSize" validate:"required,gt=0"`
	Difficulty      string      `json:"difficulty" bson:"difficulty" validate:"required,oneof=easy medium difficult"`
	RatingsAverage  float64     `json:"ratingsAverage" bson:"ratingsAverage" validate:"gte=1,lte=5"`
	RatingsQuantity int         `json:"ratingsQuantity" bson:"ratingsQuantity" validate:"gte=0"`
	Price           float64     `json:"price" bson:"price" validate:"required,gt=0"`
	PriceDiscount   float64     `json:"priceDiscount,omitempty" bson:"priceDiscount,omitempty" validate:"gte=0"`
	Summary         string      `json:"summary" bson:"summary" validate:"required"`
	Description     string      `json:"description,omitempty" bson:"description,omitempty"`
	ImageCover      string      `json:"imageCover" bson:"imageCover" validate:"required"`
	Images          []string    `json:"images" bson:"images"`
	CreatedAt       time.Time   `json:"createdAt" bson:"createdAt"`
	StartDates      []time.Time `json:"startDates" bson:"startDates"`
	SecretTour      bool        `json:"secretTour" bson:"secretTour"`
	StartLocation   *GeoPoint   `json:"startLocation,omitempty" bson:"startLocation,omitempty" validate:"omitempty"`
	Locations       []Location  `json:"locations" bson:"locations" validate:"dive"`
	Guides          []string    `json:"guides" bson:"guides" validate:"dive,hexadecimal,len=24"`

	// DurationWeeks is derived from Duration on load.
	DurationWeeks float64 `json:"durationWeeks" bson:"-"`
}

// SetDefaults implements Defaulter.
func (t *Tour) SetDefaults() {
	if t.RatingsAverage == 0 {
		t.RatingsAverage = DefaultRatingsAverage
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Images == nil {
		t.Images = []string{}
	}
	if t.StartDates == nil {
		t.StartDates = []time.Time{}
	}
	if t.Locations == nil {
		t.Locations = []Location{}
	}
	if t.Guides == nil {
		t.Guides = []string{}
	}
	if t.StartLocation != nil && t.StartLocation.Type == "" {
		t.StartLocation.Type = "Point"
	}
	t.Slug = util.Slugify(t.Name)
}

// AfterLoad implements Loader.
func (t *Tour) AfterLoad() {
	t.DurationWeeks = t.Duration / 7
}

// DiscountBelowPrice reports whether the discount is valid for the given price.
func DiscountBelowPrice(discount, price float64) bool {
	return discount == 0 || discount < price
}

// RoundRating rounds a rating average to one decimal (4.666 -> 4.7).
func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}

// GuideSummary is the guide view embedded in a tour detail response.
type GuideSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Photo string `json:"photo,omitempty"`
	Role  Role   `json:"role"`
}

// TourDetail is a tour with its guides and reviews resolved.
type TourDetail struct {
	*Tour
	Guides  []GuideSummary `json:"guides"`
	Reviews []ReviewView   `json:"reviews"`
}

// DifficultyStats is one row of the tour statistics report.
type DifficultyStats struct {
	Difficulty string  `json:"_id" bson:"_id"`
	NumTours   int     `json:"numTours" bson:"numTours"`
	NumRatings int     `json:"numRatings" bson:"numRatings"`
	AvgRating  float64 `json:"avgRating" bson:"avgRating"`
	AvgPrice   float64 `json:"avgPrice" bson:"avgPrice"`
	MinPrice   float64 `json:"minPrice" bson:"minPrice"`
	MaxPrice   float64 `json:"maxPrice" bson:"maxPrice"`
}

// MonthPlan is one month of the yearly start-date plan.
type MonthPlan struct {
	Month         int      `json:"month" bson:"month"`
	NumTourStarts int      `json:"numTourStarts" bson:"numTourStarts"`
	Tours         []string `json:"tours" bson:"tours"`
}

// TourDistance is a tour name with its distance from a reference point.
type TourDistance struct {
	ID       string  `json:"id" bson:"_id"`
	Name     string  `json:"name" bson:"name"`
	Distance float64 `json:"distance" bson:"distance"`
}
