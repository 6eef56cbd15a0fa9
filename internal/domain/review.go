package domain

import "time"

// Review is a rating of a tour written by a user.
type Review struct {
	Document  `bson:",inline"`
	Review    string    `json:"review" bson:"review" validate:"required,max=2000"`
	Rating    float64   `json:"rating" bson:"rating" validate:"required,gte=1,lte=5"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	Tour      string    `json:"tour" bson:"tour" validate:"required,hexadecimal,len=24"`
	User      string    `json:"user" bson:"user" validate:"required,hexadecimal,len=24"`
}

// SetDefaults implements Defaulter.
func (r *Review) SetDefaults() {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
}

// Author is the user view embedded in reviews.
type Author struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Photo string `json:"photo,omitempty"`
}

// ReviewView is a review with its author resolved.
type ReviewView struct {
	*Review
	User *Author `json:"user"`
}

// RatingSummary is the aggregate of a tour's reviews.
type RatingSummary struct {
	Quantity int
	Average  float64
}
