package api

import (
	"net/url"

	"github.com/danielgtaylor/huma/v2"
)

// Envelope is the success body of every JSON response.
type Envelope[T any] struct {
	Status  string `json:"status" example:"success" doc:"Always success"`
	Results *int   `json:"results,omitempty" doc:"Number of items in a list response"`
	Token   string `json:"token,omitempty" doc:"Session token, set by authentication routes"`
	Data    T      `json:"data"`
}

// Output wraps an envelope for Huma.
type Output[T any] struct {
	Body Envelope[T]
}

// MessageOutput is a success response carrying only a message.
type MessageOutput struct {
	Body struct {
		Status  string `json:"status" example:"success"`
		Message string `json:"message"`
	}
}

func ok[T any](data T) *Output[T] {
	return &Output[T]{Body: Envelope[T]{Status: "success", Data: data}}
}

func okList[T any](n int, data T) *Output[T] {
	out := ok(data)
	out.Body.Results = &n
	return out
}

// DocData holds a single document or list under "data", as the generic
// create and update handlers render them.
type DocData[T any] struct {
	Data T `json:"data"`
}

// IDInput addresses a document by its id.
type IDInput struct {
	ID string `path:"id" doc:"Document ID"`
}

// PayloadInput carries a free-form JSON document. Unknown and read-only
// fields are dropped by the service layer.
type PayloadInput struct {
	Body map[string]any
}

// IDPayloadInput addresses a document and carries a patch for it.
type IDPayloadInput struct {
	ID   string `path:"id" doc:"Document ID"`
	Body map[string]any
}

// RawQuery captures the whole query string for filter, sort, field and page
// parameters that are not declared one by one.
type RawQuery struct {
	values url.Values
}

// Resolve implements huma.Resolver.
func (q *RawQuery) Resolve(ctx huma.Context) []error {
	u := ctx.URL()
	q.values = u.Query()
	return nil
}

// Values returns the captured query string.
func (q *RawQuery) Values() url.Values {
	if q.values == nil {
		return url.Values{}
	}
	return q.values
}

// ListInput is a list request driven by the query string.
type ListInput struct {
	RawQuery
}
