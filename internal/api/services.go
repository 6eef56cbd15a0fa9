package api

import (
	"github.com/tourbook/tourbook-server/internal/search"
	"github.com/tourbook/tourbook-server/internal/service"
	"github.com/tourbook/tourbook-server/internal/store"
)

// Services groups the business logic used by the API server.
type Services struct {
	Tours   *service.TourService
	Reviews *service.ReviewService
	Users   *service.UserService
	Auth    *service.AuthService

	// Store and Index back the health check. Index is nil when search is disabled.
	Store store.Store
	Index *search.SearchIndex
}
