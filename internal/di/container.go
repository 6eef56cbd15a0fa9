// Package di provides dependency injection configuration for the tourbook server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/tourbook/tourbook-server/internal/auth"
	"github.com/tourbook/tourbook-server/internal/config"
	"github.com/tourbook/tourbook-server/internal/di/providers"
	"github.com/tourbook/tourbook-server/internal/email"
	"github.com/tourbook/tourbook-server/internal/logger"
	"github.com/tourbook/tourbook-server/internal/service"
	"github.com/tourbook/tourbook-server/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)

	// Storage and search
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Infrastructure clients
	do.Provide(injector, providers.ProvideTokenService)
	do.Provide(injector, providers.ProvideMailer)
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideCredentialLimiter)
	do.Provide(injector, providers.ProvideValidator)

	// Business services
	do.Provide(injector, providers.ProvideTourService)
	do.Provide(injector, providers.ProvideReviewService)
	do.Provide(injector, providers.ProvideUserService)
	do.Provide(injector, providers.ProvideAuthService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and starts the HTTP server.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)
	_ = do.MustInvoke[*email.Mailer](injector)
	_ = do.MustInvoke[*providers.RateLimiterHandle](injector)
	_ = do.MustInvoke[*providers.CredentialLimiterHandle](injector)
	_ = do.MustInvoke[*validation.Validator](injector)

	// Business services
	_ = do.MustInvoke[*service.TourService](injector)
	_ = do.MustInvoke[*service.ReviewService](injector)
	_ = do.MustInvoke[*service.UserService](injector)
	_ = do.MustInvoke[*service.AuthService](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	// Rebuild an empty search index from the store
	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}
