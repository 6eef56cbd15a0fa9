// Package api provides the HTTP API server and handlers for the tourbook application.
package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tourbook/tourbook-server/internal/http/response"
	"github.com/tourbook/tourbook-server/internal/logger"
	"github.com/tourbook/tourbook-server/internal/ratelimit"
)

// Config holds the HTTP-facing settings of the server.
type Config struct {
	Development    bool          // log requests and expose error details
	SecureCookies  bool          // set Secure on the jwt cookie
	CookieDuration time.Duration // lifetime of the jwt cookie
	MaxBodyBytes   int64         // request body limit
	CORSOrigins    []string
	PublicURL      string // base of emailed links; empty uses the request host

	// CredentialLimiter throttles sign-in and password reset attempts per
	// client. Nil disables it.
	CredentialLimiter *ratelimit.KeyedRateLimiter
}

// credentialPaths are the routes that accept a password or reset token.
var credentialPaths = []string{
	"/api/v1/users/signup",
	"/api/v1/users/login",
	"/api/v1/users/forgot-password",
	"/api/v1/users/reset-password/",
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services *Services
	cfg      Config
	router   *chi.Mux
	api      huma.API
	limiter  ratelimit.Limiter
	logger   *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
// limiter may be nil to disable rate limiting.
func NewServer(services *Services, cfg Config, limiter ratelimit.Limiter, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 * 1024
	}
	if cfg.CookieDuration <= 0 {
		cfg.CookieDuration = 90 * 24 * time.Hour
	}

	s := &Server{
		services: services,
		cfg:      cfg,
		router:   chi.NewRouter(),
		limiter:  limiter,
		logger:   log,
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("Tourbook API", "1.0.0")
	// Responses are plain envelopes without a $schema link.
	humaConfig.CreateHooks = nil
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler(log, cfg.Development)

	s.registerHealthRoutes()
	s.registerTourRoutes()
	s.registerSearchRoutes()
	s.registerReviewRoutes()
	s.registerAuthRoutes()
	s.registerUserRoutes()

	s.router.NotFound(s.handleNotFound)
	s.router.MethodNotAllowed(s.handleNotFound)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, e.g. for OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	if s.cfg.Development {
		s.router.Use(logger.RequestLogger(s.logger))
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: !containsWildcard(s.cfg.CORSOrigins),
		MaxAge:           300,
	}))
	s.router.Use(securityHeaders)
	if s.limiter != nil {
		s.router.Use(under(RateLimitMiddleware(s.limiter, s.logger), "/api"))
	}
	if s.cfg.CredentialLimiter != nil {
		s.router.Use(under(ThrottleMiddleware(s.cfg.CredentialLimiter, s.logger), credentialPaths...))
	}
	s.router.Use(tokenMiddleware)
}

// bodyLimit is the huma MaxBodyBytes for the configured limit; huma rejects
// a body that reaches its limit.
func (s *Server) bodyLimit() int64 {
	return s.cfg.MaxBodyBytes + 1
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	response.NotFound(w, "Can't find "+r.URL.RequestURI()+" on this server!", s.logger)
}

// under applies mw to requests whose path starts with one of prefixes.
func under(mw func(http.Handler) http.Handler, prefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		wrapped := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range prefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					wrapped.ServeHTTP(w, r)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
