package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/tourbook/tourbook-server/internal/api"
	"github.com/tourbook/tourbook-server/internal/config"
	"github.com/tourbook/tourbook-server/internal/logger"
	"github.com/tourbook/tourbook-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server and starts it in the background.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	limiterHandle := do.MustInvoke[*RateLimiterHandle](i)
	credentialHandle := do.MustInvoke[*CredentialLimiterHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	services := &api.Services{
		Tours:   do.MustInvoke[*service.TourService](i),
		Reviews: do.MustInvoke[*service.ReviewService](i),
		Users:   do.MustInvoke[*service.UserService](i),
		Auth:    do.MustInvoke[*service.AuthService](i),
		Store:   storeHandle.Store,
		Index:   indexHandle.SearchIndex,
	}

	handler := api.NewServer(services, api.Config{
		Development:    cfg.App.IsDevelopment(),
		SecureCookies:  cfg.App.IsProduction(),
		CookieDuration: cfg.Auth.CookieDuration,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		CORSOrigins:    cfg.Server.CORSOrigins,
		PublicURL:      cfg.Server.PublicURL,

		CredentialLimiter: credentialHandle.KeyedRateLimiter,
	}, limiterHandle.Limiter, log.Logger)

	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
