package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/tourbook/tourbook-server/internal/config"
	"github.com/tourbook/tourbook-server/internal/logger"
	"github.com/tourbook/tourbook-server/internal/ratelimit"
)

// RateLimiterHandle wraps the request limiter with shutdown capability.
type RateLimiterHandle struct {
	ratelimit.Limiter
}

// Shutdown implements do.Shutdownable.
func (h *RateLimiterHandle) Shutdown() error {
	return h.Close()
}

// ProvideRateLimiter provides the /api request limiter. Counters live in
// Redis when an address is configured so that replicas share one budget.
func ProvideRateLimiter(i do.Injector) (*RateLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	rl := cfg.RateLimit

	if rl.RedisAddr == "" {
		log.Info("Rate limiter initialized", "backend", "memory", "requests", rl.Requests, "window", rl.Window)
		return &RateLimiterHandle{Limiter: ratelimit.NewWindow(rl.Requests, rl.Window)}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := ratelimit.NewRedisClient(ctx, rl.RedisAddr, rl.RedisPassword, rl.RedisDB)
	if err != nil {
		return nil, err
	}

	log.Info("Rate limiter initialized", "backend", "redis", "addr", rl.RedisAddr, "requests", rl.Requests, "window", rl.Window)
	return &RateLimiterHandle{Limiter: ratelimit.NewRedis(client, rl.Requests, rl.Window)}, nil
}

// CredentialLimiterHandle wraps the sign-in throttle. The limiter is nil when
// throttling is disabled.
type CredentialLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *CredentialLimiterHandle) Shutdown() error {
	if h.KeyedRateLimiter != nil {
		h.Stop()
	}
	return nil
}

// ProvideCredentialLimiter provides the per-client throttle for login, signup
// and password reset routes. It is always in process.
func ProvideCredentialLimiter(i do.Injector) (*CredentialLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	rl := cfg.RateLimit

	if rl.AuthPerMinute == 0 {
		log.Info("Credential throttle disabled")
		return &CredentialLimiterHandle{}, nil
	}

	log.Info("Credential throttle initialized", "per_minute", rl.AuthPerMinute, "burst", rl.AuthBurst)
	return &CredentialLimiterHandle{KeyedRateLimiter: ratelimit.PerMinute(rl.AuthPerMinute, rl.AuthBurst)}, nil
}
