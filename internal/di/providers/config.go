// Package providers contains dependency injection providers for the tourbook server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/tourbook/tourbook-server/internal/config"
	"github.com/tourbook/tourbook-server/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.IsDevelopment(),
		Environment: cfg.App.Environment,
	})

	log.Info("Starting Tourbook Server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"store", cfg.Store.Driver,
		"data_path", cfg.Data.BasePath,
	)

	return log, nil
}
