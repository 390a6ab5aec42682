// Package providers contains dependency injection providers for the Shared Album server.
package providers

import (
	"os"

	"github.com/samber/do/v2"

	"github.com/sharedalbum/album-server/internal/config"
	"github.com/sharedalbum/album-server/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.Load(os.Args[1:])
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting Shared Album Server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Data.BasePath,
		"store_backend", cfg.Data.Backend,
		"storage_backend", cfg.Storage.Backend,
	)

	return log, nil
}
