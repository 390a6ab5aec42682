// Package di provides dependency injection configuration for the Shared Album server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/sharedalbum/album-server/internal/config"
	"github.com/sharedalbum/album-server/internal/di/providers"
	"github.com/sharedalbum/album-server/internal/logger"
	"github.com/sharedalbum/album-server/internal/media/images"
	"github.com/sharedalbum/album-server/internal/processor"
	"github.com/sharedalbum/album-server/internal/service"
	"github.com/sharedalbum/album-server/internal/vision"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideMetrics)

	// Persistence
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideBuckets)

	// Search
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideSearchService)

	// Ingestion
	do.Provide(injector, providers.ProvideThumbnailGenerator)
	do.Provide(injector, providers.ProvideLabelDetector)
	do.Provide(injector, providers.ProvideEventProcessor)

	// Read side
	do.Provide(injector, providers.ProvideAlbumService)

	// Workers and server
	do.Provide(injector, providers.ProvideBucketWatcher)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and starts the server and workers.
func Bootstrap(injector *do.RootScope) error {
	for _, invoke := range []func(do.Injector) error{
		invokeAs[*config.Config],
		invokeAs[*logger.Logger],
		invokeAs[*providers.MetricsHandle],
		invokeAs[*providers.SSEManagerHandle],
		invokeAs[*providers.StoreHandle],
		invokeAs[*providers.Buckets],
		invokeAs[*providers.SearchIndexHandle],
		invokeAs[*service.SearchService],
		invokeAs[*images.Generator],
		invokeAs[vision.Detector],
		invokeAs[*processor.EventProcessor],
		invokeAs[*service.AlbumService],
		invokeAs[*providers.HTTPServerHandle],
		invokeAs[*providers.BucketWatcherHandle],
	} {
		if err := invoke(injector); err != nil {
			return err
		}
	}

	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}

func invokeAs[T any](i do.Injector) error {
	_, err := do.Invoke[T](i)
	return err
}
