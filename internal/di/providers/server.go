package providers

import (
	"context"
	"net/http"
	"time"

	"github.com/samber/do/v2"

	"github.com/sharedalbum/album-server/internal/api"
	"github.com/sharedalbum/album-server/internal/config"
	"github.com/sharedalbum/album-server/internal/logger"
	"github.com/sharedalbum/album-server/internal/processor"
	"github.com/sharedalbum/album-server/internal/service"
	"github.com/sharedalbum/album-server/internal/storage"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	limiter *api.RateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	h.limiter.Stop()
	return err
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	buckets := do.MustInvoke[*Buckets](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	metricsHandle := do.MustInvoke[*MetricsHandle](i)
	eventProcessor := do.MustInvoke[*processor.EventProcessor](i)

	services := &api.Services{
		Album:  do.MustInvoke[*service.AlbumService](i),
		Search: do.MustInvoke[*service.SearchService](i),
	}

	limiter := api.NewRateLimiter(readRequestsPerMinute, time.Minute, readBurst)

	// A nil *LocalBucket must not become a non-nil interface.
	var photos storage.Bucket
	if buckets.LocalPhotos != nil {
		photos = buckets.LocalPhotos
	}

	handler := api.NewServer(api.Deps{
		Store:              storeHandle.Repository,
		Services:           services,
		Processor:          eventProcessor,
		Thumbnails:         buckets.Thumbnails,
		Photos:             photos,
		SSEManager:         sseHandle.Manager,
		Metrics:            metricsHandle.Metrics,
		Gatherer:           metricsHandle.Registry,
		Logger:             log.Logger,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		ReadLimiter:        limiter,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr, "public_url", cfg.Storage.PublicURL)

	return &HTTPServerHandle{Server: srv, limiter: limiter}, nil
}
