// Package api provides the HTTP API server and handlers for the Shared Album server.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sharedalbum/album-server/internal/domain"
	"github.com/sharedalbum/album-server/internal/metrics"
	"github.com/sharedalbum/album-server/internal/processor"
	"github.com/sharedalbum/album-server/internal/pubsub"
	"github.com/sharedalbum/album-server/internal/sse"
	"github.com/sharedalbum/album-server/internal/storage"
	"github.com/sharedalbum/album-server/internal/store"
)

// EventProcessor handles one decoded storage notification.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, event domain.StorageEvent) (processor.Outcome, error)
}

// Deps are the collaborators the server is built from. Photos may be nil when
// original photos are served by the object storage service itself.
type Deps struct {
	Store      store.Repository
	Services   *Services
	Processor  EventProcessor
	Decoder    *pubsub.Decoder
	Thumbnails storage.Bucket
	Photos     storage.Bucket
	SSEManager *sse.Manager
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
	Logger     *slog.Logger

	// CORSAllowedOrigins defaults to every origin.
	CORSAllowedOrigins []string
	// ReadLimiter throttles read endpoints per client IP. nil disables it.
	ReadLimiter *RateLimiter
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store      store.Repository
	services   *Services
	processor  EventProcessor
	decoder    *pubsub.Decoder
	thumbnails storage.Bucket
	photos     storage.Bucket
	sseManager *sse.Manager
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer

	router      *chi.Mux
	api         huma.API
	logger      *slog.Logger
	readLimiter *RateLimiter
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(deps Deps) *Server {
	if deps.Decoder == nil {
		deps.Decoder = pubsub.NewDecoder(nil)
	}
	if deps.Services == nil {
		deps.Services = &Services{}
	}

	s := &Server{
		store:       deps.Store,
		services:    deps.Services,
		processor:   deps.Processor,
		decoder:     deps.Decoder,
		thumbnails:  deps.Thumbnails,
		photos:      deps.Photos,
		sseManager:  deps.SSEManager,
		metrics:     deps.Metrics,
		gatherer:    deps.Gatherer,
		router:      chi.NewRouter(),
		logger:      deps.Logger,
		readLimiter: deps.ReadLimiter,
	}

	s.setupMiddleware(deps.CORSAllowedOrigins)

	config := huma.DefaultConfig("Shared Album API", "1.0.0")
	config.Info.Description = "Activity feed, gallery and label search for the shared photo album."
	s.api = humachi.New(s.router, config)
	RegisterErrorHandler()

	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for tests and OpenAPI generation.
func (s *Server) API() huma.API {
	return s.api
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(allowedOrigins []string) {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "If-None-Match", "Last-Event-ID"},
		ExposedHeaders: []string{"ETag"},
		MaxAge:         300,
	}))
	s.router.Use(s.observeRequests)
	if s.readLimiter != nil {
		s.router.Use(RateLimitMiddleware(s.readLimiter, s.logger))
	}
	s.router.Use(middleware.Compress(5))
}

// registerRoutes configures all HTTP routes.
func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerPushRoutes()
	s.registerAlbumRoutes()
	s.registerSearchRoutes()
	s.registerMediaRoutes()

	if s.sseManager != nil {
		s.router.Get("/api/v1/events", sse.NewHandler(s.sseManager, s.logger).ServeHTTP)
	}
	s.router.Get("/metrics", metrics.Handler(s.gatherer).ServeHTTP)
}
