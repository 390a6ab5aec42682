package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/do/v2"
	"golang.org/x/oauth2/google"

	"github.com/sharedalbum/album-server/internal/config"
	"github.com/sharedalbum/album-server/internal/logger"
	"github.com/sharedalbum/album-server/internal/media/images"
	"github.com/sharedalbum/album-server/internal/metrics"
	"github.com/sharedalbum/album-server/internal/processor"
	"github.com/sharedalbum/album-server/internal/vision"
)

// MetricsHandle pairs the collectors with the registry that serves them.
type MetricsHandle struct {
	*metrics.Metrics
	Registry *prometheus.Registry
}

// ProvideMetrics provides a private registry with runtime collectors and the
// album metrics.
func ProvideMetrics(i do.Injector) (*MetricsHandle, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &MetricsHandle{
		Metrics:  metrics.MustNewMetrics(reg),
		Registry: reg,
	}, nil
}

// ProvideThumbnailGenerator provides the thumbnail generator.
func ProvideThumbnailGenerator(i do.Injector) (*images.Generator, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return images.NewGenerator(log.Logger), nil
}

// visionScope is the OAuth scope of the label detection API.
const visionScope = "https://www.googleapis.com/auth/cloud-vision"

// credentialsClient returns an HTTP client carrying ambient credentials.
type credentialsClient func(ctx context.Context) (*http.Client, error)

func defaultCredentialsClient(ctx context.Context) (*http.Client, error) {
	return google.DefaultClient(ctx, visionScope)
}

// visionOptions picks the label detection credentials: an API key, a fixed
// bearer token, or else Application Default Credentials.
func visionOptions(ctx context.Context, cfg config.VisionConfig, ambient credentialsClient) (vision.Options, error) {
	opts := vision.Options{
		Endpoint:          cfg.Endpoint,
		APIKey:            cfg.APIKey,
		BearerToken:       cfg.BearerToken,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}
	if cfg.APIKey != "" || cfg.BearerToken != "" {
		return opts, nil
	}

	client, err := ambient(ctx)
	if err != nil {
		return vision.Options{}, fmt.Errorf("label detection credentials: set VISION_API_KEY or VISION_BEARER_TOKEN, or provide application default credentials: %w", err)
	}
	client.Timeout = 30 * time.Second
	opts.HTTPClient = client
	return opts, nil
}

// ProvideLabelDetector provides the vision client, or a detector returning no
// labels when detection is disabled.
func ProvideLabelDetector(i do.Injector) (vision.Detector, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Vision.Enabled {
		log.Info("Label detection disabled")
		return vision.NoopDetector{}, nil
	}

	opts, err := visionOptions(context.Background(), cfg.Vision, defaultCredentialsClient)
	if err != nil {
		return nil, err
	}

	log.Info("Label detection enabled",
		"endpoint", cfg.Vision.Endpoint,
		"max_labels", cfg.Vision.MaxLabels,
		"ambient_credentials", opts.HTTPClient != nil,
	)
	return vision.NewClient(opts, log.Logger), nil
}

// ProvideEventProcessor provides the storage event processor.
func ProvideEventProcessor(i do.Injector) (*processor.EventProcessor, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	buckets := do.MustInvoke[*Buckets](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	metricsHandle := do.MustInvoke[*MetricsHandle](i)

	return processor.NewEventProcessor(processor.Options{
		Store:      storeHandle.Repository,
		Photos:     buckets.Photos,
		Thumbnails: buckets.Thumbnails,
		Generator:  do.MustInvoke[*images.Generator](i),
		Detector:   do.MustInvoke[vision.Detector](i),
		Index:      indexHandle.Index,
		Events:     sseHandle.Manager,
		URLs:       buckets.URLs,
		Metrics:    metricsHandle.Metrics,
		Logger:     log.Logger,
		MaxLabels:  cfg.Vision.MaxLabels,
	}), nil
}
