package providers

import (
	"context"
	"fmt"

	gcs "cloud.google.com/go/storage"
	"github.com/samber/do/v2"

	"github.com/sharedalbum/album-server/internal/config"
	"github.com/sharedalbum/album-server/internal/logger"
	"github.com/sharedalbum/album-server/internal/storage"
)

// Buckets groups the photo and thumbnail buckets.
type Buckets struct {
	Photos     storage.Bucket
	Thumbnails storage.Bucket
	// LocalPhotos is set only for the local backend. It feeds the watcher and
	// the /photos route.
	LocalPhotos *storage.LocalBucket
	URLs        storage.URLBuilder

	client *gcs.Client
}

// Shutdown implements do.Shutdownable.
func (b *Buckets) Shutdown() error {
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}

// ProvideBuckets opens the configured object storage backend.
func ProvideBuckets(i do.Injector) (*Buckets, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	urls := storage.URLBuilder{
		PublicURL:   cfg.Storage.PublicURL,
		PhotoBucket: cfg.Storage.PhotoBucket,
		GCS:         cfg.Storage.Backend == config.StorageGCS,
	}

	if cfg.Storage.Backend == config.StorageGCS {
		client, err := gcs.NewClient(context.Background())
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		log.Info("Cloud Storage buckets ready",
			"photos", cfg.Storage.PhotoBucket,
			"thumbnails", cfg.Storage.ThumbnailBucket,
		)
		return &Buckets{
			Photos:     storage.NewGCSBucket(client, cfg.Storage.PhotoBucket),
			Thumbnails: storage.NewGCSBucket(client, cfg.Storage.ThumbnailBucket),
			URLs:       urls,
			client:     client,
		}, nil
	}

	photos, err := storage.NewLocalBucket(cfg.Storage.LocalPath, cfg.Storage.PhotoBucket)
	if err != nil {
		return nil, fmt.Errorf("photo bucket: %w", err)
	}
	thumbnails, err := storage.NewLocalBucket(cfg.Storage.LocalPath, cfg.Storage.ThumbnailBucket)
	if err != nil {
		return nil, fmt.Errorf("thumbnail bucket: %w", err)
	}

	log.Info("Local buckets ready", "photos", photos.Dir(), "thumbnails", thumbnails.Dir())

	return &Buckets{
		Photos:      photos,
		Thumbnails:  thumbnails,
		LocalPhotos: photos,
		URLs:        urls,
	}, nil
}
