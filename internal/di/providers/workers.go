package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/sharedalbum/album-server/internal/config"
	"github.com/sharedalbum/album-server/internal/domain"
	"github.com/sharedalbum/album-server/internal/logger"
	"github.com/sharedalbum/album-server/internal/processor"
	"github.com/sharedalbum/album-server/internal/watcher"
)

// BucketWatcherHandle runs the local bucket watcher until shutdown.
type BucketWatcherHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (h *BucketWatcherHandle) Shutdown() error {
	if h.cancel == nil {
		return nil
	}
	h.cancel()
	<-h.done
	return nil
}

// ProvideBucketWatcher watches the local photo bucket and feeds its changes to
// the event processor, standing in for Pub/Sub when running without Cloud
// Storage. It is idle unless enabled.
func ProvideBucketWatcher(i do.Injector) (*BucketWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Watcher.Enabled {
		return &BucketWatcherHandle{}, nil
	}

	buckets := do.MustInvoke[*Buckets](i)
	eventProcessor := do.MustInvoke[*processor.EventProcessor](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	handle := func(ctx context.Context, event domain.StorageEvent) error {
		_, err := eventProcessor.ProcessEvent(ctx, event)
		return err
	}
	source := watcher.NewBucketSource(buckets.LocalPhotos, handle, log.Logger, watcher.Options{}).
		WithKnown(storeHandle.ListThumbnails)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := source.Run(ctx); err != nil {
			log.Error("Bucket watcher error", "error", err)
		}
	}()

	log.Info("Bucket watcher started", "path", buckets.LocalPhotos.Dir())

	return &BucketWatcherHandle{cancel: cancel, done: done}, nil
}
