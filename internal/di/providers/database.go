package providers

import (
	"context"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/sharedalbum/album-server/internal/config"
	"github.com/sharedalbum/album-server/internal/logger"
	"github.com/sharedalbum/album-server/internal/sse"
	"github.com/sharedalbum/album-server/internal/store"
	"github.com/sharedalbum/album-server/internal/store/sqlite"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreHandle wraps the repository with shutdown capability.
type StoreHandle struct {
	store.Repository
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the configured repository backend.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	var (
		repo store.Repository
		path string
		err  error
	)
	switch cfg.Data.Backend {
	case config.StoreSQLite:
		path = filepath.Join(cfg.Data.BasePath, "album.db")
		repo, err = sqlite.Open(path, log.Logger)
	default:
		path = filepath.Join(cfg.Data.BasePath, "db")
		repo, err = store.New(path, log.Logger)
	}
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "backend", repo.Backend(), "path", path)

	return &StoreHandle{Repository: repo}, nil
}
