package providers

import (
	"github.com/samber/do/v2"

	"github.com/sharedalbum/album-server/internal/logger"
	"github.com/sharedalbum/album-server/internal/service"
)

// ProvideAlbumService provides the read side of the album.
func ProvideAlbumService(i do.Injector) (*service.AlbumService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	buckets := do.MustInvoke[*Buckets](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAlbumService(storeHandle.Repository, buckets.URLs, log.Logger), nil
}
