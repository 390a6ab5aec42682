package api

import "github.com/sharedalbum/album-server/internal/service"

// Services groups the business logic services used by the API server.
type Services struct {
	Album  *service.AlbumService
	Search *service.SearchService // nil disables full-text search
}
