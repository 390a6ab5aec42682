package storage

import (
	"net/url"
	"strings"
)

// URLBuilder builds the public URLs the album hands out.
type URLBuilder struct {
	// PublicURL is the base URL of this server, without trailing slash.
	PublicURL   string
	PhotoBucket string
	// GCS selects storage.googleapis.com URLs for original photos.
	GCS bool
}

// OriginalPhoto returns the URL of a specific photo generation.
func (u URLBuilder) OriginalPhoto(name, generation string) string {
	if u.GCS {
		return "https://storage.googleapis.com/" + u.PhotoBucket + "/" + escapePath(name) + "?generation=" + url.QueryEscape(generation)
	}
	return u.PublicURL + "/photos/" + escapePath(name) + "?generation=" + url.QueryEscape(generation)
}

// Thumbnail returns the URL serving a thumbnail.
func (u URLBuilder) Thumbnail(key string) string {
	return u.PublicURL + "/thumbnails/" + escapePath(key)
}

func escapePath(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
