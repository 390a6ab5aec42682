package domain

import (
	"path"
	"slices"
	"strings"
	"time"

	"github.com/sharedalbum/album-server/internal/errors"
)

// ThumbnailContentType is the encoding of every generated thumbnail.
const ThumbnailContentType = "image/jpeg"

// supportedExtensions maps photo extensions the album accepts to their content type.
var supportedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ThumbnailReference describes a generated thumbnail, not the thumbnail bytes.
// ThumbnailKey is unique; two uploads of the same name differ by generation.
type ThumbnailReference struct {
	ThumbnailName string    `json:"thumbnail_name"`
	ThumbnailKey  string    `json:"thumbnail_key"`
	Generation    string    `json:"generation"`
	CreatedAt     time.Time `json:"created_at"`
	Labels        []string  `json:"labels"`
	OriginalPhoto string    `json:"original_photo"`

	BlurHash string `json:"blur_hash,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// PhotoName is a photo object name split around its final extension.
type PhotoName struct {
	Name string
	Stem string
	Ext  string
}

// ParsePhotoName splits name at its final extension. Names without a supported
// image extension are rejected with a validation error.
func ParsePhotoName(name string) (PhotoName, error) {
	ext := path.Ext(name)
	if _, ok := supportedExtensions[strings.ToLower(ext)]; !ok {
		return PhotoName{}, errors.Validationf("unsupported photo type: %q", name)
	}
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		return PhotoName{}, errors.Validationf("photo name has no stem: %q", name)
	}
	return PhotoName{Name: name, Stem: stem, Ext: ext}, nil
}

// Key returns the thumbnail key for a generation: stem + generation + ext.
func (p PhotoName) Key(generation string) string {
	return p.Stem + generation + p.Ext
}

// ContentType returns the MIME type implied by the extension.
func (p PhotoName) ContentType() string {
	return supportedExtensions[strings.ToLower(p.Ext)]
}

// ThumbnailKey returns the thumbnail key for name at generation, e.g.
// ("beach.jpg", "1234") -> "beach1234.jpg".
func ThumbnailKey(name, generation string) (string, error) {
	p, err := ParsePhotoName(name)
	if err != nil {
		return "", err
	}
	return p.Key(generation), nil
}

// HasLabel reports whether the reference carries label.
func (r *ThumbnailReference) HasLabel(label string) bool {
	return slices.Contains(r.Labels, label)
}
