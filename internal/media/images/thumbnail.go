// Package images turns uploaded photos into thumbnails with a BlurHash placeholder.
package images

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"io"
	"log/slog"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp" // Register WebP decoder

	"github.com/sharedalbum/album-server/internal/errors"
)

// Default thumbnail bounds and encoding.
const (
	DefaultMaxWidth    = 180
	DefaultMaxHeight   = 200
	DefaultJPEGQuality = 85
)

// MaxPixels bounds the decoded size of a photo. Larger photos are rejected
// before their pixels are allocated.
const MaxPixels = 50_000_000

// Thumbnail is an encoded thumbnail and its placeholder.
type Thumbnail struct {
	Data     []byte
	Width    int
	Height   int
	BlurHash string
}

// Generator shrinks photos to thumbnails.
type Generator struct {
	maxWidth  uint
	maxHeight uint
	quality   int
	logger    *slog.Logger
}

// NewGenerator creates a generator producing thumbnails that fit inside the
// default 180x200 box.
func NewGenerator(logger *slog.Logger) *Generator {
	return &Generator{
		maxWidth:  DefaultMaxWidth,
		maxHeight: DefaultMaxHeight,
		quality:   DefaultJPEGQuality,
		logger:    logger,
	}
}

// Generate decodes a JPEG, PNG, GIF or WebP photo and returns a JPEG thumbnail
// that keeps the aspect ratio. Photos already inside the box are not enlarged.
// Undecodable input and photos above MaxPixels yield a validation error.
func (g *Generator) Generate(r io.Reader) (*Thumbnail, error) {
	// The header read by DecodeConfig is replayed in front of the rest.
	var head bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &head))
	if err != nil {
		return nil, errors.Validationf("decode photo: %v", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.Validationf("photo has no pixels (%dx%d)", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, errors.Validationf("photo is %dx%d pixels, above the %d pixel limit", cfg.Width, cfg.Height, MaxPixels)
	}

	src, format, err := image.Decode(io.MultiReader(&head, r))
	if err != nil {
		return nil, errors.Validationf("decode photo: %v", err)
	}

	thumb := resize.Thumbnail(g.maxWidth, g.maxHeight, src, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: g.quality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}

	out := &Thumbnail{
		Data:   buf.Bytes(),
		Width:  thumb.Bounds().Dx(),
		Height: thumb.Bounds().Dy(),
	}

	// A missing placeholder is cosmetic.
	if hash, err := ComputeBlurHash(thumb); err != nil {
		g.logger.Warn("blurhash failed", "error", err)
	} else {
		out.BlurHash = hash
	}

	g.logger.Debug("thumbnail generated",
		"format", format,
		"src_width", src.Bounds().Dx(),
		"src_height", src.Bounds().Dy(),
		"width", out.Width,
		"height", out.Height,
		"bytes", len(out.Data),
	)
	return out, nil
}
