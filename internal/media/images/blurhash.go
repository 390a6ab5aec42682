package images

import (
	"fmt"
	"image"

	"github.com/bbrks/go-blurhash"
	"github.com/nfnt/resize"
)

// blurHashSize bounds the image the hash is computed from. A placeholder needs
// no detail, so a 64px copy hashes in milliseconds with the same result.
const blurHashSize = 64

// ComputeBlurHash returns a 4x3 component BlurHash for img.
func ComputeBlurHash(img image.Image) (string, error) {
	b := img.Bounds()
	if b.Dx() > blurHashSize || b.Dy() > blurHashSize {
		img = resize.Thumbnail(blurHashSize, blurHashSize, img, resize.NearestNeighbor)
	}

	hash, err := blurhash.Encode(4, 3, img)
	if err != nil {
		return "", fmt.Errorf("encode blurhash: %w", err)
	}
	return hash, nil
}
