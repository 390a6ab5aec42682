package images

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharedalbum/album-server/internal/errors"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img
}

func newTestGenerator() *Generator {
	return NewGenerator(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGenerator_Generate(t *testing.T) {
	tests := []struct {
		name       string
		w, h       int
		wantW      int
		wantH      int
		encodeFunc func(io.Writer, image.Image) error
	}{
		{
			name: "landscape jpeg", w: 800, h: 400, wantW: 180, wantH: 90,
			encodeFunc: func(w io.Writer, img image.Image) error { return jpeg.Encode(w, img, nil) },
		},
		{
			name: "portrait png", w: 300, h: 600, wantW: 100, wantH: 200,
			encodeFunc: png.Encode,
		},
		{
			name: "small gif not enlarged", w: 40, h: 30, wantW: 40, wantH: 30,
			encodeFunc: func(w io.Writer, img image.Image) error { return gif.Encode(w, img, nil) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var src bytes.Buffer
			require.NoError(t, tt.encodeFunc(&src, testImage(tt.w, tt.h)))

			thumb, err := newTestGenerator().Generate(&src)
			require.NoError(t, err)

			assert.Equal(t, tt.wantW, thumb.Width)
			assert.Equal(t, tt.wantH, thumb.Height)
			assert.NotEmpty(t, thumb.BlurHash)

			decoded, format, err := image.Decode(bytes.NewReader(thumb.Data))
			require.NoError(t, err)
			assert.Equal(t, "jpeg", format)
			assert.Equal(t, tt.wantW, decoded.Bounds().Dx())
		})
	}
}

func TestGenerator_Generate_InvalidInput(t *testing.T) {
	_, err := newTestGenerator().Generate(strings.NewReader("not an image"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

// pngDeclaring encodes a 1x1 PNG whose header claims w x h pixels.
func pngDeclaring(t *testing.T, w, h uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(1, 1)))
	data := buf.Bytes()
	require.Equal(t, "IHDR", string(data[12:16]))

	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestGenerator_Generate_RejectsOversizedPhoto(t *testing.T) {
	_, err := newTestGenerator().Generate(bytes.NewReader(pngDeclaring(t, 50000, 50000)))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidation)
	assert.Contains(t, err.Error(), "pixel limit")
}

func TestComputeBlurHash(t *testing.T) {
	hash, err := ComputeBlurHash(testImage(500, 300))
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	small, err := ComputeBlurHash(testImage(10, 10))
	require.NoError(t, err)
	assert.NotEmpty(t, small)
}
