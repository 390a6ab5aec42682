package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharedalbum/album-server/internal/errors"
)

func TestThumbnailKey(t *testing.T) {
	tests := []struct {
		name       string
		generation string
		want       string
	}{
		{"beach.jpg", "1234", "beach1234.jpg"},
		{"my.holiday.jpeg", "9", "my.holiday9.jpeg"},
		{"Cat.PNG", "42", "Cat42.PNG"},
		{"albums/2024/sky.webp", "7", "albums/2024/sky7.webp"},
		{"anim.gif", "1", "anim1.gif"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ThumbnailKey(tt.name, tt.generation)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestThumbnailKey_Unsupported(t *testing.T) {
	for _, name := range []string{"notes.txt", "README", ".jpg", "movie.mp4"} {
		t.Run(name, func(t *testing.T) {
			_, err := ThumbnailKey(name, "1")
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrValidation)
		})
	}
}

func TestParsePhotoName(t *testing.T) {
	p, err := ParsePhotoName("sunset.JPG")
	require.NoError(t, err)

	assert.Equal(t, "sunset", p.Stem)
	assert.Equal(t, ".JPG", p.Ext)
	assert.Equal(t, "image/jpeg", p.ContentType())
	assert.Equal(t, "sunset3.JPG", p.Key("3"))
}

func TestThumbnailReference_HasLabel(t *testing.T) {
	ref := ThumbnailReference{Labels: []string{"beach", "sky"}}
	assert.True(t, ref.HasLabel("sky"))
	assert.False(t, ref.HasLabel("Sky"))
}
