package validation_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/sharedalbum/album-server/internal/errors"
	"github.com/sharedalbum/album-server/internal/validation"
)

type attributes struct {
	EventType  string `json:"eventType" validate:"required,oneof=OBJECT_FINALIZE OBJECT_DELETE"`
	ObjectID   string `json:"objectId" validate:"required,max=1024"`
	Generation string `json:"objectGeneration" validate:"number"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	err := v.Validate(attributes{EventType: "OBJECT_FINALIZE", ObjectID: "beach.jpg", Generation: "1700"})
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name    string
		attrs   attributes
		field   string
		message string
	}{
		{
			name:    "missing object",
			attrs:   attributes{EventType: "OBJECT_DELETE", Generation: "1"},
			field:   "objectId",
			message: "is required",
		},
		{
			name:    "unknown event",
			attrs:   attributes{EventType: "BUCKET_CREATE", ObjectID: "a.jpg", Generation: "1"},
			field:   "eventType",
			message: "must be one of: OBJECT_FINALIZE OBJECT_DELETE",
		},
		{
			name:    "non numeric generation",
			attrs:   attributes{EventType: "OBJECT_DELETE", ObjectID: "a.jpg", Generation: "12a"},
			field:   "objectGeneration",
			message: "must be a decimal number",
		},
		{
			name:    "fractional generation",
			attrs:   attributes{EventType: "OBJECT_DELETE", ObjectID: "a.jpg", Generation: "1.5"},
			field:   "objectGeneration",
			message: "must be a decimal number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.attrs)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())

			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Equal(t, tt.message, details[tt.field])
		})
	}
}
