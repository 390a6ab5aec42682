// Package vision detects descriptive labels for photos through the Cloud Vision
// images:annotate REST endpoint.
package vision

import "context"

// LabelAnnotation is one label returned for an image.
type LabelAnnotation struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
	Mid         string  `json:"mid,omitempty"`
}

// Image identifies the image to annotate. Exactly one of GCSURI or Content is set.
type Image struct {
	// GCSURI is a gs://bucket/object URI the service reads directly.
	GCSURI string
	// Content is the raw image, sent inline when the service cannot reach the bucket.
	Content []byte
}

// Detector returns up to maxResults labels for an image, in service order.
type Detector interface {
	DetectLabels(ctx context.Context, img Image, maxResults int) ([]LabelAnnotation, error)
}

// Wire format of images:annotate.

type annotateRequest struct {
	Requests []imageRequest `json:"requests"`
}

type imageRequest struct {
	Image    imagePayload `json:"image"`
	Features []feature    `json:"features"`
}

type imagePayload struct {
	Content string       `json:"content,omitempty"`
	Source  *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	ImageURI string `json:"imageUri"`
}

type feature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults"`
}

type annotateResponse struct {
	Responses []imageResponse `json:"responses"`
}

type imageResponse struct {
	LabelAnnotations []LabelAnnotation `json:"labelAnnotations"`
	Error            *status           `json:"error,omitempty"`
}

type status struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
